package grounding

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edenlabs/eden/internal/models"
)

func retrieved(rank int, similarity float64, user, assistant string) models.RetrievedEpisode {
	return models.RetrievedEpisode{
		Episode: models.Episode{
			UserMessage:       user,
			AssistantResponse: assistant,
			Timestamp:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		Similarity: similarity,
		Rank:       rank,
	}
}

func TestGenerateGroundedResponse(t *testing.T) {
	v := NewContextValidator(0.6, 2048, "friendly", nil)

	bundle, err := v.GenerateGroundedResponse(context.Background(), "what database do I use?", []models.RetrievedEpisode{
		retrieved(1, 0.91, "which database should I pick?", "you settled on surrealdb for the project"),
		retrieved(2, 0.72, "how do I connect to it?", "use the websocket endpoint on port 8000"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, bundle.EpisodeCount)
	assert.Contains(t, bundle.Text, "similarity 0.91")
	assert.Contains(t, bundle.Text, "surrealdb")
	assert.Contains(t, bundle.Text, "[memory 2")
	assert.Greater(t, bundle.TokenEstimate, 0)
}

func TestGenerateGroundedResponseEmpty(t *testing.T) {
	v := NewContextValidator(0.6, 2048, "friendly", nil)

	bundle, err := v.GenerateGroundedResponse(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, bundle.EpisodeCount)
	assert.Empty(t, bundle.Text)
}

func TestCreatePromptModes(t *testing.T) {
	v := NewContextValidator(0.6, 2048, "playful", nil)
	bundle := &ContextBundle{Text: "User: hi\nAssistant: hello"}

	fast := v.CreatePrompt("what now?", bundle, models.ModeFast)
	assert.Contains(t, fast, "briefly")
	assert.Contains(t, fast, "User: what now?")
	assert.Contains(t, fast, "Remembered exchanges:")

	detailed := v.CreatePrompt("what now?", bundle, models.ModeDetailed)
	assert.Contains(t, detailed, "thoroughly")

	proactive := v.CreatePrompt("", bundle, models.ModeProactive)
	assert.Contains(t, proactive, "playful")
	assert.Contains(t, proactive, "unprompted")
}

func TestValidateResponseGrounded(t *testing.T) {
	v := NewContextValidator(0.6, 2048, "friendly", nil)
	bundle := &ContextBundle{
		Text: "User: which database should I pick?\nAssistant: you settled on surrealdb for the project",
	}

	result, err := v.ValidateResponse(context.Background(), "You settled on surrealdb for the project.", bundle)
	require.NoError(t, err)
	assert.True(t, result.IsGrounded)
	assert.Greater(t, result.Confidence, 0.6)
}

func TestValidateResponseUnsupported(t *testing.T) {
	v := NewContextValidator(0.6, 2048, "friendly", nil)
	bundle := &ContextBundle{Text: "User: hello\nAssistant: good morning"}

	result, err := v.ValidateResponse(context.Background(), "Quantum entanglement governs spooky particle correlations.", bundle)
	require.NoError(t, err)
	assert.False(t, result.IsGrounded)
	assert.Less(t, result.Confidence, 0.4)
}

func TestValidateResponseEmptyBundle(t *testing.T) {
	v := NewContextValidator(0.6, 2048, "friendly", nil)

	result, err := v.ValidateResponse(context.Background(), "anything at all", &ContextBundle{})
	require.NoError(t, err)
	assert.False(t, result.IsGrounded)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestValidateResponseEmptyResponse(t *testing.T) {
	v := NewContextValidator(0.6, 2048, "friendly", nil)
	bundle := &ContextBundle{Text: "User: hello\nAssistant: hi"}

	_, err := v.ValidateResponse(context.Background(), "   ", bundle)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "score response", verr.Stage)
}

func TestAssessHallucinationRisk(t *testing.T) {
	v := NewContextValidator(0.6, 2048, "friendly", nil)
	bundle := &ContextBundle{
		Text: "User: which database should I pick?\nAssistant: you settled on surrealdb for the project",
	}

	supported := "You settled on surrealdb for the project."
	invented := "Jupiter orbits backwards through ancient volcanic archipelagos. Nobody disputes sentient weather."

	risk := v.AssessHallucinationRisk(supported, bundle, &ValidationResult{IsGrounded: true, Confidence: 0.9})
	assert.Equal(t, models.RiskLow, risk)

	risk = v.AssessHallucinationRisk(invented, bundle, &ValidationResult{IsGrounded: false, Confidence: 0.1})
	assert.Equal(t, models.RiskHigh, risk)

	// Mid confidence with a partly supported response.
	mixed := "You settled on surrealdb for the project. Penguins manage the deployment calendar."
	risk = v.AssessHallucinationRisk(mixed, bundle, &ValidationResult{IsGrounded: false, Confidence: 0.5})
	assert.Equal(t, models.RiskMedium, risk)
}

func TestAssessHallucinationRiskEmptyBundle(t *testing.T) {
	v := NewContextValidator(0.6, 2048, "friendly", nil)

	risk := v.AssessHallucinationRisk("anything", &ContextBundle{}, &ValidationResult{Confidence: 1})
	assert.Equal(t, models.RiskHigh, risk)
}

func TestAdvisoryBudgetDoesNotTruncate(t *testing.T) {
	v := NewContextValidator(0.6, 1, "friendly", nil)

	long := strings.Repeat("remember this exchange ", 50)
	bundle, err := v.GenerateGroundedResponse(context.Background(), "q", []models.RetrievedEpisode{
		retrieved(1, 0.9, long, long),
	})
	require.NoError(t, err)
	assert.Greater(t, bundle.TokenEstimate, 1)
	assert.Contains(t, bundle.Text, "remember this exchange")
}
