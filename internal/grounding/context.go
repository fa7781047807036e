package grounding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/edenlabs/eden/internal/metrics"
	"github.com/edenlabs/eden/internal/models"
)

// Confidence bands for risk mapping. A response whose lexical support
// clears lowRiskFloor is considered safe; below highRiskFloor it is
// treated as likely unsupported.
const (
	lowRiskFloor  = 0.75
	highRiskFloor = 0.40

	// sentenceSupportFloor is the per-sentence token-overlap ratio at
	// which a sentence counts as supported by the bundle.
	sentenceSupportFloor = 0.5
)

var _ Validator = (*ContextValidator)(nil)

// ContextValidator is a lexical groundedness scorer: it measures token
// overlap between response sentences and the retrieved context. Cheap,
// deterministic, and model-free, which keeps validation off the GPU.
type ContextValidator struct {
	threshold        float64
	maxContextLength int
	personality      string
	collector        *metrics.Collector
}

// NewContextValidator creates a validator with the configured grounding
// threshold, advisory context budget (tokens), and proactive personality.
func NewContextValidator(threshold float64, maxContextLength int, personality string, collector *metrics.Collector) *ContextValidator {
	return &ContextValidator{
		threshold:        threshold,
		maxContextLength: maxContextLength,
		personality:      personality,
		collector:        collector,
	}
}

// GenerateGroundedResponse formats retrieved episodes into a context
// bundle. The maxContextLength budget is advisory: an oversized bundle is
// logged, never truncated.
func (v *ContextValidator) GenerateGroundedResponse(_ context.Context, query string, episodes []models.RetrievedEpisode) (*ContextBundle, error) {
	var b strings.Builder
	for i := range episodes {
		ep := &episodes[i]
		fmt.Fprintf(&b, "[memory %d, similarity %.2f, %s]\n", ep.Rank, ep.Similarity, ep.Timestamp.Format("2006-01-02"))
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", ep.UserMessage, ep.AssistantResponse)
		if ep.Context.Workspace != "" {
			fmt.Fprintf(&b, "Workspace: %s\n", ep.Context.Workspace)
		}
		b.WriteString("\n")
	}

	bundle := &ContextBundle{
		Query:         query,
		Text:          strings.TrimSpace(b.String()),
		EpisodeCount:  len(episodes),
		TokenEstimate: b.Len() / 4,
	}

	if v.maxContextLength > 0 && bundle.TokenEstimate > v.maxContextLength {
		slog.Warn("context bundle exceeds advisory budget",
			"estimated_tokens", bundle.TokenEstimate, "budget", v.maxContextLength)
	}

	return bundle, nil
}

// CreatePrompt renders the mode-specific prompt around the bundle.
func (v *ContextValidator) CreatePrompt(query string, bundle *ContextBundle, mode models.Mode) string {
	var b strings.Builder

	switch mode {
	case models.ModeDetailed:
		b.WriteString("Answer thoroughly. Base your answer on the remembered exchanges below and refer to them where relevant. If they do not cover the question, say so.\n\n")
	case models.ModeProactive:
		fmt.Fprintf(&b, "You are checking in with the user unprompted. Keep a %s tone and keep it short. Use the remembered exchanges below for anything worth following up on.\n\n", v.personality)
	default:
		b.WriteString("Answer briefly and directly, using the remembered exchanges below when they help.\n\n")
	}

	if bundle != nil && bundle.Text != "" {
		b.WriteString("Remembered exchanges:\n")
		b.WriteString(bundle.Text)
		b.WriteString("\n\n")
	}

	if query != "" {
		fmt.Fprintf(&b, "User: %s", query)
	}
	return b.String()
}

// ValidateResponse scores each response sentence by the fraction of its
// content tokens that appear in the bundle. Confidence is the mean
// per-sentence support; grounded iff confidence clears the threshold.
func (v *ContextValidator) ValidateResponse(_ context.Context, response string, bundle *ContextBundle) (*ValidationResult, error) {
	start := time.Now()
	defer func() {
		if v.collector != nil {
			v.collector.RecordTiming(metrics.OpValidation, time.Since(start))
		}
	}()

	if bundle == nil || bundle.Text == "" {
		return &ValidationResult{IsGrounded: false, Confidence: 0}, nil
	}

	sentences := splitSentences(response)
	if len(sentences) == 0 {
		return nil, &ValidationError{Stage: "score response", Err: fmt.Errorf("empty response")}
	}

	contextTokens := tokenSet(bundle.Text)

	var total float64
	for _, sentence := range sentences {
		total += sentenceSupport(sentence, contextTokens)
	}
	confidence := total / float64(len(sentences))

	return &ValidationResult{
		IsGrounded: confidence >= v.threshold,
		Confidence: confidence,
	}, nil
}

// AssessHallucinationRisk maps the validation confidence and the share of
// unsupported sentences onto low/medium/high.
func (v *ContextValidator) AssessHallucinationRisk(response string, bundle *ContextBundle, validation *ValidationResult) models.RiskLevel {
	if validation == nil || bundle == nil || bundle.Text == "" {
		return models.RiskHigh
	}

	unsupported := unsupportedRatio(response, bundle)

	switch {
	case validation.Confidence >= lowRiskFloor && unsupported <= 0.25:
		return models.RiskLow
	case validation.Confidence >= highRiskFloor && unsupported <= 0.5:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

func unsupportedRatio(response string, bundle *ContextBundle) float64 {
	sentences := splitSentences(response)
	if len(sentences) == 0 {
		return 1
	}
	contextTokens := tokenSet(bundle.Text)
	unsupported := 0
	for _, sentence := range sentences {
		if sentenceSupport(sentence, contextTokens) < sentenceSupportFloor {
			unsupported++
		}
	}
	return float64(unsupported) / float64(len(sentences))
}

// sentenceSupport is the fraction of a sentence's content tokens present
// in the context token set. Sentences with no content tokens (pure
// filler) count as fully supported.
func sentenceSupport(sentence string, contextTokens map[string]struct{}) float64 {
	tokens := tokenize(sentence)
	if len(tokens) == 0 {
		return 1
	}
	hits := 0
	for _, tok := range tokens {
		if _, ok := contextTokens[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

func splitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// tokenize lowercases and keeps alphanumeric runs of 3+ characters;
// shorter tokens are function words that carry no grounding signal.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) >= 3 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func tokenSet(text string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, tok := range tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}
