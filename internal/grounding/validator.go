// Package grounding builds retrieval-backed context bundles, renders
// mode-specific prompts, and scores how well a generated response is
// supported by the retrieved context.
package grounding

import (
	"context"
	"fmt"

	"github.com/edenlabs/eden/internal/models"
)

// ContextBundle is the retrieved context a response must be grounded in.
type ContextBundle struct {
	Query         string
	Text          string
	EpisodeCount  int
	TokenEstimate int
}

// ValidationResult scores a response against its context bundle.
type ValidationResult struct {
	IsGrounded bool
	Confidence float64
}

// Validator produces context bundles, prompts, and groundedness scores.
// The orchestrator consumes this interface only; ContextValidator is the
// lexical implementation.
type Validator interface {
	GenerateGroundedResponse(ctx context.Context, query string, episodes []models.RetrievedEpisode) (*ContextBundle, error)
	CreatePrompt(query string, bundle *ContextBundle, mode models.Mode) string
	ValidateResponse(ctx context.Context, response string, bundle *ContextBundle) (*ValidationResult, error)
	AssessHallucinationRisk(response string, bundle *ContextBundle, validation *ValidationResult) models.RiskLevel
}

// ValidationError wraps validator failures. These are surfaced to the
// caller, not converted to fallback responses.
type ValidationError struct {
	Stage string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation %s: %v", e.Stage, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
