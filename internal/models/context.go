package models

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how much work a response is worth.
type Mode string

const (
	ModeFast      Mode = "fast"
	ModeDetailed  Mode = "detailed"
	ModeProactive Mode = "proactive"
)

// ParseMode parses a mode string, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeFast:
		return ModeFast, nil
	case ModeDetailed:
		return ModeDetailed, nil
	case ModeProactive:
		return ModeProactive, nil
	default:
		return "", fmt.Errorf("unknown mode: %q", s)
	}
}

// VoiceState tracks where the voice pipeline currently is.
type VoiceState string

const (
	VoiceIdle      VoiceState = "idle"
	VoiceListening VoiceState = "listening"
	VoiceSpeaking  VoiceState = "speaking"
)

// ValidationSummary is the grounding verdict attached to a response.
type ValidationSummary struct {
	IsGrounded  bool      `json:"is_grounded"`
	Confidence  float64   `json:"confidence"`
	Risk        RiskLevel `json:"risk"`
	Regenerated bool      `json:"regenerated"`
}

// ConversationContext is the single mutable session state owned by the
// orchestrator. Consumers only ever see copies.
type ConversationContext struct {
	Mode            Mode               `json:"mode"`
	VoiceState      VoiceState         `json:"voice_state"`
	LastValidation  *ValidationSummary `json:"last_validation,omitempty"`
	LastInteraction time.Time          `json:"last_interaction"`
	IdleMinutes     int                `json:"idle_minutes"`
}
