package models

import (
	"fmt"
	"strings"
)

// RiskLevel is a qualitative estimate that generated content is
// unsupported by its grounding context. Levels are ordered low < medium < high.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

var riskOrder = map[RiskLevel]int{
	RiskLow:    0,
	RiskMedium: 1,
	RiskHigh:   2,
}

// ParseRiskLevel parses a risk level string, case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := riskOrder[r]; !ok {
		return "", fmt.Errorf("unknown risk level: %q", s)
	}
	return r, nil
}

// Exceeds reports whether r is strictly above the tolerance level.
func (r RiskLevel) Exceeds(tolerance RiskLevel) bool {
	return riskOrder[r] > riskOrder[tolerance]
}

// Sensitivity tunes voice-activity and wake-word detection.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// ParseSensitivity parses a sensitivity string, case-insensitively.
func ParseSensitivity(s string) (Sensitivity, error) {
	switch v := Sensitivity(strings.ToLower(strings.TrimSpace(s))); v {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
		return v, nil
	default:
		return "", fmt.Errorf("unknown sensitivity: %q", s)
	}
}
