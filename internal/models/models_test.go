package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"fast", ModeFast, false},
		{"Detailed", ModeDetailed, false},
		{"  PROACTIVE ", ModeProactive, false},
		{"slow", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRiskLevelExceeds(t *testing.T) {
	assert.True(t, RiskHigh.Exceeds(RiskLow))
	assert.True(t, RiskHigh.Exceeds(RiskMedium))
	assert.True(t, RiskMedium.Exceeds(RiskLow))
	assert.False(t, RiskLow.Exceeds(RiskLow))
	assert.False(t, RiskLow.Exceeds(RiskMedium))
	assert.False(t, RiskHigh.Exceeds(RiskHigh))
}

func TestParseRiskLevel(t *testing.T) {
	r, err := ParseRiskLevel("Medium")
	require.NoError(t, err)
	assert.Equal(t, RiskMedium, r)

	_, err = ParseRiskLevel("extreme")
	assert.Error(t, err)
}

func TestParseSensitivity(t *testing.T) {
	s, err := ParseSensitivity(" high ")
	require.NoError(t, err)
	assert.Equal(t, SensitivityHigh, s)

	_, err = ParseSensitivity("max")
	assert.Error(t, err)
}

func TestSearchableText(t *testing.T) {
	e := Episode{
		UserMessage:       "how do I rebase?",
		AssistantResponse: "Use git rebase with the upstream branch.",
		Context: EpisodeContext{
			Files:     []string{"main.go", "rebase.md"},
			Workspace: "dotfiles",
		},
	}

	text := e.SearchableText()
	assert.Contains(t, text, "how do I rebase?")
	assert.Contains(t, text, "git rebase")
	assert.Contains(t, text, "dotfiles")
	assert.Contains(t, text, "main.go rebase.md")
}

func TestSearchableTextMinimal(t *testing.T) {
	e := Episode{UserMessage: "hi", AssistantResponse: "hello"}
	assert.Equal(t, "hi\nhello", e.SearchableText())
}

func TestEpisodeSatisfactionOptional(t *testing.T) {
	e := Episode{ID: "ep_1", Timestamp: time.Now()}
	assert.Nil(t, e.Satisfaction)

	pos := SatisfactionPositive
	e.Satisfaction = &pos
	assert.Equal(t, SatisfactionPositive, *e.Satisfaction)
}
