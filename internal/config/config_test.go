package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edenlabs/eden/internal/models"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Assistant.RetrievalTopK)
	assert.Equal(t, 1000, cfg.Assistant.CacheCapacity)
	assert.Equal(t, models.RiskMedium, cfg.Assistant.HallucinationRiskTolerance)
	assert.Equal(t, []string{"eden"}, cfg.Assistant.WakeWords)
}

func TestApplyFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eden.yaml")
	content := `
grounding_enabled: false
hallucination_risk_tolerance: low
proactive_enabled: true
proactive_frequency: 15m
wake_words: ["eden", "hey eden"]
fast_mode_threshold: 0.9
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := Load()
	require.NoError(t, cfg.ApplyFile(path))

	assert.False(t, cfg.Assistant.GroundingEnabled)
	assert.Equal(t, models.RiskLow, cfg.Assistant.HallucinationRiskTolerance)
	assert.True(t, cfg.Assistant.ProactiveEnabled)
	assert.Equal(t, 15*time.Minute, cfg.Assistant.ProactiveFrequency)
	assert.Equal(t, []string{"eden", "hey eden"}, cfg.Assistant.WakeWords)
	assert.Equal(t, 0.9, cfg.Assistant.FastModeThreshold)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, 0.6, cfg.Assistant.GroundingThreshold)
	assert.Equal(t, 5, cfg.Assistant.RetrievalTopK)
}

func TestApplyFileMissingIsNoop(t *testing.T) {
	cfg := Load()
	before := cfg.Assistant
	require.NoError(t, cfg.ApplyFile(filepath.Join(t.TempDir(), "absent.yaml")))
	assert.Equal(t, before, cfg.Assistant)
}

func TestApplyFileMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wake_words: [unclosed"), 0644))

	cfg := Load()
	assert.Error(t, cfg.ApplyFile(path))
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad risk tolerance", func(c *Config) { c.Assistant.HallucinationRiskTolerance = "extreme" }, "hallucination_risk_tolerance"},
		{"bad sensitivity", func(c *Config) { c.Assistant.VADSensitivity = "ultra" }, "vad_sensitivity"},
		{"threshold out of range", func(c *Config) { c.Assistant.FastModeThreshold = 1.5 }, "fast_mode_threshold"},
		{"zero topK", func(c *Config) { c.Assistant.RetrievalTopK = 0 }, "retrieval_top_k"},
		{"zero capacity", func(c *Config) { c.Assistant.CacheCapacity = 0 }, "cache_capacity"},
		{"wake word enabled without phrases", func(c *Config) {
			c.Assistant.WakeWordEnabled = true
			c.Assistant.WakeWords = nil
		}, "wake_words"},
		{"unknown llm provider", func(c *Config) { c.LLMProvider = "copilot" }, "llm_provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("hello", "key", "value")

	assert.Contains(t, stderr.String(), "hello")
	assert.Contains(t, file.String(), `"key":"value"`)
}
