// Package config loads configuration from environment variables with an
// optional YAML overlay file, and wires up logging.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edenlabs/eden/internal/models"
)

// Provider identifies an LLM or embedding backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Embedding
	EmbedProvider  Provider
	EmbedModel     string
	EmbedDimension int
	OllamaHost     string
	OpenAIAPIKey   string

	// Generation
	LLMProvider     Provider
	LLMModel        string
	AnthropicAPIKey string
	BedrockRegion   string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Assistant behavior
	Assistant AssistantOptions
}

// AssistantOptions are the orchestrator-facing knobs. They can be set via
// environment, the YAML overlay, or the updateConfig surface at runtime.
type AssistantOptions struct {
	GroundingEnabled           bool
	GroundingThreshold         float64
	HallucinationRiskTolerance models.RiskLevel
	ProactiveEnabled           bool
	ProactiveFrequency         time.Duration
	ProactivePersonality       string
	VADEnabled                 bool
	VADSensitivity             models.Sensitivity
	WakeWordEnabled            bool
	WakeWords                  []string
	FastModeThreshold          float64
	// MaxContextLength is an advisory token budget for grounding bundles.
	// It is not enforced as a hard truncation.
	MaxContextLength int
	RetrievalTopK    int
	MinSimilarity    float64
	CacheCapacity    int
}

// ValidationError reports invalid setup detected at startup. It is fatal:
// callers should refuse to initialize on it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "eden"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "assistant"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		EmbedProvider:  Provider(getEnv("EDEN_EMBED_PROVIDER", string(ProviderOllama))),
		EmbedModel:     getEnv("EDEN_EMBED_MODEL", "all-minilm:l6-v2"),
		EmbedDimension: getEnvInt("EDEN_EMBED_DIMENSION", 384),
		OllamaHost:     getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),

		LLMProvider:     Provider(getEnv("EDEN_LLM_PROVIDER", string(ProviderOllama))),
		LLMModel:        getEnv("EDEN_LLM_MODEL", "llama3.2"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		BedrockRegion:   getEnv("EDEN_BEDROCK_REGION", ""),

		LogFile:  getEnv("EDEN_LOG_FILE", "/tmp/eden.log"),
		LogLevel: parseLogLevel(getEnv("EDEN_LOG_LEVEL", "INFO")),

		Assistant: DefaultAssistantOptions(),
	}
}

// DefaultAssistantOptions returns the assistant defaults.
func DefaultAssistantOptions() AssistantOptions {
	return AssistantOptions{
		GroundingEnabled:           true,
		GroundingThreshold:         0.6,
		HallucinationRiskTolerance: models.RiskMedium,
		ProactiveEnabled:           false,
		ProactiveFrequency:         30 * time.Minute,
		ProactivePersonality:       "friendly",
		VADEnabled:                 false,
		VADSensitivity:             models.SensitivityMedium,
		WakeWordEnabled:            false,
		WakeWords:                  []string{"eden"},
		FastModeThreshold:          0.8,
		MaxContextLength:           2048,
		RetrievalTopK:              5,
		MinSimilarity:              0.5,
		CacheCapacity:              1000,
	}
}

// fileOptions mirrors AssistantOptions with pointer fields so that only
// keys present in the file overlay the in-memory defaults. Durations are
// strings ("30m", "1h") because yaml.v3 has no native duration decoding.
type fileOptions struct {
	GroundingEnabled           *bool     `yaml:"grounding_enabled"`
	GroundingThreshold         *float64  `yaml:"grounding_threshold"`
	HallucinationRiskTolerance *string   `yaml:"hallucination_risk_tolerance"`
	ProactiveEnabled           *bool     `yaml:"proactive_enabled"`
	ProactiveFrequency         *string   `yaml:"proactive_frequency"`
	ProactivePersonality       *string   `yaml:"proactive_personality"`
	VADEnabled                 *bool     `yaml:"vad_enabled"`
	VADSensitivity             *string   `yaml:"vad_sensitivity"`
	WakeWordEnabled            *bool     `yaml:"wake_word_enabled"`
	WakeWords                  *[]string `yaml:"wake_words"`
	FastModeThreshold          *float64  `yaml:"fast_mode_threshold"`
	MaxContextLength           *int      `yaml:"max_context_length"`
	RetrievalTopK              *int      `yaml:"retrieval_top_k"`
	MinSimilarity              *float64  `yaml:"min_similarity"`
	CacheCapacity              *int      `yaml:"cache_capacity"`
}

// ApplyFile overlays assistant options from a YAML file onto cfg.
// A missing file is not an error; a malformed file is.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fo fileOptions
	if err := yaml.Unmarshal(data, &fo); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	a := &c.Assistant
	if fo.GroundingEnabled != nil {
		a.GroundingEnabled = *fo.GroundingEnabled
	}
	if fo.GroundingThreshold != nil {
		a.GroundingThreshold = *fo.GroundingThreshold
	}
	if fo.HallucinationRiskTolerance != nil {
		a.HallucinationRiskTolerance = models.RiskLevel(*fo.HallucinationRiskTolerance)
	}
	if fo.ProactiveEnabled != nil {
		a.ProactiveEnabled = *fo.ProactiveEnabled
	}
	if fo.ProactiveFrequency != nil {
		d, err := time.ParseDuration(*fo.ProactiveFrequency)
		if err != nil {
			return fmt.Errorf("parse proactive_frequency: %w", err)
		}
		a.ProactiveFrequency = d
	}
	if fo.ProactivePersonality != nil {
		a.ProactivePersonality = *fo.ProactivePersonality
	}
	if fo.VADEnabled != nil {
		a.VADEnabled = *fo.VADEnabled
	}
	if fo.VADSensitivity != nil {
		a.VADSensitivity = models.Sensitivity(*fo.VADSensitivity)
	}
	if fo.WakeWordEnabled != nil {
		a.WakeWordEnabled = *fo.WakeWordEnabled
	}
	if fo.WakeWords != nil {
		a.WakeWords = *fo.WakeWords
	}
	if fo.FastModeThreshold != nil {
		a.FastModeThreshold = *fo.FastModeThreshold
	}
	if fo.MaxContextLength != nil {
		a.MaxContextLength = *fo.MaxContextLength
	}
	if fo.RetrievalTopK != nil {
		a.RetrievalTopK = *fo.RetrievalTopK
	}
	if fo.MinSimilarity != nil {
		a.MinSimilarity = *fo.MinSimilarity
	}
	if fo.CacheCapacity != nil {
		a.CacheCapacity = *fo.CacheCapacity
	}
	return nil
}

// Validate checks enum values and numeric ranges. Returns a
// *ValidationError on the first violation.
func (c *Config) Validate() error {
	switch c.EmbedProvider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return &ValidationError{Field: "embed_provider", Reason: fmt.Sprintf("unsupported provider %q", c.EmbedProvider)}
	}
	switch c.LLMProvider {
	case ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderBedrock:
	default:
		return &ValidationError{Field: "llm_provider", Reason: fmt.Sprintf("unsupported provider %q", c.LLMProvider)}
	}
	if c.EmbedDimension <= 0 {
		return &ValidationError{Field: "embed_dimension", Reason: "must be positive"}
	}

	a := c.Assistant
	if _, err := models.ParseRiskLevel(string(a.HallucinationRiskTolerance)); err != nil {
		return &ValidationError{Field: "hallucination_risk_tolerance", Reason: err.Error()}
	}
	if _, err := models.ParseSensitivity(string(a.VADSensitivity)); err != nil {
		return &ValidationError{Field: "vad_sensitivity", Reason: err.Error()}
	}
	if a.FastModeThreshold < 0 || a.FastModeThreshold > 1 {
		return &ValidationError{Field: "fast_mode_threshold", Reason: "must be in [0,1]"}
	}
	if a.GroundingThreshold < 0 || a.GroundingThreshold > 1 {
		return &ValidationError{Field: "grounding_threshold", Reason: "must be in [0,1]"}
	}
	if a.MinSimilarity < 0 || a.MinSimilarity > 1 {
		return &ValidationError{Field: "min_similarity", Reason: "must be in [0,1]"}
	}
	if a.RetrievalTopK <= 0 {
		return &ValidationError{Field: "retrieval_top_k", Reason: "must be positive"}
	}
	if a.CacheCapacity <= 0 {
		return &ValidationError{Field: "cache_capacity", Reason: "must be positive"}
	}
	if a.WakeWordEnabled && len(a.WakeWords) == 0 {
		return &ValidationError{Field: "wake_words", Reason: "at least one wake phrase required when wake word detection is enabled"}
	}
	if a.ProactiveEnabled && a.ProactiveFrequency <= 0 {
		return &ValidationError{Field: "proactive_frequency", Reason: "must be positive when proactive engagement is enabled"}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
