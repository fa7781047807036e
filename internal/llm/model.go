package llm

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/edenlabs/eden/internal/config"
	"github.com/edenlabs/eden/internal/metrics"
)

// Model wraps a langchaingo LLM as the generation engine. One call is
// assumed in flight at a time per conversation; the orchestrator enforces
// that.
type Model struct {
	llm       llms.Model
	modelName string
	collector *metrics.Collector
}

// NewModel creates a generation model based on configuration.
func NewModel(ctx context.Context, cfg config.Config, collector *metrics.Collector) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.BedrockRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.BedrockRegion))
		}
		awsCfg, awsErr := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if awsErr != nil {
			return nil, fmt.Errorf("load aws config: %w", awsErr)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		model, err = bedrock.New(
			bedrock.WithClient(client),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Model{
		llm:       model,
		modelName: cfg.LLMModel,
		collector: collector,
	}, nil
}

// newModelFromLLM wires an existing langchaingo model (tests).
func newModelFromLLM(llm llms.Model, name string, collector *metrics.Collector) *Model {
	return &Model{llm: llm, modelName: name, collector: collector}
}

// Generate produces text from a single prompt.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	response, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt)
	duration := time.Since(start)

	if m.collector != nil {
		m.collector.RecordGeneration(duration, estimateTokens(prompt), estimateTokens(response))
	}

	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return response, nil
}

// GenerateWithSystem produces text with a system prompt.
func (m *Model) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages)
	duration := time.Since(start)

	if err != nil {
		if m.collector != nil {
			m.collector.RecordGeneration(duration, estimateTokens(systemPrompt+userPrompt), 0)
		}
		return "", fmt.Errorf("generate with system: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	text := response.Choices[0].Content
	if m.collector != nil {
		m.collector.RecordGeneration(duration, estimateTokens(systemPrompt+userPrompt), estimateTokens(text))
	}
	return text, nil
}

// Model returns the generation model name.
func (m *Model) Model() string {
	return m.modelName
}

// estimateTokens approximates token count at ~4 chars per token. Providers
// report usage inconsistently across langchaingo backends, so the
// collector works off this uniform estimate instead.
func estimateTokens(s string) int64 {
	return int64(len(s) / 4)
}
