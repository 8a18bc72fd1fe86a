package ai

import (
	"context"
	"fmt"

	"claims-intake-platform/internal/config"
	"claims-intake-platform/internal/telemetry"
)

// Prompt is one generation request
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a JSON object response when it supports it
	JSON bool
}

// Generator produces text from a prompt
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewGenerator builds the generator selected by LLM_PROVIDER
func NewGenerator(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (Generator, error) {
	switch cfg.LLMProvider {
	case config.LLMProviderDeepSeek:
		if cfg.DeepSeekAPIKey == "" {
			return nil, fmt.Errorf("%w: DEEPSEEK_API_KEY is empty", ErrNotConfigured)
		}
		return NewDeepSeekClient(DeepSeekOptions{
			APIKey:            cfg.DeepSeekAPIKey,
			BaseURL:           cfg.DeepSeekBaseURL,
			Model:             cfg.DeepSeekModel,
			RequestsPerSecond: cfg.LLMRequestsPerSecond,
			Metrics:           metrics,
		}), nil
	case config.LLMProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY is empty", ErrNotConfigured)
		}
		return NewGeminiClient(ctx, GeminiOptions{
			APIKey:            cfg.GeminiAPIKey,
			Model:             cfg.GeminiModel,
			EmbeddingModel:    cfg.GoogleEmbeddingsModel,
			RequestsPerSecond: cfg.LLMRequestsPerSecond,
			Metrics:           metrics,
		})
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.LLMProvider)
	}
}
