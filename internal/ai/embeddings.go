package ai

import (
	"context"
	"fmt"

	"claims-intake-platform/internal/config"
	"claims-intake-platform/internal/telemetry"
)

// NewEmbedder returns the Gemini embedding client (text-embedding-004 by default).
// Embeddings always come from Gemini regardless of LLM_PROVIDER.
func NewEmbedder(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*GeminiClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: missing GEMINI_API_KEY for embeddings", ErrNotConfigured)
	}

	return NewGeminiClient(ctx, GeminiOptions{
		APIKey:            cfg.GeminiAPIKey,
		Model:             cfg.GeminiModel,
		EmbeddingModel:    cfg.GoogleEmbeddingsModel,
		RequestsPerSecond: cfg.LLMRequestsPerSecond,
		Metrics:           metrics,
	})
}
