package ai

import (
	"context"
	"errors"
	"strings"

	"claims-intake-platform/internal/telemetry"

	genai "github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const geminiService = "gemini"

type GeminiOptions struct {
	APIKey            string
	Model             string
	EmbeddingModel    string
	RequestsPerSecond float64
	Metrics           *telemetry.Metrics
}

// GeminiClient generates text and embeddings with the Gemini API
type GeminiClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
	guard          *guard
	metrics        *telemetry.Metrics
}

func NewGeminiClient(ctx context.Context, opts GeminiOptions) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, err
	}

	return &GeminiClient{
		client:         client,
		model:          opts.Model,
		embeddingModel: opts.EmbeddingModel,
		guard:          newGuard(geminiService, opts.RequestsPerSecond, opts.Metrics),
		metrics:        opts.Metrics,
	}, nil
}

func (gc *GeminiClient) Generate(ctx context.Context, prompt Prompt) (string, error) {
	ctx, span := otel.Tracer("ai").Start(ctx, "gemini.generate_content")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", gc.model))

	result, err := gc.guard.do(ctx, func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.model)
		model.SetTemperature(float32(prompt.Temperature))
		if prompt.MaxTokens > 0 {
			model.SetMaxOutputTokens(int32(prompt.MaxTokens))
		}
		if prompt.System != "" {
			model.SystemInstruction = genai.NewUserContent(genai.Text(prompt.System))
		}
		if prompt.JSON {
			model.ResponseMIMEType = "application/json"
		}
		return model.GenerateContent(ctx, genai.Text(prompt.User))
	}, googleStatus)
	if err != nil {
		span.SetAttributes(attribute.Bool("llm.error", true))
		return "", err
	}

	resp := result.(*genai.GenerateContentResponse)
	if resp.UsageMetadata != nil {
		gc.metrics.RecordTokensUsed(int64(resp.UsageMetadata.TotalTokenCount), geminiService, gc.model)
	}

	text := responseText(resp)
	if text == "" {
		return "", &UpstreamError{Service: geminiService, StatusCode: 502, Message: "response has no text candidates"}
	}
	return text, nil
}

// Embed returns the embedding vector for text
func (gc *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := otel.Tracer("ai").Start(ctx, "gemini.embed_content")
	defer span.End()

	result, err := gc.guard.do(ctx, func() (interface{}, error) {
		return gc.client.EmbeddingModel(gc.embeddingModel).EmbedContent(ctx, genai.Text(text))
	}, googleStatus)
	if err != nil {
		return nil, err
	}

	resp := result.(*genai.EmbedContentResponse)
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, &UpstreamError{Service: geminiService, StatusCode: 502, Message: "no embedding returned"}
	}
	span.SetAttributes(attribute.Int("embedding.dimensions", len(resp.Embedding.Values)))
	return resp.Embedding.Values, nil
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

func googleStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
