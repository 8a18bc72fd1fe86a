package ai

import (
	"context"
	"errors"

	"claims-intake-platform/internal/telemetry"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const deepSeekService = "deepseek"

type DeepSeekOptions struct {
	APIKey            string
	BaseURL           string
	Model             string
	RequestsPerSecond float64
	Metrics           *telemetry.Metrics
	// RequestOptions are appended to the client options, mainly for tests
	RequestOptions []option.RequestOption
}

// DeepSeekClient talks to DeepSeek through its OpenAI-compatible chat API
type DeepSeekClient struct {
	client  openai.Client
	model   string
	guard   *guard
	metrics *telemetry.Metrics
}

func NewDeepSeekClient(opts DeepSeekOptions) *DeepSeekClient {
	requestOptions := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(1),
	}
	if opts.BaseURL != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(opts.BaseURL))
	}
	requestOptions = append(requestOptions, opts.RequestOptions...)

	return &DeepSeekClient{
		client:  openai.NewClient(requestOptions...),
		model:   opts.Model,
		guard:   newGuard(deepSeekService, opts.RequestsPerSecond, opts.Metrics),
		metrics: opts.Metrics,
	}
}

func (c *DeepSeekClient) Generate(ctx context.Context, prompt Prompt) (string, error) {
	ctx, span := otel.Tracer("ai").Start(ctx, "deepseek.chat_completion")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model))

	var messages []openai.ChatCompletionMessageParamUnion
	if prompt.System != "" {
		messages = append(messages, openai.SystemMessage(prompt.System))
	}
	messages = append(messages, openai.UserMessage(prompt.User))

	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		Temperature: openai.Float(prompt.Temperature),
	}
	if prompt.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(prompt.MaxTokens))
	}
	if prompt.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	result, err := c.guard.do(ctx, func() (interface{}, error) {
		return c.client.Chat.Completions.New(ctx, params)
	}, openAIStatus)
	if err != nil {
		span.SetAttributes(attribute.Bool("llm.error", true))
		return "", err
	}

	resp := result.(*openai.ChatCompletion)
	c.metrics.RecordTokensUsed(resp.Usage.TotalTokens, deepSeekService, c.model)
	span.SetAttributes(attribute.Int64("llm.total_tokens", resp.Usage.TotalTokens))

	if len(resp.Choices) == 0 {
		return "", &UpstreamError{Service: deepSeekService, StatusCode: 502, Message: "response has no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIStatus(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
