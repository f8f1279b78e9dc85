// internal/llmclient/openai.go
package llmclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/config"
)

// OpenAIClient implements the schemas.LLMClient interface for the OpenAI
// chat completions API. A custom Endpoint routes the same client to
// OpenAI-compatible providers (OpenRouter, Groq, local servers).
type OpenAIClient struct {
	client *openai.Client
	logger *zap.Logger
	config config.LLMModelConfig
}

var _ schemas.LLMClient = (*OpenAIClient)(nil)

// NewOpenAIClient initializes the client.
func NewOpenAIClient(cfg config.LLMModelConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openAI API Key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(3),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	if cfg.APITimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.APITimeout))
	}

	client := openai.NewClient(opts...)
	return &OpenAIClient{
		client: &client,
		config: cfg,
		logger: logger.Named("llm_client.openai"),
	}, nil
}

// Generate sends the prompts and screenshots to the chat completions API
// and returns the generated content. Transient failures are retried by the
// SDK itself.
func (c *OpenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.config.Model),
		Messages:    c.buildMessages(req),
		Temperature: openai.Opt(req.Options.Temperature),
	}
	if c.config.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.config.MaxTokens))
	}
	if req.Options.TopP > 0 {
		params.TopP = openai.Opt(req.Options.TopP)
	} else if c.config.TopP > 0 {
		params.TopP = openai.Opt(float64(c.config.TopP))
	}
	if req.Options.ForceJSONFormat {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	startTime := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	duration := time.Since(startTime)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai API returned no choices")
	}

	c.logger.Info("LLM generation complete (OpenAI)",
		zap.Duration("duration", duration),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int64("total_tokens", resp.Usage.TotalTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

// Close is a no-op; the SDK client holds no long-lived resources.
func (c *OpenAIClient) Close() error {
	return nil
}

// buildMessages assembles the system prompt plus a single user turn. When
// screenshots are attached the user turn becomes multimodal, with each
// image carried as a base64 data URL content part ahead of the text.
func (c *OpenAIClient) buildMessages(req schemas.GenerationRequest) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(req.SystemPrompt),
	}

	if len(req.Images) == 0 {
		return append(messages, openai.UserMessage(req.UserPrompt))
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(req.Images)+1)
	for _, img := range req.Images {
		dataURL := fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL,
		}))
	}
	parts = append(parts, openai.TextContentPart(req.UserPrompt))

	return append(messages, openai.UserMessage(parts))
}
