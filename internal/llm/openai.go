package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/retry"
)

// OpenAIConfig configures the chat completion client.
type OpenAIConfig struct {
	Model   string
	Timeout time.Duration
	// BaseURL overrides the API endpoint; used by tests.
	BaseURL string
	Retry   retry.Policy
}

// OpenAI completes prompts with the chat completion API.
type OpenAI struct {
	client *openai.Client
	config OpenAIConfig
	logger *slog.Logger
}

// NewOpenAI creates a client for apiKey.
func NewOpenAI(apiKey string, cfg OpenAIConfig, logger *slog.Logger) *OpenAI {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.Retry == (retry.Policy{}) {
		cfg.Retry = retry.DefaultPolicy()
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
		logger: logger,
	}
}

// Complete sends p as a chat completion. Rate limit and server errors are retried.
func (c *OpenAI) Complete(ctx context.Context, p Prompt) (string, error) {
	request := c.request(p)

	var content string
	err := retry.Do(ctx, c.config.Retry, func(ctx context.Context) error {
		apiCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()

		start := time.Now()
		resp, err := c.client.CreateChatCompletion(apiCtx, request)
		if err != nil {
			if status := openAIStatus(err); status == http.StatusTooManyRequests || status >= 500 {
				c.logger.Warn("openai call failed, retrying", "model", c.config.Model, "status", status, "error", err)
				return retry.Retryable(err)
			}
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no response from openai")
		}

		content = resp.Choices[0].Message.Content
		c.logger.Debug("openai completion",
			"model", c.config.Model,
			"content_length", len(content),
			"finish_reason", resp.Choices[0].FinishReason,
			"total_tokens", resp.Usage.TotalTokens,
			"latency", time.Since(start))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("openai api call failed: %w", err)
	}
	return content, nil
}

func (c *OpenAI) request(p Prompt) openai.ChatCompletionRequest {
	var request openai.ChatCompletionRequest
	if isReasoningModel(c.config.Model) {
		// Reasoning models take neither temperature nor a system message.
		combined := p.User
		if p.System != "" {
			combined = p.System + "\n\n" + p.User
		}
		request = openai.ChatCompletionRequest{
			Model: c.config.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: combined},
			},
		}
	} else {
		request = openai.ChatCompletionRequest{
			Model:       c.config.Model,
			Temperature: p.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: p.System},
				{Role: openai.ChatMessageRoleUser, Content: p.User},
			},
		}
	}
	if p.MaxTokens > 0 {
		request.MaxCompletionTokens = p.MaxTokens
	}
	return request
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
