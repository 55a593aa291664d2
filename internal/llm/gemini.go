package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/retry"
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	Model   string
	Timeout time.Duration
	Retry   retry.Policy
}

// Gemini completes prompts with the Gemini API.
type Gemini struct {
	client *genai.Client
	config GeminiConfig
	logger *slog.Logger
}

// NewGemini creates a Gemini API client for apiKey.
func NewGemini(ctx context.Context, apiKey string, cfg GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Retry == (retry.Policy{}) {
		cfg.Retry = retry.DefaultPolicy()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{client: client, config: cfg, logger: logger}, nil
}

// Complete sends p with the system prompt as a system instruction.
func (g *Gemini) Complete(ctx context.Context, p Prompt) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.Temperature),
	}
	if p.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}
	if p.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(p.MaxTokens)
	}
	contents := []*genai.Content{genai.NewContentFromText(p.User, genai.RoleUser)}

	var text string
	err := retry.Do(ctx, g.config.Retry, func(ctx context.Context) error {
		apiCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()

		resp, err := g.client.Models.GenerateContent(apiCtx, g.config.Model, contents, genCfg)
		if err != nil {
			var apiErr genai.APIError
			if errors.As(err, &apiErr) && (apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500) {
				g.logger.Warn("gemini call failed, retrying", "model", g.config.Model, "status", apiErr.Code, "error", err)
				return retry.Retryable(err)
			}
			return err
		}
		text = strings.TrimSpace(resp.Text())
		if text == "" {
			return fmt.Errorf("empty response from gemini")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("gemini api call failed: %w", err)
	}
	return text, nil
}
