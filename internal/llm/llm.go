// Package llm wraps the text model providers behind one interface.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/config"
)

// Prompt is a single system/user completion request.
type Prompt struct {
	System      string
	User        string
	Temperature float32
	// MaxTokens of 0 leaves the provider default.
	MaxTokens int
}

// Model produces a completion for a prompt.
type Model interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// New builds the provider selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (Model, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for provider openai")
		}
		return NewOpenAI(cfg.OpenAIAPIKey, OpenAIConfig{
			Model:   cfg.OpenAIModel,
			Timeout: cfg.Timeout,
		}, logger), nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for provider gemini")
		}
		return NewGemini(ctx, cfg.GeminiAPIKey, GeminiConfig{
			Model:   cfg.GeminiModel,
			Timeout: cfg.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// Static always returns the same text and error.
type Static struct {
	Text string
	Err  error
}

func (s Static) Complete(context.Context, Prompt) (string, error) {
	return s.Text, s.Err
}

// Func adapts a function to Model.
type Func func(ctx context.Context, p Prompt) (string, error)

func (f Func) Complete(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

// isReasoningModel detects models that reject temperature and system messages.
func isReasoningModel(model string) bool {
	m := strings.ToLower(model)
	for _, marker := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.Contains(m, marker) {
			return true
		}
	}
	return false
}
