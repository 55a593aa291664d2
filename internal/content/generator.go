// Package content turns feed entries, posts and research material into
// publishable text through a language model.
package content

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/llm"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
)

// Failed is returned in place of text whenever generation fails.
const Failed = "failed"

// ErrGenerationFailed is the error form of Failed.
var ErrGenerationFailed = errors.New("content generation failed")

// IsFailed reports whether s is the failure sentinel or empty.
func IsFailed(s string) bool {
	return strings.TrimSpace(s) == "" || s == Failed
}

// Article is extracted source material for a research thread.
type Article struct {
	Title string
	URL   string
	Text  string
}

// Options tunes model calls.
type Options struct {
	Temperature float32
	MaxTokens   int
}

// Generator owns the prompt templates and post-processing.
type Generator struct {
	model  llm.Model
	brand  Brand
	opts   Options
	logger *slog.Logger
	onFail func(kind string)
}

// NewGenerator creates a generator over model.
func NewGenerator(model llm.Model, brand Brand, opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{model: model, brand: brand, opts: opts, logger: logger}
}

// OnFailure registers a callback invoked with the content kind on every failure.
func (g *Generator) OnFailure(fn func(kind string)) {
	g.onFail = fn
}

// Brand returns the configured brand.
func (g *Generator) Brand() Brand { return g.brand }

func (g *Generator) complete(ctx context.Context, kind, user string, temperature float32) (string, error) {
	out, err := g.model.Complete(ctx, llm.Prompt{
		System:      systemPrompt(g.brand),
		User:        user,
		Temperature: temperature,
		MaxTokens:   g.opts.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if IsFailed(out) {
		return "", ErrGenerationFailed
	}
	return out, nil
}

func (g *Generator) fail(kind string, err error) string {
	g.logger.Error("content generation failed", "kind", kind, "error", err)
	if g.onFail != nil {
		g.onFail(kind)
	}
	return Failed
}

func (g *Generator) single(ctx context.Context, kind, prompt string) string {
	out, err := g.complete(ctx, kind, prompt, g.opts.Temperature)
	if err != nil {
		return g.fail(kind, err)
	}
	text := Polish(out, g.brand)
	if text == "" {
		return g.fail(kind, ErrGenerationFailed)
	}
	return text
}

// NewsPost writes a post about a feed entry. Weekly posts use the research
// highlight framing.
func (g *Generator) NewsPost(ctx context.Context, entry models.FeedEntry, weekly bool) string {
	return g.single(ctx, "news", newsPrompt(entry, weekly))
}

// Reply answers text, optionally in the context of the referenced post.
func (g *Generator) Reply(ctx context.Context, text, reference string) string {
	return g.single(ctx, "reply", replyPrompt(g.brand, text, reference))
}

// Quote writes commentary for quoting p.
func (g *Generator) Quote(ctx context.Context, p models.Post) string {
	return g.single(ctx, "quote", quotePrompt(p))
}

// Marketing writes a promotional post.
func (g *Generator) Marketing(ctx context.Context) string {
	return g.single(ctx, "marketing", marketingPrompt(g.brand))
}

// Thread writes a seven-part research thread on topic from articles. The
// parts are normalized and validated; an invalid thread is a failure.
func (g *Generator) Thread(ctx context.Context, topic string, articles []Article) string {
	out, err := g.complete(ctx, "thread", threadPrompt(g.brand, topic, articles), g.opts.Temperature)
	if err != nil {
		return g.fail("thread", err)
	}

	parts := SplitThread(stripQuotes(out))
	for i, p := range parts {
		parts[i] = normalize(p, g.brand)
	}
	text := strings.Join(parts, "\n\n")

	if _, err := ValidateThread(text, g.brand); err != nil {
		return g.fail("thread", err)
	}
	return text
}
