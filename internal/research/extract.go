package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/content"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/feeds"
)

// MaxArticleRunes bounds the text taken from one article.
const MaxArticleRunes = 2000

const (
	maxPageBody = 4 << 20
	userAgent   = "Mozilla/5.0 (compatible; x-agent/1.0; +https://app.exmplr.io)"
)

// ErrDenied is returned when the article host is in backoff.
var ErrDenied = errors.New("host is in backoff")

// Extractor downloads a page and pulls out its readable text.
type Extractor struct {
	gate   feeds.Gate
	client *http.Client
}

// NewExtractor returns an extractor gated by gate, which may be nil.
func NewExtractor(gate feeds.Gate, client *http.Client) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Extractor{gate: gate, client: client}
}

// Extract fetches rawURL and returns its title and text.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (content.Article, error) {
	if e.gate != nil && !e.gate.CanAccess(ctx, rawURL) {
		return content.Article{}, ErrDenied
	}

	article, err := e.extract(ctx, rawURL)
	if e.gate != nil && ctx.Err() == nil {
		if err != nil {
			e.gate.RecordFailure(ctx, rawURL)
		} else {
			e.gate.RecordSuccess(ctx, rawURL)
		}
	}
	return article, err
}

func (e *Extractor) extract(ctx context.Context, rawURL string) (content.Article, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil || pageURL.Scheme == "" || pageURL.Host == "" {
		return content.Article{}, fmt.Errorf("invalid URL: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return content.Article{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return content.Article{}, fmt.Errorf("fetch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return content.Article{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	parsed, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBody), pageURL)
	if err != nil {
		return content.Article{}, fmt.Errorf("parse article: %w", err)
	}

	text := strings.Join(strings.Fields(parsed.TextContent), " ")
	if text == "" {
		return content.Article{}, fmt.Errorf("no readable text at %s", rawURL)
	}
	return content.Article{
		Title: strings.TrimSpace(parsed.Title),
		URL:   rawURL,
		Text:  feeds.Truncate(text, MaxArticleRunes),
	}, nil
}
