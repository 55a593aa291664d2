// Package research assembles source material for long-form research threads
// and caches the generated threads.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/content"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/store"
)

const (
	// DefaultTTL is how long a generated thread stays in the cache.
	DefaultTTL = 7 * 24 * time.Hour
	// MaxArticles caps the extracted articles per thread.
	MaxArticles = 5

	perSourceLimit = 3
	historyWindow  = 50
)

var (
	// ErrNoArticles means no candidate article could be extracted.
	ErrNoArticles = errors.New("no research articles available")
	// ErrDuplicate means the generated thread matches a cached one.
	ErrDuplicate = errors.New("research thread duplicates a recent thread")
)

// FeedSource returns the latest entries of a feed.
type FeedSource interface {
	Fetch(ctx context.Context, feedURL string) ([]models.FeedEntry, error)
}

// ArticleExtractor turns a URL into article text.
type ArticleExtractor interface {
	Extract(ctx context.Context, rawURL string) (content.Article, error)
}

// ThreadWriter writes a validated thread from articles.
type ThreadWriter interface {
	Thread(ctx context.Context, topic string, articles []content.Article) string
}

// Builder gathers articles, writes a thread and caches it.
type Builder struct {
	feeds     FeedSource
	feedURLs  []string
	search    Searcher
	extractor ArticleExtractor
	writer    ThreadWriter
	store     store.ResearchStore
	blocked   []string
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithSearcher adds a web search source.
func WithSearcher(s Searcher) Option {
	return func(b *Builder) {
		if s != nil {
			b.search = s
		}
	}
}

// WithBlockedDomains skips candidates hosted on any of domains.
func WithBlockedDomains(domains []string) Option {
	return func(b *Builder) { b.blocked = domains }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// NewBuilder creates a builder over the given research feeds.
func NewBuilder(feeds FeedSource, feedURLs []string, extractor ArticleExtractor, writer ThreadWriter, rs store.ResearchStore, logger *slog.Logger, opts ...Option) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{
		feeds:     feeds,
		feedURLs:  feedURLs,
		extractor: extractor,
		writer:    writer,
		store:     rs,
		ttl:       DefaultTTL,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build produces and caches a research thread on topic.
func (b *Builder) Build(ctx context.Context, topic string) (*models.ResearchEntry, error) {
	recent, err := b.store.RecentResearch(ctx, historyWindow)
	if err != nil {
		b.logger.Warn("failed to load research history", "error", err)
	}
	used := make(map[string]struct{})
	for _, r := range recent {
		for _, u := range r.URLs {
			used[u] = struct{}{}
		}
	}

	candidates := b.candidates(ctx, topic, used)
	if len(candidates) == 0 {
		return nil, ErrNoArticles
	}

	var (
		articles []content.Article
		urls     []string
	)
	for _, c := range candidates {
		if len(articles) == MaxArticles {
			break
		}
		a, err := b.extractor.Extract(ctx, c.URL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			b.logger.Warn("article extraction failed", "url", c.URL, "error", err)
			continue
		}
		if a.Title == "" {
			a.Title = c.Title
		}
		articles = append(articles, a)
		urls = append(urls, c.URL)
	}
	if len(articles) == 0 {
		return nil, ErrNoArticles
	}

	text := b.writer.Thread(ctx, topic, articles)
	if content.IsFailed(text) {
		return nil, content.ErrGenerationFailed
	}
	for _, r := range recent {
		if r.Content == text {
			return nil, ErrDuplicate
		}
	}

	now := b.now().UTC()
	entry := models.ResearchEntry{
		ID:        uuid.NewString(),
		Topic:     topic,
		Content:   text,
		URLs:      urls,
		CreatedAt: now,
		ExpiresAt: now.Add(b.ttl),
	}
	if err := b.store.SaveResearch(ctx, entry); err != nil {
		return nil, fmt.Errorf("save research: %w", err)
	}

	b.logger.Info("research thread generated",
		"topic", topic,
		"articles", len(articles))
	return &entry, nil
}

// candidates lists unused, unblocked article links: search results first,
// then research feed entries.
func (b *Builder) candidates(ctx context.Context, topic string, used map[string]struct{}) []Candidate {
	seen := make(map[string]struct{})
	accept := func(c Candidate) bool {
		if c.URL == "" {
			return false
		}
		if _, ok := used[c.URL]; ok {
			return false
		}
		if _, ok := seen[c.URL]; ok {
			return false
		}
		if b.isBlocked(c.URL) {
			return false
		}
		seen[c.URL] = struct{}{}
		return true
	}

	var out []Candidate
	if b.search != nil {
		results, err := b.search.Search(ctx, topic)
		if err != nil {
			b.logger.Warn("research search failed", "topic", topic, "error", err)
		}
		n := 0
		for _, r := range results {
			if n == perSourceLimit {
				break
			}
			if accept(r) {
				out = append(out, r)
				n++
			}
		}
	}

	n := 0
	for _, feedURL := range b.feedURLs {
		if n == perSourceLimit || ctx.Err() != nil {
			break
		}
		entries, err := b.feeds.Fetch(ctx, feedURL)
		if err != nil {
			b.logger.Warn("research feed failed", "url", feedURL, "error", err)
			continue
		}
		for _, e := range entries {
			if n == perSourceLimit {
				break
			}
			if c := (Candidate{Title: e.Title, URL: e.URL}); accept(c) {
				out = append(out, c)
				n++
			}
		}
	}
	return out
}

func (b *Builder) isBlocked(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range b.blocked {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
