// Package feeds detects new entries in syndication feeds.
package feeds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/mmcdole/gofeed"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
)

const (
	// DefaultTopK is the number of leading entries inspected per fetch.
	DefaultTopK = 5
	// MaxSummaryRunes bounds summaries passed on to prompts.
	MaxSummaryRunes = 1000

	userAgent   = "Mozilla/5.0 (compatible; x-agent/1.0; +https://app.exmplr.io)"
	maxFeedBody = 10 << 20
)

// Gate is the subset of the rate limit ledger used before each fetch.
type Gate interface {
	CanAccess(ctx context.Context, rawURL string) bool
	RecordSuccess(ctx context.Context, rawURL string)
	RecordFailure(ctx context.Context, rawURL string)
}

// Detector fetches feeds and diffs them against a previous snapshot.
type Detector struct {
	client    *http.Client
	parser    *gofeed.Parser
	converter *md.Converter
	gate      Gate
	logger    *slog.Logger
	topK      int
}

// Option configures a Detector.
type Option func(*Detector)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Detector) { d.client = c }
}

// WithTopK changes how many entries are inspected per fetch.
func WithTopK(k int) Option {
	return func(d *Detector) {
		if k > 0 {
			d.topK = k
		}
	}
}

// NewDetector creates a detector. A nil gate disables rate limit checks.
func NewDetector(gate Gate, logger *slog.Logger, opts ...Option) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{
		client:    &http.Client{Timeout: 30 * time.Second},
		parser:    gofeed.NewParser(),
		converter: md.NewConverter("", true, nil),
		gate:      gate,
		logger:    logger,
		topK:      DefaultTopK,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Diff returns the entries of feedURL not present in previous, in feed order,
// together with the latest observed batch. On any failure both are nil and the
// caller keeps its snapshot.
func (d *Detector) Diff(ctx context.Context, feedURL string, previous []models.FeedEntry) ([]models.FeedEntry, []models.FeedEntry) {
	latest, err := d.Fetch(ctx, feedURL)
	if err != nil {
		d.logger.Warn("feed fetch failed", "url", feedURL, "error", err)
		return nil, nil
	}
	if latest == nil {
		return nil, nil
	}

	seen := make(map[models.EntryKey]struct{}, len(previous))
	for _, e := range previous {
		seen[e.Key()] = struct{}{}
	}

	var fresh []models.FeedEntry
	for _, e := range latest {
		if _, ok := seen[e.Key()]; !ok {
			fresh = append(fresh, e)
		}
	}
	return fresh, latest
}

// Fetch returns the first TopK entries of feedURL. It returns nil, nil when
// the domain is in backoff.
func (d *Detector) Fetch(ctx context.Context, feedURL string) ([]models.FeedEntry, error) {
	if d.gate != nil && !d.gate.CanAccess(ctx, feedURL) {
		d.logger.Debug("skipping feed in backoff", "url", feedURL)
		return nil, nil
	}

	feed, err := d.fetchFeed(ctx, feedURL)
	if err != nil {
		if d.gate != nil && ctx.Err() == nil {
			d.gate.RecordFailure(ctx, feedURL)
		}
		return nil, err
	}
	if d.gate != nil {
		d.gate.RecordSuccess(ctx, feedURL)
	}

	items := feed.Items
	if len(items) > d.topK {
		items = items[:d.topK]
	}

	entries := make([]models.FeedEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		entries = append(entries, models.FeedEntry{
			Title:   strings.TrimSpace(item.Title),
			Summary: d.cleanSummary(summary),
			URL:     strings.TrimSpace(item.Link),
		})
	}
	d.logger.Debug("fetched feed", "url", feedURL, "entries", len(entries))
	return entries, nil
}

func (d *Detector) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	feed, err := d.parser.Parse(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// cleanSummary converts an HTML summary to markdown text and bounds its length.
func (d *Detector) cleanSummary(html string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}
	text, err := d.converter.ConvertString(html)
	if err != nil {
		text = html
	}
	return Truncate(strings.Join(strings.Fields(text), " "), MaxSummaryRunes)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
