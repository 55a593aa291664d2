// Package store defines the persistence boundary of the agent and the local
// fallbacks used when the primary database is unavailable.
package store

import (
	"context"
	"time"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
)

// InteractionStore is the append-only interaction log.
type InteractionStore interface {
	RecordInteraction(ctx context.Context, rec models.InteractionRecord) error
	// RecentInteractions returns the newest records first.
	RecentInteractions(ctx context.Context, limit int) ([]models.InteractionRecord, error)
	// HasInteraction reports whether an interaction of the given type was
	// already recorded for the post, whether or not it succeeded.
	HasInteraction(ctx context.Context, tweetID string, kind models.InteractionType) (bool, error)
}

// RateLimitStore persists per-domain rate limit state.
type RateLimitStore interface {
	// GetRateLimit returns nil when the domain has no record.
	GetRateLimit(ctx context.Context, domain string) (*models.RateLimitRecord, error)
	UpsertRateLimit(ctx context.Context, rec models.RateLimitRecord) error
	ListRateLimits(ctx context.Context) ([]models.RateLimitRecord, error)
}

// ResearchStore caches generated research threads.
type ResearchStore interface {
	SaveResearch(ctx context.Context, entry models.ResearchEntry) error
	// LatestResearch returns nil when nothing is stored for the topic.
	LatestResearch(ctx context.Context, topic string) (*models.ResearchEntry, error)
	RecentResearch(ctx context.Context, limit int) ([]models.ResearchEntry, error)
}

// ArticleQueue holds generated news posts until their publishing slot.
type ArticleQueue interface {
	EnqueueArticle(ctx context.Context, article models.QueuedArticle) error
	// LastScheduled returns the latest scheduled_for of any article, or the
	// zero time when the queue has never been used.
	LastScheduled(ctx context.Context) (time.Time, error)
	// DueArticles returns queued articles scheduled at or before now, oldest first.
	DueArticles(ctx context.Context, now time.Time, limit int) ([]models.QueuedArticle, error)
	MarkArticle(ctx context.Context, id string, status models.ArticleStatus, errMsg, postedID *string) error
	ListArticles(ctx context.Context, limit int) ([]models.QueuedArticle, error)
}

// Store is the full persistence surface.
type Store interface {
	InteractionStore
	RateLimitStore
	ResearchStore
	ArticleQueue
	Close() error
}

// ArticleSpacing is the minimum gap between consecutive queued articles.
const ArticleSpacing = 50 * time.Minute

// NextSlot returns the publishing slot for a new article: now, or one
// spacing after the last scheduled article, whichever is later.
func NextSlot(last, now time.Time, spacing time.Duration) time.Time {
	if last.IsZero() {
		return now
	}
	next := last.Add(spacing)
	if next.Before(now) {
		return now
	}
	return next
}

// Ptr returns a pointer to s, or nil for the empty string.
func Ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
