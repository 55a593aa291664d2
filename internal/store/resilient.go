package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
)

// Resilient tries the primary store first and falls back to the secondary on
// any error. Rate limit and research reads are served from the cache when
// possible. An error is returned only when both stores fail.
type Resilient struct {
	primary    Store
	secondary  Store
	cache      *Cache
	logger     *slog.Logger
	onFallback func(op string)
}

// NewResilient wires a primary and fallback store. A nil cache disables caching.
func NewResilient(primary, secondary Store, cache *Cache, logger *slog.Logger) *Resilient {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resilient{
		primary:   primary,
		secondary: secondary,
		cache:     cache,
		logger:    logger,
	}
}

// OnFallback registers a hook invoked with the operation name whenever the
// fallback store is used.
func (r *Resilient) OnFallback(fn func(op string)) {
	r.onFallback = fn
}

func (r *Resilient) degrade(op string, err error) {
	r.logger.Warn("primary store failed, using fallback", "op", op, "error", err)
	if r.onFallback != nil {
		r.onFallback(op)
	}
}

func (r *Resilient) cacheGet(key string) (any, bool) {
	if r.cache == nil {
		return nil, false
	}
	return r.cache.Get(key)
}

func (r *Resilient) cacheSet(key string, v any) {
	if r.cache != nil {
		r.cache.Set(key, v)
	}
}

func rateLimitKey(domain string) string { return "rate_limit:" + domain }
func researchKey(topic string) string   { return "research:" + topic }

func (r *Resilient) RecordInteraction(ctx context.Context, rec models.InteractionRecord) error {
	err := r.primary.RecordInteraction(ctx, rec)
	if err == nil {
		return nil
	}
	r.degrade("record_interaction", err)
	return r.secondary.RecordInteraction(ctx, rec)
}

func (r *Resilient) RecentInteractions(ctx context.Context, limit int) ([]models.InteractionRecord, error) {
	recs, err := r.primary.RecentInteractions(ctx, limit)
	if err == nil {
		return recs, nil
	}
	r.degrade("recent_interactions", err)
	return r.secondary.RecentInteractions(ctx, limit)
}

// HasInteraction consults both stores so that records written to the
// fallback during an outage still guard against duplicates.
func (r *Resilient) HasInteraction(ctx context.Context, tweetID string, kind models.InteractionType) (bool, error) {
	found, err := r.primary.HasInteraction(ctx, tweetID, kind)
	if err == nil && found {
		return true, nil
	}
	if err != nil {
		r.degrade("has_interaction", err)
	}
	fallbackFound, fallbackErr := r.secondary.HasInteraction(ctx, tweetID, kind)
	if fallbackErr != nil && err != nil {
		return false, errors.Join(err, fallbackErr)
	}
	return fallbackFound, nil
}

func (r *Resilient) GetRateLimit(ctx context.Context, domain string) (*models.RateLimitRecord, error) {
	if v, ok := r.cacheGet(rateLimitKey(domain)); ok {
		rec := v.(models.RateLimitRecord)
		return &rec, nil
	}

	rec, err := r.primary.GetRateLimit(ctx, domain)
	if err != nil {
		r.degrade("get_rate_limit", err)
		rec, err = r.secondary.GetRateLimit(ctx, domain)
		if err != nil {
			return nil, err
		}
	}
	if rec != nil {
		r.cacheSet(rateLimitKey(domain), *rec)
	}
	return rec, nil
}

func (r *Resilient) UpsertRateLimit(ctx context.Context, rec models.RateLimitRecord) error {
	r.cacheSet(rateLimitKey(rec.Domain), rec)
	err := r.primary.UpsertRateLimit(ctx, rec)
	if err == nil {
		return nil
	}
	r.degrade("upsert_rate_limit", err)
	return r.secondary.UpsertRateLimit(ctx, rec)
}

func (r *Resilient) ListRateLimits(ctx context.Context) ([]models.RateLimitRecord, error) {
	recs, err := r.primary.ListRateLimits(ctx)
	if err == nil {
		return recs, nil
	}
	r.degrade("list_rate_limits", err)
	return r.secondary.ListRateLimits(ctx)
}

func (r *Resilient) SaveResearch(ctx context.Context, entry models.ResearchEntry) error {
	r.cacheSet(researchKey(entry.Topic), entry)
	err := r.primary.SaveResearch(ctx, entry)
	if err == nil {
		return nil
	}
	r.degrade("save_research", err)
	return r.secondary.SaveResearch(ctx, entry)
}

func (r *Resilient) LatestResearch(ctx context.Context, topic string) (*models.ResearchEntry, error) {
	if v, ok := r.cacheGet(researchKey(topic)); ok {
		entry := v.(models.ResearchEntry)
		return &entry, nil
	}

	entry, err := r.primary.LatestResearch(ctx, topic)
	if err != nil {
		r.degrade("latest_research", err)
		entry, err = r.secondary.LatestResearch(ctx, topic)
		if err != nil {
			return nil, err
		}
	}
	if entry != nil {
		r.cacheSet(researchKey(topic), *entry)
	}
	return entry, nil
}

func (r *Resilient) RecentResearch(ctx context.Context, limit int) ([]models.ResearchEntry, error) {
	entries, err := r.primary.RecentResearch(ctx, limit)
	if err == nil {
		return entries, nil
	}
	r.degrade("recent_research", err)
	return r.secondary.RecentResearch(ctx, limit)
}

func (r *Resilient) EnqueueArticle(ctx context.Context, article models.QueuedArticle) error {
	err := r.primary.EnqueueArticle(ctx, article)
	if err == nil {
		return nil
	}
	r.degrade("enqueue_article", err)
	return r.secondary.EnqueueArticle(ctx, article)
}

// LastScheduled takes the later of both stores so spacing holds across an outage.
func (r *Resilient) LastScheduled(ctx context.Context) (time.Time, error) {
	primaryLast, err := r.primary.LastScheduled(ctx)
	if err != nil {
		r.degrade("last_scheduled", err)
	}
	secondaryLast, fallbackErr := r.secondary.LastScheduled(ctx)
	if err != nil && fallbackErr != nil {
		return time.Time{}, errors.Join(err, fallbackErr)
	}
	if secondaryLast.After(primaryLast) {
		return secondaryLast, nil
	}
	return primaryLast, nil
}

func (r *Resilient) DueArticles(ctx context.Context, now time.Time, limit int) ([]models.QueuedArticle, error) {
	due, err := r.primary.DueArticles(ctx, now, limit)
	if err == nil && len(due) > 0 {
		return due, nil
	}
	if err != nil {
		r.degrade("due_articles", err)
	}
	fallbackDue, fallbackErr := r.secondary.DueArticles(ctx, now, limit)
	if fallbackErr != nil {
		if err != nil {
			return nil, errors.Join(err, fallbackErr)
		}
		return due, nil
	}
	return fallbackDue, nil
}

// MarkArticle updates the article wherever it lives.
func (r *Resilient) MarkArticle(ctx context.Context, id string, status models.ArticleStatus, errMsg, postedID *string) error {
	err := r.primary.MarkArticle(ctx, id, status, errMsg, postedID)
	if err == nil {
		return nil
	}
	r.degrade("mark_article", err)
	return r.secondary.MarkArticle(ctx, id, status, errMsg, postedID)
}

func (r *Resilient) ListArticles(ctx context.Context, limit int) ([]models.QueuedArticle, error) {
	articles, err := r.primary.ListArticles(ctx, limit)
	if err == nil {
		return articles, nil
	}
	r.degrade("list_articles", err)
	return r.secondary.ListArticles(ctx, limit)
}

func (r *Resilient) Close() error {
	return errors.Join(r.primary.Close(), r.secondary.Close())
}
