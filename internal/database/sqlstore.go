package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/store"
)

var _ store.Store = (*SQLStore)(nil)

// SQLStore is the primary store backed by Postgres or SQLite. Queries are
// written with Postgres placeholders and rebound for SQLite.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore wraps an open connection. The schema must already be migrated.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// DB exposes the underlying connection for health checks.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) q(query string) string { return rebind(s.driver, query) }

// SQLite compares timestamps as text, so every stored time is normalized to UTC.
func utc(t time.Time) time.Time { return t.UTC() }

func (s *SQLStore) RecordInteraction(ctx context.Context, rec models.InteractionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO interactions (id, tweet_id, interaction_type, success, content, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`), rec.ID, rec.TweetID, string(rec.Type), rec.Success, rec.Content, rec.ErrorMessage, utc(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

func (s *SQLStore) RecentInteractions(ctx context.Context, limit int) ([]models.InteractionRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, tweet_id, interaction_type, success, content, error_message, created_at
		FROM interactions
		ORDER BY created_at DESC
		LIMIT $1
	`), limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var out []models.InteractionRecord
	for rows.Next() {
		var rec models.InteractionRecord
		var kind string
		if err := rows.Scan(&rec.ID, &rec.TweetID, &kind, &rec.Success, &rec.Content, &rec.ErrorMessage, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		rec.Type = models.InteractionType(kind)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLStore) HasInteraction(ctx context.Context, tweetID string, kind models.InteractionType) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT EXISTS (
			SELECT 1 FROM interactions
			WHERE tweet_id = $1 AND interaction_type = $2
		)
	`), tweetID, string(kind)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check interaction: %w", err)
	}
	return exists, nil
}

func (s *SQLStore) GetRateLimit(ctx context.Context, domain string) (*models.RateLimitRecord, error) {
	var rec models.RateLimitRecord
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT domain, last_attempt_at, success, consecutive_failures, next_retry_at, backoff_minutes, created_at, updated_at
		FROM rate_limits
		WHERE domain = $1
	`), domain).Scan(
		&rec.Domain,
		&rec.LastAttemptAt,
		&rec.Success,
		&rec.ConsecutiveFailures,
		&rec.NextRetryAt,
		&rec.BackoffMinutes,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limit for %s: %w", domain, err)
	}
	return &rec, nil
}

// UpsertRateLimit replaces the record for rec.Domain, keeping the original created_at.
func (s *SQLStore) UpsertRateLimit(ctx context.Context, rec models.RateLimitRecord) error {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO rate_limits (domain, last_attempt_at, success, consecutive_failures, next_retry_at, backoff_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (domain) DO UPDATE SET
			last_attempt_at = excluded.last_attempt_at,
			success = excluded.success,
			consecutive_failures = excluded.consecutive_failures,
			next_retry_at = excluded.next_retry_at,
			backoff_minutes = excluded.backoff_minutes,
			updated_at = excluded.updated_at
	`),
		rec.Domain,
		utc(rec.LastAttemptAt),
		rec.Success,
		rec.ConsecutiveFailures,
		utc(rec.NextRetryAt),
		rec.BackoffMinutes,
		utc(rec.CreatedAt),
		utc(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert rate limit for %s: %w", rec.Domain, err)
	}
	return nil
}

func (s *SQLStore) ListRateLimits(ctx context.Context) ([]models.RateLimitRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, last_attempt_at, success, consecutive_failures, next_retry_at, backoff_minutes, created_at, updated_at
		FROM rate_limits
		ORDER BY domain
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rate limits: %w", err)
	}
	defer rows.Close()

	var out []models.RateLimitRecord
	for rows.Next() {
		var rec models.RateLimitRecord
		if err := rows.Scan(
			&rec.Domain,
			&rec.LastAttemptAt,
			&rec.Success,
			&rec.ConsecutiveFailures,
			&rec.NextRetryAt,
			&rec.BackoffMinutes,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rate limit: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLStore) SaveResearch(ctx context.Context, entry models.ResearchEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	urls := entry.URLs
	if urls == nil {
		urls = []string{}
	}
	encoded, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("failed to encode research urls: %w", err)
	}

	var expires sql.NullTime
	if !entry.ExpiresAt.IsZero() {
		expires = sql.NullTime{Time: utc(entry.ExpiresAt), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO research_cache (id, topic, content, urls, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`), entry.ID, entry.Topic, entry.Content, string(encoded), utc(entry.CreatedAt), expires)
	if err != nil {
		return fmt.Errorf("failed to save research: %w", err)
	}
	return nil
}

func (s *SQLStore) LatestResearch(ctx context.Context, topic string) (*models.ResearchEntry, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, topic, content, urls, created_at, expires_at
		FROM research_cache
		WHERE topic = $1
		ORDER BY created_at DESC
		LIMIT 1
	`), topic)
	entry, err := scanResearch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *SQLStore) RecentResearch(ctx context.Context, limit int) ([]models.ResearchEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, topic, content, urls, created_at, expires_at
		FROM research_cache
		ORDER BY created_at DESC
		LIMIT $1
	`), limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query research: %w", err)
	}
	defer rows.Close()

	var out []models.ResearchEntry
	for rows.Next() {
		entry, err := scanResearch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResearch(row scanner) (models.ResearchEntry, error) {
	var entry models.ResearchEntry
	var urls string
	var expires sql.NullTime
	if err := row.Scan(&entry.ID, &entry.Topic, &entry.Content, &urls, &entry.CreatedAt, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entry, err
		}
		return entry, fmt.Errorf("failed to scan research: %w", err)
	}
	if err := json.Unmarshal([]byte(urls), &entry.URLs); err != nil {
		return entry, fmt.Errorf("failed to decode research urls: %w", err)
	}
	if expires.Valid {
		entry.ExpiresAt = expires.Time
	}
	return entry, nil
}

func (s *SQLStore) EnqueueArticle(ctx context.Context, a models.QueuedArticle) error {
	now := time.Now()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = models.ArticleQueued
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO article_queue (
			id, title, url, tweet_content, source_feed, is_weekly, scheduled_for,
			status, error_message, posted_tweet_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`),
		a.ID, a.Title, a.URL, a.TweetContent, a.SourceFeed, a.IsWeekly, utc(a.ScheduledFor),
		string(a.Status), a.ErrorMessage, a.PostedTweetID, utc(a.CreatedAt), utc(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue article: %w", err)
	}
	return nil
}

func (s *SQLStore) LastScheduled(ctx context.Context) (time.Time, error) {
	// ORDER BY instead of MAX() keeps the column type so SQLite scans a time.
	var last time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT scheduled_for FROM article_queue
		ORDER BY scheduled_for DESC
		LIMIT 1
	`).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last scheduled article: %w", err)
	}
	return last, nil
}

func (s *SQLStore) DueArticles(ctx context.Context, now time.Time, limit int) ([]models.QueuedArticle, error) {
	return s.queryArticles(ctx, s.q(`
		SELECT id, title, url, tweet_content, source_feed, is_weekly, scheduled_for,
		       status, error_message, posted_tweet_id, created_at, updated_at
		FROM article_queue
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for ASC
		LIMIT $3
	`), string(models.ArticleQueued), utc(now), limitOrAll(limit))
}

func (s *SQLStore) ListArticles(ctx context.Context, limit int) ([]models.QueuedArticle, error) {
	return s.queryArticles(ctx, s.q(`
		SELECT id, title, url, tweet_content, source_feed, is_weekly, scheduled_for,
		       status, error_message, posted_tweet_id, created_at, updated_at
		FROM article_queue
		ORDER BY scheduled_for DESC
		LIMIT $1
	`), limitOrAll(limit))
}

func (s *SQLStore) queryArticles(ctx context.Context, query string, args ...any) ([]models.QueuedArticle, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var out []models.QueuedArticle
	for rows.Next() {
		var a models.QueuedArticle
		var status string
		if err := rows.Scan(
			&a.ID, &a.Title, &a.URL, &a.TweetContent, &a.SourceFeed, &a.IsWeekly, &a.ScheduledFor,
			&status, &a.ErrorMessage, &a.PostedTweetID, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		a.Status = models.ArticleStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) MarkArticle(ctx context.Context, id string, status models.ArticleStatus, errMsg, postedID *string) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE article_queue
		SET status = $1, error_message = $2, posted_tweet_id = $3, updated_at = $4
		WHERE id = $5
	`), string(status), errMsg, postedID, utc(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update article %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("article %s not found", id)
	}
	return nil
}

// Close closes the underlying connection.
func (s *SQLStore) Close() error { return s.db.Close() }

// limitOrAll maps a non-positive limit to "no limit" for LIMIT clauses.
func limitOrAll(limit int) int {
	if limit <= 0 {
		return 1 << 30
	}
	return limit
}
