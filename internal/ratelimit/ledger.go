// Package ratelimit keeps per-domain backoff state for outbound fetches.
package ratelimit

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/store"
)

// Schedule is the backoff in minutes indexed by consecutive failures. The
// count is incremented before lookup, so entry 0 is never used and a first
// failure waits Schedule[1].
var Schedule = []int{60, 240, 1440, 4320, 10080}

// BackoffMinutes returns the backoff for the given failure count. It never
// decreases as failures grow and plateaus at the last schedule entry.
func BackoffMinutes(failures int) int {
	if failures <= 0 {
		return 0
	}
	idx := failures
	if idx > len(Schedule)-1 {
		idx = len(Schedule) - 1
	}
	return Schedule[idx]
}

// Domain returns the host[:port] of rawURL, or its path when it has no authority.
func Domain(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.TrimSpace(rawURL)
	}
	if parsed.Host != "" {
		return strings.ToLower(parsed.Host)
	}
	return parsed.Path
}

// Ledger gates access to domains. Every failure is fail-open: when state
// cannot be read, access is allowed.
type Ledger struct {
	store  store.RateLimitStore
	logger *slog.Logger
	now    func() time.Time
	onDeny func(domain string)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithDenyHook is called with the domain whenever CanAccess returns false.
func WithDenyHook(fn func(domain string)) Option {
	return func(l *Ledger) { l.onDeny = fn }
}

// New creates a ledger over s.
func New(s store.RateLimitStore, logger *slog.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{store: s, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CanAccess reports whether rawURL's domain may be fetched now.
func (l *Ledger) CanAccess(ctx context.Context, rawURL string) bool {
	domain := Domain(rawURL)
	rec, err := l.store.GetRateLimit(ctx, domain)
	if err != nil {
		l.logger.Warn("rate limit lookup failed, allowing access", "domain", domain, "error", err)
		return true
	}
	if rec == nil || rec.Success {
		return true
	}
	if !l.now().Before(rec.NextRetryAt) {
		return true
	}
	l.logger.Debug("domain in backoff", "domain", domain, "next_retry_at", rec.NextRetryAt, "failures", rec.ConsecutiveFailures)
	if l.onDeny != nil {
		l.onDeny(domain)
	}
	return false
}

// RecordSuccess clears the failure state for rawURL's domain.
func (l *Ledger) RecordSuccess(ctx context.Context, rawURL string) {
	l.update(ctx, rawURL, true)
}

// RecordFailure extends the backoff for rawURL's domain.
func (l *Ledger) RecordFailure(ctx context.Context, rawURL string) {
	l.update(ctx, rawURL, false)
}

func (l *Ledger) update(ctx context.Context, rawURL string, success bool) {
	domain := Domain(rawURL)
	now := l.now().UTC()

	prev, err := l.store.GetRateLimit(ctx, domain)
	if err != nil {
		l.logger.Warn("rate limit lookup failed", "domain", domain, "error", err)
		prev = nil
	}

	rec := Next(prev, domain, success, now)
	if err := l.store.UpsertRateLimit(ctx, rec); err != nil {
		l.logger.Error("failed to persist rate limit", "domain", domain, "error", err)
	}
}

// Next computes the record that follows prev after one attempt at now.
func Next(prev *models.RateLimitRecord, domain string, success bool, now time.Time) models.RateLimitRecord {
	rec := models.RateLimitRecord{
		Domain:        domain,
		LastAttemptAt: now,
		Success:       success,
		NextRetryAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if prev != nil && !prev.CreatedAt.IsZero() {
		rec.CreatedAt = prev.CreatedAt
	}
	if success {
		return rec
	}

	failures := 1
	if prev != nil {
		failures = prev.ConsecutiveFailures + 1
	}
	rec.ConsecutiveFailures = failures
	rec.BackoffMinutes = BackoffMinutes(failures)
	rec.NextRetryAt = now.Add(time.Duration(rec.BackoffMinutes) * time.Minute)
	return rec
}
