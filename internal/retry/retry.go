// Package retry runs outbound calls with exponential backoff. Only errors
// marked retryable are retried; everything else returns immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// Policy defines how retries should be handled.
type Policy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	Jitter         bool
}

// DefaultPolicy is used for platform and model calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     2 * time.Minute,
		BackoffFactor:  2.0,
		Jitter:         true,
	}
}

// Error marks an error as retryable, optionally with a server-provided delay.
type Error struct {
	Err        error
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%v (retry after %v)", e.Err, e.RetryAfter)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable wraps err so that Do retries it.
func Retryable(err error) error {
	return &Error{Err: err}
}

// RetryableAfter wraps err with an explicit delay before the next attempt.
func RetryableAfter(err error, delay time.Duration) error {
	return &Error{Err: err, RetryAfter: delay}
}

// IsRetryable checks if an error should trigger a retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var retryable *Error
	return errors.As(err, &retryable)
}

// Do executes fn with exponential backoff until it succeeds, returns a
// non-retryable error, exhausts the policy or ctx is done.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt == policy.MaxRetries {
			break
		}

		wait := Backoff(policy, attempt)
		var retryErr *Error
		if errors.As(err, &retryErr) && retryErr.RetryAfter > 0 {
			wait = retryErr.RetryAfter
		}
		if policy.MaxBackoff > 0 && wait > policy.MaxBackoff {
			wait = policy.MaxBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retries exceeded (%d): %w", policy.MaxRetries, lastErr)
}

// Backoff computes the delay before retry number attempt (zero based).
func Backoff(policy Policy, attempt int) time.Duration {
	backoff := float64(policy.InitialBackoff) * math.Pow(policy.BackoffFactor, float64(attempt))
	if policy.MaxBackoff > 0 && backoff > float64(policy.MaxBackoff) {
		backoff = float64(policy.MaxBackoff)
	}

	duration := time.Duration(backoff)
	if policy.Jitter {
		// +/-10%
		duration += time.Duration(float64(duration) * 0.1 * (2*rand.Float64() - 1))
	}
	return duration
}

// AfterFromResponse derives a wait from Retry-After or x-rate-limit-reset
// headers. Zero means the response carried no hint.
func AfterFromResponse(resp *http.Response, now time.Time) time.Duration {
	if resp == nil {
		return 0
	}
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := resp.Header.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if wait := time.Unix(epoch, 0).Sub(now); wait > 0 {
				return wait
			}
		}
	}
	return 0
}
