package models

import "time"

// RateLimitRecord tracks access attempts against one domain.
type RateLimitRecord struct {
	Domain              string    `json:"domain"`
	LastAttemptAt       time.Time `json:"last_attempt_at"`
	Success             bool      `json:"success"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	NextRetryAt         time.Time `json:"next_retry_at"`
	BackoffMinutes      int       `json:"backoff_minutes"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
