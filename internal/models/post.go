package models

import "time"

// PostMetrics holds public engagement counters for a post.
type PostMetrics struct {
	RetweetCount int `json:"retweet_count"`
	LikeCount    int `json:"like_count"`
	ReplyCount   int `json:"reply_count"`
	QuoteCount   int `json:"quote_count"`
}

// User is the subset of a platform account used for tier decisions.
type User struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	FollowersCount int    `json:"followers_count"`
	Verified       bool   `json:"verified"`
}

// Post is a platform post with its author expanded when available.
type Post struct {
	ID               string      `json:"id"`
	Text             string      `json:"text"`
	AuthorID         string      `json:"author_id"`
	Author           *User       `json:"author,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	Metrics          PostMetrics `json:"public_metrics"`
	ReferencedPostID string      `json:"referenced_post_id,omitempty"`
}

// UnknownAgeHours is reported for posts without a creation time so they
// never qualify for recency-gated tiers.
const UnknownAgeHours = 24 * 365

// AgeHours returns the post age relative to now, never negative.
func (p Post) AgeHours(now time.Time) float64 {
	if p.CreatedAt.IsZero() {
		return UnknownAgeHours
	}
	age := now.Sub(p.CreatedAt).Hours()
	if age < 0 {
		return 0
	}
	return age
}
