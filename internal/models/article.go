package models

import "time"

// ArticleStatus is the lifecycle state of a queued article.
type ArticleStatus string

const (
	ArticleQueued ArticleStatus = "queued"
	ArticlePosted ArticleStatus = "posted"
	ArticleFailed ArticleStatus = "failed"
)

// QueuedArticle is a generated news post waiting for its publishing slot.
type QueuedArticle struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	URL           string        `json:"url"`
	TweetContent  string        `json:"tweet_content"`
	SourceFeed    string        `json:"source_feed"`
	IsWeekly      bool          `json:"is_weekly"`
	ScheduledFor  time.Time     `json:"scheduled_for"`
	Status        ArticleStatus `json:"status"`
	ErrorMessage  *string       `json:"error_message,omitempty"`
	PostedTweetID *string       `json:"posted_tweet_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
