package models

import "time"

// InteractionType is the kind of action taken against a post.
type InteractionType string

const (
	InteractionLike    InteractionType = "like"
	InteractionRetweet InteractionType = "retweet"
	InteractionQuote   InteractionType = "quote"
	InteractionReply   InteractionType = "reply"
)

// Valid reports whether t is a known interaction type.
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionLike, InteractionRetweet, InteractionQuote, InteractionReply:
		return true
	}
	return false
}

// InteractionRecord is an append-only log entry of one interaction attempt.
type InteractionRecord struct {
	ID           string          `json:"id"`
	TweetID      string          `json:"tweet_id"`
	Type         InteractionType `json:"interaction_type"`
	Success      bool            `json:"success"`
	Content      *string         `json:"content,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
