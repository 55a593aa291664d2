package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
)

// Platform is the set of account operations the agent performs.
type Platform interface {
	Me(ctx context.Context) (models.User, error)
	Mentions(ctx context.Context, userID string, limit int) ([]models.Post, error)
	HomeTimeline(ctx context.Context, userID string, limit int) ([]models.Post, error)
	Search(ctx context.Context, query string, limit int) ([]models.Post, error)
	GetPost(ctx context.Context, id string) (models.Post, error)
	Post(ctx context.Context, text string) (string, error)
	Reply(ctx context.Context, id, text string) (string, error)
	Quote(ctx context.Context, id, text string) (string, error)
	Like(ctx context.Context, userID, id string) error
	Retweet(ctx context.Context, userID, id string) error
}

var _ Platform = (*TwitterClient)(nil)

// ErrEmptyThread is returned when a thread has no parts.
var ErrEmptyThread = errors.New("thread has no parts")

// ThreadPoster publishes multi-part threads as a reply chain.
type ThreadPoster struct {
	platform Platform
	gap      time.Duration
	logger   *slog.Logger
}

// NewThreadPoster creates a poster that waits gap between parts.
func NewThreadPoster(platform Platform, gap time.Duration, logger *slog.Logger) *ThreadPoster {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThreadPoster{platform: platform, gap: gap, logger: logger}
}

// PostThread posts parts in order, each replying to the previous one, and
// returns the IDs published so far. It stops at the first failure.
func (p *ThreadPoster) PostThread(ctx context.Context, parts []string) ([]string, error) {
	if len(parts) == 0 {
		return nil, ErrEmptyThread
	}

	ids := make([]string, 0, len(parts))
	for i, part := range parts {
		if i > 0 && p.gap > 0 {
			timer := time.NewTimer(p.gap)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ids, ctx.Err()
			case <-timer.C:
			}
		}

		var (
			id  string
			err error
		)
		if i == 0 {
			id, err = p.platform.Post(ctx, part)
		} else {
			id, err = p.platform.Reply(ctx, ids[i-1], part)
		}
		if err != nil {
			return ids, fmt.Errorf("failed to post thread part %d/%d: %w", i+1, len(parts), err)
		}
		ids = append(ids, id)
	}

	p.logger.Info("thread posted", "parts", len(ids), "first_id", ids[0])
	return ids, nil
}

// PostThread posts parts as a reply chain without pauses between parts.
func PostThread(ctx context.Context, platform Platform, parts []string) ([]string, error) {
	return NewThreadPoster(platform, 0, nil).PostThread(ctx, parts)
}
