package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/content"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/store"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/tier"
)

// act performs one interaction unless one of the same kind is already
// recorded for the post. Every attempt is recorded, so a failed attempt is
// not repeated either.
func (a *Agent) act(ctx context.Context, post models.Post, kind models.InteractionType, text string, do func(ctx context.Context) error) (bool, error) {
	done, err := a.deps.Store.HasInteraction(ctx, post.ID, kind)
	if err != nil {
		return false, fmt.Errorf("check %s history for %s: %w", kind, post.ID, err)
	}
	if done {
		a.logger.Debug("interaction already recorded", "tweet_id", post.ID, "type", kind)
		return false, nil
	}

	actErr := do(ctx)
	now := a.now().UTC()
	rec := models.InteractionRecord{
		ID:        uuid.NewString(),
		TweetID:   post.ID,
		Type:      kind,
		Success:   actErr == nil,
		Content:   store.Ptr(text),
		CreatedAt: now,
	}
	if actErr != nil {
		rec.ErrorMessage = store.Ptr(actErr.Error())
	}
	if err := a.deps.Store.RecordInteraction(ctx, rec); err != nil {
		a.logger.Error("failed to record interaction", "tweet_id", post.ID, "type", kind, "error", err)
	}
	a.metrics.Interaction(string(kind), actErr == nil)

	if actErr != nil {
		return false, fmt.Errorf("%s %s: %w", kind, post.ID, actErr)
	}
	a.logger.Info("interaction completed", "tweet_id", post.ID, "type", kind)
	return true, nil
}

func (a *Agent) referenceText(ctx context.Context, p models.Post) string {
	if p.ReferencedPostID == "" {
		return ""
	}
	ref, err := a.deps.Platform.GetPost(ctx, p.ReferencedPostID)
	if err != nil {
		a.logger.Warn("failed to fetch referenced post", "tweet_id", p.ID, "referenced_id", p.ReferencedPostID, "error", err)
		return ""
	}
	return ref.Text
}

// replyToMentions answers new mentions, newest first, stopping at the first
// one already handled.
func (a *Agent) replyToMentions(ctx context.Context) error {
	if a.deps.Router == nil {
		return nil
	}
	uid, err := a.ensureUser(ctx)
	if err != nil {
		return err
	}
	mentions, err := a.deps.Platform.Mentions(ctx, uid, mentionBatch)
	if err != nil {
		return fmt.Errorf("fetch mentions: %w", err)
	}

	for _, m := range mentions {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, ok := a.seen[m.ID]; ok {
			break
		}
		if m.AuthorID == uid {
			continue
		}
		replied, err := a.deps.Store.HasInteraction(ctx, m.ID, models.InteractionReply)
		if err != nil {
			return fmt.Errorf("check reply history: %w", err)
		}
		if replied {
			a.seen[m.ID] = struct{}{}
			continue
		}

		answer, err := a.deps.Router.Respond(ctx, m.Text, a.referenceText(ctx, m))
		if err != nil {
			a.logger.Warn("skipping mention, no answer generated", "tweet_id", m.ID, "error", err)
			continue
		}

		if _, err := a.act(ctx, m, models.InteractionLike, "", func(ctx context.Context) error {
			return a.deps.Platform.Like(ctx, uid, m.ID)
		}); err != nil {
			a.logger.Warn("failed to like mention", "error", err)
		}
		if _, err := a.act(ctx, m, models.InteractionReply, answer, func(ctx context.Context) error {
			_, err := a.deps.Platform.Reply(ctx, m.ID, answer)
			return err
		}); err != nil {
			return err
		}
		a.seen[m.ID] = struct{}{}
	}
	return nil
}

// engage scores the home timeline and a random search and interacts with
// each post according to its tier.
func (a *Agent) engage(ctx context.Context) error {
	uid, err := a.ensureUser(ctx)
	if err != nil {
		return err
	}

	var posts []models.Post
	timeline, timelineErr := a.deps.Platform.HomeTimeline(ctx, uid, timelineBatch)
	if timelineErr != nil {
		a.logger.Warn("failed to fetch home timeline", "error", timelineErr)
	}
	posts = append(posts, timeline...)

	var searchErr error
	if query, ok := a.choose(a.deps.Catalog.SearchQueries); ok {
		var found []models.Post
		found, searchErr = a.deps.Platform.Search(ctx, query, searchBatch)
		if searchErr != nil {
			a.logger.Warn("failed to search posts", "query", query, "error", searchErr)
		}
		posts = append(posts, found...)
	}
	if timelineErr != nil && searchErr != nil {
		return errors.Join(timelineErr, searchErr)
	}

	now := a.now()
	seen := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, dup := seen[p.ID]; dup || p.AuthorID == uid {
			continue
		}
		seen[p.ID] = struct{}{}

		relevance := tier.Relevance(p.Text, a.keywords)
		t := tier.Evaluate(tier.ForPost(p, relevance, p.AgeHours(now)))
		if t == tier.None {
			continue
		}
		a.logger.Debug("engaging post", "tweet_id", p.ID, "tier", t.String(), "relevance", relevance)

		for _, kind := range t.Actions() {
			if err := a.perform(ctx, uid, p, kind); err != nil {
				a.logger.Warn("interaction failed", "tweet_id", p.ID, "type", kind, "error", err)
			}
		}
	}
	return nil
}

func (a *Agent) perform(ctx context.Context, uid string, p models.Post, kind models.InteractionType) error {
	switch kind {
	case models.InteractionLike:
		_, err := a.act(ctx, p, kind, "", func(ctx context.Context) error {
			return a.deps.Platform.Like(ctx, uid, p.ID)
		})
		return err
	case models.InteractionRetweet:
		_, err := a.act(ctx, p, kind, "", func(ctx context.Context) error {
			return a.deps.Platform.Retweet(ctx, uid, p.ID)
		})
		return err
	case models.InteractionQuote:
		done, err := a.deps.Store.HasInteraction(ctx, p.ID, kind)
		if err != nil || done {
			return err
		}
		text := a.deps.Generator.Quote(ctx, p)
		if content.IsFailed(text) {
			return content.ErrGenerationFailed
		}
		_, err = a.act(ctx, p, kind, text, func(ctx context.Context) error {
			_, err := a.deps.Platform.Quote(ctx, p.ID, text)
			return err
		})
		return err
	}
	return fmt.Errorf("unsupported interaction %q", kind)
}

// replyToKeyword replies once to the first unanswered post for a random
// target keyword.
func (a *Agent) replyToKeyword(ctx context.Context) error {
	keyword, ok := a.choose(a.deps.Catalog.TargetKeywords)
	if !ok {
		return nil
	}
	uid, err := a.ensureUser(ctx)
	if err != nil {
		return err
	}
	posts, err := a.deps.Platform.Search(ctx, keyword, searchBatch)
	if err != nil {
		return fmt.Errorf("search keyword %q: %w", keyword, err)
	}

	for _, p := range posts {
		if p.AuthorID == uid {
			continue
		}
		replied, err := a.deps.Store.HasInteraction(ctx, p.ID, models.InteractionReply)
		if err != nil {
			return fmt.Errorf("check reply history: %w", err)
		}
		if replied {
			continue
		}

		reply := a.deps.Generator.Reply(ctx, p.Text, a.referenceText(ctx, p))
		if content.IsFailed(reply) {
			return content.ErrGenerationFailed
		}
		_, err = a.act(ctx, p, models.InteractionReply, reply, func(ctx context.Context) error {
			_, err := a.deps.Platform.Reply(ctx, p.ID, reply)
			return err
		})
		return err
	}
	a.logger.Info("no unanswered posts for keyword", "keyword", keyword)
	return nil
}

// checkNews diffs one random news feed and queues posts for relevant new
// entries in the next free slots.
func (a *Agent) checkNews(ctx context.Context, weekly bool) error {
	if a.deps.Feeds == nil {
		return nil
	}
	feedURL, ok := a.choose(a.deps.Catalog.NewsFeeds())
	if !ok {
		return nil
	}

	fresh := a.snapshots.Check(ctx, a.deps.Feeds, feedURL)
	if len(fresh) == 0 {
		a.logger.Debug("nothing new", "url", feedURL)
		return nil
	}
	if len(fresh) > maxNewsPerCheck {
		fresh = fresh[:maxNewsPerCheck]
	}

	queued := 0
	for _, entry := range fresh {
		if tier.Relevance(entry.Title+" "+entry.Summary, a.keywords) < 1 {
			continue
		}
		text := a.deps.Generator.NewsPost(ctx, entry, weekly)
		if content.IsFailed(text) {
			continue
		}

		last, err := a.deps.Store.LastScheduled(ctx)
		if err != nil {
			return fmt.Errorf("read queue: %w", err)
		}
		now := a.now().UTC()
		article := models.QueuedArticle{
			ID:           uuid.NewString(),
			Title:        entry.Title,
			URL:          entry.URL,
			TweetContent: text,
			SourceFeed:   feedURL,
			IsWeekly:     weekly,
			ScheduledFor: store.NextSlot(last, now, store.ArticleSpacing),
			Status:       models.ArticleQueued,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := a.deps.Store.EnqueueArticle(ctx, article); err != nil {
			return fmt.Errorf("enqueue article: %w", err)
		}
		queued++
		a.logger.Info("article queued",
			"title", entry.Title,
			"scheduled_for", article.ScheduledFor,
			"weekly", weekly)
	}
	a.logger.Info("news checked", "url", feedURL, "new", len(fresh), "queued", queued)
	return nil
}

// publishDue posts the oldest due article.
func (a *Agent) publishDue(ctx context.Context) error {
	due, err := a.deps.Store.DueArticles(ctx, a.now().UTC(), dueBatch)
	if err != nil {
		return fmt.Errorf("read due articles: %w", err)
	}
	a.metrics.SetDueArticles(len(due))
	if len(due) == 0 {
		return nil
	}

	article := due[0]
	id, postErr := a.deps.Platform.Post(ctx, article.TweetContent)
	if postErr != nil {
		if err := a.deps.Store.MarkArticle(ctx, article.ID, models.ArticleFailed, store.Ptr(postErr.Error()), nil); err != nil {
			a.logger.Error("failed to mark article", "id", article.ID, "error", err)
		}
		return fmt.Errorf("post article %s: %w", article.ID, postErr)
	}
	if err := a.deps.Store.MarkArticle(ctx, article.ID, models.ArticlePosted, nil, store.Ptr(id)); err != nil {
		a.logger.Error("failed to mark article", "id", article.ID, "error", err)
	}
	a.logger.Info("article posted", "id", article.ID, "tweet_id", id, "title", article.Title)
	return nil
}

func (a *Agent) postMarketing(ctx context.Context) error {
	text := a.deps.Generator.Marketing(ctx)
	if content.IsFailed(text) {
		return content.ErrGenerationFailed
	}
	id, err := a.deps.Platform.Post(ctx, text)
	if err != nil {
		return fmt.Errorf("post marketing: %w", err)
	}
	a.logger.Info("marketing posted", "tweet_id", id)
	return nil
}

// weekly queues the weekly news highlight and publishes a research thread.
// A half that completed is not repeated when the run is retried.
func (a *Agent) weekly(ctx context.Context) error {
	var newsErr, researchErr error
	if !a.weeklyDone.news {
		if newsErr = a.checkNews(ctx, true); newsErr != nil {
			a.logger.Warn("weekly news failed", "error", newsErr)
		} else {
			a.weeklyDone.news = true
		}
	}
	if !a.weeklyDone.research {
		if researchErr = a.publishResearch(ctx); researchErr == nil {
			a.weeklyDone.research = true
		}
	}
	if err := errors.Join(newsErr, researchErr); err != nil {
		return err
	}
	a.weeklyDone = weeklyProgress{}
	return nil
}

func (a *Agent) publishResearch(ctx context.Context) error {
	if a.deps.Research == nil || a.deps.Threads == nil {
		return nil
	}
	topic, ok := a.choose(a.deps.Catalog.ResearchTopics)
	if !ok {
		return nil
	}

	entry, err := a.deps.Research.Build(ctx, topic)
	if err != nil {
		return fmt.Errorf("build research on %q: %w", topic, err)
	}
	ids, err := a.deps.Threads.PostThread(ctx, content.SplitThread(entry.Content))
	if err != nil && len(ids) == 0 {
		return fmt.Errorf("post research thread: %w", err)
	}
	if err != nil {
		// Parts are already public; posting again would duplicate them.
		a.logger.Error("research thread posted partially", "topic", topic, "parts", len(ids), "error", err)
		return nil
	}
	a.logger.Info("research thread posted", "topic", topic, "parts", len(ids))
	return nil
}
