package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
)

func newTestJSONStore(t *testing.T) *JSONStore {
	t.Helper()
	s, err := NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONStore returned error: %v", err)
	}
	return s
}

func TestJSONStoreInteractions(t *testing.T) {
	ctx := context.Background()
	s := newTestJSONStore(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []models.InteractionRecord{
		{ID: "1", TweetID: "t1", Type: models.InteractionLike, Success: true, CreatedAt: base},
		{ID: "2", TweetID: "t1", Type: models.InteractionReply, Success: false, CreatedAt: base.Add(time.Minute)},
		{ID: "3", TweetID: "t2", Type: models.InteractionRetweet, Success: true, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range records {
		if err := s.RecordInteraction(ctx, r); err != nil {
			t.Fatalf("RecordInteraction: %v", err)
		}
	}

	recent, err := s.RecentInteractions(ctx, 2)
	if err != nil {
		t.Fatalf("RecentInteractions: %v", err)
	}
	got := []string{recent[0].ID, recent[1].ID}
	if diff := cmp.Diff([]string{"3", "2"}, got); diff != "" {
		t.Errorf("recent order mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		tweetID string
		kind    models.InteractionType
		want    bool
	}{
		{"t1", models.InteractionLike, true},
		{"t1", models.InteractionReply, true},
		{"t2", models.InteractionRetweet, true},
		{"t2", models.InteractionLike, false},
	}
	for _, tt := range tests {
		has, err := s.HasInteraction(ctx, tt.tweetID, tt.kind)
		if err != nil {
			t.Fatalf("HasInteraction: %v", err)
		}
		if has != tt.want {
			t.Errorf("HasInteraction(%s, %s) = %v, want %v", tt.tweetID, tt.kind, has, tt.want)
		}
	}
}

func TestJSONStoreCapsInteractionLog(t *testing.T) {
	ctx := context.Background()
	s := newTestJSONStore(t)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < MaxFileInteractions+5; i++ {
		rec := models.InteractionRecord{
			ID:        fmt.Sprint(i),
			TweetID:   fmt.Sprintf("t%d", i),
			Type:      models.InteractionLike,
			Success:   true,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.RecordInteraction(ctx, rec); err != nil {
			t.Fatalf("RecordInteraction: %v", err)
		}
	}

	all, err := s.RecentInteractions(ctx, 0)
	if err != nil {
		t.Fatalf("RecentInteractions: %v", err)
	}
	if len(all) != MaxFileInteractions {
		t.Fatalf("expected %d records, got %d", MaxFileInteractions, len(all))
	}
	if has, _ := s.HasInteraction(ctx, "t0", models.InteractionLike); has {
		t.Error("expected the oldest record to be dropped")
	}
}

func TestJSONStoreRateLimits(t *testing.T) {
	ctx := context.Background()
	s := newTestJSONStore(t)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rec, err := s.GetRateLimit(ctx, "example.com")
	if err != nil || rec != nil {
		t.Fatalf("expected no record, got %v, %v", rec, err)
	}

	first := models.RateLimitRecord{Domain: "example.com", ConsecutiveFailures: 1, CreatedAt: created}
	if err := s.UpsertRateLimit(ctx, first); err != nil {
		t.Fatalf("UpsertRateLimit: %v", err)
	}
	second := models.RateLimitRecord{Domain: "example.com", Success: true, CreatedAt: created.Add(time.Hour)}
	if err := s.UpsertRateLimit(ctx, second); err != nil {
		t.Fatalf("UpsertRateLimit: %v", err)
	}

	rec, err = s.GetRateLimit(ctx, "example.com")
	if err != nil {
		t.Fatalf("GetRateLimit: %v", err)
	}
	if !rec.Success || rec.ConsecutiveFailures != 0 {
		t.Errorf("expected upsert to replace record, got %+v", rec)
	}
	if !rec.CreatedAt.Equal(created) {
		t.Errorf("expected created_at preserved, got %v", rec.CreatedAt)
	}

	list, err := s.ListRateLimits(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListRateLimits = %v, %v", list, err)
	}
}

func TestJSONStoreResearch(t *testing.T) {
	ctx := context.Background()
	s := newTestJSONStore(t)
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	entries := []models.ResearchEntry{
		{ID: "a", Topic: "ai", Content: "old", CreatedAt: base},
		{ID: "b", Topic: "ai", Content: "new", CreatedAt: base.Add(time.Hour)},
		{ID: "c", Topic: "bio", Content: "other", CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, e := range entries {
		if err := s.SaveResearch(ctx, e); err != nil {
			t.Fatalf("SaveResearch: %v", err)
		}
	}

	latest, err := s.LatestResearch(ctx, "ai")
	if err != nil || latest == nil || latest.ID != "b" {
		t.Fatalf("LatestResearch = %+v, %v", latest, err)
	}
	missing, err := s.LatestResearch(ctx, "none")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown topic, got %+v, %v", missing, err)
	}

	recent, err := s.RecentResearch(ctx, 2)
	if err != nil || len(recent) != 2 || recent[0].ID != "c" {
		t.Fatalf("RecentResearch = %+v, %v", recent, err)
	}
}

func TestJSONStoreArticleQueue(t *testing.T) {
	ctx := context.Background()
	s := newTestJSONStore(t)
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	last, err := s.LastScheduled(ctx)
	if err != nil || !last.IsZero() {
		t.Fatalf("expected zero LastScheduled, got %v, %v", last, err)
	}

	articles := []models.QueuedArticle{
		{ID: "late", Status: models.ArticleQueued, ScheduledFor: now.Add(time.Hour)},
		{ID: "due2", Status: models.ArticleQueued, ScheduledFor: now},
		{ID: "due1", Status: models.ArticleQueued, ScheduledFor: now.Add(-time.Hour)},
		{ID: "done", Status: models.ArticlePosted, ScheduledFor: now.Add(-2 * time.Hour)},
	}
	for _, a := range articles {
		if err := s.EnqueueArticle(ctx, a); err != nil {
			t.Fatalf("EnqueueArticle: %v", err)
		}
	}

	last, err = s.LastScheduled(ctx)
	if err != nil || !last.Equal(now.Add(time.Hour)) {
		t.Fatalf("LastScheduled = %v, %v", last, err)
	}

	due, err := s.DueArticles(ctx, now, 10)
	if err != nil {
		t.Fatalf("DueArticles: %v", err)
	}
	var ids []string
	for _, a := range due {
		ids = append(ids, a.ID)
	}
	if diff := cmp.Diff([]string{"due1", "due2"}, ids); diff != "" {
		t.Errorf("due articles mismatch (-want +got):\n%s", diff)
	}

	posted := "tweet-1"
	if err := s.MarkArticle(ctx, "due1", models.ArticlePosted, nil, &posted); err != nil {
		t.Fatalf("MarkArticle: %v", err)
	}
	due, _ = s.DueArticles(ctx, now, 10)
	if len(due) != 1 || due[0].ID != "due2" {
		t.Errorf("expected only due2 after marking, got %+v", due)
	}

	if err := s.MarkArticle(ctx, "missing", models.ArticleFailed, nil, nil); err == nil {
		t.Error("expected error marking unknown article")
	}
}

func TestNextSlot(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		last time.Time
		want time.Time
	}{
		{"empty queue", time.Time{}, now},
		{"last long ago", now.Add(-3 * time.Hour), now},
		{"last just now", now.Add(-10 * time.Minute), now.Add(40 * time.Minute)},
		{"last in future", now.Add(time.Hour), now.Add(time.Hour + ArticleSpacing)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextSlot(tt.last, now, ArticleSpacing); !got.Equal(tt.want) {
				t.Errorf("NextSlot = %v, want %v", got, tt.want)
			}
		})
	}
}
