package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/config"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/content"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/scheduler"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/store"
)

const ownID = "me"

type call struct {
	op, id, text string
}

type fakePlatform struct {
	mentions []models.Post
	timeline []models.Post
	search   map[string][]models.Post
	posts    map[string]models.Post
	postErr  error
	calls    []call
	nextID   int
}

func (f *fakePlatform) record(op, id, text string) string {
	f.calls = append(f.calls, call{op, id, text})
	f.nextID++
	return fmt.Sprintf("new-%d", f.nextID)
}

func (f *fakePlatform) ops(op string) []call {
	var out []call
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakePlatform) Me(context.Context) (models.User, error) {
	return models.User{ID: ownID, Username: "exmplrai"}, nil
}

func (f *fakePlatform) Mentions(_ context.Context, _ string, limit int) ([]models.Post, error) {
	return head(f.mentions, limit), nil
}

func (f *fakePlatform) HomeTimeline(_ context.Context, _ string, limit int) ([]models.Post, error) {
	return head(f.timeline, limit), nil
}

func (f *fakePlatform) Search(_ context.Context, query string, limit int) ([]models.Post, error) {
	return head(f.search[query], limit), nil
}

func (f *fakePlatform) GetPost(_ context.Context, id string) (models.Post, error) {
	p, ok := f.posts[id]
	if !ok {
		return models.Post{}, errors.New("not found")
	}
	return p, nil
}

func (f *fakePlatform) Post(_ context.Context, text string) (string, error) {
	if f.postErr != nil {
		return "", f.postErr
	}
	return f.record("post", "", text), nil
}

func (f *fakePlatform) Reply(_ context.Context, id, text string) (string, error) {
	return f.record("reply", id, text), nil
}

func (f *fakePlatform) Quote(_ context.Context, id, text string) (string, error) {
	return f.record("quote", id, text), nil
}

func (f *fakePlatform) Like(_ context.Context, _, id string) error {
	f.record("like", id, "")
	return nil
}

func (f *fakePlatform) Retweet(_ context.Context, _, id string) error {
	f.record("retweet", id, "")
	return nil
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

type fakeGenerator struct {
	fail      bool
	newsCalls []bool
}

func (g *fakeGenerator) out(s string) string {
	if g.fail {
		return content.Failed
	}
	return s
}

func (g *fakeGenerator) NewsPost(_ context.Context, e models.FeedEntry, weekly bool) string {
	g.newsCalls = append(g.newsCalls, weekly)
	return g.out("news: " + e.Title)
}

func (g *fakeGenerator) Reply(_ context.Context, text, reference string) string {
	return g.out("reply to " + text + " | " + reference)
}

func (g *fakeGenerator) Quote(_ context.Context, p models.Post) string {
	return g.out("quote " + p.ID)
}

func (g *fakeGenerator) Marketing(context.Context) string { return g.out("marketing") }

type fakeRouter struct {
	inputs [][2]string
}

func (r *fakeRouter) Respond(_ context.Context, text, reference string) (string, error) {
	r.inputs = append(r.inputs, [2]string{text, reference})
	if strings.Contains(text, "unanswerable") {
		return "", content.ErrGenerationFailed
	}
	return "answer: " + text, nil
}

type fakeFeeds struct {
	batches map[string][]models.FeedEntry
}

func (f *fakeFeeds) Diff(_ context.Context, feedURL string, previous []models.FeedEntry) ([]models.FeedEntry, []models.FeedEntry) {
	latest := f.batches[feedURL]
	seen := map[models.EntryKey]bool{}
	for _, e := range previous {
		seen[e.Key()] = true
	}
	var fresh []models.FeedEntry
	for _, e := range latest {
		if !seen[e.Key()] {
			fresh = append(fresh, e)
		}
	}
	return fresh, latest
}

type fakeResearch struct {
	entry  *models.ResearchEntry
	err    error
	topics []string
}

func (r *fakeResearch) Build(_ context.Context, topic string) (*models.ResearchEntry, error) {
	r.topics = append(r.topics, topic)
	return r.entry, r.err
}

type fakeThreads struct {
	threads [][]string
	// failAfter > 0 publishes that many parts and then fails.
	failAfter int
}

func (t *fakeThreads) PostThread(_ context.Context, parts []string) ([]string, error) {
	t.threads = append(t.threads, parts)
	if t.failAfter > 0 {
		return make([]string, min(t.failAfter, len(parts))), errors.New("rate limited")
	}
	return make([]string, len(parts)), nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

const feedURL = "https://feed.example/rss"

type harness struct {
	agent    *Agent
	platform *fakePlatform
	gen      *fakeGenerator
	router   *fakeRouter
	feeds    *fakeFeeds
	research *fakeResearch
	threads  *fakeThreads
	store    store.Store
	clock    *clock
}

func newHarness(t *testing.T, mutate func(*Config, *Deps)) *harness {
	t.Helper()
	s, err := store.NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	h := &harness{
		platform: &fakePlatform{search: map[string][]models.Post{}, posts: map[string]models.Post{}},
		gen:      &fakeGenerator{},
		router:   &fakeRouter{},
		feeds:    &fakeFeeds{batches: map[string][]models.FeedEntry{}},
		research: &fakeResearch{},
		threads:  &fakeThreads{},
		store:    s,
		// Monday 09:00 in Chicago.
		clock: &clock{t: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)},
	}
	cfg := Config{Tick: time.Minute, WeeklyCron: "0 15 * * 3", Timezone: "America/Chicago"}
	deps := Deps{
		Platform:  h.platform,
		Threads:   h.threads,
		Generator: h.gen,
		Router:    h.router,
		Feeds:     h.feeds,
		Research:  h.research,
		Store:     s,
		Catalog: config.Catalog{
			Feeds:             map[string][]string{"news": {feedURL}},
			NewsCategories:    []string{"news"},
			SearchQueries:     []string{"clinical trials AI"},
			TargetKeywords:    []string{"DeSci"},
			RelevanceKeywords: []string{"clinical", "trial", "AI", "research"},
			ResearchTopics:    []string{"AI in trials"},
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	a, err := New(cfg, deps, WithClock(h.clock.now), WithRand(func(int) int { return 0 }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.agent = a
	return h
}

func (h *harness) gate(name string) scheduler.Gate {
	for _, s := range h.agent.steps {
		if s.name == name {
			return s.gate
		}
	}
	panic("no step " + name)
}

func TestMentionsReplyAndStopAtSeen(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.platform.mentions = []models.Post{{ID: "old", AuthorID: "u0", Text: "old question"}}
	h.agent.Prime(ctx)

	h.platform.posts["ref"] = models.Post{ID: "ref", Text: "referenced text"}
	h.platform.mentions = []models.Post{
		{ID: "m3", AuthorID: "u3", Text: "unanswerable"},
		{ID: "m2", AuthorID: ownID, Text: "our own post"},
		{ID: "m1", AuthorID: "u1", Text: "what trials exist?", ReferencedPostID: "ref"},
		{ID: "old", AuthorID: "u0", Text: "old question"},
		{ID: "older", AuthorID: "u9", Text: "never reached"},
	}

	if err := h.agent.replyToMentions(ctx); err != nil {
		t.Fatalf("replyToMentions: %v", err)
	}

	want := []call{
		{"like", "m1", ""},
		{"reply", "m1", "answer: what trials exist?"},
	}
	if diff := cmp.Diff(want, h.platform.calls, cmp.AllowUnexported(call{})); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if got := h.router.inputs[1]; got != [2]string{"what trials exist?", "referenced text"} {
		t.Errorf("router input = %v", got)
	}

	// A second pass does not reply again.
	h.platform.calls = nil
	if err := h.agent.replyToMentions(ctx); err != nil {
		t.Fatalf("replyToMentions: %v", err)
	}
	if len(h.platform.ops("reply")) != 0 {
		t.Errorf("replied twice: %v", h.platform.calls)
	}
}

func TestMentionsDuplicateGuardSurvivesRestart(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.store.RecordInteraction(ctx, models.InteractionRecord{
		ID: "r", TweetID: "m1", Type: models.InteractionReply, Success: true, CreatedAt: h.clock.t,
	}); err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}
	h.platform.mentions = []models.Post{{ID: "m1", AuthorID: "u1", Text: "hello"}}

	if err := h.agent.replyToMentions(ctx); err != nil {
		t.Fatalf("replyToMentions: %v", err)
	}
	if len(h.platform.calls) != 0 {
		t.Errorf("calls = %v, want none", h.platform.calls)
	}
}

func TestEngageByTier(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	now := h.clock.t

	h.platform.timeline = []models.Post{
		{
			ID: "full", AuthorID: "a", Text: "AI clinical trial research",
			Author:    &models.User{FollowersCount: 25000},
			Metrics:   models.PostMetrics{LikeCount: 60},
			CreatedAt: now.Add(-time.Hour),
		},
		{
			ID: "like", AuthorID: "b", Text: "a clinical note",
			Author:    &models.User{Verified: true},
			Metrics:   models.PostMetrics{LikeCount: 5},
			CreatedAt: now.Add(-48 * time.Hour),
		},
		{ID: "ours", AuthorID: ownID, Text: "AI clinical trial research", Author: &models.User{FollowersCount: 99999}, Metrics: models.PostMetrics{LikeCount: 99}},
	}
	h.platform.search["clinical trials AI"] = []models.Post{
		{ID: "none", AuthorID: "c", Text: "unrelated", Author: &models.User{FollowersCount: 100}},
		h.platform.timeline[0],
	}

	if err := h.agent.engage(ctx); err != nil {
		t.Fatalf("engage: %v", err)
	}

	want := []call{
		{"like", "full", ""},
		{"retweet", "full", ""},
		{"quote", "full", "quote full"},
		{"like", "like", ""},
	}
	if diff := cmp.Diff(want, h.platform.calls, cmp.AllowUnexported(call{})); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	// Recorded interactions block a repeat.
	h.platform.calls = nil
	if err := h.agent.engage(ctx); err != nil {
		t.Fatalf("engage: %v", err)
	}
	if len(h.platform.calls) != 0 {
		t.Errorf("repeat interactions: %v", h.platform.calls)
	}

	recs, err := h.store.RecentInteractions(ctx, 10)
	if err != nil {
		t.Fatalf("RecentInteractions: %v", err)
	}
	if len(recs) != 4 {
		t.Errorf("recorded %d interactions, want 4", len(recs))
	}
}

func TestKeywordReplyOnce(t *testing.T) {
	h := newHarness(t, func(c *Config, _ *Deps) { c.KeywordReplies = true })
	ctx := context.Background()

	h.platform.search["DeSci"] = []models.Post{
		{ID: "k1", AuthorID: "u1", Text: "DeSci is here"},
		{ID: "k2", AuthorID: "u2", Text: "DeSci again"},
	}
	for range 2 {
		if err := h.agent.replyToKeyword(ctx); err != nil {
			t.Fatalf("replyToKeyword: %v", err)
		}
	}
	replies := h.platform.ops("reply")
	if len(replies) != 2 || replies[0].id != "k1" || replies[1].id != "k2" {
		t.Errorf("replies = %v", replies)
	}

	names := make([]string, len(h.agent.steps))
	for i, s := range h.agent.steps {
		names[i] = s.name
	}
	if diff := cmp.Diff([]string{"mentions", "engagement", "keywords", "news", "queue", "marketing", "weekly"}, names); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
}

func TestNewsQueuesWithSpacing(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.feeds.batches[feedURL] = []models.FeedEntry{{Title: "Seen", URL: "https://n.example/0"}}
	h.agent.Prime(ctx)

	h.feeds.batches[feedURL] = []models.FeedEntry{
		{Title: "AI trial results", URL: "https://n.example/1"},
		{Title: "Sports scores", URL: "https://n.example/2"},
		{Title: "New clinical research", URL: "https://n.example/3"},
		{Title: "Another clinical trial", URL: "https://n.example/4"},
		{Title: "Seen", URL: "https://n.example/0"},
	}
	if err := h.agent.checkNews(ctx, false); err != nil {
		t.Fatalf("checkNews: %v", err)
	}

	queued, err := h.store.ListArticles(ctx, 10)
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(queued) != 2 {
		t.Fatalf("queued %d articles, want 2 (three new checked, one irrelevant)", len(queued))
	}
	// ListArticles is newest slot first.
	if !queued[1].ScheduledFor.Equal(h.clock.t) || !queued[0].ScheduledFor.Equal(h.clock.t.Add(store.ArticleSpacing)) {
		t.Errorf("slots = %v, %v", queued[1].ScheduledFor, queued[0].ScheduledFor)
	}

	// Unchanged feed queues nothing more.
	if err := h.agent.checkNews(ctx, false); err != nil {
		t.Fatalf("checkNews: %v", err)
	}
	if len(h.gen.newsCalls) != 2 {
		t.Errorf("NewsPost calls = %d, want 2", len(h.gen.newsCalls))
	}
}

func TestPublishDue(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	now := h.clock.t

	for i, at := range []time.Time{now.Add(-time.Minute), now.Add(time.Hour)} {
		if err := h.store.EnqueueArticle(ctx, models.QueuedArticle{
			ID: fmt.Sprintf("a%d", i), TweetContent: fmt.Sprintf("post %d", i), ScheduledFor: at, Status: models.ArticleQueued,
		}); err != nil {
			t.Fatalf("EnqueueArticle: %v", err)
		}
	}

	if err := h.agent.publishDue(ctx); err != nil {
		t.Fatalf("publishDue: %v", err)
	}
	if posts := h.platform.ops("post"); len(posts) != 1 || posts[0].text != "post 0" {
		t.Fatalf("posts = %v", posts)
	}
	due, err := h.store.DueArticles(ctx, now, 10)
	if err != nil || len(due) != 0 {
		t.Errorf("due after publish = %v, %v", due, err)
	}

	h.clock.advance(2 * time.Hour)
	h.platform.postErr = errors.New("rate limited")
	if err := h.agent.publishDue(ctx); err == nil {
		t.Fatal("expected post failure")
	}
	list, _ := h.store.ListArticles(ctx, 10)
	for _, a := range list {
		if a.ID == "a1" && (a.Status != models.ArticleFailed || a.ErrorMessage == nil) {
			t.Errorf("a1 = %+v, want failed with message", a)
		}
	}
}

func TestTickCooldowns(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.gen.fail = true
	h.agent.Tick(ctx)

	// Marketing waits a full interval after start.
	if len(h.platform.ops("post")) != 0 {
		t.Fatalf("posted at startup: %v", h.platform.calls)
	}

	h.clock.advance(MarketingInterval)
	h.agent.Tick(ctx)
	marketing := h.gate("marketing")
	if marketing.Ready(h.clock.t.Add(14 * time.Minute)) {
		t.Error("failed marketing retried before failure delay")
	}
	if !marketing.Ready(h.clock.t.Add(15 * time.Minute)) {
		t.Error("failed marketing not retried after failure delay")
	}

	h.gen.fail = false
	h.clock.advance(15 * time.Minute)
	h.agent.Tick(ctx)
	if posts := h.platform.ops("post"); len(posts) != 1 || posts[0].text != "marketing" {
		t.Errorf("posts = %v", posts)
	}
	if marketing.Ready(h.clock.t.Add(MarketingInterval - time.Minute)) {
		t.Error("marketing ready before interval")
	}
}

func TestWeeklyPostsResearchThread(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.research.entry = &models.ResearchEntry{Content: "(1/7) a\n\n(2/7) b"}

	h.agent.Tick(ctx)
	if len(h.threads.threads) != 0 {
		t.Fatal("weekly ran before Wednesday")
	}

	// Wednesday 15:05 Chicago. The regular news check is held back so the
	// weekly run sees the new entry.
	h.clock.t = time.Date(2026, 3, 4, 21, 5, 0, 0, time.UTC)
	h.feeds.batches[feedURL] = []models.FeedEntry{{Title: "AI trial", URL: "https://n.example/1"}}
	h.gate("news").Done(h.clock.t)
	h.agent.Tick(ctx)

	if diff := cmp.Diff([][]string{{"(1/7) a", "(2/7) b"}}, h.threads.threads); diff != "" {
		t.Errorf("threads mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"AI in trials"}, h.research.topics); diff != "" {
		t.Errorf("topics mismatch (-want +got):\n%s", diff)
	}
	weeklySeen := false
	for _, w := range h.gen.newsCalls {
		weeklySeen = weeklySeen || w
	}
	if !weeklySeen {
		t.Error("weekly news post not generated")
	}

	h.clock.advance(time.Hour)
	h.agent.Tick(ctx)
	if len(h.threads.threads) != 1 {
		t.Errorf("weekly ran twice in one week")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.agent.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Config{}, Deps{}); err == nil {
		t.Error("expected error without deps")
	}
}

func TestFailedInteractionIsNotRetried(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.store.RecordInteraction(ctx, models.InteractionRecord{
		ID: "r", TweetID: "p", Type: models.InteractionLike, Success: false,
		ErrorMessage: store.Ptr("403 forbidden"), CreatedAt: h.clock.t,
	}); err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}
	h.platform.timeline = []models.Post{{
		ID: "p", AuthorID: "a", Text: "clinical news",
		Author:  &models.User{Verified: true},
		Metrics: models.PostMetrics{LikeCount: 10},
	}}

	if err := h.agent.engage(ctx); err != nil {
		t.Fatalf("engage: %v", err)
	}
	if likes := h.platform.ops("like"); len(likes) != 0 {
		t.Errorf("like retried after a recorded failure: %v", likes)
	}
}

func TestWeeklyPartialThreadIsNotReposted(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.research.entry = &models.ResearchEntry{Content: "(1/7) a\n\n(2/7) b\n\n(3/7) c\n\n(4/7) d"}
	h.threads.failAfter = 3

	h.clock.t = time.Date(2026, 3, 4, 21, 5, 0, 0, time.UTC)
	h.agent.Tick(ctx)
	if len(h.threads.threads) != 1 {
		t.Fatalf("PostThread calls = %d, want 1", len(h.threads.threads))
	}
	if h.gate("weekly").Ready(h.clock.t.Add(16 * time.Minute)) {
		t.Error("weekly still due after a partially posted thread")
	}

	h.clock.advance(16 * time.Minute)
	h.agent.Tick(ctx)
	if len(h.threads.threads) != 1 || len(h.research.topics) != 1 {
		t.Errorf("thread reposted: PostThread calls = %d, builds = %d", len(h.threads.threads), len(h.research.topics))
	}
}

func TestWeeklyRetryRunsOnlyFailedHalf(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.research.err = errors.New("no articles")
	h.clock.t = time.Date(2026, 3, 4, 21, 5, 0, 0, time.UTC)
	h.feeds.batches[feedURL] = []models.FeedEntry{{Title: "AI trial", URL: "https://n.example/1"}}
	h.gate("news").Done(h.clock.t)
	h.agent.Tick(ctx)

	weeklyNews := func() int {
		n := 0
		for _, w := range h.gen.newsCalls {
			if w {
				n++
			}
		}
		return n
	}
	if weeklyNews() != 1 || len(h.research.topics) != 1 {
		t.Fatalf("first run: weekly news = %d, builds = %d", weeklyNews(), len(h.research.topics))
	}

	h.research.err = nil
	h.research.entry = &models.ResearchEntry{Content: "(1/7) a\n\n(2/7) b"}
	h.clock.advance(16 * time.Minute)
	h.gate("news").Done(h.clock.t)
	h.feeds.batches[feedURL] = append(h.feeds.batches[feedURL], models.FeedEntry{Title: "AI trial two", URL: "https://n.example/2"})
	h.agent.Tick(ctx)

	if weeklyNews() != 1 {
		t.Errorf("weekly news reran on retry: %d calls", weeklyNews())
	}
	if len(h.research.topics) != 2 || len(h.threads.threads) != 1 {
		t.Errorf("retry: builds = %d, threads = %d", len(h.research.topics), len(h.threads.threads))
	}
	if h.gate("weekly").Ready(h.clock.t.Add(time.Hour)) {
		t.Error("weekly still due after a successful retry")
	}
}
