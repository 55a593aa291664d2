// Package agent runs the posting and engagement loop.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/config"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/feeds"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/models"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/scheduler"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/social"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/store"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/tier"
)

// Step intervals.
const (
	MentionsInterval   = 20 * time.Minute
	EngagementInterval = 30 * time.Minute
	KeywordsInterval   = 60 * time.Minute
	NewsInterval       = 20 * time.Minute
	QueueInterval      = 5 * time.Minute
	MarketingInterval  = 8 * time.Hour
)

const (
	mentionBatch    = 5
	primeBatch      = 10
	timelineBatch   = 10
	searchBatch     = 10
	maxNewsPerCheck = 3
	dueBatch        = 10
)

// Generator writes the agent's own posts.
type Generator interface {
	NewsPost(ctx context.Context, entry models.FeedEntry, weekly bool) string
	Reply(ctx context.Context, text, reference string) string
	Quote(ctx context.Context, p models.Post) string
	Marketing(ctx context.Context) string
}

// Responder answers mentions.
type Responder interface {
	Respond(ctx context.Context, text, reference string) (string, error)
}

// ResearchBuilder produces research threads.
type ResearchBuilder interface {
	Build(ctx context.Context, topic string) (*models.ResearchEntry, error)
}

// ThreadPoster publishes a multi-part thread.
type ThreadPoster interface {
	PostThread(ctx context.Context, parts []string) ([]string, error)
}

// Recorder receives loop metrics.
type Recorder interface {
	Interaction(kind string, success bool)
	ObserveStep(step string, d time.Duration, err error)
	SetDueArticles(n int)
}

type nopRecorder struct{}

func (nopRecorder) Interaction(string, bool)                 {}
func (nopRecorder) ObserveStep(string, time.Duration, error) {}
func (nopRecorder) SetDueArticles(int)                       {}

// Deps are the collaborators of the agent.
type Deps struct {
	Platform  social.Platform
	Threads   ThreadPoster
	Generator Generator
	Router    Responder
	Feeds     feeds.Differ
	Research  ResearchBuilder
	Store     store.Store
	Catalog   config.Catalog
	Metrics   Recorder
	Logger    *slog.Logger
}

// Config tunes the loop.
type Config struct {
	Tick           time.Duration
	WeeklyCron     string
	Timezone       string
	KeywordReplies bool
}

// ConfigFrom converts the environment configuration.
func ConfigFrom(c config.AgentConfig) Config {
	return Config{
		Tick:           c.Tick,
		WeeklyCron:     c.WeeklyCron,
		Timezone:       c.Timezone,
		KeywordReplies: c.KeywordReplies,
	}
}

// Option configures an Agent.
type Option func(*Agent)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// WithRand overrides the random choice used for feeds, queries and topics.
func WithRand(intn func(n int) int) Option {
	return func(a *Agent) { a.intn = intn }
}

type step struct {
	name string
	gate scheduler.Gate
	run  func(ctx context.Context) error
}

// Agent is the single sequential orchestrator.
type Agent struct {
	deps      Deps
	cfg       Config
	logger    *slog.Logger
	metrics   Recorder
	now       func() time.Time
	intn      func(n int) int
	snapshots *feeds.Snapshots
	keywords  []string

	userID     string
	seen       map[string]struct{}
	weeklyDone weeklyProgress
	steps      []step
}

// weeklyProgress tracks the halves of the current weekly run that succeeded.
type weeklyProgress struct {
	news, research bool
}

// New builds an agent. The weekly schedule starts counting from now, and the
// first marketing post waits a full interval.
func New(cfg Config, deps Deps, opts ...Option) (*Agent, error) {
	if deps.Platform == nil || deps.Generator == nil || deps.Store == nil {
		return nil, errors.New("agent requires a platform, a generator and a store")
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Minute
	}

	a := &Agent{
		deps:      deps,
		cfg:       cfg,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		now:       time.Now,
		intn:      rand.IntN,
		snapshots: feeds.NewSnapshots(),
		keywords:  deps.Catalog.RelevanceKeywords,
		seen:      make(map[string]struct{}),
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = nopRecorder{}
	}
	if len(a.keywords) == 0 {
		a.keywords = tier.DefaultKeywords
	}
	for _, opt := range opts {
		opt(a)
	}

	start := a.now()
	weekly, err := scheduler.NewWeekly(cfg.WeeklyCron, cfg.Timezone, start)
	if err != nil {
		return nil, err
	}
	marketing := scheduler.NewCooldown(MarketingInterval, 0)
	marketing.Done(start)

	a.steps = []step{
		{"mentions", scheduler.NewCooldown(MentionsInterval, 0), a.replyToMentions},
		{"engagement", scheduler.NewCooldown(EngagementInterval, 0), a.engage},
	}
	if cfg.KeywordReplies {
		a.steps = append(a.steps, step{"keywords", scheduler.NewCooldown(KeywordsInterval, 0), a.replyToKeyword})
	}
	a.steps = append(a.steps,
		step{"news", scheduler.NewCooldown(NewsInterval, 0), func(ctx context.Context) error { return a.checkNews(ctx, false) }},
		step{"queue", scheduler.NewCooldown(QueueInterval, 0), a.publishDue},
		step{"marketing", marketing, a.postMarketing},
		step{"weekly", weekly, a.weekly},
	)
	return a, nil
}

// Run primes the mention and feed state, then runs due steps every tick until
// ctx is done. It returns ctx.Err().
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting agent", "tick", a.cfg.Tick, "steps", len(a.steps))
	a.Prime(ctx)

	ticker := time.NewTicker(a.cfg.Tick)
	defer ticker.Stop()

	for {
		a.Tick(ctx)
		select {
		case <-ctx.Done():
			a.logger.Info("agent stopping due to context cancellation")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Prime marks the current mention backlog as seen and snapshots every news
// feed, so only later activity is acted on.
func (a *Agent) Prime(ctx context.Context) {
	if uid, err := a.ensureUser(ctx); err != nil {
		a.logger.Warn("could not resolve own account, mentions will retry", "error", err)
	} else if posts, err := a.deps.Platform.Mentions(ctx, uid, primeBatch); err != nil {
		a.logger.Warn("failed to prime mentions", "error", err)
	} else {
		for _, p := range posts {
			a.seen[p.ID] = struct{}{}
		}
		a.logger.Info("primed mentions", "count", len(posts))
	}

	if a.deps.Feeds != nil {
		n := a.snapshots.Prime(ctx, a.deps.Feeds, a.deps.Catalog.NewsFeeds())
		a.logger.Info("primed news feeds", "feeds", n)
	}
}

// Tick runs every step whose gate is ready, in order.
func (a *Agent) Tick(ctx context.Context) {
	for _, s := range a.steps {
		if ctx.Err() != nil {
			return
		}
		if !s.gate.Ready(a.now()) {
			continue
		}

		start := time.Now()
		err := s.run(ctx)
		a.metrics.ObserveStep(s.name, time.Since(start), err)

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Error("step failed", "step", s.name, "error", err)
			s.gate.Failed(a.now())
			continue
		}
		s.gate.Done(a.now())
	}
}

func (a *Agent) ensureUser(ctx context.Context) (string, error) {
	if a.userID != "" {
		return a.userID, nil
	}
	me, err := a.deps.Platform.Me(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve own account: %w", err)
	}
	a.userID = me.ID
	a.logger.Info("resolved own account", "user_id", me.ID, "username", me.Username)
	return a.userID, nil
}

func (a *Agent) choose(items []string) (string, bool) {
	if len(items) == 0 {
		return "", false
	}
	return items[a.intn(len(items))], true
}
