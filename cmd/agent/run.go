package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/agent"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/api"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/auth"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/classifier"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/config"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/content"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/database"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/feeds"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/llm"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/logging"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/metrics"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/ratelimit"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/research"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/server"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/social"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/store"
)

const threadGap = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent loop and the status API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx)
	},
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.Info("starting x-agent")

	catalog, err := config.LoadCatalog(cfg.Agent.CatalogFile)
	if err != nil {
		return err
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	st, health, err := openStore(ctx, cfg.Database, logger, collector)
	if err != nil {
		return err
	}
	defer st.Close()

	ledger := ratelimit.New(st, logging.Component(logger, "ratelimit"),
		ratelimit.WithDenyHook(collector.RateLimitDenied))
	detector := feeds.NewDetector(ledger, logging.Component(logger, "feeds"))

	model, err := llm.New(ctx, cfg.LLM, logging.Component(logger, "llm"))
	if err != nil {
		return fmt.Errorf("init llm: %w", err)
	}
	brand := brandFrom(cfg.Brand)
	generator := content.NewGenerator(model, brand, content.Options{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, logging.Component(logger, "content"))
	generator.OnFailure(collector.GenerationFailed)

	router := classifier.NewRouter(
		classifier.New(model, logging.Component(logger, "classifier")),
		generator, brand, logging.Component(logger, "router"))

	researchOpts := []research.Option{research.WithBlockedDomains(catalog.BlockedDomains)}
	if gs := research.NewGoogleSearch(cfg.Search.GoogleAPIKey, cfg.Search.SearchEngineID, catalog.SearchSites); gs != nil {
		researchOpts = append(researchOpts, research.WithSearcher(gs))
	} else {
		logger.Warn("GOOGLE_API_KEY or SEARCH_ENGINE_ID not set, research uses feeds only")
	}
	builder := research.NewBuilder(detector, catalog.ResearchFeeds(),
		research.NewExtractor(ledger, nil), generator, st,
		logging.Component(logger, "research"), researchOpts...)

	platform := newPlatform(cfg.Twitter, logger)

	a, err := agent.New(agent.ConfigFrom(cfg.Agent), agent.Deps{
		Platform:  platform,
		Threads:   social.NewThreadPoster(platform, threadGap, logging.Component(logger, "threads")),
		Generator: generator,
		Router:    router,
		Feeds:     detector,
		Research:  builder,
		Store:     st,
		Catalog:   catalog,
		Metrics:   collector,
		Logger:    logging.Component(logger, "agent"),
	})
	if err != nil {
		return fmt.Errorf("init agent: %w", err)
	}

	handler := api.NewRouter(api.Deps{
		Store:   st,
		Health:  health,
		Auth:    auth.FromConfig(cfg.Auth),
		Metrics: collector,
		Logger:  logging.Component(logger, "api"),
	})
	srv := server.New(cfg.Server, logger, handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error { return srv.Run(gctx) })

	err = g.Wait()
	logger.Info("x-agent stopped", "error", err)
	return err
}

// openStore connects the configured database and wraps it with the JSON
// fallback. When the database is unreachable the JSON store serves alone.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger, collector *metrics.Collector) (store.Store, api.HealthFunc, error) {
	fallback, err := store.NewJSONStore(cfg.FallbackDir)
	if err != nil {
		return nil, nil, fmt.Errorf("init fallback store: %w", err)
	}

	db, err := connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("database unavailable, using local JSON store only", "error", err, "dir", cfg.FallbackDir)
		return fallback, func(context.Context) error { return err }, nil
	}

	if err := database.RunMigrations(ctx, db, cfg.Driver, logging.Component(logger, "migrations")); err != nil {
		logger.Warn("failed to run migrations, continuing anyway", "error", err)
	}

	resilient := store.NewResilient(database.NewSQLStore(db, cfg.Driver), fallback,
		store.NewCache(0, 0), logging.Component(logger, "store"))
	resilient.OnFallback(collector.StoreFallback)
	return resilient, func(ctx context.Context) error { return database.HealthCheck(ctx, db) }, nil
}

func connect(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, error) {
	dbCfg := database.DefaultConfig()
	dbCfg.Driver = cfg.Driver

	switch cfg.Driver {
	case database.DriverPostgres:
		dsn, err := database.PostgresURL(cfg.URL)
		if err != nil {
			return nil, err
		}
		dbCfg.URL = dsn
	default:
		dbCfg.URL = database.SQLiteURL(cfg.SQLitePath)
	}

	logger.Info("connecting to database", "driver", dbCfg.Driver, "dsn", database.Redact(dbCfg.URL))
	db, err := database.Connect(ctx, dbCfg)
	if err != nil {
		return nil, err
	}
	logger.Info("database connected")
	return db, nil
}

func newPlatform(cfg config.TwitterConfig, logger *slog.Logger) *social.TwitterClient {
	if !cfg.HasUserCredentials() {
		logger.Warn("twitter user credentials incomplete, posting and engagement will fail")
	}
	return social.NewTwitterClient(social.Credentials{
		APIKey:            cfg.APIKey,
		APISecret:         cfg.APISecret,
		AccessToken:       cfg.AccessToken,
		AccessTokenSecret: cfg.AccessTokenSecret,
		BearerToken:       cfg.BearerToken,
	}, logging.Component(logger, "twitter"))
}

func brandFrom(b config.BrandConfig) content.Brand {
	return content.Brand{
		Token:        b.Token,
		Handle:       b.Handle,
		PlatformURL:  b.PlatformURL,
		MarketHandle: b.MarketHandle,
	}
}
