// Package api serves the agent's read-only status API.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/auth"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/metrics"
	"github.com/Exmplr-AI/custom-x-ai-agent/internal/store"
)

// HealthFunc reports whether the primary store is reachable.
type HealthFunc func(ctx context.Context) error

// Deps are the collaborators of the status API.
type Deps struct {
	Store   store.Store
	Health  HealthFunc
	Auth    auth.Config
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// NewRouter builds the status API handler, instrumented with HTTP metrics.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	SetupRoutes(mux, d.Store, d.Health, d.Auth, logger)

	if d.Metrics == nil {
		return mux
	}
	mux.Handle("/metrics", d.Metrics.Handler())
	return d.Metrics.InstrumentHandler(mux)
}

// SetupRoutes configures all API routes
func SetupRoutes(mux *http.ServeMux, s store.Store, health HealthFunc, authConfig auth.Config, logger *slog.Logger) {
	statusHandlers := NewStatusHandlers(s, logger)
	authHandler := NewAuthHandler(authConfig, logger)
	authMiddleware := auth.Middleware(authConfig)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				// Writes still land in the fallback store.
				logger.Warn("health check degraded", "error", err)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Authentication routes (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)

	protected := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(h)
	}
	mux.Handle("/api/interactions", protected(statusHandlers.Interactions))
	mux.Handle("/api/queue", protected(statusHandlers.Queue))
	mux.Handle("/api/rate-limits", protected(statusHandlers.RateLimits))
	mux.Handle("/api/research", protected(statusHandlers.Research))
}
