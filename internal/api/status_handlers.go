package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/store"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// StatusHandlers serve read-only views of the agent's state.
type StatusHandlers struct {
	store  store.Store
	logger *slog.Logger
}

// NewStatusHandlers creates status handlers over s.
func NewStatusHandlers(s store.Store, logger *slog.Logger) *StatusHandlers {
	return &StatusHandlers{store: s, logger: logger}
}

// Interactions handles GET /api/interactions
func (h *StatusHandlers) Interactions(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	items, err := h.store.RecentInteractions(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.Error("failed to list interactions", "error", err)
		http.Error(w, "Failed to retrieve interactions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, map[string]any{
		"interactions": items,
		"count":        len(items),
	})
}

// Queue handles GET /api/queue
func (h *StatusHandlers) Queue(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	items, err := h.store.ListArticles(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.Error("failed to list article queue", "error", err)
		http.Error(w, "Failed to retrieve queue", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, map[string]any{
		"articles": items,
		"count":    len(items),
	})
}

// RateLimits handles GET /api/rate-limits
func (h *StatusHandlers) RateLimits(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	items, err := h.store.ListRateLimits(r.Context())
	if err != nil {
		h.logger.Error("failed to list rate limits", "error", err)
		http.Error(w, "Failed to retrieve rate limits", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, map[string]any{
		"rate_limits": items,
		"count":       len(items),
	})
}

// Research handles GET /api/research
func (h *StatusHandlers) Research(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	items, err := h.store.RecentResearch(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.Error("failed to list research", "error", err)
		http.Error(w, "Failed to retrieve research", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, map[string]any{
		"research": items,
		"count":    len(items),
	})
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// parseLimit reads ?limit=, falling back to defaultLimit and capping at maxLimit.
func parseLimit(r *http.Request) int {
	limit := defaultLimit
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	return min(limit, maxLimit)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
