// Package handler exposes the search service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/tiers"
	apperrors "github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/tracing"
)

type SearchExecutor interface {
	Execute(ctx context.Context, query, category string) (*executor.SearchResult, error)
}

// CategoryLister returns the catalog's category tags. *catalog.Snapshot
// implements it.
type CategoryLister interface {
	Categories(ctx context.Context) ([]string, error)
}

// CacheController is the tier cache surface exposed for operations.
type CacheController interface {
	Stats() cache.Stats
	Invalidate(ctx context.Context) error
}

type Handler struct {
	executor       SearchExecutor
	categories     CategoryLister
	cache          CacheController
	tracker        analytics.Tracker
	maxQueryLength int
	logger         *slog.Logger
}

// New creates a Handler. cache and tracker may be nil.
func New(exec SearchExecutor, categories CategoryLister, tierCache CacheController, tracker analytics.Tracker, maxQueryLength int) *Handler {
	return &Handler{
		executor:       exec,
		categories:     categories,
		cache:          tierCache,
		tracker:        tracker,
		maxQueryLength: maxQueryLength,
		logger:         slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/categories", h.Categories)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search answers GET /api/v1/search?q=&category=. A missing q is a browse of
// the category.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.StartSpan(r.Context(), "search", middleware.GetRequestID(r.Context()))
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(ctx, log)
	}()

	query := r.URL.Query().Get("q")
	category := r.URL.Query().Get("category")
	if h.maxQueryLength > 0 && utf8.RuneCountInString(query) > h.maxQueryLength {
		h.writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"query must be at most %d characters", h.maxQueryLength))
		return
	}
	span.SetAttr("query", query)
	span.SetAttr("category", category)

	result, err := h.executor.Execute(ctx, query, category)
	if err != nil {
		log.Error("search execution failed", "query", query, "category", category, "error", err)
		h.writeError(w, err)
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	log.Info("search completed",
		"query", query,
		"category", category,
		"outcome", result.Outcome,
		"primary", len(result.Tiers.Primary),
		"global", len(result.Tiers.Global),
		"suggestions", len(result.Tiers.Suggestions),
		"cache_hit", result.CacheHit,
		"latency_ms", latencyMs,
	)
	if h.tracker != nil {
		eventType := analytics.EventSearch
		if result.Outcome == tiers.OutcomeSuggestionsOnly {
			eventType = analytics.EventZeroResult
		}
		h.tracker.Track(analytics.SearchEvent{
			Type:        eventType,
			Query:       query,
			Category:    category,
			Outcome:     string(result.Outcome),
			Primary:     len(result.Tiers.Primary),
			Global:      len(result.Tiers.Global),
			Suggestions: len(result.Tiers.Suggestions),
			LatencyMs:   latencyMs,
			CacheHit:    result.CacheHit,
			Timestamp:   time.Now().UTC(),
			RequestID:   middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, result)
}

// Categories answers GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.Categories(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("listing categories failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"categories": append([]string{"all"}, categories...),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrCacheUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError reports err with the status pkg/errors assigns it. Only the
// message of an AppError reaches the client.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := http.StatusText(status)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
