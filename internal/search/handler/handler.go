// Package handler exposes the search engine over HTTP. The caller identity
// arrives pre-authenticated in the X-User-ID header; session validation is
// the gateway's job, not ours.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/huddlechat/message-search/internal/search/cache"
	"github.com/huddlechat/message-search/internal/search/engine"
	"github.com/huddlechat/message-search/internal/search/events"
	apperrors "github.com/huddlechat/message-search/pkg/errors"
	"github.com/huddlechat/message-search/pkg/logger"
	"github.com/huddlechat/message-search/pkg/metrics"
	"github.com/huddlechat/message-search/pkg/tracing"
)

const userIDHeader = "X-User-ID"

// Searcher is what the handler needs from the engine.
type Searcher interface {
	Search(ctx context.Context, req engine.Request) (*engine.Response, error)
}

// Handler serves the search API.
type Handler struct {
	engine    Searcher
	cache     *cache.QueryCache
	collector *events.Collector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Handler. cache, collector, and m may be nil.
func New(searcher Searcher, queryCache *cache.QueryCache, collector *events.Collector, m *metrics.Metrics) *Handler {
	return &Handler{
		engine:    searcher,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /api/v1/search?q=...&limit=...&offset=...&room_id=...
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "caller identity missing")
		return
	}

	req := engine.Request{
		UserID: userID,
		Query:  r.URL.Query().Get("q"),
		RoomID: r.URL.Query().Get("room_id"),
		Limit:  intParam(r, "limit", 0),
		Offset: intParam(r, "offset", 0),
	}

	ctx, span := tracing.StartSpan(ctx, "search.request", logger.RequestID(ctx))
	defer func() {
		span.End()
		span.Log()
	}()

	var resp *engine.Response
	var err error
	cacheHit := false
	if h.cache != nil {
		resp, cacheHit, err = h.cache.GetOrCompute(ctx, req, func() (*engine.Response, error) {
			return h.engine.Search(ctx, req)
		})
	} else {
		resp, err = h.engine.Search(ctx, req)
	}

	latency := time.Since(start)
	if err != nil {
		h.countOutcome(err)
		status := apperrors.HTTPStatusCode(err)
		code := apperrors.Code(err)
		msg := err.Error()
		if status >= http.StatusInternalServerError {
			// Internal detail stays in the logs.
			log.Error("search failed", "query", req.Query, "error", err)
			msg = "search failed"
		}
		h.writeError(w, status, code, msg)
		return
	}

	h.observe(resp, cacheHit, latency)
	log.Info("search completed",
		"user_id", userID,
		"query", req.Query,
		"total_count", resp.TotalCount,
		"returned", len(resp.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.collector != nil {
		h.collector.Track(events.SearchCompleted{
			Type:       events.TypeSearchCompleted,
			RequestID:  logger.RequestID(ctx),
			UserID:     userID,
			Query:      req.Query,
			TotalCount: resp.TotalCount,
			Returned:   len(resp.Results),
			LatencyMs:  latency.Milliseconds(),
			CacheHit:   cacheHit,
			Timestamp:  time.Now().UTC(),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":   hits,
		"misses": misses,
	})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL", "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) observe(resp *engine.Response, cacheHit bool, latency time.Duration) {
	if h.metrics == nil {
		return
	}
	outcome := "ok"
	if resp.TotalCount == 0 {
		outcome = "zero_result"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else {
		h.metrics.CacheMissesTotal.Inc()
	}
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(len(resp.Results)))
}

func (h *Handler) countOutcome(err error) {
	if h.metrics == nil {
		return
	}
	var outcome string
	switch {
	case errors.Is(err, apperrors.ErrAccessDenied):
		outcome = "denied"
	case errors.Is(err, apperrors.ErrSearchTimeout):
		outcome = "timeout"
	case apperrors.HTTPStatusCode(err) == http.StatusBadRequest:
		outcome = "invalid"
	default:
		outcome = "error"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
}

type errorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Status  int    `json:"status"`
}

type errorBody struct {
	Error   errorDetail `json:"error"`
	Success bool        `json:"success"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, errorBody{
		Error: errorDetail{
			Message: message,
			Code:    code,
			Status:  status,
		},
		Success: false,
	})
}

// intParam parses an integer query parameter, falling back to def for
// missing or malformed values. Range clamping happens in the engine.
func intParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
