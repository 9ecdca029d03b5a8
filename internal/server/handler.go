// Package server exposes the engine over HTTP: search, document CRUD,
// an index snapshot endpoint and cache administration.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/query"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/server/cache"
	apperrors "github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/middleware"
)

const (
	defaultLimit = 10
	maxResults   = 100
)

// Handler serves the HTTP API.
type Handler struct {
	engine    *engine.Engine
	store     *docstore.Store
	cache     *cache.QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Handler. cache and collector may be nil, disabling
// caching and analytics respectively.
func New(eng *engine.Engine, store *docstore.Store, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics) *Handler {
	return &Handler{
		engine:    eng,
		store:     store,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		logger:    slog.Default().With("component", "server"),
	}
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search", h.Search)
	mux.HandleFunc("POST /documents", h.PutDocument)
	mux.HandleFunc("GET /documents/{id}", h.GetDocument)
	mux.HandleFunc("DELETE /documents/{id}", h.DeleteDocument)
	mux.HandleFunc("GET /index/snapshot", h.IndexSnapshot)
	mux.HandleFunc("GET /cache/stats", h.CacheStats)
	mux.HandleFunc("POST /cache/invalidate", h.CacheInvalidate)
	return mux
}

// Search executes a query string and returns the ranked results.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	queryString := r.URL.Query().Get("q")
	if queryString == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > maxResults {
			parsed = maxResults
		}
		limit = parsed
	}

	compute := func() (*cache.SearchResult, error) {
		results, err := h.engine.Search(queryString)
		if err != nil {
			return nil, err
		}
		total := len(results)
		if len(results) > limit {
			results = results[:limit]
		}
		return &cache.SearchResult{
			Query:     queryString,
			TotalHits: total,
			Results:   results,
			TookMs:    time.Since(start).Milliseconds(),
		}, nil
	}

	var result *cache.SearchResult
	var err error
	cacheHit := false

	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, queryString, limit, compute)
	} else {
		result, err = compute()
	}

	if err != nil {
		var parseErr *query.ParseError
		if errors.As(err, &parseErr) {
			h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
			h.writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		log.Error("search execution failed", "query", queryString, "error", err)
		h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		h.writeError(w, apperrors.HTTPStatusCode(err), "search failed")
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	h.recordSearchMetrics(result, cacheHit, start)

	log.Info("search completed",
		"query", queryString,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)

	if h.collector != nil {
		eventType := analytics.EventCacheMiss
		if cacheHit {
			eventType = analytics.EventCacheHit
		}
		var topScore float64
		if len(result.Results) > 0 {
			topScore = result.Results[0].Score
		}
		h.collector.Track(analytics.SearchEvent{
			Type:      eventType,
			Query:     queryString,
			TotalHits: result.TotalHits,
			Returned:  len(result.Results),
			TopScore:  topScore,
			LatencyMs: latencyMs,
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) recordSearchMetrics(result *cache.SearchResult, cacheHit bool, start time.Time) {
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else {
		h.metrics.CacheMissesTotal.Inc()
	}
	resultType := "hit"
	if result.TotalHits == 0 {
		resultType = "zero_result"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	h.metrics.SearchResultsCount.WithLabelValues().Observe(float64(len(result.Results)))
}

// PutDocument stores a document and marks the index stale.
func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	var doc docstore.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid document body: %v", err))
		return
	}

	if err := h.store.Put(r.Context(), doc); err != nil {
		h.logger.Error("document store failed", "id", doc.ID, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "storing document failed")
		return
	}

	h.engine.MarkDirty()
	h.writeJSON(w, http.StatusAccepted, map[string]string{"id": doc.ID, "status": "stored"})
}

// GetDocument returns a stored document by id.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrDocumentNotFound) {
			h.writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("document load failed", "id", id, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "loading document failed")
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument removes a stored document and marks the index stale.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, apperrors.ErrDocumentNotFound) {
			h.writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("document delete failed", "id", id, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "deleting document failed")
		return
	}
	h.engine.MarkDirty()
	h.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// IndexSnapshot serialises the live index, suitable for loading into
// another process with index.Load.
func (h *Handler) IndexSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.engine.Index().ToJSON()
	if err != nil {
		h.logger.Error("index serialisation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "index serialisation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

// CacheStats reports cache hit/miss counters.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate drops every cached search result.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
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

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
