// Package engine owns the live search index. It builds an index from
// the documents in the store according to the configured fields and
// BM25 parameters, swaps it in atomically, and serves queries against
// whichever snapshot is current. Queries never block a rebuild and a
// rebuild never blocks queries.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/index"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/lang"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/query"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/tracing"
)

// RebuildStats describes one completed index rebuild.
type RebuildStats struct {
	Documents int
	Terms     int
	Duration  time.Duration
}

// Engine wires the document store to the search index.
type Engine struct {
	// AfterRebuild, when set, runs after each successful rebuild. Used
	// to invalidate caches holding scores from the previous snapshot
	// and to publish index build events.
	AfterRebuild func(RebuildStats)

	store   *docstore.Store
	cfg     config.EngineConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	current atomic.Pointer[index.Index]
	dirty   atomic.Bool
}

// New creates an Engine. The index is empty until the first Rebuild.
func New(store *docstore.Store, cfg config.EngineConfig, m *metrics.Metrics) (*Engine, error) {
	e := &Engine{
		store:   store,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "engine"),
	}

	builder, err := e.newBuilder()
	if err != nil {
		return nil, err
	}
	empty, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("building empty index: %w", err)
	}
	e.current.Store(empty)
	return e, nil
}

// newBuilder returns a Builder configured with the engine's fields,
// BM25 parameters and the default English pipelines.
func (e *Engine) newBuilder() (*index.Builder, error) {
	builder := index.NewBuilder()
	builder.Ref(e.cfg.RefField)
	builder.B(e.cfg.B)
	builder.K1(e.cfg.K1)
	builder.MetadataWhitelist = append([]string(nil), e.cfg.MetadataWhitelist...)
	builder.Pipeline.Add(lang.Trimmer, lang.StopWordFilter, lang.Stemmer)
	builder.SearchPipeline.Add(lang.Stemmer)

	for _, field := range e.cfg.Fields {
		boost := field.Boost
		if boost == 0 {
			boost = 1
		}
		if err := builder.Field(field.Name, index.WithBoost(boost)); err != nil {
			return nil, fmt.Errorf("registering field: %w", err)
		}
	}
	return builder, nil
}

// MarkDirty flags the index as stale, picked up by the next Run tick.
func (e *Engine) MarkDirty() {
	e.dirty.Store(true)
}

// Rebuild loads every document from the store, builds a fresh index and
// swaps it in.
func (e *Engine) Rebuild(ctx context.Context) error {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "index-rebuild", fmt.Sprintf("rebuild-%d", start.UnixNano()))
	defer func() {
		span.End()
		span.Log()
	}()

	loadCtx, loadSpan := tracing.StartChildSpan(ctx, "load-documents")
	docs, err := e.store.List(loadCtx)
	loadSpan.End()
	if err != nil {
		e.metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("loading documents: %w", err)
	}
	loadSpan.SetAttr("documents", len(docs))

	builder, err := e.newBuilder()
	if err != nil {
		e.metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		return err
	}

	_, buildSpan := tracing.StartChildSpan(ctx, "build-index")
	for _, doc := range docs {
		fields := index.Document(doc.Fields)
		fields[e.cfg.RefField] = doc.ID
		if err := builder.Add(fields, index.WithDocumentBoost(doc.Boost)); err != nil {
			e.metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("indexing document %s: %w", doc.ID, err)
		}
		e.metrics.DocsIndexedTotal.Inc()
	}

	idx, err := builder.Build()
	buildSpan.End()
	if err != nil {
		e.metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("building index: %w", err)
	}
	buildSpan.SetAttr("terms", idx.TermCount())

	e.current.Store(idx)
	e.dirty.Store(false)

	elapsed := time.Since(start)
	e.metrics.IndexBuildsTotal.WithLabelValues("ok").Inc()
	e.metrics.IndexBuildDuration.Observe(elapsed.Seconds())
	e.metrics.IndexedDocuments.Set(float64(len(docs)))
	e.metrics.IndexedTerms.Set(float64(idx.TermCount()))
	e.logger.Info("index rebuilt",
		"documents", len(docs),
		"duration_ms", elapsed.Milliseconds(),
	)

	if e.AfterRebuild != nil {
		e.AfterRebuild(RebuildStats{
			Documents: len(docs),
			Terms:     idx.TermCount(),
			Duration:  elapsed,
		})
	}
	return nil
}

// Run rebuilds the index whenever it has been marked dirty, checking at
// the configured interval, until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	interval := e.cfg.RebuildInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			if !e.dirty.Load() {
				continue
			}
			if err := e.Rebuild(ctx); err != nil {
				e.logger.Error("index rebuild failed", "error", err)
			}
		}
	}
}

// Index returns the current index snapshot.
func (e *Engine) Index() *index.Index {
	return e.current.Load()
}

// Search runs a query string against the current snapshot.
func (e *Engine) Search(queryString string) ([]index.Result, error) {
	return e.current.Load().Search(queryString)
}

// Query runs a programmatic query against the current snapshot.
func (e *Engine) Query(fn func(*query.Query) error) ([]index.Result, error) {
	return e.current.Load().Query(fn)
}
