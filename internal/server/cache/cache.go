// Package cache memoises search responses in Redis. Concurrent misses
// for the same key collapse into a single execution via singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/index"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/config"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

// SearchResult is the cached unit: the ranked hits for one query.
type SearchResult struct {
	Query     string         `json:"query"`
	TotalHits int            `json:"total_hits"`
	Results   []index.Result `json:"results"`
	TookMs    int64          `json:"took_ms"`
}

// QueryCache fronts query execution with Redis. A circuit breaker
// around the Redis calls keeps a flapping cache from adding latency to
// every search; while the circuit is open every lookup is a miss.
type QueryCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("query-cache", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached result for a query, if present.
func (c *QueryCache) Get(ctx context.Context, query string, limit int) (*SearchResult, bool) {
	key := c.buildKey(query, limit)

	var data string
	err := c.breaker.Execute(func() error {
		var getErr error
		data, getErr = c.client.Get(ctx, key)
		if pkgredis.IsNilError(getErr) {
			// An absent key is a healthy response, not a Redis failure.
			data = ""
			return nil
		}
		return getErr
	})
	if err != nil || data == "" {
		if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var result SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", query, "key", key)
	return &result, true
}

// Set stores a result under the query's key.
func (c *QueryCache) Set(ctx context.Context, query string, limit int, result *SearchResult) {
	key := c.buildKey(query, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.cfg.CacheTTL)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or computes and caches it,
// deduplicating concurrent computations of the same key. The returned
// bool reports whether the result came from cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	limit int,
	computeFn func() (*SearchResult, error),
) (*SearchResult, bool, error) {
	if result, ok := c.Get(ctx, query, limit); ok {
		return result, true, nil
	}
	key := c.buildKey(query, limit)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, query, limit); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, limit, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*SearchResult), false, nil
}

// Invalidate drops every cached search result, called after an index
// rebuild makes cached scores stale.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	// A successful flush means Redis is reachable, so clear any open
	// circuit rather than waiting out the reset timeout.
	c.breaker.Reset()
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns the hit and miss counters.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(query string, limit int) string {
	raw := fmt.Sprintf("%s:limit=%d", normalizeQuery(query), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeQuery canonicalises a query string so equivalent queries
// share a cache key. Clause order never affects results, so clauses
// are sorted; terms are lower-cased the same way the parser does.
func normalizeQuery(query string) string {
	clauses := strings.Fields(strings.ToLower(query))
	sort.Strings(clauses)
	return strings.Join(clauses, " ")
}
