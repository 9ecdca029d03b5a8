// Package analytics publishes search and indexing events to Kafka
// through a buffered, drop-on-overflow collector so the hot path never
// blocks on the broker.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventIndexBuild EventType = "index_build"
	EventZeroResult EventType = "zero_result"
)

// SearchEvent records one executed query.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	TopScore  float64   `json:"top_score"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// IndexBuildEvent records one index rebuild.
type IndexBuildEvent struct {
	Type          EventType `json:"type"`
	DocumentCount int       `json:"document_count"`
	TermCount     int       `json:"term_count"`
	LatencyMs     int64     `json:"latency_ms"`
	Timestamp     time.Time `json:"timestamp"`
}
