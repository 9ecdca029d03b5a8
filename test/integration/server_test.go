// Package integration contains tests that verify the HTTP API with real
// handler wiring and a real PostgreSQL database. Kafka and Redis are not
// required; caching and analytics degrade to disabled.
//
// Run with:
//
//	go test -v -tags=integration ./test/integration/...
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/server"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/postgres"
)

// Prometheus collectors register globally, so the suite shares one set.
var testMetrics = metrics.New()

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	cfg := testPostgresConfig()
	db, err := postgres.New(cfg)
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "searchengine_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "searchengine"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		RefField: "id",
		Fields: []config.EngineFieldConfig{
			{Name: "title", Boost: 10},
			{Name: "body"},
		},
		B:  0.75,
		K1: 1.2,
	}
}

type testEnv struct {
	server *httptest.Server
	store  *docstore.Store
	engine *engine.Engine
}

// newSearchServer wires the full handler stack against a real database,
// with caching and analytics disabled.
func newSearchServer(t *testing.T, db *postgres.Client) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := docstore.New(ctx, db)
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}

	eng, err := engine.New(store, testEngineConfig(), testMetrics)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	if err := eng.Rebuild(ctx); err != nil {
		t.Fatalf("initial rebuild: %v", err)
	}

	h := server.New(eng, store, nil, nil, testMetrics)
	srv := httptest.NewServer(middleware.RequestID(h.Routes()))
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, store: store, engine: eng}
}

type searchResponse struct {
	Query     string `json:"query"`
	TotalHits int    `json:"total_hits"`
	Results   []struct {
		Ref   string  `json:"ref"`
		Score float64 `json:"score"`
	} `json:"results"`
}

func (e *testEnv) search(t *testing.T, query string) searchResponse {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("%s/search?q=%s", e.server.URL, query))
	if err != nil {
		t.Fatalf("GET /search: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding search response: %v", err)
	}
	return out
}

// TestDocumentLifecycle verifies store, search, fetch and delete through
// the HTTP API with a real database behind the handlers.
func TestDocumentLifecycle(t *testing.T) {
	db := skipIfNoPostgres(t)
	env := newSearchServer(t, db)

	id := fmt.Sprintf("it-doc-%d", time.Now().UnixNano())
	t.Cleanup(func() { env.store.Delete(context.Background(), id) })

	doc := docstore.Document{
		ID: id,
		Fields: map[string]any{
			"title": "integration coverage of handler wiring",
			"body":  "exercises the search path against a freshly rebuilt index",
		},
	}
	body, _ := json.Marshal(doc)
	resp, err := http.Post(env.server.URL+"/documents", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /documents: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	// The write marked the index dirty; rebuild synchronously so the
	// search below observes the new document.
	if err := env.engine.Rebuild(context.Background()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	result := env.search(t, "wiring")
	found := false
	for _, r := range result.Results {
		if r.Ref == id {
			found = true
		}
	}
	if !found {
		t.Errorf("expected search to return %s, got %+v", id, result.Results)
	}

	getResp, err := http.Get(env.server.URL + "/documents/" + id)
	if err != nil {
		t.Fatalf("GET /documents: %v", err)
	}
	getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 fetching stored document, got %d", getResp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, env.server.URL+"/documents/"+id, nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /documents: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 deleting document, got %d", delResp.StatusCode)
	}

	getResp, err = http.Get(env.server.URL + "/documents/" + id)
	if err != nil {
		t.Fatalf("GET /documents after delete: %v", err)
	}
	getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", getResp.StatusCode)
	}
}

// TestSearchValidation verifies the handler rejects bad search input.
func TestSearchValidation(t *testing.T) {
	db := skipIfNoPostgres(t)
	env := newSearchServer(t, db)

	cases := []struct {
		name string
		path string
		want int
	}{
		{"missing query", "/search", http.StatusBadRequest},
		{"bad limit", "/search?q=anything&limit=zero", http.StatusBadRequest},
		{"negative limit", "/search?q=anything&limit=-1", http.StatusBadRequest},
		{"unparseable query", "/search?q=boost%5Eabc", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(env.server.URL + tc.path)
			if err != nil {
				t.Fatalf("GET %s: %v", tc.path, err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("expected %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

// TestAuthMiddleware verifies the API key and rate limit chain in front
// of the handlers, backed by keys stored in the real database.
func TestAuthMiddleware(t *testing.T) {
	db := skipIfNoPostgres(t)
	env := newSearchServer(t, db)
	ctx := context.Background()

	validator, err := apikey.New(ctx, db)
	if err != nil {
		t.Fatalf("apikey.New: %v", err)
	}

	rawKey, err := validator.CreateKey(ctx, fmt.Sprintf("it-key-%d", time.Now().UnixNano()), 3, nil)
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}
	t.Cleanup(func() { validator.RevokeKey(ctx, rawKey) })

	limiter := ratelimit.New(time.Minute)
	h := server.New(env.engine, env.store, nil, nil, testMetrics)
	var chain http.Handler = h.Routes()
	chain = server.RateLimit(limiter)(chain)
	chain = server.Auth(validator)(chain)
	srv := httptest.NewServer(chain)
	t.Cleanup(srv.Close)

	t.Run("missing key rejected", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/search?q=anything")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
	})

	t.Run("invalid key rejected", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/search?q=anything", nil)
		req.Header.Set("X-API-Key", "not-a-real-key")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
	})

	t.Run("valid key passes then rate limits", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/search?q=anything", nil)
			req.Header.Set("X-API-Key", rawKey)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("GET %d: %v", i, err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("request %d: expected 200, got %d", i, resp.StatusCode)
			}
		}

		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/search?q=anything", nil)
		req.Header.Set("X-API-Key", rawKey)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET over budget: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusTooManyRequests {
			t.Errorf("expected 429 over budget, got %d", resp.StatusCode)
		}
	})

	t.Run("health exempt from auth", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health/live")
		if err != nil {
			t.Fatalf("GET /health/live: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusUnauthorized {
			t.Error("health endpoint should bypass authentication")
		}
	})
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
