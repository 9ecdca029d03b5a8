package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/server"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/server/cache"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search engine", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgClient.Close()

	store, err := docstore.New(ctx, pgClient)
	if err != nil {
		slog.Error("failed to initialise document store", "error", err)
		os.Exit(1)
	}

	eng, err := engine.New(store, cfg.Engine, m)
	if err != nil {
		slog.Error("failed to create engine", "error", err)
		os.Exit(1)
	}
	if err := eng.Rebuild(ctx); err != nil {
		slog.Error("initial index build failed", "error", err)
		os.Exit(1)
	}
	go eng.Run(ctx)

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	eng.AfterRebuild = func(stats engine.RebuildStats) {
		if queryCache != nil {
			if err := queryCache.Invalidate(context.Background()); err != nil {
				slog.Error("cache invalidation after rebuild failed", "error", err)
			}
		}
		collector.Track(analytics.IndexBuildEvent{
			Type:          analytics.EventIndexBuild,
			DocumentCount: stats.Documents,
			TermCount:     stats.Terms,
			LatencyMs:     stats.Duration.Milliseconds(),
			Timestamp:     time.Now().UTC(),
		})
	}

	consumer := ingest.New(cfg.Kafka, store, eng)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("ingest consumer error", "error", err)
		}
	}()
	slog.Info("ingest consumer started", "topic", cfg.Kafka.Topics.DocumentIngest)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := pgClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		fields := eng.Index().Fields()
		if len(fields) == 0 {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no indexed fields"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d fields", len(fields))}
	})

	h := server.New(eng, store, queryCache, collector, m)
	mux := h.Routes()
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if cfg.Auth.Enabled {
		validator, err := apikey.New(ctx, pgClient)
		if err != nil {
			slog.Error("failed to initialise api key validator", "error", err)
			os.Exit(1)
		}
		limiter := ratelimit.New(cfg.Auth.RateLimitWindow)
		chain = server.RateLimit(limiter)(chain)
		chain = server.Auth(validator)(chain)
		slog.Info("api key authentication enabled", "rate_limit_window", cfg.Auth.RateLimitWindow)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	var stopMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		stopMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if stopMetrics != nil {
			if err := stopMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("search engine listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search engine stopped")
}
