// Command searcher serves storefront search over HTTP.
//
// It keeps an in-process snapshot of the PostgreSQL product catalog, builds
// primary, global and suggestion tiers per query, caches tier results in
// Redis, and listens for catalog change events on Kafka. Search events are
// shipped to Kafka for aggregation, or aggregated in process when Kafka is
// disabled.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/synonyms"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/tiers"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := catalog.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		slog.Error("failed to migrate catalog schema", "error", err)
		os.Exit(1)
	}
	snapshot := catalog.NewSnapshot(store,
		catalog.WithTTL(cfg.Search.CatalogTTL),
		catalog.WithMetrics(m),
	)
	if err := snapshot.Warm(ctx); err != nil {
		// Readiness stays down until a later load succeeds.
		slog.Warn("initial catalog load failed", "error", err)
	} else {
		slog.Info("catalog loaded", "products", snapshot.Len(), "version", snapshot.Version())
	}

	table := synonyms.Default()
	if cfg.Search.SynonymsFile != "" {
		custom, err := synonyms.Load(cfg.Search.SynonymsFile)
		if err != nil {
			slog.Error("failed to load synonyms", "error", err)
			os.Exit(1)
		}
		table = table.Merge(custom)
		slog.Info("synonyms loaded", "file", cfg.Search.SynonymsFile, "terms", table.Len())
	}

	var rankerOpts []ranker.Option
	var haystacks *ranker.HaystackCache
	if cfg.Search.HaystackCache {
		haystacks = ranker.NewHaystackCache()
		rankerOpts = append(rankerOpts, ranker.WithHaystackCache(haystacks))
	}
	builder := tiers.New(
		ranker.New(tokenizer.NewExpander(table), rankerOpts...),
		tiers.WithSuggestionLimit(cfg.Search.SuggestionLimit),
	)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping, false))
	checker.Register("catalog", health.PingCheck(snapshot.Ping, false))

	execOpts := []executor.Option{executor.WithMetrics(m)}
	var tierCache *cache.TierCache
	var invalidators []catalog.Invalidator
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, tier caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			tierCache = cache.New(redisClient, cfg.Redis.CacheTTL)
			execOpts = append(execOpts, executor.WithCache(tierCache))
			invalidators = append(invalidators, tierCache)
			checker.Register("redis", health.PingCheck(redisClient.Ping, true))
			slog.Info("tier cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	if haystacks != nil {
		invalidators = append(invalidators, haystacks)
	}
	exec := executor.New(snapshot, builder, execOpts...)

	aggregator := analytics.NewAggregator()
	var tracker analytics.Tracker
	var collector *analytics.Collector
	if cfg.Analytics.Enabled {
		tracker = aggregator
	}

	if cfg.Kafka.Enabled {
		changes := kafka.NewConsumer(instanceGroup(cfg.Kafka, "catalog"), cfg.Kafka.Topics.CatalogChanges,
			catalog.HandleChange(snapshot, invalidators...))
		go func() {
			if err := changes.Start(ctx); err != nil {
				slog.Error("catalog change consumer error", "error", err)
			}
		}()
		slog.Info("catalog change consumer started", "topic", cfg.Kafka.Topics.CatalogChanges)

		if cfg.Analytics.Enabled {
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
			defer producer.Close()
			collector = analytics.NewCollector(producer, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
			collector.Start(ctx)
			tracker = collector

			events := kafka.NewConsumer(instanceGroup(cfg.Kafka, "analytics"), cfg.Kafka.Topics.AnalyticsEvents,
				analytics.HandleEvent(aggregator))
			go func() {
				if err := events.Start(ctx); err != nil {
					slog.Error("analytics consumer error", "error", err)
				}
			}()
			slog.Info("analytics pipeline started", "topic", cfg.Kafka.Topics.AnalyticsEvents)
		}
	}

	h := handler.New(exec, snapshot, cacheController(tierCache), tracker, cfg.Search.MaxQueryLength)
	mux := http.NewServeMux()
	h.Register(mux)
	analytics.NewHandler(aggregator).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if rl := cfg.Server.RateLimit; rl.Enabled {
		trusted, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
		if err != nil {
			slog.Error("invalid trusted proxies", "error", err)
			os.Exit(1)
		}
		limiter := ratelimit.New(rl.RequestsPerSecond, rl.Burst, 10*time.Minute)
		go limiter.Run(ctx, 5*time.Minute)
		chain = middleware.RateLimit(limiter, trusted)(chain)
	}
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.Server.CORSOrigins
	chain = middleware.CORS(cors)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
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
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	if collector != nil {
		collector.Close()
	}
	slog.Info("search service stopped")
}

// instanceGroup gives each searcher process its own consumer group for a
// topic, so every instance sees every catalog change and analytics event.
func instanceGroup(cfg config.KafkaConfig, topic string) config.KafkaConfig {
	host, err := os.Hostname()
	if err != nil {
		host = fmt.Sprintf("pid%d", os.Getpid())
	}
	cfg.ConsumerGroup = fmt.Sprintf("%s-%s-%s", cfg.ConsumerGroup, topic, host)
	return cfg
}

// cacheController keeps a nil *TierCache from becoming a non-nil interface.
func cacheController(c *cache.TierCache) handler.CacheController {
	if c == nil {
		return nil
	}
	return c
}
