// Package executor runs a storefront query against the current catalog
// snapshot, consulting the tier cache when one is configured.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/tiers"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/tracing"
)

// CatalogSource supplies the catalog and its version. *catalog.Snapshot
// implements it.
type CatalogSource interface {
	Products(ctx context.Context) ([]catalog.Product, uint64, error)
}

// outcomeError labels queries that failed before tiers were built.
const outcomeError tiers.Outcome = "error"

type SearchResult struct {
	Query          string        `json:"query"`
	Category       string        `json:"category"`
	Outcome        tiers.Outcome `json:"outcome"`
	CatalogVersion uint64        `json:"catalog_version"`
	CacheHit       bool          `json:"cache_hit"`
	Tiers          tiers.Result  `json:"tiers"`
}

type Option func(*Executor)

// WithCache looks results up in c before building them.
func WithCache(c *cache.TierCache) Option {
	return func(e *Executor) { e.cache = c }
}

// WithMetrics records query outcomes, latency and tier sizes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

type Executor struct {
	source  CatalogSource
	builder *tiers.Builder
	cache   *cache.TierCache
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(source CatalogSource, builder *tiers.Builder, opts ...Option) *Executor {
	e := &Executor{
		source:  source,
		builder: builder,
		logger:  slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute builds the result tiers for query within category. It fails only
// when no catalog is available.
func (e *Executor) Execute(ctx context.Context, query, category string) (*SearchResult, error) {
	start := time.Now()

	_, span := tracing.StartChildSpan(ctx, "catalog.snapshot")
	products, version, err := e.source.Products(ctx)
	span.End()
	if err != nil {
		e.observe(outcomeError, "", start, nil)
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	build := func() (*tiers.Result, error) {
		_, span := tracing.StartChildSpan(ctx, "tiers.build")
		defer span.End()
		result := e.builder.Build(products, query, category)
		span.SetAttr("products", len(products))
		return &result, nil
	}

	var result *tiers.Result
	cacheStatus := "disabled"
	hit := false
	if e.cache != nil {
		key := cache.Key{
			Query:           query,
			Category:        category,
			CatalogVersion:  version,
			SuggestionLimit: e.builder.SuggestionLimit(),
		}
		result, hit, err = e.cache.GetOrCompute(ctx, key, build)
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
		}
	} else {
		result, err = build()
	}
	if err != nil {
		e.observe(outcomeError, cacheStatus, start, nil)
		return nil, err
	}

	outcome := result.Outcome(query)
	e.observe(outcome, cacheStatus, start, result)
	e.logger.Debug("query executed",
		"query", query,
		"category", category,
		"outcome", outcome,
		"primary", len(result.Primary),
		"global", len(result.Global),
		"suggestions", len(result.Suggestions),
		"catalog_version", version,
		"cache", cacheStatus,
	)
	return &SearchResult{
		Query:          query,
		Category:       category,
		Outcome:        outcome,
		CatalogVersion: version,
		CacheHit:       hit,
		Tiers:          *result,
	}, nil
}

func (e *Executor) observe(outcome tiers.Outcome, cacheStatus string, start time.Time, result *tiers.Result) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(string(outcome)).Inc()
	if cacheStatus == "" {
		return
	}
	e.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	switch cacheStatus {
	case "hit":
		e.metrics.CacheHitsTotal.Inc()
	case "miss":
		e.metrics.CacheMissesTotal.Inc()
	}
	if result != nil {
		e.metrics.TierResultsCount.WithLabelValues("primary").Observe(float64(len(result.Primary)))
		e.metrics.TierResultsCount.WithLabelValues("global").Observe(float64(len(result.Global)))
		e.metrics.TierResultsCount.WithLabelValues("suggestions").Observe(float64(len(result.Suggestions)))
	}
}
