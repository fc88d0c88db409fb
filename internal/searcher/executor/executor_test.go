package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/synonyms"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/tiers"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	products []catalog.Product
	version  uint64
	err      error
}

func (s *staticSource) Products(context.Context) ([]catalog.Product, uint64, error) {
	return s.products, s.version, s.err
}

type memRedis struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memRedis) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (m *memRedis) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memRedis) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, strings.TrimSuffix(pattern, "*")) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func storefront() []catalog.Product {
	return []catalog.Product{
		{ID: "1", Title: "Blue Denim Jacket", Category: "men"},
		{ID: "2", Title: "Red Jacket", Category: "women"},
		{ID: "3", Title: "Sneakers", Category: "men", Rating: &catalog.Rating{Rate: 4.5, Count: 10}},
	}
}

func newBuilder() *tiers.Builder {
	return tiers.New(ranker.New(tokenizer.NewExpander(synonyms.Default())))
}

func ids(products []catalog.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestExecuteBuildsTiers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e := New(&staticSource{products: storefront(), version: 7}, newBuilder(), WithMetrics(m))

	res, err := e.Execute(context.Background(), "jacket", "men")
	require.NoError(t, err)
	assert.Equal(t, tiers.OutcomePrimary, res.Outcome)
	assert.EqualValues(t, 7, res.CatalogVersion)
	assert.False(t, res.CacheHit)
	assert.Equal(t, []string{"1"}, ids(res.Tiers.Primary))
	assert.Empty(t, res.Tiers.Global)
	assert.Equal(t, []string{"3", "2"}, ids(res.Tiers.Suggestions))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("primary")))
}

func TestExecuteOutcomes(t *testing.T) {
	e := New(&staticSource{products: storefront()}, newBuilder())
	tests := []struct {
		query, category string
		want            tiers.Outcome
	}{
		{"", "", tiers.OutcomeBrowse},
		{"red", "women", tiers.OutcomePrimary},
		{"red", "men", tiers.OutcomeGlobal},
		{"jaket", "", tiers.OutcomeSuggestionsOnly},
	}
	for _, tt := range tests {
		res, err := e.Execute(context.Background(), tt.query, tt.category)
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.Outcome, "%q in %q", tt.query, tt.category)
	}
}

func TestExecuteUsesCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	src := &staticSource{products: storefront(), version: 1}
	tc := cache.New(&memRedis{data: map[string][]byte{}}, time.Minute)
	e := New(src, newBuilder(), WithCache(tc), WithMetrics(m))

	first, err := e.Execute(context.Background(), "Jacket", "all")
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := e.Execute(context.Background(), "jacket", "")
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, ids(first.Tiers.Primary), ids(second.Tiers.Primary))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))

	src.version = 2
	third, err := e.Execute(context.Background(), "jacket", "")
	require.NoError(t, err)
	assert.False(t, third.CacheHit, "a new catalog version misses")
}

func TestExecuteCatalogUnavailable(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	src := &staticSource{err: errors.Join(apperrors.ErrCatalogUnavailable, errors.New("no rows"))}
	e := New(src, newBuilder(), WithMetrics(m))

	_, err := e.Execute(context.Background(), "jacket", "")
	assert.ErrorIs(t, err, apperrors.ErrCatalogUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("error")))
}
