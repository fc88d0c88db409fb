// Package cache stores computed result tiers in Redis so repeated queries
// against the same catalog skip ranking. Keys carry the catalog content
// version, so searchers sharing one Redis only share entries for the same
// catalog.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/tiers"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/tokenizer"
	pkgredis "github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

// Client is the subset of *redis.Client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one tier computation.
type Key struct {
	Query           string
	Category        string
	CatalogVersion  uint64
	SuggestionLimit int
}

// Stats is a snapshot of the cache counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

type TierCache struct {
	client Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client Client, ttl time.Duration) *TierCache {
	return &TierCache{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "tier-cache"),
	}
}

// Get returns the cached tiers for k. Redis errors and undecodable entries
// count as misses.
func (c *TierCache) Get(ctx context.Context, k Key) (*tiers.Result, bool) {
	key := buildKey(k)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var result tiers.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", k.Query, "key", key)
	return &result, true
}

func (c *TierCache) Set(ctx context.Context, k Key, result *tiers.Result) {
	key := buildKey(k)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached tiers for k or computes and stores them.
// Concurrent misses for the same key share one computation. The boolean
// reports a cache hit.
func (c *TierCache) GetOrCompute(ctx context.Context, k Key, compute func() (*tiers.Result, error)) (*tiers.Result, bool, error) {
	if result, ok := c.Get(ctx, k); ok {
		return result, true, nil
	}
	key := buildKey(k)
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, k, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*tiers.Result), false, nil
}

// Invalidate deletes every cached tier result.
func (c *TierCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *TierCache) Stats() Stats {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// buildKey hashes the inputs the tiers depend on. Tiers only see the
// normalized query, so "Men's" and "mens" share an entry; a blank query is
// kept apart from one that normalizes to nothing because only the latter
// gets fallback tiers.
func buildKey(k Key) string {
	category := k.Category
	if category == ranker.CategoryAll {
		category = ""
	}
	browse := strings.TrimSpace(k.Query) == ""
	raw := fmt.Sprintf("q=%s|browse=%t|cat=%s|v=%d|limit=%d",
		tokenizer.Normalize(k.Query), browse, category, k.CatalogVersion, k.SuggestionLimit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
