package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

// Loader returns the full catalog in catalog order. *Store implements it.
type Loader interface {
	ListProducts(ctx context.Context) ([]Product, error)
}

const (
	defaultSnapshotTTL = 30 * time.Second
	defaultLoadTimeout = 5 * time.Second
)

// Snapshot keeps the catalog in memory and reloads it from a Loader when it
// expires or is invalidated. Concurrent reloads collapse into one load. When
// a reload fails the previous copy keeps being served.
type Snapshot struct {
	loader      Loader
	ttl         time.Duration
	loadTimeout time.Duration
	retry       resilience.RetryConfig
	breaker     *resilience.CircuitBreaker
	metrics     *metrics.Metrics
	now         func() time.Time
	group       singleflight.Group
	logger      *slog.Logger

	mu          sync.RWMutex
	products    []Product
	loaded      bool
	loadedAt    time.Time
	invalidated bool
	generation  uint64
	version     uint64
}

// SnapshotOption configures a Snapshot.
type SnapshotOption func(*Snapshot)

// WithTTL sets how long a loaded catalog is served before reloading.
func WithTTL(ttl time.Duration) SnapshotOption {
	return func(s *Snapshot) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLoadTimeout bounds a single load attempt.
func WithLoadTimeout(d time.Duration) SnapshotOption {
	return func(s *Snapshot) { s.loadTimeout = d }
}

// WithRetry sets the retry schedule for a reload.
func WithRetry(cfg resilience.RetryConfig) SnapshotOption {
	return func(s *Snapshot) { s.retry = cfg }
}

// WithMetrics reports catalog size, reloads and breaker state to m.
func WithMetrics(m *metrics.Metrics) SnapshotOption {
	return func(s *Snapshot) { s.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SnapshotOption {
	return func(s *Snapshot) { s.now = now }
}

// NewSnapshot creates an empty Snapshot over loader. Nothing is loaded until
// the first call to Products or Warm.
func NewSnapshot(loader Loader, opts ...SnapshotOption) *Snapshot {
	s := &Snapshot{
		loader:      loader,
		ttl:         defaultSnapshotTTL,
		loadTimeout: defaultLoadTimeout,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     time.Second,
		},
		now:    time.Now,
		logger: slog.Default().With("component", "catalog-snapshot"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.retry.Retryable = func(err error) bool {
		return !errors.Is(err, resilience.ErrCircuitOpen)
	}
	s.breaker = resilience.NewCircuitBreaker("catalog", resilience.CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     15 * time.Second,
		OnStateChange: func(name string, _, to resilience.State) {
			if s.metrics != nil {
				s.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return s
}

// Products returns the current catalog and its version. It reloads when the
// copy is missing, expired or invalidated. A failed reload falls back to the
// previous copy; with no copy at all the error wraps ErrCatalogUnavailable.
// The returned slice is shared and must not be modified.
func (s *Snapshot) Products(ctx context.Context) ([]Product, uint64, error) {
	s.mu.RLock()
	if s.freshLocked() {
		products, version := s.products, s.version
		s.mu.RUnlock()
		return products, version, nil
	}
	s.mu.RUnlock()

	err := s.reload(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err != nil {
		if !s.loaded {
			return nil, 0, fmt.Errorf("%w: %v", apperrors.ErrCatalogUnavailable, err)
		}
		s.logger.Warn("serving stale catalog", "version", s.version, "age", s.now().Sub(s.loadedAt), "error", err)
		s.recordReload("stale")
	}
	return s.products, s.version, nil
}

// Warm loads the catalog eagerly, returning the load error if any.
func (s *Snapshot) Warm(ctx context.Context) error {
	_, _, err := s.Products(ctx)
	return err
}

// Categories returns the distinct non-empty category tags in the order they
// first appear in the catalog.
func (s *Snapshot) Categories(ctx context.Context) ([]string, error) {
	products, _, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	return Categories(products), nil
}

// Invalidate marks the current copy expired so the next read reloads it.
func (s *Snapshot) Invalidate() {
	s.mu.Lock()
	s.invalidated = true
	s.generation++
	v := s.version
	s.mu.Unlock()
	s.logger.Info("catalog invalidated", "version", v)
}

// Version returns the fingerprint of the current catalog content, or 0 before
// the first load. Every process serving the same catalog reports the same
// version, so it can key results in a shared cache.
func (s *Snapshot) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len returns the number of products in the current copy.
func (s *Snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// Loaded reports whether a catalog copy is available.
func (s *Snapshot) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Ping reports an error until a catalog copy is available. It is used as a
// readiness check.
func (s *Snapshot) Ping(ctx context.Context) error {
	if s.Loaded() {
		return nil
	}
	return s.Warm(ctx)
}

func (s *Snapshot) fresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.freshLocked()
}

func (s *Snapshot) freshLocked() bool {
	return s.loaded && !s.invalidated && s.now().Sub(s.loadedAt) < s.ttl
}

func (s *Snapshot) reload(ctx context.Context) error {
	// A caller's cancellation must not fail the load shared with others.
	loadCtx := context.WithoutCancel(ctx)
	_, err, _ := s.group.Do("catalog", func() (any, error) {
		if s.fresh() {
			return nil, nil
		}
		start := s.now()
		startGeneration := s.currentGeneration()
		var products []Product
		err := resilience.Retry(loadCtx, "catalog-load", s.retry, func(ctx context.Context) error {
			return s.breaker.Execute(func() error {
				loaded, err := resilience.WithTimeout(ctx, s.loadTimeout, "catalog-load", s.loader.ListProducts)
				if err != nil {
					return err
				}
				products = loaded
				return nil
			})
		})
		if err != nil {
			s.recordReload("failure")
			return nil, err
		}
		s.store(products, startGeneration)
		s.recordReload("success")
		s.logger.Debug("catalog loaded", "products", len(products), "duration", s.now().Sub(start))
		return nil, nil
	})
	return err
}

// store installs a freshly loaded catalog. An invalidation that arrived while
// the load was in flight stays pending so the next read reloads again.
func (s *Snapshot) store(products []Product, startGeneration uint64) {
	version := Fingerprint(products)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == startGeneration {
		s.invalidated = false
	}
	if s.loaded && s.version != version {
		s.logger.Info("catalog changed", "from", s.version, "to", version)
	}
	s.version = version
	s.products = products
	s.loaded = true
	s.loadedAt = s.now()
	if s.metrics != nil {
		s.metrics.CatalogProducts.Set(float64(len(products)))
	}
}

func (s *Snapshot) recordReload(status string) {
	if s.metrics != nil {
		s.metrics.CatalogReloadsTotal.WithLabelValues(status).Inc()
	}
}

func (s *Snapshot) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Fingerprint hashes every product field in catalog order. Equal catalogs get
// equal fingerprints in any process; a change to any field, including an edit
// that keeps UpdatedAt, changes it. The result is never 0.
func Fingerprint(products []Product) uint64 {
	h := sha256.New()
	buf := make([]byte, 0, 256)
	for _, p := range products {
		buf = buf[:0]
		for _, f := range []string{p.ID, p.Title, p.Description, p.Category, p.Image} {
			buf = binary.AppendUvarint(buf, uint64(len(f)))
			buf = append(buf, f...)
		}
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(p.Price))
		if p.Rating != nil {
			buf = append(buf, 1)
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(p.Rating.Rate))
			buf = binary.AppendVarint(buf, int64(p.Rating.Count))
		} else {
			buf = append(buf, 0)
		}
		buf = binary.AppendVarint(buf, p.UpdatedAt.UnixMicro())
		h.Write(buf)
	}
	v := binary.BigEndian.Uint64(h.Sum(nil))
	if v == 0 {
		v = 1
	}
	return v
}
