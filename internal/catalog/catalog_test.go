package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	mu       sync.Mutex
	products []Product
	err      error
	calls    atomic.Int32
	delay    time.Duration
}

func (f *fakeLoader) ListProducts(ctx context.Context) ([]Product, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]Product(nil), f.products...), nil
}

func (f *fakeLoader) set(products []Product, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products = products
	f.err = err
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

var noRetry = resilience.RetryConfig{MaxAttempts: 1}

func sample() []Product {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Product{
		{ID: "1", Title: "Cotton Tee", Category: "men's clothing", UpdatedAt: t0},
		{ID: "2", Title: "Gold Ring", Category: "jewelery", UpdatedAt: t0},
		{ID: "3", Title: "Silk Blouse", Category: "women's clothing", UpdatedAt: t0},
		{ID: "4", Title: "Silver Ring", Category: "jewelery", UpdatedAt: t0},
		{ID: "5", Title: "Gift Card", UpdatedAt: t0},
	}
}

func TestProductRatingAccessors(t *testing.T) {
	var p Product
	assert.Zero(t, p.Rate())
	assert.Zero(t, p.RatingCount())

	p.Rating = &Rating{Rate: 4.5, Count: 120}
	assert.Equal(t, 4.5, p.Rate())
	assert.Equal(t, 120, p.RatingCount())
}

func TestSnapshotServesWithinTTL(t *testing.T) {
	loader := &fakeLoader{products: sample()}
	c := &clock{t: time.Now()}
	s := NewSnapshot(loader, WithTTL(time.Minute), WithClock(c.now), WithRetry(noRetry))

	products, v1, err := s.Products(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 5)

	c.t = c.t.Add(30 * time.Second)
	_, v2, err := s.Products(context.Background())
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.EqualValues(t, 1, loader.calls.Load())

	c.t = c.t.Add(time.Minute)
	_, _, err = s.Products(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, loader.calls.Load())
}

func TestSnapshotUnavailableWithoutCopy(t *testing.T) {
	loader := &fakeLoader{err: errors.New("connection refused")}
	s := NewSnapshot(loader, WithRetry(noRetry))

	_, _, err := s.Products(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrCatalogUnavailable)
	assert.False(t, s.Loaded())
	assert.Error(t, s.Ping(context.Background()))
}

func TestSnapshotServesStaleCopyOnFailure(t *testing.T) {
	loader := &fakeLoader{products: sample()}
	c := &clock{t: time.Now()}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := NewSnapshot(loader, WithTTL(time.Second), WithClock(c.now), WithRetry(noRetry), WithMetrics(m))
	require.NoError(t, s.Warm(context.Background()))

	loader.set(nil, errors.New("timeout"))
	c.t = c.t.Add(2 * time.Second)

	products, _, err := s.Products(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 5)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CatalogReloadsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CatalogReloadsTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CatalogReloadsTotal.WithLabelValues("stale")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.CatalogProducts))
}

func TestSnapshotInvalidateReloads(t *testing.T) {
	loader := &fakeLoader{products: sample()}
	s := NewSnapshot(loader, WithTTL(time.Hour), WithRetry(noRetry))
	require.NoError(t, s.Warm(context.Background()))
	v := s.Version()
	assert.Equal(t, Fingerprint(sample()), v)

	s.Invalidate()
	_, v2, err := s.Products(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, loader.calls.Load())
	assert.Equal(t, v, v2, "unchanged products keep the version")
}

func TestSnapshotVersionChangesWithContent(t *testing.T) {
	loader := &fakeLoader{products: sample()}
	c := &clock{t: time.Now()}
	s := NewSnapshot(loader, WithTTL(time.Second), WithClock(c.now), WithRetry(noRetry))
	require.NoError(t, s.Warm(context.Background()))
	v := s.Version()

	loader.set(sample()[:3], nil)
	c.t = c.t.Add(2 * time.Second)
	products, v2, err := s.Products(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 3)
	assert.NotEqual(t, v, v2)
}

func TestSnapshotVersionSeesEditWithSameTimestamp(t *testing.T) {
	loader := &fakeLoader{products: sample()}
	s := NewSnapshot(loader, WithTTL(time.Hour), WithRetry(noRetry))
	require.NoError(t, s.Warm(context.Background()))
	before := s.Version()

	edited := sample()
	edited[0].Title = "Linen Shirt"
	loader.set(edited, nil)
	s.Invalidate()
	_, after, err := s.Products(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestSnapshotVersionIsSharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	a := NewSnapshot(&fakeLoader{products: sample()}, WithRetry(noRetry))
	b := NewSnapshot(&fakeLoader{products: sample()}, WithRetry(noRetry))
	other := NewSnapshot(&fakeLoader{products: sample()[1:]}, WithRetry(noRetry))

	_, va, err := a.Products(ctx)
	require.NoError(t, err)
	_, vb, err := b.Products(ctx)
	require.NoError(t, err)
	_, vo, err := other.Products(ctx)
	require.NoError(t, err)

	assert.Equal(t, va, vb, "same catalog, same version in every process")
	assert.NotEqual(t, va, vo)
	assert.NotZero(t, va)
}

func TestFingerprintCoversEveryField(t *testing.T) {
	base := sample()[:1]
	base[0].Rating = &Rating{Rate: 4, Count: 10}
	v := Fingerprint(base)

	edits := map[string]func(p *Product){
		"description": func(p *Product) { p.Description = "soft" },
		"category":    func(p *Product) { p.Category = "women's clothing" },
		"price":       func(p *Product) { p.Price = 9.99 },
		"image":       func(p *Product) { p.Image = "tee.png" },
		"rate":        func(p *Product) { p.Rating = &Rating{Rate: 3, Count: 10} },
		"no rating":   func(p *Product) { p.Rating = nil },
		"updated at":  func(p *Product) { p.UpdatedAt = p.UpdatedAt.Add(time.Second) },
	}
	for name, edit := range edits {
		t.Run(name, func(t *testing.T) {
			p := base[0]
			edit(&p)
			assert.NotEqual(t, v, Fingerprint([]Product{p}))
		})
	}
	pair := sample()[:2]
	assert.NotEqual(t, Fingerprint(pair), Fingerprint([]Product{pair[1], pair[0]}), "order matters")
}

func TestSnapshotInvalidateDuringLoadStaysPending(t *testing.T) {
	loader := &fakeLoader{products: sample(), delay: 50 * time.Millisecond}
	s := NewSnapshot(loader, WithTTL(time.Hour), WithRetry(noRetry))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = s.Products(context.Background())
	}()
	time.Sleep(10 * time.Millisecond)
	s.Invalidate()
	<-done

	_, _, err := s.Products(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, loader.calls.Load(), "the invalidation is not absorbed by the load it raced")
}

func TestSnapshotCollapsesConcurrentLoads(t *testing.T) {
	loader := &fakeLoader{products: sample(), delay: 20 * time.Millisecond}
	s := NewSnapshot(loader, WithRetry(noRetry))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.Products(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, loader.calls.Load())
}

func TestSnapshotCategoriesFirstSeenOrder(t *testing.T) {
	s := NewSnapshot(&fakeLoader{products: sample()}, WithRetry(noRetry))
	got, err := s.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"men's clothing", "jewelery", "women's clothing"}, got)
}

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return c.err
}

type countingExpirer struct{ calls int }

func (c *countingExpirer) Invalidate() { c.calls++ }

func TestHandleChange(t *testing.T) {
	exp := &countingExpirer{}
	inv := &countingInvalidator{err: errors.New("redis down")}
	handler := HandleChange(exp, inv)
	ctx := context.Background()

	require.NoError(t, handler(ctx, []byte("1"), []byte(`{"type":"upsert","product_id":"1"}`)))
	assert.Equal(t, 1, exp.calls)
	assert.Equal(t, 1, inv.calls)

	require.NoError(t, handler(ctx, nil, []byte(`not json`)))
	require.NoError(t, handler(ctx, nil, []byte(`{"type":"rename"}`)))
	assert.Equal(t, 1, exp.calls)

	require.NoError(t, handler(ctx, nil, []byte(`{"type":"reload"}`)))
	assert.Equal(t, 2, exp.calls)
}

type fakeWriter struct {
	stored  []Product
	deleted []string
}

func (f *fakeWriter) UpsertProducts(_ context.Context, products []Product) error {
	f.stored = append(f.stored, products...)
	return nil
}

func (f *fakeWriter) DeleteProduct(_ context.Context, id string) error {
	for _, p := range f.stored {
		if p.ID == id {
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return apperrors.ErrProductNotFound
}

type fakePublisher struct {
	events []kafka.Event
	err    error
}

func (f *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, events...)
	return nil
}

func TestImporterStoresAndAnnounces(t *testing.T) {
	w := &fakeWriter{}
	pub := &fakePublisher{}
	im := NewImporter(w, pub)

	require.NoError(t, im.Import(context.Background(), sample()[:2]))
	assert.Len(t, w.stored, 2)
	require.Len(t, pub.events, 2)
	assert.Equal(t, "1", pub.events[0].Key)
	ev, ok := pub.events[0].Value.(ChangeEvent)
	require.True(t, ok)
	assert.Equal(t, ChangeUpsert, ev.Type)
}

func TestImporterRejectsMissingID(t *testing.T) {
	w := &fakeWriter{}
	err := NewImporter(w, nil).Import(context.Background(), []Product{{Title: "x"}})
	assert.Error(t, err)
	assert.Empty(t, w.stored)
}

func TestImporterToleratesPublishFailure(t *testing.T) {
	w := &fakeWriter{}
	im := NewImporter(w, &fakePublisher{err: errors.New("broker down")})
	assert.NoError(t, im.Import(context.Background(), sample()[:1]))
	assert.Len(t, w.stored, 1)
}

func TestImporterDelete(t *testing.T) {
	w := &fakeWriter{stored: sample()[:1]}
	pub := &fakePublisher{}
	im := NewImporter(w, pub)

	require.NoError(t, im.Delete(context.Background(), "1"))
	assert.Equal(t, []string{"1"}, w.deleted)
	require.Len(t, pub.events, 1)
	assert.Equal(t, ChangeDelete, pub.events[0].Value.(ChangeEvent).Type)

	err := im.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrProductNotFound)
	assert.Len(t, pub.events, 1, "failed deletes are not announced")
}
