package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/kafka"
)

// ChangeType names what happened to a product.
type ChangeType string

const (
	ChangeUpsert ChangeType = "upsert"
	ChangeDelete ChangeType = "delete"
	// ChangeReload asks consumers to drop everything they derived from the
	// catalog, e.g. after a bulk import.
	ChangeReload ChangeType = "reload"
)

// ChangeEvent is published on the catalog-changes topic whenever products are
// written.
type ChangeEvent struct {
	Type      ChangeType `json:"type"`
	ProductID string     `json:"product_id,omitempty"`
	ChangedAt time.Time  `json:"changed_at"`
}

// Invalidator drops results derived from an older catalog.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Expirer is implemented by *Snapshot.
type Expirer interface {
	Invalidate()
}

// HandleChange returns a Kafka handler that expires the snapshot and then
// asks every invalidator to drop its derived results. Undecodable messages
// are logged and skipped so they do not block the partition. Invalidator
// failures are logged; the reloaded catalog has a new version, so stale cache
// entries are not read.
func HandleChange(snapshot Expirer, invalidators ...Invalidator) kafka.MessageHandler {
	logger := slog.Default().With("component", "catalog-changes")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ChangeEvent](value)
		if err != nil {
			logger.Warn("skipping undecodable change event", "key", string(key), "error", err)
			return nil
		}
		switch event.Type {
		case ChangeUpsert, ChangeDelete, ChangeReload:
		default:
			logger.Warn("skipping unknown change event", "type", event.Type, "product_id", event.ProductID)
			return nil
		}
		snapshot.Invalidate()
		for _, inv := range invalidators {
			if err := inv.Invalidate(ctx); err != nil {
				logger.Error("invalidation failed", "type", event.Type, "error", err)
			}
		}
		logger.Info("catalog change applied", "type", event.Type, "product_id", event.ProductID)
		return nil
	}
}

// Writer persists products. *Store implements it.
type Writer interface {
	UpsertProducts(ctx context.Context, products []Product) error
	DeleteProduct(ctx context.Context, id string) error
}

// EventPublisher sends events to the catalog-changes topic. *kafka.Producer
// implements it.
type EventPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Importer writes products to the store and announces the change.
type Importer struct {
	store     Writer
	publisher EventPublisher
	now       func() time.Time
	logger    *slog.Logger
}

// NewImporter creates an Importer. publisher may be nil when change events
// are disabled.
func NewImporter(store Writer, publisher EventPublisher) *Importer {
	return &Importer{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		logger:    slog.Default().With("component", "catalog-importer"),
	}
}

// Import upserts products and publishes one upsert event per product. A
// publish failure is logged and not returned: the products are already
// stored and snapshots pick them up when their TTL expires.
func (im *Importer) Import(ctx context.Context, products []Product) error {
	if len(products) == 0 {
		return nil
	}
	for i, p := range products {
		if p.ID == "" {
			return fmt.Errorf("product at index %d has no id", i)
		}
	}
	if err := im.store.UpsertProducts(ctx, products); err != nil {
		return fmt.Errorf("importing %d products: %w", len(products), err)
	}
	if im.publisher == nil {
		return nil
	}
	changedAt := im.now().UTC()
	events := make([]kafka.Event, 0, len(products))
	for _, p := range products {
		events = append(events, kafka.Event{
			Key:   p.ID,
			Value: ChangeEvent{Type: ChangeUpsert, ProductID: p.ID, ChangedAt: changedAt},
		})
	}
	if err := im.publisher.PublishBatch(ctx, events); err != nil {
		im.logger.Error("failed to publish catalog changes, consumers will catch up on expiry",
			"count", len(events),
			"error", err,
		)
	}
	return nil
}

// Delete removes one product and publishes a delete event. Like Import, a
// publish failure is only logged.
func (im *Importer) Delete(ctx context.Context, id string) error {
	if err := im.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	if im.publisher == nil {
		return nil
	}
	event := kafka.Event{
		Key:   id,
		Value: ChangeEvent{Type: ChangeDelete, ProductID: id, ChangedAt: im.now().UTC()},
	}
	if err := im.publisher.PublishBatch(ctx, []kafka.Event{event}); err != nil {
		im.logger.Error("failed to publish catalog delete, consumers will catch up on expiry",
			"product_id", id,
			"error", err,
		)
	}
	return nil
}
