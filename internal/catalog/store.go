package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/postgres"
)

// Schema creates the products table. position preserves catalog order, which
// is the order browse results and score ties are reported in.
const Schema = `
CREATE TABLE IF NOT EXISTS products (
	id           TEXT PRIMARY KEY,
	position     BIGSERIAL,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	price        DOUBLE PRECISION NOT NULL DEFAULT 0,
	image        TEXT NOT NULL DEFAULT '',
	rating_rate  DOUBLE PRECISION,
	rating_count INTEGER,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS products_position_idx ON products (position);
CREATE INDEX IF NOT EXISTS products_category_idx ON products (category);
`

const productColumns = `id, title, description, category, price, image, rating_rate, rating_count, updated_at`

// Store reads and writes the products table.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewStore creates a Store backed by PostgreSQL.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "catalog-store"),
	}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("applying catalog schema: %w", err)
	}
	return nil
}

// ListProducts returns every product in catalog order.
func (s *Store) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY position, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating product rows: %w", err)
	}
	return products, nil
}

// ListCategories returns the distinct category tags in the order they first
// appear in the catalog. Products without a category are skipped.
func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT category FROM products
		 WHERE category <> ''
		 GROUP BY category
		 ORDER BY MIN(position)`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scanning category row: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetProduct returns the product with the given id, or an error wrapping
// ErrProductNotFound.
func (s *Store) GetProduct(ctx context.Context, id string) (*Product, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id,
	)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, apperrors.ErrProductNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProducts inserts or updates products in one transaction. New products
// are appended to the end of the catalog; existing ones keep their position.
// updated_at is always stamped by the database; a client-supplied UpdatedAt
// is ignored.
func (s *Store) UpsertProducts(ctx context.Context, products []Product) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO products (id, title, description, category, price, image, rating_rate, rating_count, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			 ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				category = EXCLUDED.category,
				price = EXCLUDED.price,
				image = EXCLUDED.image,
				rating_rate = EXCLUDED.rating_rate,
				rating_count = EXCLUDED.rating_count,
				updated_at = now()`,
		)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()

		for _, p := range products {
			var rate sql.NullFloat64
			var count sql.NullInt64
			if p.Rating != nil {
				rate = sql.NullFloat64{Float64: p.Rating.Rate, Valid: true}
				count = sql.NullInt64{Int64: int64(p.Rating.Count), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx,
				p.ID, p.Title, p.Description, p.Category, p.Price, p.Image, rate, count,
			); err != nil {
				return fmt.Errorf("upserting product %s: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("products upserted", "count", len(products))
	return nil
}

// DeleteProduct removes a product. Deleting a missing product returns an
// error wrapping ErrProductNotFound.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	result, err := s.db.DB.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting product %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("product %s: %w", id, apperrors.ErrProductNotFound)
	}
	s.logger.Info("product deleted", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	var rate sql.NullFloat64
	var count sql.NullInt64
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Category, &p.Price, &p.Image, &rate, &count, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, err
	}
	if err != nil {
		return p, fmt.Errorf("scanning product row: %w", err)
	}
	if rate.Valid || count.Valid {
		p.Rating = &Rating{Rate: rate.Float64, Count: int(count.Int64)}
	}
	return p, nil
}
