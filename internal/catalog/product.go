// Package catalog defines the storefront product record and the services
// that load it: a PostgreSQL store, an in-process snapshot, and a Kafka
// consumer that reacts to catalog change events.
package catalog

import "time"

// Rating is the aggregated customer rating of a product.
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// Product is a storefront product record. Description, Rating and the
// display fields are optional; missing values read as their zero value.
type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Price       float64   `json:"price,omitempty"`
	Image       string    `json:"image,omitempty"`
	Rating      *Rating   `json:"rating,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// Rate returns the product's average rating, or 0 when it has none.
func (p Product) Rate() float64 {
	if p.Rating == nil {
		return 0
	}
	return p.Rating.Rate
}

// RatingCount returns the number of ratings, or 0 when it has none.
func (p Product) RatingCount() int {
	if p.Rating == nil {
		return 0
	}
	return p.Rating.Count
}

// IDs returns the set of product ids in products.
func IDs(products []Product) map[string]struct{} {
	ids := make(map[string]struct{}, len(products))
	for _, p := range products {
		ids[p.ID] = struct{}{}
	}
	return ids
}

// Categories returns the distinct non-empty category tags in the order they
// first appear in products.
func Categories(products []Product) []string {
	seen := make(map[string]struct{})
	categories := make([]string, 0, 8)
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	return categories
}
