// Package validator checks product batches before they are written. It
// returns every field problem at once, keyed by the product's position.
package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/ingestion"
)

const (
	MaxBatchSize         = 1000
	maxIDLength          = 128
	maxTitleLength       = 1024
	maxDescriptionLength = 65536
	maxCategoryLength    = 256
	maxRate              = 5
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest checks batch size, required fields, lengths,
// rating bounds and duplicate ids.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	switch n := len(req.Products); {
	case n == 0:
		errs["products"] = "at least one product is required"
	case n > MaxBatchSize:
		errs["products"] = fmt.Sprintf("at most %d products per request", MaxBatchSize)
	}

	seen := make(map[string]int, len(req.Products))
	for i, p := range req.Products {
		field := func(name string) string { return fmt.Sprintf("products[%d].%s", i, name) }

		id := strings.TrimSpace(p.ID)
		switch {
		case id == "":
			errs[field("id")] = "id is required"
		case len(id) > maxIDLength:
			errs[field("id")] = fmt.Sprintf("id must be at most %d characters", maxIDLength)
		default:
			if first, dup := seen[id]; dup {
				errs[field("id")] = fmt.Sprintf("duplicates products[%d]", first)
			} else {
				seen[id] = i
			}
		}

		title := strings.TrimSpace(p.Title)
		if title == "" {
			errs[field("title")] = "title is required"
		} else if utf8.RuneCountInString(title) > maxTitleLength {
			errs[field("title")] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
		}
		if utf8.RuneCountInString(p.Description) > maxDescriptionLength {
			errs[field("description")] = fmt.Sprintf("description must be at most %d characters", maxDescriptionLength)
		}
		if utf8.RuneCountInString(p.Category) > maxCategoryLength {
			errs[field("category")] = fmt.Sprintf("category must be at most %d characters", maxCategoryLength)
		}
		if p.Price < 0 {
			errs[field("price")] = "price must not be negative"
		}
		if p.Rating != nil {
			if p.Rating.Rate < 0 || p.Rating.Rate > maxRate {
				errs[field("rating.rate")] = fmt.Sprintf("rate must be between 0 and %d", maxRate)
			}
			if p.Rating.Count < 0 {
				errs[field("rating.count")] = "count must not be negative"
			}
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
