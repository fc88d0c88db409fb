// Package tiers builds the three result tiers shown by the storefront: the
// ranked matches inside the selected category, a global fallback when that
// category has no match, and rating-ordered suggestions so the page is never
// empty.
package tiers

import (
	"cmp"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/ranker"
)

// MaxSuggestions is the largest number of suggestions a Result carries.
const MaxSuggestions = 12

// Outcome classifies which tier answered a query.
type Outcome string

const (
	OutcomeBrowse          Outcome = "browse"
	OutcomePrimary         Outcome = "primary"
	OutcomeGlobal          Outcome = "global"
	OutcomeSuggestionsOnly Outcome = "suggestions_only"
)

// Result holds the three tiers. Product ids never repeat across tiers, and
// Global is only populated when Primary is empty.
type Result struct {
	Primary     []catalog.Product `json:"primary"`
	Global      []catalog.Product `json:"global"`
	Suggestions []catalog.Product `json:"suggestions"`
}

// Outcome reports which tier answered the query that produced r. A query
// with an empty search is a browse.
func (r Result) Outcome(query string) Outcome {
	switch {
	case strings.TrimSpace(query) == "":
		return OutcomeBrowse
	case len(r.Primary) > 0:
		return OutcomePrimary
	case len(r.Global) > 0:
		return OutcomeGlobal
	default:
		return OutcomeSuggestionsOnly
	}
}

type Option func(*Builder)

// WithSuggestionLimit caps the suggestions tier. Values outside
// (0, MaxSuggestions] fall back to MaxSuggestions.
func WithSuggestionLimit(n int) Option {
	return func(b *Builder) {
		if n > 0 && n <= MaxSuggestions {
			b.suggestionLimit = n
		}
	}
}

type Builder struct {
	ranker          *ranker.Ranker
	suggestionLimit int
}

func New(r *ranker.Ranker, opts ...Option) *Builder {
	b := &Builder{
		ranker:          r,
		suggestionLimit: MaxSuggestions,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SuggestionLimit returns the configured suggestions cap.
func (b *Builder) SuggestionLimit() int {
	return b.suggestionLimit
}

// Build computes the tiers for query within category ("all" or "" for no
// constraint).
func (b *Builder) Build(products []catalog.Product, query, category string) Result {
	result := Result{
		Primary:     b.ranker.FilterAndRank(products, query, category),
		Global:      []catalog.Product{},
		Suggestions: []catalog.Product{},
	}
	if strings.TrimSpace(query) == "" {
		return result
	}
	if len(result.Primary) == 0 {
		result.Global = b.ranker.FilterAndRank(products, query, "")
	}
	result.Suggestions = b.suggest(products, result.Primary, result.Global)
	return result
}

// suggest returns the best-rated products not already shown, ordered by
// rating then rating count; ties keep catalog order.
func (b *Builder) suggest(products []catalog.Product, shown ...[]catalog.Product) []catalog.Product {
	excluded := make(map[string]struct{})
	for _, tier := range shown {
		for id := range catalog.IDs(tier) {
			excluded[id] = struct{}{}
		}
	}
	rest := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if _, ok := excluded[p.ID]; ok {
			continue
		}
		rest = append(rest, p)
	}
	slices.SortStableFunc(rest, byRating)
	if len(rest) > b.suggestionLimit {
		rest = rest[:b.suggestionLimit]
	}
	return rest
}

func byRating(a, b catalog.Product) int {
	if c := cmp.Compare(b.Rate(), a.Rate()); c != 0 {
		return c
	}
	return cmp.Compare(b.RatingCount(), a.RatingCount())
}
