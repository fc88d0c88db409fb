package tiers

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/synonyms"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/tokenizer"
	"github.com/stretchr/testify/assert"
)

func newBuilder(opts ...Option) *Builder {
	return New(ranker.New(tokenizer.NewExpander(synonyms.Default())), opts...)
}

func ids(products []catalog.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func storefront() []catalog.Product {
	return []catalog.Product{
		{ID: "1", Title: "Blue Denim Jacket", Category: "men"},
		{ID: "2", Title: "Red Jacket", Category: "women"},
		{ID: "3", Title: "Sneakers", Category: "men", Rating: &catalog.Rating{Rate: 4.5, Count: 10}},
	}
}

func assertDisjoint(t *testing.T, r Result) {
	t.Helper()
	seen := map[string]string{}
	for name, tier := range map[string][]catalog.Product{"primary": r.Primary, "global": r.Global, "suggestions": r.Suggestions} {
		for _, p := range tier {
			if other, ok := seen[p.ID]; ok {
				t.Errorf("product %s in both %s and %s", p.ID, other, name)
			}
			seen[p.ID] = name
		}
	}
}

func TestBuildCategoryMatch(t *testing.T) {
	r := newBuilder().Build(storefront(), "jacket", "men")
	assert.Equal(t, []string{"1"}, ids(r.Primary))
	assert.Empty(t, r.Global)
	assert.Equal(t, []string{"3", "2"}, ids(r.Suggestions))
	assert.Equal(t, OutcomePrimary, r.Outcome("jacket"))
	assertDisjoint(t, r)
}

func TestBuildMisspelledQuery(t *testing.T) {
	r := newBuilder().Build(storefront(), "jaket", "")
	assert.Empty(t, r.Primary)
	assert.Empty(t, r.Global)
	assert.Equal(t, []string{"3", "1", "2"}, ids(r.Suggestions))
	assert.Equal(t, OutcomeSuggestionsOnly, r.Outcome("jaket"))
}

func TestBuildBrowse(t *testing.T) {
	products := storefront()
	r := newBuilder().Build(products, "", "")
	assert.Equal(t, products, r.Primary)
	assert.NotNil(t, r.Global)
	assert.Empty(t, r.Global)
	assert.NotNil(t, r.Suggestions)
	assert.Empty(t, r.Suggestions)
	assert.Equal(t, OutcomeBrowse, r.Outcome(""))

	men := newBuilder().Build(products, "  ", "men")
	assert.Equal(t, []string{"1", "3"}, ids(men.Primary))
	assert.Empty(t, men.Suggestions)
}

func TestBuildGlobalFallback(t *testing.T) {
	r := newBuilder().Build(storefront(), "red", "men")
	assert.Empty(t, r.Primary)
	assert.Equal(t, []string{"2"}, ids(r.Global))
	assert.Equal(t, []string{"3", "1"}, ids(r.Suggestions))
	assert.Equal(t, OutcomeGlobal, r.Outcome("red"))
	assertDisjoint(t, r)
}

func TestBuildUnnormalizableQuery(t *testing.T) {
	r := newBuilder().Build(storefront(), "!!!", "men")
	assert.Equal(t, []string{"1", "3"}, ids(r.Primary))
	assert.Empty(t, r.Global)
	assert.Equal(t, []string{"2"}, ids(r.Suggestions))
	assert.Equal(t, OutcomePrimary, r.Outcome("!!!"))
	assertDisjoint(t, r)
}

func TestSuggestionsLimitedAndOrderedByRating(t *testing.T) {
	products := make([]catalog.Product, 0, 30)
	for i := range 30 {
		p := catalog.Product{ID: fmt.Sprintf("p%02d", i), Title: "Plain Item"}
		switch {
		case i%5 == 0:
			// no rating
		case i%2 == 0:
			p.Rating = &catalog.Rating{Rate: 4.0, Count: i}
		default:
			p.Rating = &catalog.Rating{Rate: float64(i%5) + 0.5, Count: 1}
		}
		products = append(products, p)
	}

	r := newBuilder().Build(products, "nothing matches", "")
	assert.Len(t, r.Suggestions, MaxSuggestions)
	for i := 1; i < len(r.Suggestions); i++ {
		prev, cur := r.Suggestions[i-1], r.Suggestions[i]
		if prev.Rate() == cur.Rate() {
			assert.GreaterOrEqual(t, prev.RatingCount(), cur.RatingCount())
		} else {
			assert.Greater(t, prev.Rate(), cur.Rate())
		}
	}
	assert.Equal(t, 4.5, r.Suggestions[0].Rate())
}

func TestSuggestionTiesKeepCatalogOrder(t *testing.T) {
	products := []catalog.Product{
		{ID: "a", Title: "A"},
		{ID: "b", Title: "B", Rating: &catalog.Rating{}},
		{ID: "c", Title: "C"},
		{ID: "d", Title: "D", Rating: &catalog.Rating{Rate: 3, Count: 2}},
		{ID: "e", Title: "E", Rating: &catalog.Rating{Rate: 3, Count: 7}},
	}
	r := newBuilder().Build(products, "zzz", "")
	assert.Equal(t, []string{"e", "d", "a", "b", "c"}, ids(r.Suggestions))
}

func TestWithSuggestionLimit(t *testing.T) {
	assert.Equal(t, 5, newBuilder(WithSuggestionLimit(5)).SuggestionLimit())
	assert.Equal(t, MaxSuggestions, newBuilder(WithSuggestionLimit(0)).SuggestionLimit())
	assert.Equal(t, MaxSuggestions, newBuilder(WithSuggestionLimit(50)).SuggestionLimit())

	r := newBuilder(WithSuggestionLimit(1)).Build(storefront(), "jaket", "")
	assert.Equal(t, []string{"3"}, ids(r.Suggestions))
}
