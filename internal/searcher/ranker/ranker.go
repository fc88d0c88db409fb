// Package ranker scores storefront products against a query and filters and
// orders a catalog by relevance. Scoring rewards whole-word matches by field
// (title over description over category), word-prefix matches, and an exact
// phrase bonus.
package ranker

import (
	"slices"

	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/tokenizer"
)

// CategoryAll is the selector value meaning "no category constraint".
const CategoryAll = "all"

const (
	phraseBonus = 20
	titleWord   = 8
	descWord    = 5
	catWord     = 4
	titlePrefix = 3
	descPrefix  = 2

	// minPrefixLen is the shortest variant allowed to match word prefixes.
	minPrefixLen = 3
)

type ScoredProduct struct {
	Product catalog.Product `json:"product"`
	Score   int             `json:"score"`
}

type Option func(*Ranker)

// WithHaystackCache memoises product haystacks across calls.
func WithHaystackCache(c *HaystackCache) Option {
	return func(r *Ranker) {
		r.cache = c
	}
}

type Ranker struct {
	expander *tokenizer.Expander
	cache    *HaystackCache
}

func New(expander *tokenizer.Expander, opts ...Option) *Ranker {
	r := &Ranker{expander: expander}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Score returns the relevance of p for query; 0 when the query is empty.
func (r *Ranker) Score(p catalog.Product, query string) int {
	plan := parser.Parse(query)
	if plan.Empty() {
		return 0
	}
	return r.score(r.haystacks(p), r.expandTerms(plan), plan.Phrase)
}

// Matches reports whether every query term has at least one variant that is
// a whole word of the combined haystack or, when long enough, a prefix of a
// title, description or category word. An empty plan matches everything.
func (r *Ranker) Matches(p catalog.Product, plan *parser.QueryPlan) bool {
	return matches(r.haystacks(p), r.expandTerms(plan))
}

// FilterAndRank applies the category gate and query matching to products and
// orders the survivors by descending score. The category gate is an exact,
// case-sensitive comparison; "all" and "" disable it. With an empty query
// the gated list is returned in catalog order.
func (r *Ranker) FilterAndRank(products []catalog.Product, query, category string) []catalog.Product {
	if category == CategoryAll {
		category = ""
	}
	base := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if category != "" && p.Category != category {
			continue
		}
		base = append(base, p)
	}

	plan := parser.Parse(query)
	if plan.Empty() {
		return base
	}

	variants := r.expandTerms(plan)
	scored := make([]ScoredProduct, 0, len(base))
	for _, p := range base {
		h := r.haystacks(p)
		if !matches(h, variants) {
			continue
		}
		scored = append(scored, ScoredProduct{Product: p, Score: r.score(h, variants, plan.Phrase)})
	}
	slices.SortStableFunc(scored, func(a, b ScoredProduct) int {
		return b.Score - a.Score
	})

	result := make([]catalog.Product, len(scored))
	for i, sp := range scored {
		result[i] = sp.Product
	}
	return result
}

func (r *Ranker) haystacks(p catalog.Product) Haystacks {
	if r.cache != nil {
		return r.cache.Get(p)
	}
	return BuildHaystacks(p)
}

func (r *Ranker) expandTerms(plan *parser.QueryPlan) [][]string {
	variants := make([][]string, 0, len(plan.Terms))
	for _, term := range plan.Terms {
		variants = append(variants, r.expander.Expand(term))
	}
	return variants
}

func (r *Ranker) score(h Haystacks, variants [][]string, phrase string) int {
	score := 0
	if phrase != "" && HasWord(h.All, phrase) {
		score += phraseBonus
	}
	for _, termVariants := range variants {
		for _, v := range termVariants {
			if HasWord(h.Title, v) {
				score += titleWord
			}
			if HasWord(h.Desc, v) {
				score += descWord
			}
			if HasWord(h.Cat, v) {
				score += catWord
			}
			if len(v) >= minPrefixLen {
				if anyWordHasPrefix(h.titleWords, v) {
					score += titlePrefix
				}
				if anyWordHasPrefix(h.descWords, v) {
					score += descPrefix
				}
			}
		}
	}
	return score
}

func matches(h Haystacks, variants [][]string) bool {
	for _, termVariants := range variants {
		if !termMatches(h, termVariants) {
			return false
		}
	}
	return true
}

func termMatches(h Haystacks, variants []string) bool {
	for _, v := range variants {
		if HasWord(h.All, v) {
			return true
		}
		if len(v) >= minPrefixLen &&
			(anyWordHasPrefix(h.titleWords, v) ||
				anyWordHasPrefix(h.descWords, v) ||
				anyWordHasPrefix(h.catWords, v)) {
			return true
		}
	}
	return false
}
