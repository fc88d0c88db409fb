// Package parser turns a raw storefront query into a QueryPlan: the
// normalised phrase used for the phrase bonus and the tokens that must each
// be matched.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/tokenizer"
)

type QueryPlan struct {
	RawQuery string
	Phrase   string
	Terms    []string
}

func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		RawQuery: query,
		Terms:    make([]string, 0),
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	plan.Phrase = tokenizer.Normalize(query)
	plan.Terms = strings.Fields(plan.Phrase)
	return plan
}

// Empty reports whether the query has nothing to match on.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}
