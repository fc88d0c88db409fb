package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		phrase string
		terms  []string
	}{
		{"empty", "", "", []string{}},
		{"whitespace", "   ", "", []string{}},
		{"punctuation only", "!!!", "", []string{}},
		{"single", "Jacket", "jacket", []string{"jacket"}},
		{"normalised", "Men's  T-Shirt", "mens t shirt", []string{"mens", "t", "shirt"}},
		{"accents", "Café Crème", "cafe creme", []string{"cafe", "creme"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Parse(tt.query)
			assert.Equal(t, tt.query, plan.RawQuery)
			assert.Equal(t, tt.phrase, plan.Phrase)
			assert.Equal(t, tt.terms, plan.Terms)
			assert.Equal(t, len(tt.terms) == 0, plan.Empty())
		})
	}
}
