// Package tokenizer provides text normalisation and query-token expansion
// for the storefront search engine. It folds case and accents, strips
// punctuation, and expands a token into its plural, hyphen and synonym
// variants.
package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize converts text into its canonical comparable form: lower-cased,
// accent-free, apostrophes dropped, separators turned into single spaces and
// everything outside [a-z0-9 ] removed. It is total and idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ToLower(text)

	// transform chains keep internal state, so each call builds its own.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	if folded, _, err := transform.String(stripMarks, text); err == nil {
		text = folded
	}

	var sb strings.Builder
	sb.Grow(len(text))
	pendingSpace := false
	for _, r := range text {
		switch {
		case isApostrophe(r):
			continue
		case isSeparator(r), unicode.IsSpace(r):
			pendingSpace = true
		case ('a' <= r && r <= 'z') || ('0' <= r && r <= '9'):
			if pendingSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			pendingSpace = false
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Tokens returns the whitespace-separated words of the normalised text.
func Tokens(text string) []string {
	return strings.Fields(Normalize(text))
}

func isApostrophe(r rune) bool {
	switch r {
	case '\'', '‘', '’', '`', 'ʼ':
		return true
	}
	return false
}

func isSeparator(r rune) bool {
	switch r {
	case '&', '/', '|', '\\', '.', '_', '-':
		return true
	}
	return false
}
