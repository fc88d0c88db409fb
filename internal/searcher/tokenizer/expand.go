package tokenizer

import "strings"

// SynonymSource looks up the alternates declared for a normalised term.
type SynonymSource interface {
	Lookup(term string) []string
}

// Expander produces the equivalent forms a query token should match.
type Expander struct {
	synonyms SynonymSource
}

// NewExpander creates an Expander backed by the given synonym source. A nil
// source disables synonym expansion.
func NewExpander(synonyms SynonymSource) *Expander {
	return &Expander{synonyms: synonyms}
}

// Expand returns the deduplicated, non-empty variants of a raw token: the
// normalised base, its naive singular/plural toggle, hyphen variants and the
// normalised synonyms of the base. A token that normalises to nothing has no
// variants.
//
// The plural rule only strips or appends a trailing "s"; "boxes" and
// "categories" are not handled.
func (e *Expander) Expand(raw string) []string {
	base := Normalize(raw)
	if base == "" {
		return nil
	}
	variants := make([]string, 0, 8)
	seen := make(map[string]struct{}, 8)
	add := func(v string) {
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		variants = append(variants, v)
	}

	add(base)
	if strings.HasSuffix(base, "s") {
		add(strings.TrimSuffix(base, "s"))
	} else {
		add(base + "s")
	}
	// Normalize already turns hyphens into spaces; these stay so the
	// variant set does not change if the normalisation rules do.
	add(strings.ReplaceAll(base, "-", ""))
	add(strings.ReplaceAll(base, "-", " "))

	if e.synonyms != nil {
		for _, syn := range e.synonyms.Lookup(base) {
			add(Normalize(syn))
		}
	}
	return variants
}
