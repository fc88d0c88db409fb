// Package synonyms holds the static synonym table used for query-token
// expansion. A Table is built once (from the built-in defaults or a YAML
// file) and never mutated afterwards, so it can be shared freely between
// goroutines.
package synonyms

import (
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/tokenizer"
	"gopkg.in/yaml.v3"
)

// Table maps a canonical normalised term to the alternate terms it should
// also match. Lookups use the literal key only: an entry without its reverse
// mapping does not match in the other direction.
type Table struct {
	entries map[string][]string
}

// defaultEntries is the storefront table. jewelry/jewelery are declared in
// both directions because the catalog uses the misspelt category tag.
var defaultEntries = map[string][]string{
	"shirt":    {"tee", "t-shirt", "tshirt", "top"},
	"tshirt":   {"shirt", "tee", "t-shirt"},
	"tee":      {"shirt", "tshirt", "t-shirt"},
	"top":      {"shirt", "blouse"},
	"blouse":   {"top", "shirt"},
	"jacket":   {"coat", "outerwear", "parka"},
	"coat":     {"jacket", "outerwear"},
	"pant":     {"trouser", "jean"},
	"trouser":  {"pant"},
	"jean":     {"denim", "pant"},
	"denim":    {"jean"},
	"shoe":     {"sneaker", "footwear", "trainer"},
	"sneaker":  {"shoe", "trainer"},
	"bag":      {"backpack", "purse", "handbag"},
	"backpack": {"bag", "rucksack"},
	"jewelry":  {"jewelery", "jewellery"},
	"jewelery": {"jewelry", "jewellery"},
	"ring":     {"band"},
	"bracelet": {"bangle"},
	"laptop":   {"notebook", "computer"},
	"phone":    {"smartphone", "mobile"},
	"tv":       {"television"},
	"monitor":  {"screen", "display"},
	"ssd":      {"drive", "storage"},
	"hdd":      {"drive", "storage", "hard drive"},
	"mens":     {"men", "male"},
	"womens":   {"women", "female", "ladies"},
}

// Default returns the built-in storefront synonym table.
func Default() Table {
	return New(defaultEntries)
}

// New builds a Table from raw entries. Keys are normalised so lookups by a
// normalised token find them; values are kept as written and normalised by
// the expander.
func New(entries map[string][]string) Table {
	t := Table{entries: make(map[string][]string, len(entries))}
	for key, alts := range entries {
		k := tokenizer.Normalize(key)
		if k == "" {
			continue
		}
		t.entries[k] = append(t.entries[k], alts...)
	}
	return t
}

// Load reads a YAML synonym file of the form
//
//	shirt: [tee, top]
//	jewelry: [jewelery]
func Load(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("reading synonyms file %s: %w", path, err)
	}
	var entries map[string][]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return Table{}, fmt.Errorf("parsing synonyms file %s: %w", path, err)
	}
	return New(entries), nil
}

// Merge returns a new Table holding t's entries with overlay's entries
// replacing any key they share.
func (t Table) Merge(overlay Table) Table {
	merged := Table{entries: make(map[string][]string, len(t.entries)+len(overlay.entries))}
	for k, v := range t.entries {
		merged.entries[k] = v
	}
	for k, v := range overlay.entries {
		merged.entries[k] = v
	}
	return merged
}

// Lookup returns the alternates declared for term. The returned slice must
// not be modified.
func (t Table) Lookup(term string) []string {
	return t.entries[term]
}

// Len returns the number of terms with declared synonyms.
func (t Table) Len() int {
	return len(t.entries)
}
