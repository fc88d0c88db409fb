package ranker

import (
	"context"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/tokenizer"
)

// Haystacks are the normalised text fields of a product used for matching.
// All is the combined "title desc cat" text padded with a leading and
// trailing space so whole words can be found with a substring search.
type Haystacks struct {
	Title string
	Desc  string
	Cat   string
	All   string

	titleWords []string
	descWords  []string
	catWords   []string
}

// BuildHaystacks projects a product into its normalised haystacks.
func BuildHaystacks(p catalog.Product) Haystacks {
	title := tokenizer.Normalize(p.Title)
	desc := tokenizer.Normalize(p.Description)
	cat := tokenizer.Normalize(p.Category)
	return Haystacks{
		Title:      title,
		Desc:       desc,
		Cat:        cat,
		All:        " " + tokenizer.Normalize(title+" "+desc+" "+cat) + " ",
		titleWords: strings.Fields(title),
		descWords:  strings.Fields(desc),
		catWords:   strings.Fields(cat),
	}
}

// HasWord reports whether v occurs in field bounded by spaces, so "art"
// matches "pop art print" but not "cart".
func HasWord(field, v string) bool {
	if v == "" {
		return false
	}
	return strings.Contains(" "+strings.TrimSpace(field)+" ", " "+v+" ")
}

// HasPrefix reports whether any word of field starts with v.
func HasPrefix(field, v string) bool {
	return anyWordHasPrefix(strings.Fields(field), v)
}

func anyWordHasPrefix(words []string, v string) bool {
	if v == "" {
		return false
	}
	for _, w := range words {
		if strings.HasPrefix(w, v) {
			return true
		}
	}
	return false
}

// haystackSource is the product text haystacks are derived from.
type haystackSource struct {
	title, desc, cat string
}

func sourceOf(p catalog.Product) haystackSource {
	return haystackSource{title: p.Title, desc: p.Description, cat: p.Category}
}

// HaystackCache memoises haystacks per product id. An entry is reused only
// while the product's title, description and category are unchanged, so an
// edit that keeps UpdatedAt still gets fresh haystacks. Products without an
// id are never cached. It is safe for concurrent use.
type HaystackCache struct {
	mu      sync.RWMutex
	entries map[string]cachedHaystacks
}

type cachedHaystacks struct {
	source    haystackSource
	haystacks Haystacks
}

// NewHaystackCache creates an empty HaystackCache.
func NewHaystackCache() *HaystackCache {
	return &HaystackCache{entries: make(map[string]cachedHaystacks)}
}

// Get returns the haystacks for p, building and storing them on a miss.
func (c *HaystackCache) Get(p catalog.Product) Haystacks {
	if p.ID == "" {
		return BuildHaystacks(p)
	}
	src := sourceOf(p)
	c.mu.RLock()
	entry, ok := c.entries[p.ID]
	c.mu.RUnlock()
	if ok && entry.source == src {
		return entry.haystacks
	}
	h := BuildHaystacks(p)
	c.mu.Lock()
	c.entries[p.ID] = cachedHaystacks{source: src, haystacks: h}
	c.mu.Unlock()
	return h
}

// Len returns the number of cached products.
func (c *HaystackCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Reset drops every cached entry.
func (c *HaystackCache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]cachedHaystacks)
	c.mu.Unlock()
}

// Invalidate drops every cached entry. It lets the cache be flushed by
// catalog change events alongside the tier cache.
func (c *HaystackCache) Invalidate(context.Context) error {
	c.Reset()
	return nil
}
