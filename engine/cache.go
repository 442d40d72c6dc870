package engine

import (
	"time"

	"github.com/patrickmn/go-cache"

	"rowfilter/filter"
	"rowfilter/parser"
)

// FilterCache keeps compiled filter trees keyed by parse mode and rule text.
// Entries expire when unused for the configured TTL.
type FilterCache struct {
	items *cache.Cache
	ttl   time.Duration
}

// NewFilterCache creates a new cache; expired entries are swept every minute.
func NewFilterCache(ttl time.Duration) *FilterCache {
	return &FilterCache{
		items: cache.New(ttl, 1*time.Minute),
		ttl:   ttl,
	}
}

func cacheKey(mode parser.Mode, rule string) string {
	return mode.String() + "\x00" + rule
}

// Set stores a compiled tree. Trees are immutable, so they are shared as is.
func (c *FilterCache) Set(mode parser.Mode, rule string, f filter.Filter) {
	c.items.Set(cacheKey(mode, rule), f, c.ttl)
}

// Get retrieves a tree and extends its lifetime.
func (c *FilterCache) Get(mode parser.Mode, rule string) (filter.Filter, bool) {
	key := cacheKey(mode, rule)
	v, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	c.items.Set(key, v, c.ttl)
	return v.(filter.Filter), true
}

// Len returns the number of cached trees, including expired ones not yet swept.
func (c *FilterCache) Len() int {
	return c.items.ItemCount()
}

// Flush drops every entry.
func (c *FilterCache) Flush() {
	c.items.Flush()
}
