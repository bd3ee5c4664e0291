package tasks

import (
	"slices"
	"sync"

	"github.com/desertthunder/shelfx/internal/models"
)

// CompareCache memoizes field comparisons by (work, provider, source, edition).
//
// Entries are never evicted; the cache lives as long as its orchestrator.
type CompareCache struct {
	mu      sync.RWMutex
	entries map[string][]models.CompareField
}

func NewCompareCache() *CompareCache {
	return &CompareCache{entries: make(map[string][]models.CompareField)}
}

func (c *CompareCache) Get(key models.CompareKey) ([]models.CompareField, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fields, ok := c.entries[key.String()]
	if !ok {
		return nil, false
	}
	return slices.Clone(fields), true
}

func (c *CompareCache) Put(key models.CompareKey, fields []models.CompareField) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = slices.Clone(fields)
}

// PutPrefetch stores the comparisons of a prefetch bundle and returns how many were stored.
//
// Bundle entries are keyed provider:source_id; the edition comes from the matching tile.
// Entries without a matching tile are ignored.
func (c *CompareCache) PutPrefetch(workID string, tiles []models.SourceTile, bundle map[string]models.CompareResponse) int {
	if len(bundle) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stored := 0
	for _, tile := range tiles {
		resp, ok := bundle[tile.PrefetchKey()]
		if !ok {
			continue
		}
		c.entries[models.NewCompareKey(workID, tile).String()] = slices.Clone(resp.Fields)
		stored++
	}
	return stored
}

func (c *CompareCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
