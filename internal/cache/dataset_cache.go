// Package cache keeps recently derived tables in memory so that re-uploading
// the same file, or switching the variant preference back and forth, does not
// re-run the derivation pass.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/er-ddx-review-server/internal/domain"
)

// DefaultMaxItems bounds the cache when no size is configured
const DefaultMaxItems = 16

// DatasetCache maps upload content, delimiter and preference to a derived
// table.
// Derived tables are immutable, so cached values are shared, not copied.
type DatasetCache struct {
	entries *lru.Cache[string, *domain.DerivedTable]
}

// NewDatasetCache creates a cache holding at most maxItems tables
func NewDatasetCache(maxItems int) (*DatasetCache, error) {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	entries, err := lru.New[string, *domain.DerivedTable](maxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset cache: %w", err)
	}
	return &DatasetCache{entries: entries}, nil
}

// Key derives the cache key of an upload. The delimiter is part of the key
// because the same bytes split differently as CSV and TSV.
func Key(content []byte, comma rune, prefer domain.ModelVariant) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("%s:%U:%s", hex.EncodeToString(sum[:]), comma, prefer)
}

// Get returns the cached table for key
func (c *DatasetCache) Get(key string) (*domain.DerivedTable, bool) {
	return c.entries.Get(key)
}

// Add stores a derived table under key
func (c *DatasetCache) Add(key string, table *domain.DerivedTable) {
	c.entries.Add(key, table)
}

// Len returns the number of cached tables
func (c *DatasetCache) Len() int {
	return c.entries.Len()
}

// Purge drops every cached table
func (c *DatasetCache) Purge() {
	c.entries.Purge()
}
