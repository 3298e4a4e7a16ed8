// internal/storage/cache.go
package storage

import (
	"context"
	"sync"
	"time"

	"cardwise/internal/domain"
)

const DefaultCatalogueTTL = 5 * time.Minute

// CachedCatalogue wraps a CatalogueStorage with an explicit TTL. Rules change
// rarely, so serving a slightly stale read-only snapshot is fine; each batch
// still gets a consistent snapshot for its whole run. Invalidate forces the
// next load to hit storage (used by ingest after a catalogue replace).
type CachedCatalogue struct {
	src CatalogueStorage
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	snapshot *domain.Catalogue
	loadedAt time.Time
}

func NewCachedCatalogue(src CatalogueStorage, ttl time.Duration) *CachedCatalogue {
	if ttl <= 0 {
		ttl = DefaultCatalogueTTL
	}
	return &CachedCatalogue{src: src, ttl: ttl, now: time.Now}
}

func (c *CachedCatalogue) LoadCatalogue(ctx context.Context) (*domain.Catalogue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil && c.now().Sub(c.loadedAt) < c.ttl {
		return c.snapshot, nil
	}

	cat, err := c.src.LoadCatalogue(ctx)
	if err != nil {
		// A stale snapshot is not served on failure: a batch either gets a
		// catalogue or a clear top-level error.
		return nil, err
	}
	c.snapshot = cat
	c.loadedAt = c.now()
	return cat, nil
}

func (c *CachedCatalogue) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
}
