package facade

import (
	"sync"
	"time"

	"github.com/memoryctl/memoryctl/internal/recordstore"
)

const defaultCacheTTL = 5 * time.Second

// readCache is a short-TTL, process-local cache over the full memory
// listing: amortizes repeated scans during bursty API traffic and is
// invalidated on every write, per spec's documented facade contract.
type readCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	records   []*recordstore.Record
	fetchedAt time.Time
}

func newReadCache(ttl time.Duration) *readCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &readCache{ttl: ttl}
}

func (c *readCache) get(fetch func() ([]*recordstore.Record, error)) ([]*recordstore.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.records != nil && time.Since(c.fetchedAt) < c.ttl {
		return c.records, nil
	}

	records, err := fetch()
	if err != nil {
		return nil, err
	}
	c.records = records
	c.fetchedAt = time.Now()
	return records, nil
}

func (c *readCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
}
