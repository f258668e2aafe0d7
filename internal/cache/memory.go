package cache

import (
	"context"
	"sync"
	"time"

	"github.com/uniclass/search-gateway/internal/models"
)

// MemoryCache is the in-process fallback. Expiry is lazy: entries are
// validated at read time and never swept. When full, the entry with the
// oldest cached_at is evicted. FIFO by insertion, not LRU; reads do not
// refresh recency.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	maxEntries int
	now        func() time.Time
}

type memoryEntry struct {
	results   []models.SearchResult
	cachedAt  time.Time
	expiresAt time.Time
}

func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryCache{
		entries:    make(map[string]*memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func memoryKey(tenantID, query string, topK int) string {
	return tenantID + ":" + queryDigest(query, topK)
}

func (c *MemoryCache) Get(ctx context.Context, query string, topK int, tenantID string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := memoryKey(tenantID, query, topK)
	entry, ok := c.entries[key]
	if !ok {
		return Result{}, nil
	}

	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return Result{}, nil
	}

	return Result{Hit: true, Results: entry.results, CachedAt: entry.cachedAt}, nil
}

func (c *MemoryCache) Set(ctx context.Context, query string, topK int, results []models.SearchResult, tenantID, planTier string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	now := c.now()
	c.entries[memoryKey(tenantID, query, topK)] = &memoryEntry{
		results:   results,
		cachedAt:  now,
		expiresAt: now.Add(ttlFor(planTier)),
	}
	return nil
}

func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.cachedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.cachedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// ClearTenant removes every cached entry for a tenant.
func (c *MemoryCache) ClearTenant(ctx context.Context, tenantID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := tenantID + ":"
	deleted := 0
	for key := range c.entries {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
			deleted++
		}
	}
	return deleted, nil
}
