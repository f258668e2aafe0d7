package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uniclass/search-gateway/internal/models"
)

func sampleResults() []models.SearchResult {
	return []models.SearchResult{
		{Code: "Pr_30_59_24", Title: "Door handles", Table: "Pr", Similarity: 0.93},
		{Code: "Pr_30_59_25", Title: "Door knobs", Table: "Pr", Similarity: 0.88},
	}
}

func TestMemoryCache_SetThenGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10)

	require.NoError(t, c.Set(ctx, "door handle", 5, sampleResults(), "tenant-a", "free"))

	res, err := c.Get(ctx, "door handle", 5, "tenant-a")
	require.NoError(t, err)
	assert.True(t, res.Hit)
	assert.Equal(t, sampleResults(), res.Results)
	assert.False(t, res.CachedAt.IsZero())
}

func TestMemoryCache_NormalizesQueryForKeying(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10)

	require.NoError(t, c.Set(ctx, "door handle", 5, sampleResults(), "tenant-a", "free"))

	res, err := c.Get(ctx, "  DOOR Handle  ", 5, "tenant-a")
	require.NoError(t, err)
	assert.True(t, res.Hit, "case and surrounding whitespace should not defeat the cache")

	// A different top_k is a different entry.
	res, err = c.Get(ctx, "door handle", 10, "tenant-a")
	require.NoError(t, err)
	assert.False(t, res.Hit)
}

func TestMemoryCache_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10)

	require.NoError(t, c.Set(ctx, "door handle", 5, sampleResults(), "tenant-a", "free"))

	res, err := c.Get(ctx, "door handle", 5, "tenant-b")
	require.NoError(t, err)
	assert.False(t, res.Hit, "tenant-b must never read tenant-a's entries")
}

func TestMemoryCache_LazyExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10)

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "door handle", 5, sampleResults(), "tenant-a", "free"))

	now = base.Add(59 * time.Minute)
	res, err := c.Get(ctx, "door handle", 5, "tenant-a")
	require.NoError(t, err)
	assert.True(t, res.Hit)

	// Free plan TTL is one hour; at the boundary the entry is gone.
	now = base.Add(time.Hour)
	res, err = c.Get(ctx, "door handle", 5, "tenant-a")
	require.NoError(t, err)
	assert.False(t, res.Hit)
}

func TestMemoryCache_EvictsOldestOnOverflow(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(3)

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		now = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, c.Set(ctx, fmt.Sprintf("query %d", i), 5, sampleResults(), "tenant-a", "starter"))
	}

	// Reading the oldest entry does not protect it: eviction is FIFO.
	res, err := c.Get(ctx, "query 0", 5, "tenant-a")
	require.NoError(t, err)
	require.True(t, res.Hit)

	now = base.Add(10 * time.Second)
	require.NoError(t, c.Set(ctx, "query 3", 5, sampleResults(), "tenant-a", "starter"))

	res, err = c.Get(ctx, "query 0", 5, "tenant-a")
	require.NoError(t, err)
	assert.False(t, res.Hit, "oldest insertion should have been evicted")

	for i := 1; i <= 3; i++ {
		res, err = c.Get(ctx, fmt.Sprintf("query %d", i), 5, "tenant-a")
		require.NoError(t, err)
		assert.True(t, res.Hit, "query %d should survive", i)
	}
}

func TestMemoryCache_ClearTenant(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10)

	require.NoError(t, c.Set(ctx, "door handle", 5, sampleResults(), "tenant-a", "free"))
	require.NoError(t, c.Set(ctx, "concrete slab", 5, sampleResults(), "tenant-a", "free"))
	require.NoError(t, c.Set(ctx, "door handle", 5, sampleResults(), "tenant-b", "free"))

	deleted, err := c.ClearTenant(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	res, err := c.Get(ctx, "door handle", 5, "tenant-b")
	require.NoError(t, err)
	assert.True(t, res.Hit)
}
