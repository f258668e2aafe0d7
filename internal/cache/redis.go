package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/uniclass/search-gateway/internal/models"
)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &RedisCache{client: redis.NewClient(opt)}, nil
}

// redisEntry is the stored JSON body. Query and top_k ride along for
// debugging; the key alone identifies the entry.
type redisEntry struct {
	Results  []models.SearchResult `json:"results"`
	CachedAt time.Time             `json:"cached_at"`
	Query    string                `json:"query"`
	TopK     int                   `json:"top_k"`
}

func redisKey(tenantID, query string, topK int) string {
	return fmt.Sprintf("uniclass:cache:%s:%s", tenantID, queryDigest(query, topK))
}

func (c *RedisCache) Get(ctx context.Context, query string, topK int, tenantID string) (Result, error) {
	payload, err := c.client.Get(ctx, redisKey(tenantID, query, topK)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Result{}, nil
	}
	if err != nil {
		log.Printf("Cache get failed, treating as miss: %v", err)
		return Result{}, nil
	}

	var entry redisEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return Result{}, nil
	}

	return Result{Hit: true, Results: entry.Results, CachedAt: entry.CachedAt}, nil
}

func (c *RedisCache) Set(ctx context.Context, query string, topK int, results []models.SearchResult, tenantID, planTier string) error {
	payload, err := json.Marshal(redisEntry{
		Results:  results,
		CachedAt: time.Now().UTC(),
		Query:    query,
		TopK:     topK,
	})
	if err != nil {
		return err
	}

	// Expiry is the store's job: SET with TTL, no sweeping on our side.
	if err := c.client.Set(ctx, redisKey(tenantID, query, topK), payload, ttlFor(planTier)).Err(); err != nil {
		log.Printf("Cache set failed, dropping entry: %v", err)
	}
	return nil
}

// ClearTenant removes every cached entry for a tenant.
func (c *RedisCache) ClearTenant(ctx context.Context, tenantID string) (int, error) {
	pattern := fmt.Sprintf("uniclass:cache:%s:*", tenantID)

	var deleted int
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err == nil {
			deleted++
		}
	}
	return deleted, iter.Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
