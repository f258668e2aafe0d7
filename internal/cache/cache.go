// Package cache memoizes search results per tenant, query and top_k.
// Redis backend when available, bounded in-memory fallback otherwise.
// Both backends are fail-open: a store error reads as a miss and drops
// the write.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/uniclass/search-gateway/internal/models"
)

// TTL by plan tier. Free entries age out quickly; paid tiers keep a day.
var PlanTTLs = map[string]time.Duration{
	models.PlanFree:         time.Hour,
	models.PlanStarter:      24 * time.Hour,
	models.PlanProfessional: 24 * time.Hour,
	models.PlanEnterprise:   24 * time.Hour,
}

const DefaultTTL = time.Hour

// Result of a cache lookup.
type Result struct {
	Hit      bool
	Results  []models.SearchResult
	CachedAt time.Time
}

// Cache stores and retrieves search results. Entries written for one
// tenant are never readable by another.
type Cache interface {
	Get(ctx context.Context, query string, topK int, tenantID string) (Result, error)
	Set(ctx context.Context, query string, topK int, results []models.SearchResult, tenantID, planTier string) error
}

// queryDigest hashes the normalized query parameters. Lower-casing and
// trimming maximize hit rate across trivially different spellings.
func queryDigest(query string, topK int) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", normalized, topK)))
	return hex.EncodeToString(sum[:])[:16]
}

func ttlFor(planTier string) time.Duration {
	if ttl, ok := PlanTTLs[planTier]; ok {
		return ttl
	}
	return DefaultTTL
}
