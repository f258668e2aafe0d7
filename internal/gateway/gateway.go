// Package gateway sequences the gatekeeping pipeline around the search
// engine: authenticate, rate-limit, quota-gate, then cache-or-search.
// Components are injected once at startup; the orchestrator never touches
// their backing stores directly.
package gateway

import (
	"context"
	"log"
	"time"

	"github.com/uniclass/search-gateway/internal/auth"
	"github.com/uniclass/search-gateway/internal/cache"
	"github.com/uniclass/search-gateway/internal/models"
	"github.com/uniclass/search-gateway/internal/quota"
	"github.com/uniclass/search-gateway/internal/ratelimit"
	"github.com/uniclass/search-gateway/internal/search"
)

const defaultSearchTimeout = 30 * time.Second

// UsageLogger records per-request usage rows for analytics. Best-effort:
// a lost row never fails a request.
type UsageLogger interface {
	LogUsage(ctx context.Context, entry *models.UsageLog) error
}

// Service is the request orchestrator.
type Service struct {
	keys          *auth.KeyService // nil when no key store is configured
	limiter       ratelimit.Limiter
	quota         quota.Tracker
	cache         cache.Cache
	engine        search.Engine
	logs          UsageLogger // nil when no database is configured
	legacyAPIKey  string
	searchTimeout time.Duration
}

type ServiceConfig struct {
	Keys          *auth.KeyService
	Limiter       ratelimit.Limiter
	Quota         quota.Tracker
	Cache         cache.Cache
	Engine        search.Engine
	Logs          UsageLogger
	LegacyAPIKey  string
	SearchTimeout time.Duration
}

func NewService(cfg ServiceConfig) *Service {
	timeout := cfg.SearchTimeout
	if timeout <= 0 {
		timeout = defaultSearchTimeout
	}
	return &Service{
		keys:          cfg.Keys,
		limiter:       cfg.Limiter,
		quota:         cfg.Quota,
		cache:         cfg.Cache,
		engine:        cfg.Engine,
		logs:          cfg.Logs,
		legacyAPIKey:  cfg.LegacyAPIKey,
		searchTimeout: timeout,
	}
}

// Authenticate resolves a bearer credential to a tenant. The legacy shared
// secret maps to a synthetic professional-tier tenant with no key record.
func (s *Service) Authenticate(ctx context.Context, authorization string) (*models.Tenant, *models.APIKey, *Error) {
	if authorization == "" {
		return nil, nil, NewError(CodeAuthRequired, "Authentication required")
	}

	token := auth.ExtractBearer(authorization)
	if token == "" {
		return nil, nil, NewError(CodeAuthRequired, "Authentication required")
	}

	if s.legacyAPIKey != "" && token == s.legacyAPIKey {
		return &models.Tenant{
			ID:                 "legacy",
			Name:               "Legacy API key",
			PlanTier:           models.PlanProfessional,
			SubscriptionStatus: models.StatusActive,
		}, nil, nil
	}

	if s.keys == nil {
		return nil, nil, NewError(CodeInvalidAPIKey, "Invalid API key")
	}

	tenant, key, err := s.keys.ValidateKey(ctx, token)
	if err != nil {
		return nil, nil, NewError(CodeInvalidAPIKey, err.Error())
	}
	return tenant, key, nil
}

// logUsage is fire-and-forget; the request has already been answered.
func (s *Service) logUsage(tenant *models.Tenant, key *models.APIKey, endpoint string, queryCount int, cacheHit bool, latencyMs, statusCode int) {
	if s.logs == nil {
		return
	}

	keyID := ""
	if key != nil {
		keyID = key.ID
	}
	entry := &models.UsageLog{
		TenantID:   tenant.ID,
		APIKeyID:   keyID,
		Endpoint:   endpoint,
		QueryCount: queryCount,
		CacheHit:   cacheHit,
		LatencyMs:  latencyMs,
		StatusCode: statusCode,
	}

	go func() {
		if err := s.logs.LogUsage(context.Background(), entry); err != nil {
			log.Printf("Failed to log usage for tenant %s: %v", tenant.ID, err)
		}
	}()
}

func (s *Service) recordUsage(ctx context.Context, tenantID string, queryCount int) {
	if err := s.quota.RecordUsage(ctx, tenantID, queryCount); err != nil {
		// The request was already admitted; usage writes are not rolled back
		// or retried, only logged.
		log.Printf("Failed to record usage for tenant %s: %v", tenantID, err)
	}
}
