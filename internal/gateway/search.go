package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uniclass/search-gateway/internal/models"
	"github.com/uniclass/search-gateway/internal/quota"
)

const (
	defaultTopK      = 10
	maxBatchParallel = 8
	ActionSingle     = "single"
	ActionBatch      = "batch"
)

// SearchRequest is the decoded body of a search call. Action is optional:
// when empty it is inferred from which of Query/Queries is set.
type SearchRequest struct {
	Action  string   `json:"action,omitempty"`
	Query   string   `json:"query,omitempty"`
	Queries []string `json:"queries,omitempty"`
	TopK    int      `json:"top_k,omitempty"`
}

// SearchResponse is the envelope for a single-query search.
type SearchResponse struct {
	Query     string                `json:"query"`
	TopK      int                   `json:"top_k"`
	Count     int                   `json:"count"`
	Results   []models.SearchResult `json:"results"`
	Cached    bool                  `json:"cached"`
	LatencyMs int                   `json:"latency_ms"`
}

// BatchSearchResponse is the envelope for a batch search. Results are keyed
// by query text; duplicate queries collapse to one entry. Cache hits are
// telemetry, logged but not returned.
type BatchSearchResponse struct {
	Count     int                              `json:"count"`
	TopK      int                              `json:"top_k"`
	Results   map[string][]models.SearchResult `json:"results"`
	LatencyMs int                              `json:"latency_ms"`
}

// HandleSearch runs the full pipeline for one request. The returned headers
// carry rate-limit and quota state and are set on the response even when the
// body is an error envelope.
func (s *Service) HandleSearch(ctx context.Context, req *SearchRequest, tenant *models.Tenant, key *models.APIKey) (any, map[string]string, *Error) {
	start := time.Now()

	action := req.Action
	if action == "" {
		if len(req.Queries) > 0 {
			action = ActionBatch
		} else {
			action = ActionSingle
		}
	}

	override := 0
	if key != nil && key.RateLimitOverride != nil {
		override = *key.RateLimitOverride
	}

	rl, err := s.limiter.Check(ctx, tenant.ID, tenant.PlanTier, override)
	if err != nil {
		// Limiter implementations fail open themselves; an error here means
		// a broken backend, treat as allowed.
		rl.Allowed = true
	}
	headers := rl.Headers()
	if !rl.Allowed {
		return nil, headers, NewError(CodeRateLimited,
			fmt.Sprintf("Rate limit exceeded. Plan allows %d requests per minute.", rl.Limit)).
			WithDetail("retry_after", rl.RetryAfter)
	}

	switch action {
	case ActionSingle:
		return s.handleSingle(ctx, req, tenant, key, headers, start)
	case ActionBatch:
		return s.handleBatch(ctx, req, tenant, key, headers, start)
	default:
		return nil, headers, NewError(CodeInvalidAction, fmt.Sprintf("Unknown action: %s", action))
	}
}

func (s *Service) handleSingle(ctx context.Context, req *SearchRequest, tenant *models.Tenant, key *models.APIKey, headers map[string]string, start time.Time) (any, map[string]string, *Error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, headers, NewError(CodeMissingParam, "Missing 'query'")
	}
	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	ok, status, err := s.quota.CanProceed(ctx, tenant.ID, tenant.PlanTier, 1)
	if err != nil {
		return nil, headers, NewError(CodeQuotaUnavailable, "Usage tracking unavailable, please retry")
	}
	mergeHeaders(headers, status.Headers())
	if !ok {
		return nil, headers, quotaExceededError(status)
	}

	if hit, cacheErr := s.cache.Get(ctx, query, topK, tenant.ID); cacheErr == nil && hit.Hit {
		s.recordUsage(ctx, tenant.ID, 1)
		resp := &SearchResponse{
			Query:     query,
			TopK:      topK,
			Count:     len(hit.Results),
			Results:   hit.Results,
			Cached:    true,
			LatencyMs: int(time.Since(start).Milliseconds()),
		}
		s.logUsage(tenant, key, "/search", 1, true, resp.LatencyMs, 200)
		return resp, headers, nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.searchTimeout)
	defer cancel()

	results, err := s.engine.Search(searchCtx, query, topK)
	if err != nil {
		log.Printf("Search failed for tenant %s: %v", tenant.ID, err)
		return nil, headers, NewError(CodeSearchFailed, "Search failed, please retry").
			WithDetail("reason", err.Error())
	}
	if results == nil {
		results = []models.SearchResult{}
	}

	s.cache.Set(ctx, query, topK, results, tenant.ID, tenant.PlanTier)
	s.recordUsage(ctx, tenant.ID, 1)

	resp := &SearchResponse{
		Query:     query,
		TopK:      topK,
		Count:     len(results),
		Results:   results,
		Cached:    false,
		LatencyMs: int(time.Since(start).Milliseconds()),
	}
	s.logUsage(tenant, key, "/search", 1, false, resp.LatencyMs, 200)
	return resp, headers, nil
}

// handleBatch gates the whole batch against quota atomically: either every
// query is admitted or none are, and usage is recorded once for the full N.
func (s *Service) handleBatch(ctx context.Context, req *SearchRequest, tenant *models.Tenant, key *models.APIKey, headers map[string]string, start time.Time) (any, map[string]string, *Error) {
	queries := make([]string, 0, len(req.Queries))
	for _, q := range req.Queries {
		if trimmed := strings.TrimSpace(q); trimmed != "" {
			queries = append(queries, trimmed)
		}
	}
	if len(queries) == 0 {
		return nil, headers, NewError(CodeMissingParam, "Missing 'queries'")
	}
	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	ok, status, err := s.quota.CanProceed(ctx, tenant.ID, tenant.PlanTier, len(queries))
	if err != nil {
		return nil, headers, NewError(CodeQuotaUnavailable, "Usage tracking unavailable, please retry")
	}
	mergeHeaders(headers, status.Headers())
	if !ok {
		return nil, headers, quotaExceededError(status).
			WithDetail("requested", len(queries))
	}

	var (
		mu        sync.Mutex
		results   = make(map[string][]models.SearchResult, len(queries))
		cacheHits int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBatchParallel)
	for _, query := range queries {
		query := query
		g.Go(func() error {
			if hit, cacheErr := s.cache.Get(gctx, query, topK, tenant.ID); cacheErr == nil && hit.Hit {
				mu.Lock()
				results[query] = hit.Results
				cacheHits++
				mu.Unlock()
				return nil
			}

			searchCtx, cancel := context.WithTimeout(gctx, s.searchTimeout)
			defer cancel()

			found, err := s.engine.Search(searchCtx, query, topK)
			if err != nil {
				return err
			}
			if found == nil {
				found = []models.SearchResult{}
			}
			s.cache.Set(gctx, query, topK, found, tenant.ID, tenant.PlanTier)

			mu.Lock()
			results[query] = found
			mu.Unlock()
			return nil
		})
	}

	// One failed query fails the batch, and no usage is recorded for it.
	if err := g.Wait(); err != nil {
		log.Printf("Batch search failed for tenant %s: %v", tenant.ID, err)
		return nil, headers, NewError(CodeSearchFailed, "Search failed, please retry").
			WithDetail("reason", err.Error())
	}

	s.recordUsage(ctx, tenant.ID, len(queries))

	resp := &BatchSearchResponse{
		Count:     len(queries),
		TopK:      topK,
		Results:   results,
		LatencyMs: int(time.Since(start).Milliseconds()),
	}
	s.logUsage(tenant, key, "/search", len(queries), cacheHits == len(queries), resp.LatencyMs, 200)
	return resp, headers, nil
}

func quotaExceededError(status quota.Status) *Error {
	return NewError(CodeQuotaExceeded,
		fmt.Sprintf("Monthly quota exceeded (%d/%d queries used)", status.Used, status.Limit)).
		WithDetail("quota_reset", status.ResetDate.Format(time.RFC3339))
}

func mergeHeaders(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}
