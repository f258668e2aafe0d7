// Package ratelimit enforces per-tenant sliding-window request limits.
// Two interchangeable backends: Redis (shared across instances, atomic via
// a Lua script) and in-memory (single instance fallback).
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/uniclass/search-gateway/internal/models"
)

// Window is the trailing interval a limit applies to.
const Window = 60 * time.Second

// Requests per window by plan tier.
var PlanLimits = map[string]int{
	models.PlanFree:         10,
	models.PlanStarter:      60,
	models.PlanProfessional: 300,
	models.PlanEnterprise:   1000,
}

// Result of a rate limit check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, set when denied
}

// Headers renders the standard rate limit response headers.
func (r Result) Headers() map[string]string {
	h := map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(r.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(r.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(r.ResetAt.Unix(), 10),
	}
	if !r.Allowed && r.RetryAfter > 0 {
		h["Retry-After"] = strconv.Itoa(r.RetryAfter)
	}
	return h
}

// Limiter admits or denies a request for a tenant under its plan limit.
// override, when > 0, replaces the plan limit (per-key override).
// Implementations are fail-open: a backing store error admits the request.
type Limiter interface {
	Check(ctx context.Context, tenantID, planTier string, override int) (Result, error)
}

func limitFor(planTier string, override int) int {
	if override > 0 {
		return override
	}
	if limit, ok := PlanLimits[planTier]; ok {
		return limit
	}
	return PlanLimits[models.PlanFree]
}
