// Package quota enforces per-tenant monthly query ceilings. The durable
// backend counts through the repository's atomic upsert; the in-memory
// fallback keeps month-keyed counters. Unlike the rate limiter, quota is
// fail-closed: a store error is surfaced rather than admitting unmetered
// traffic.
package quota

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/uniclass/search-gateway/internal/models"
)

// Monthly query quotas by plan tier.
var PlanQuotas = map[string]int{
	models.PlanFree:         1000,
	models.PlanStarter:      10000,
	models.PlanProfessional: 100000,
	models.PlanEnterprise:   1000000,
}

// Status is a tenant's quota position within the current UTC month.
type Status struct {
	Used           int       `json:"used"`
	Limit          int       `json:"limit"`
	Remaining      int       `json:"remaining"`
	PercentageUsed float64   `json:"percentage_used"`
	ResetDate      time.Time `json:"reset_date"`
	IsExceeded     bool      `json:"is_exceeded"`
}

// Headers renders the quota response headers.
func (s Status) Headers() map[string]string {
	return map[string]string{
		"X-Quota-Limit":     strconv.Itoa(s.Limit),
		"X-Quota-Remaining": strconv.Itoa(s.Remaining),
		"X-Quota-Reset":     s.ResetDate.Format(time.RFC3339),
	}
}

// Tracker checks and records monthly usage. RecordUsage is called exactly
// once per admitted request; the tracker does not deduplicate. CanProceed
// returns the status it decided on so callers can report quota headers
// without a second lookup.
type Tracker interface {
	CheckQuota(ctx context.Context, tenantID, planTier string) (Status, error)
	CanProceed(ctx context.Context, tenantID, planTier string, queryCount int) (bool, Status, error)
	RecordUsage(ctx context.Context, tenantID string, queryCount int) error
}

func quotaFor(planTier string) int {
	if limit, ok := PlanQuotas[planTier]; ok {
		return limit
	}
	return PlanQuotas[models.PlanFree]
}

func statusFor(used, limit int, now time.Time) Status {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}

	percentage := 0.0
	if limit > 0 {
		percentage = math.Round(float64(used)/float64(limit)*100*100) / 100
	}

	return Status{
		Used:           used,
		Limit:          limit,
		Remaining:      remaining,
		PercentageUsed: percentage,
		ResetDate:      nextMonthStart(now),
		IsExceeded:     used >= limit,
	}
}

// nextMonthStart is the first instant of the next calendar month, UTC.
// time.Date normalizes month 13 to January of the next year.
func nextMonthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

func monthKey(tenantID string, now time.Time) string {
	return tenantID + ":" + now.UTC().Format("2006-01")
}
