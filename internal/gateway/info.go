package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/uniclass/search-gateway/internal/models"
)

// InfoRequest selects which read-only view to return.
type InfoRequest struct {
	Action string `json:"action"`
}

// HandleInfo serves the read-only views: index statistics and the caller's
// current-month usage. Neither consumes quota.
func (s *Service) HandleInfo(ctx context.Context, req *InfoRequest, tenant *models.Tenant) (any, *Error) {
	switch req.Action {
	case "stats":
		stats, err := s.engine.Stats(ctx)
		if err != nil {
			return nil, NewError(CodeServiceUnavailable, "Search engine unavailable")
		}
		return stats, nil

	case "usage":
		status, err := s.quota.CheckQuota(ctx, tenant.ID, tenant.PlanTier)
		if err != nil {
			return nil, NewError(CodeQuotaUnavailable, "Usage tracking unavailable, please retry")
		}
		return map[string]any{
			"period":          "current_month",
			"plan_tier":       tenant.PlanTier,
			"total_queries":   status.Used,
			"quota_limit":     status.Limit,
			"quota_remaining": status.Remaining,
			"quota_reset":     status.ResetDate.Format(time.RFC3339),
			"percentage_used": status.PercentageUsed,
		}, nil

	default:
		return nil, NewError(CodeInvalidAction, fmt.Sprintf("Unknown action: %s", req.Action))
	}
}
