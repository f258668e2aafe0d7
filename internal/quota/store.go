package quota

import (
	"context"
	"fmt"
	"time"
)

// UsageStore is the slice of the repository the tracker needs. The store
// scopes both calls to the current UTC month.
type UsageStore interface {
	GetMonthlyUsage(ctx context.Context, tenantID string) (int, error)
	IncrementMonthlyUsage(ctx context.Context, tenantID string, n int) error
}

// StoreTracker counts usage through the durable store.
type StoreTracker struct {
	store UsageStore
}

func NewStoreTracker(store UsageStore) *StoreTracker {
	return &StoreTracker{store: store}
}

func (t *StoreTracker) CheckQuota(ctx context.Context, tenantID, planTier string) (Status, error) {
	used, err := t.store.GetMonthlyUsage(ctx, tenantID)
	if err != nil {
		return Status{}, fmt.Errorf("monthly usage lookup: %w", err)
	}
	return statusFor(used, quotaFor(planTier), time.Now()), nil
}

func (t *StoreTracker) CanProceed(ctx context.Context, tenantID, planTier string, queryCount int) (bool, Status, error) {
	status, err := t.CheckQuota(ctx, tenantID, planTier)
	if err != nil {
		return false, Status{}, err
	}
	return status.Remaining >= queryCount, status, nil
}

func (t *StoreTracker) RecordUsage(ctx context.Context, tenantID string, queryCount int) error {
	return t.store.IncrementMonthlyUsage(ctx, tenantID, queryCount)
}
