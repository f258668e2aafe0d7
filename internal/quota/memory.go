package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryTracker is the in-process fallback. Counters are keyed by
// tenant and UTC month, so stale months fall out of scope by key change
// rather than by sweeping.
type MemoryTracker struct {
	mu    sync.Mutex
	usage map[string]int
	now   func() time.Time
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		usage: make(map[string]int),
		now:   time.Now,
	}
}

func (t *MemoryTracker) CheckQuota(ctx context.Context, tenantID, planTier string) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	return statusFor(t.usage[monthKey(tenantID, now)], quotaFor(planTier), now), nil
}

func (t *MemoryTracker) CanProceed(ctx context.Context, tenantID, planTier string, queryCount int) (bool, Status, error) {
	status, err := t.CheckQuota(ctx, tenantID, planTier)
	if err != nil {
		return false, Status{}, err
	}
	return status.Remaining >= queryCount, status, nil
}

func (t *MemoryTracker) RecordUsage(ctx context.Context, tenantID string, queryCount int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.usage[monthKey(tenantID, t.now())] += queryCount
	return nil
}
