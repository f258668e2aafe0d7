package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the in-process fallback. Each tenant+plan key holds the
// timestamps of its in-window requests; the slice is pruned on every check.
// A single mutex serializes updates, which is what keeps concurrent checks
// from double-admitting past the limit.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

func (ml *MemoryLimiter) Check(ctx context.Context, tenantID, planTier string, override int) (Result, error) {
	limit := limitFor(planTier, override)
	key := tenantID + ":" + planTier

	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := ml.now()
	window := ml.windows[key][:0:0]
	for _, t := range ml.windows[key] {
		if now.Sub(t) < Window {
			window = append(window, t)
		}
	}

	if len(window) >= limit {
		ml.windows[key] = window
		resetAt := window[0].Add(Window)
		retryAfter := int(resetAt.Sub(now).Seconds()) + 1
		if retryAfter < 1 {
			retryAfter = 1
		}
		return Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfter,
		}, nil
	}

	window = append(window, now)
	ml.windows[key] = window

	resetAt := window[0].Add(Window)
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(window),
		ResetAt:   resetAt,
	}, nil
}
