package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTracker_QuotaAccounting(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryTracker()

	status, err := tracker.CheckQuota(ctx, "tenant-a", "free")
	require.NoError(t, err)
	assert.Equal(t, 0, status.Used)
	assert.Equal(t, 1000, status.Limit)
	assert.Equal(t, 1000, status.Remaining)
	assert.False(t, status.IsExceeded)

	require.NoError(t, tracker.RecordUsage(ctx, "tenant-a", 998))

	status, err = tracker.CheckQuota(ctx, "tenant-a", "free")
	require.NoError(t, err)
	assert.Equal(t, 998, status.Used)
	assert.Equal(t, 2, status.Remaining)
	assert.InDelta(t, 99.8, status.PercentageUsed, 0.001)

	// Admission fails exactly when used + n would pass the limit.
	ok, decided, err := tracker.CanProceed(ctx, "tenant-a", "free", 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 998, decided.Used)

	ok, _, err = tracker.CanProceed(ctx, "tenant-a", "free", 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryTracker_BucketResetsAtMonthBoundary(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryTracker()

	now := time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }

	require.NoError(t, tracker.RecordUsage(ctx, "tenant-a", 500))

	status, err := tracker.CheckQuota(ctx, "tenant-a", "free")
	require.NoError(t, err)
	assert.Equal(t, 500, status.Used)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), status.ResetDate)

	// Crossing into September starts an empty bucket.
	now = time.Date(2026, 9, 1, 0, 1, 0, 0, time.UTC)
	status, err = tracker.CheckQuota(ctx, "tenant-a", "free")
	require.NoError(t, err)
	assert.Equal(t, 0, status.Used)
}

func TestMemoryTracker_DecemberRollsToJanuary(t *testing.T) {
	tracker := NewMemoryTracker()
	tracker.now = func() time.Time { return time.Date(2026, 12, 15, 10, 0, 0, 0, time.UTC) }

	status, err := tracker.CheckQuota(context.Background(), "tenant-a", "starter")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), status.ResetDate)
}

func TestMemoryTracker_TenantsAreIsolated(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryTracker()

	require.NoError(t, tracker.RecordUsage(ctx, "tenant-a", 1000))

	ok, _, err := tracker.CanProceed(ctx, "tenant-b", "free", 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

type erroringStore struct{}

func (erroringStore) GetMonthlyUsage(ctx context.Context, tenantID string) (int, error) {
	return 0, errors.New("connection refused")
}

func (erroringStore) IncrementMonthlyUsage(ctx context.Context, tenantID string, n int) error {
	return errors.New("connection refused")
}

type fixedStore struct{ used int }

func (s fixedStore) GetMonthlyUsage(ctx context.Context, tenantID string) (int, error) {
	return s.used, nil
}

func (s fixedStore) IncrementMonthlyUsage(ctx context.Context, tenantID string, n int) error {
	return nil
}

func TestStoreTracker_FailsClosedOnStoreError(t *testing.T) {
	tracker := NewStoreTracker(erroringStore{})

	_, err := tracker.CheckQuota(context.Background(), "tenant-a", "free")
	assert.Error(t, err)

	ok, _, err := tracker.CanProceed(context.Background(), "tenant-a", "free", 1)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestStoreTracker_StatusFromStoredUsage(t *testing.T) {
	tracker := NewStoreTracker(fixedStore{used: 60000})

	status, err := tracker.CheckQuota(context.Background(), "tenant-a", "professional")
	require.NoError(t, err)
	assert.Equal(t, 100000, status.Limit)
	assert.Equal(t, 40000, status.Remaining)
	assert.InDelta(t, 60.0, status.PercentageUsed, 0.001)
	assert.False(t, status.IsExceeded)
}

func TestStatus_ZeroLimit(t *testing.T) {
	status := statusFor(5, 0, time.Now())
	assert.Equal(t, 0.0, status.PercentageUsed)
	assert.Equal(t, 0, status.Remaining)
	assert.True(t, status.IsExceeded)
}
