package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/roster-engine/generic"
	"github.com/warp/roster-engine/generic/store"
	"github.com/warp/roster-engine/reconcile"
)

func newTestReports(t *testing.T) (*ReportService, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	reports := NewReportService(mem, reconcile.DefaultSettings(), nil)
	reports.Clock = generic.FixedClock{At: testToday.Time()}
	return reports, mem
}

func TestReportService_CachesPerRevisionAndDay(t *testing.T) {
	// GIVEN: A report service over an empty store
	reports, mem := newTestReports(t)
	ctx := context.Background()

	// WHEN: Refreshing twice without changes
	first, err := reports.Refresh(ctx)
	require.NoError(t, err)
	second, err := reports.Refresh(ctx)
	require.NoError(t, err)

	// THEN: Only the first refresh computes
	assert.True(t, first)
	assert.False(t, second)
	assert.False(t, reports.ComputedAt().IsZero())

	// WHEN: The store changes
	require.NoError(t, mem.SaveRule(ctx, generic.AlertRule{Column: "A", Operator: generic.OpIsBlank}))

	// THEN: The report is stale
	refreshed, err := reports.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, refreshed)

	// WHEN: The date moves on
	reports.Clock = generic.FixedClock{At: testToday.AddDays(1).Time()}

	// THEN: The report is recomputed for the new day
	report, err := reports.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, testToday.AddDays(1), report.Today)
}

func TestReportService_Invalidate(t *testing.T) {
	reports, _ := newTestReports(t)
	ctx := context.Background()

	_, err := reports.Current(ctx)
	require.NoError(t, err)
	reports.Invalidate()

	assert.True(t, reports.ComputedAt().IsZero())
	refreshed, err := reports.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, refreshed)
}

func TestRefreshScheduler_WarmsCache(t *testing.T) {
	// GIVEN: A scheduler with a short interval
	reports, _ := newTestReports(t)
	scheduler := NewRefreshScheduler(reports, 10*time.Millisecond, nil)

	// WHEN: Starting it
	scheduler.Start()
	defer scheduler.Stop()

	// THEN: The cache is filled without any request
	assert.Eventually(t, func() bool { return !reports.ComputedAt().IsZero() }, time.Second, 5*time.Millisecond)
}

func TestRefreshScheduler_Disabled(t *testing.T) {
	reports, _ := newTestReports(t)
	scheduler := NewRefreshScheduler(reports, 0, nil)

	scheduler.Start()
	scheduler.Stop()

	assert.False(t, scheduler.Enabled)
	assert.True(t, reports.ComputedAt().IsZero())

	// RunNow still works on demand
	scheduler.RunNow()
	assert.False(t, reports.ComputedAt().IsZero())
}
