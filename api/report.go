/*
report.go - Cached reconciliation report

PURPOSE:
  Every read endpoint serves from one reconcile.Report. Computing it means
  loading a full snapshot and running the engine, so the result is cached
  and keyed on (store revision, today). A write to the store or a new
  calendar day makes the cache stale; the next read or scheduler tick
  recomputes it from scratch.

STALENESS:
  A report is never patched. It always describes exactly one snapshot, and
  is cached under that snapshot's revision, so a write that lands during a
  computation just makes the next caller recompute.

SEE ALSO:
  - scheduler.go: Keeps the cache warm as time passes
  - reconcile/reconcile.go: The engine run
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/warp/roster-engine/generic"
	"github.com/warp/roster-engine/reconcile"
	"go.uber.org/zap"
)

type reportKey struct {
	revision uint64
	today    generic.Date
}

// ReportService computes and caches the report for the current store state.
type ReportService struct {
	Store    generic.Store
	Clock    generic.Clock
	Settings reconcile.Settings
	Logger   *zap.Logger

	mu         sync.Mutex
	cached     *reconcile.Report
	key        reportKey
	computedAt time.Time
}

// NewReportService creates a service reading from store.
func NewReportService(store generic.Store, settings reconcile.Settings, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{Store: store, Clock: generic.SystemClock{}, Settings: settings, Logger: logger}
}

// Today is the date the next report is computed for.
func (s *ReportService) Today() generic.Date {
	return generic.Today(s.Clock)
}

// Current returns the cached report, recomputing it when stale.
func (s *ReportService) Current(ctx context.Context) (reconcile.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.refreshLocked(ctx); err != nil {
		return reconcile.Report{}, err
	}
	return *s.cached, nil
}

// Refresh recomputes the report if it is stale and reports whether it did.
func (s *ReportService) Refresh(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

// Invalidate drops the cached report.
func (s *ReportService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
}

// ComputedAt is when the cached report was built; zero when none is cached.
func (s *ReportService) ComputedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		return time.Time{}
	}
	return s.computedAt
}

func (s *ReportService) refreshLocked(ctx context.Context) (bool, error) {
	want := reportKey{revision: s.Store.Revision(), today: s.Today()}
	if s.cached != nil && s.key == want {
		return false, nil
	}

	snap, err := generic.LoadSnapshot(ctx, s.Store)
	if err != nil {
		return false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	start := time.Now()
	report := reconcile.Run(reconcile.FromSnapshot(snap, want.today, s.Settings))

	s.cached = &report
	s.key = reportKey{revision: snap.Revision, today: want.today}
	s.computedAt = time.Now()
	s.Logger.Info("report computed",
		zap.Uint64("revision", snap.Revision),
		zap.Stringer("today", want.today),
		zap.Int("files", len(snap.Files)),
		zap.Int("staff", len(report.Facts)),
		zap.Int("needs_rtw", len(report.NeedsRTW)),
		zap.Int("diagnostics", len(report.Diagnostics)),
		zap.Duration("took", time.Since(start)))
	return true, nil
}
