/*
scheduler.go - Report refresh scheduler

PURPOSE:
  Time-relative outputs (next/last duty, ongoing sickness, rule date windows,
  expiry countdowns) change at midnight even when no data changes. The
  scheduler ticks in the background and rebuilds the cached report whenever
  the date or the store revision has moved, so the first request of the day
  does not pay for the computation.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick is a cheap staleness check; only stale reports are recomputed
  - Errors are logged and retried on the next tick

USAGE:
  scheduler := NewRefreshScheduler(reports, time.Minute, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - report.go: The cache being refreshed
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RefreshScheduler keeps the cached report current.
type RefreshScheduler struct {
	Reports       *ReportService
	CheckInterval time.Duration
	Enabled       bool
	Logger        *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRefreshScheduler creates a scheduler; interval <= 0 disables it.
func NewRefreshScheduler(reports *ReportService, interval time.Duration, logger *zap.Logger) *RefreshScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshScheduler{
		Reports:       reports,
		CheckInterval: interval,
		Enabled:       interval > 0,
		Logger:        logger,
	}
}

// Start begins the scheduler.
func (rs *RefreshScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("refresh scheduler disabled")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)
	go rs.run(rs.ticker, rs.stop)

	rs.Logger.Info("refresh scheduler started", zap.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight refresh.
func (rs *RefreshScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Logger.Info("refresh scheduler stopped")
	}
}

func (rs *RefreshScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Warm the cache immediately.
	rs.RunNow()

	for {
		select {
		case <-ticker.C:
			rs.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow performs one staleness check and refresh.
func (rs *RefreshScheduler) RunNow() {
	refreshed, err := rs.Reports.Refresh(context.Background())
	if err != nil {
		rs.Logger.Warn("report refresh failed", zap.Error(err))
		return
	}
	if refreshed {
		rs.Logger.Debug("report refreshed by scheduler")
	}
}

// NextRunTime returns when the next scheduled check will occur.
func (rs *RefreshScheduler) NextRunTime() time.Time {
	return time.Now().Add(rs.CheckInterval)
}
