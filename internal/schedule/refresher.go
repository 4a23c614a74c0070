// Package schedule runs the periodic pipeline refresh: score and align
// whatever is pending, then recompute correlations. A Redis leader lock
// ensures exactly one instance does this per interval.
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"github.com/MessaoudiOussama/market-analytics/internal/logging"
	"github.com/MessaoudiOussama/market-analytics/internal/pipeline"
)

// runner is the slice of the pipeline service the refresher drives.
type runner interface {
	ProcessPending(ctx context.Context) (pipeline.RunSummary, error)
	Correlate(ctx context.Context, dims []domain.GroupDimension) ([]domain.CorrelationResult, error)
}

// lease is the leader lock surface the refresher needs.
type lease interface {
	TryAcquire(ctx context.Context) (bool, error)
	RenewLease(ctx context.Context) error
	Release(ctx context.Context) error
}

type Refresher struct {
	lock     lease
	service  runner
	dims     []domain.GroupDimension
	interval time.Duration
	clock    clockwork.Clock
	isLeader bool
}

func NewRefresher(lock lease, service runner, dims []domain.GroupDimension, interval time.Duration, clock clockwork.Clock) *Refresher {
	return &Refresher{
		lock:     lock,
		service:  service,
		dims:     dims,
		interval: interval,
		clock:    clock,
	}
}

// Run blocks until ctx is cancelled, attempting a refresh every interval.
// Losing the leader lease skips the tick; it never stops the loop.
func (r *Refresher) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.release()
			return
		case <-ticker.Chan():
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	leader, err := r.ensureLeadership(ctx)
	if err != nil {
		logging.WithError(err).Error("Leader election failed")
		return
	}
	if !leader {
		slog.Debug("Not leader, skipping refresh")
		return
	}

	summary, err := r.service.ProcessPending(ctx)
	if err != nil {
		logging.WithError(err).Error("Scheduled refresh failed")
		return
	}

	results, err := r.service.Correlate(ctx, r.dims)
	if err != nil {
		logging.WithError(err).Error("Scheduled correlation recompute failed")
		return
	}

	slog.Info("Scheduled refresh complete",
		"scored", summary.Scored,
		"aligned", summary.Aligned,
		"groups", len(results))
}

func (r *Refresher) ensureLeadership(ctx context.Context) (bool, error) {
	if r.isLeader {
		err := r.lock.RenewLease(ctx)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, ErrNotLeader) {
			return false, err
		}
		r.isLeader = false
	}

	acquired, err := r.lock.TryAcquire(ctx)
	if err != nil {
		return false, err
	}
	r.isLeader = acquired
	return acquired, nil
}

func (r *Refresher) release() {
	if !r.isLeader {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.lock.Release(ctx); err != nil {
		slog.Error("Failed to release leader lock", "error", err)
	}
}
