// Package roster runs the background sweep that keeps local rosters
// converged with the membership directory. Each sweep picks up a batch of
// stale entities, oldest cursors first, and syncs them concurrently.
package roster

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mlaa/commons-sync/internal/sync"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// CursorLister lists entities whose sync cursor has gone stale.
type CursorLister interface {
	GetStaleMemberIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	GetStaleGroupIDs(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)
}

// Syncer reconciles a single entity.
type Syncer interface {
	SyncMember(ctx context.Context, externalID string) (bool, error)
	SyncGroup(ctx context.Context, localID int64) (bool, error)
}

// Options bounds one worker's sweep behavior.
type Options struct {
	// UpdateInterval is how long an entity stays fresh; entities with
	// cursors older than this are due.
	UpdateInterval time.Duration
	// SweepInterval is the pause between sweeps.
	SweepInterval time.Duration
	// Concurrency caps in-flight syncs per sweep.
	Concurrency int
	// BatchSize caps entities picked up per sweep, per entity kind.
	BatchSize int
}

// Worker drives periodic roster sweeps.
type Worker struct {
	cursors  CursorLister
	syncer   Syncer
	opts     Options
	workerID string
	logger   *zap.Logger
}

// New creates a roster worker. Each worker gets a unique id so log lines
// from concurrent workers can be told apart.
func New(cursors CursorLister, syncer Syncer, opts Options, logger *zap.Logger) *Worker {
	workerID := uuid.New().String()

	return &Worker{
		cursors:  cursors,
		syncer:   syncer,
		opts:     opts,
		workerID: workerID,
		logger:   logger.Named("roster_worker").With(zap.String("workerID", workerID)),
	}
}

// Start runs sweeps until the context is canceled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Roster worker started",
		zap.Duration("sweepInterval", w.opts.SweepInterval),
		zap.Int("concurrency", w.opts.Concurrency),
		zap.Int("batchSize", w.opts.BatchSize))

	ticker := time.NewTicker(w.opts.SweepInterval)
	defer ticker.Stop()

	for {
		w.Sweep(ctx)

		select {
		case <-ctx.Done():
			w.logger.Info("Roster worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep syncs one batch of stale members and groups. Individual sync
// failures are logged and skipped; a failed entity keeps its stale cursor
// and is picked up again on a later sweep.
func (w *Worker) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.opts.UpdateInterval)

	memberIDs, err := w.cursors.GetStaleMemberIDs(ctx, cutoff, w.opts.BatchSize)
	if err != nil {
		w.logger.Error("Failed to list stale members", zap.Error(err))
	}

	groupIDs, err := w.cursors.GetStaleGroupIDs(ctx, cutoff, w.opts.BatchSize)
	if err != nil {
		w.logger.Error("Failed to list stale groups", zap.Error(err))
	}

	if len(memberIDs) == 0 && len(groupIDs) == 0 {
		return
	}

	var synced, failed atomic.Int64

	p := pool.New().WithContext(ctx).WithMaxGoroutines(w.opts.Concurrency)

	for _, memberID := range memberIDs {
		p.Go(func(ctx context.Context) error {
			if _, err := w.syncer.SyncMember(ctx, memberID); err != nil {
				failed.Add(1)

				w.logger.Error("Member sweep sync failed",
					zap.String("externalID", memberID),
					zap.Error(err))

				return nil
			}

			synced.Add(1)

			return nil
		})
	}

	for _, groupID := range groupIDs {
		p.Go(func(ctx context.Context) error {
			_, err := w.syncer.SyncGroup(ctx, groupID)
			if err != nil && !errors.Is(err, sync.ErrExcluded) {
				failed.Add(1)

				w.logger.Error("Group sweep sync failed",
					zap.Int64("localID", groupID),
					zap.Error(err))

				return nil
			}

			synced.Add(1)

			return nil
		})
	}

	_ = p.Wait()

	w.logger.Info("Sweep finished",
		zap.Int("members", len(memberIDs)),
		zap.Int("groups", len(groupIDs)),
		zap.Int64("synced", synced.Load()),
		zap.Int64("failed", failed.Load()))
}
