// Package sync owns the freshness-gated reconciliation flows. The
// orchestrator fetches the authoritative roster from the membership
// directory, diffs it against the local store through the reconciler, and
// applies the resulting mutations. Sync cursors advance only after a fully
// successful pass, so any failure leaves the entity stale and retried.
package sync

import (
	"context"
	"errors"
	"time"

	"github.com/mlaa/commons-sync/internal/database/types/enum"
	"github.com/mlaa/commons-sync/internal/reconcile"
	"go.uber.org/zap"
)

var (
	// ErrExcluded marks a group the directory has opted out of the commons.
	// Not a failure: the sync short-circuits before touching memberships.
	ErrExcluded = errors.New("group is excluded from the commons")

	// ErrPartialApply indicates some mutations failed to apply. The cursor
	// is left untouched so the next sync converges the remainder.
	ErrPartialApply = errors.New("some roster mutations failed to apply")
)

// DefaultUpdateInterval is how long an entity stays fresh after a
// successful sync.
const DefaultUpdateInterval = time.Hour

// Orchestrator drives member and group reconciliation.
type Orchestrator struct {
	directory   Directory
	members     MemberStore
	groups      GroupStore
	memberships MembershipStore
	cursors     CursorStore
	groupIDs    GroupIDCache
	reconciler  *reconcile.Reconciler
	interval    time.Duration
	locks       *keyedMutex
	now         func() time.Time
	logger      *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithUpdateInterval overrides the freshness interval.
func WithUpdateInterval(interval time.Duration) Option {
	return func(o *Orchestrator) {
		o.interval = interval
	}
}

// WithGroupIDCache attaches a lookup cache consulted before group store
// scans.
func WithGroupIDCache(cache GroupIDCache) Option {
	return func(o *Orchestrator) {
		o.groupIDs = cache
	}
}

// WithClock overrides the clock; tests use this to control freshness.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator.
func New(
	directory Directory,
	members MemberStore,
	groups GroupStore,
	memberships MembershipStore,
	cursors CursorStore,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		directory:   directory,
		members:     members,
		groups:      groups,
		memberships: memberships,
		cursors:     cursors,
		reconciler:  reconcile.New(logger),
		interval:    DefaultUpdateInterval,
		locks:       newKeyedMutex(),
		now:         time.Now,
		logger:      logger.Named("sync"),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// fresh reports whether the entity's cursor is inside the update interval.
func (o *Orchestrator) fresh(ctx context.Context, entityType enum.SyncEntity, entityID string) (bool, error) {
	cursor, err := o.cursors.GetCursor(ctx, entityType, entityID)
	if err != nil {
		return false, err
	}

	return !cursor.Stale(o.now(), o.interval), nil
}

// applyMutations plays an ordered mutation list against one group's
// membership set. A failed mutation is logged and does not abort the rest of
// the batch, but it does poison the pass: the caller must not advance the
// cursor when failed > 0.
func (o *Orchestrator) applyMutations(
	ctx context.Context, groupID int64, mutations []reconcile.Mutation,
) (failed int) {
	for _, m := range mutations {
		var err error

		switch m.Op {
		case reconcile.OpAdd:
			err = o.memberships.AddMembership(ctx, m.Key, groupID)
		case reconcile.OpRemove:
			err = o.memberships.RemoveMembership(ctx, m.Key, groupID)
		case reconcile.OpPromote:
			err = o.memberships.Promote(ctx, m.Key, groupID)
		case reconcile.OpDemote:
			err = o.memberships.Demote(ctx, m.Key, groupID)
		}

		if err != nil {
			failed++

			o.logger.Error("Failed to apply roster mutation",
				zap.Stringer("op", m.Op),
				zap.String("key", m.Key),
				zap.Int64("groupID", groupID),
				zap.Error(err))
		}
	}

	return failed
}

// groupStatusFor derives the local visibility for an auto-created group.
func groupStatusFor(groupType enum.GroupType) enum.GroupStatus {
	if groupType == enum.GroupTypeCommittee {
		return enum.GroupStatusPrivate
	}

	return enum.GroupStatusPublic
}
