package sync

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mlaa/commons-sync/internal/database/types/enum"
	"go.uber.org/zap"
)

// SyncGroup reconciles one local group's roster against the directory.
// Returns true when a reconciliation pass ran and the cursor advanced;
// false when the group was fresh or has no external mapping.
func (o *Orchestrator) SyncGroup(ctx context.Context, localID int64) (bool, error) {
	unlock := o.locks.Lock("group:" + strconv.FormatInt(localID, 10))
	defer unlock()

	group, err := o.groups.GetGroupByLocalID(ctx, localID)
	if err != nil {
		return false, fmt.Errorf("group %d: %w", localID, err)
	}

	// Locally-created groups have no directory counterpart to reconcile.
	if group.ExternalID == "" {
		o.logger.Debug("Skipping sync for unmapped group", zap.Int64("localID", localID))
		return false, nil
	}

	fresh, err := o.fresh(ctx, enum.SyncEntityGroup, group.ExternalID)
	if err != nil {
		return false, fmt.Errorf("group %d: %w", localID, err)
	}

	if fresh {
		return false, nil
	}

	if group.ExcludeFromCommons {
		return false, fmt.Errorf("group %d: %w", localID, ErrExcluded)
	}

	record, err := o.directory.GetGroup(ctx, group.ExternalID)
	if err != nil {
		return false, fmt.Errorf("group %d: %w", localID, err)
	}

	// The directory may have opted the group out since we last looked.
	if record.ExcludeFromCommons.Bool() {
		if err := o.groups.SetExcludeFromCommons(ctx, localID, true); err != nil {
			o.logger.Error("Failed to persist exclude flag",
				zap.Int64("localID", localID),
				zap.Error(err))
		}

		return false, fmt.Errorf("group %d: %w", localID, ErrExcluded)
	}

	remote := o.directory.RemoteRoleMap(record)

	local, err := o.memberships.GetGroupRoleMap(ctx, localID)
	if err != nil {
		return false, fmt.Errorf("group %d: %w", localID, err)
	}

	mutations := o.reconciler.Reconcile(local, remote, group.Type)

	o.logger.Info("Reconciling group roster",
		zap.Int64("localID", localID),
		zap.String("externalID", group.ExternalID),
		zap.Stringer("type", group.Type),
		zap.Int("localSize", len(local)),
		zap.Int("remoteSize", len(remote)),
		zap.Int("mutations", len(mutations)))

	if failed := o.applyMutations(ctx, localID, mutations); failed > 0 {
		return false, fmt.Errorf("group %d: %w: %d of %d", localID, ErrPartialApply, failed, len(mutations))
	}

	if err := o.cursors.SetCursor(ctx, enum.SyncEntityGroup, group.ExternalID, o.now()); err != nil {
		return false, fmt.Errorf("group %d: %w", localID, err)
	}

	return true, nil
}
