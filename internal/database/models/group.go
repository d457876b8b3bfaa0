package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mlaa/commons-sync/internal/database/dbretry"
	"github.com/mlaa/commons-sync/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// GroupModel handles database operations for group records.
type GroupModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewGroup creates a GroupModel.
func NewGroup(db *bun.DB, logger *zap.Logger) *GroupModel {
	return &GroupModel{
		db:     db,
		logger: logger.Named("db_group"),
	}
}

// CreateGroup inserts a group and returns its local id. When a group with
// the same external id already exists the existing local id is returned, so
// concurrent auto-creation during member syncs stays idempotent.
func (m *GroupModel) CreateGroup(ctx context.Context, group *types.Group) (int64, error) {
	group.UpdatedAt = time.Now()

	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		_, err := m.db.NewInsert().
			Model(group).
			On("CONFLICT (external_id) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("updated_at = EXCLUDED.updated_at").
			Returning("local_id").
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to create group %q: %w", group.Name, err)
		}

		m.logger.Info("Created local group",
			zap.Int64("localID", group.LocalID),
			zap.String("externalID", group.ExternalID),
			zap.Stringer("type", group.Type))

		return group.LocalID, nil
	})
}

// GetGroupByLocalID fetches one group by its local id.
func (m *GroupModel) GetGroupByLocalID(ctx context.Context, localID int64) (*types.Group, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Group, error) {
		var group types.Group

		err := m.db.NewSelect().
			Model(&group).
			Where("local_id = ?", localID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrGroupNotFound
			}

			return nil, fmt.Errorf("failed to get group %d: %w", localID, err)
		}

		return &group, nil
	})
}

// GetGroupByExternalID fetches one group by its directory id.
func (m *GroupModel) GetGroupByExternalID(ctx context.Context, externalID string) (*types.Group, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Group, error) {
		var group types.Group

		err := m.db.NewSelect().
			Model(&group).
			Where("external_id = ?", externalID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrGroupNotFound
			}

			return nil, fmt.Errorf("failed to get group %q: %w", externalID, err)
		}

		return &group, nil
	})
}

// SetExcludeFromCommons persists the directory's opt-out flag for a group.
func (m *GroupModel) SetExcludeFromCommons(ctx context.Context, localID int64, exclude bool) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().
			Model((*types.Group)(nil)).
			Set("exclude_from_commons = ?", exclude).
			Set("updated_at = ?", time.Now()).
			Where("local_id = ?", localID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set exclude flag on group %d: %w", localID, err)
		}

		return nil
	})
}

// GetGroupMeta fetches one metadata value; returns an empty string when the
// key is absent.
func (m *GroupModel) GetGroupMeta(ctx context.Context, groupID int64, key string) (string, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (string, error) {
		var meta types.GroupMeta

		err := m.db.NewSelect().
			Model(&meta).
			Where("group_id = ? AND key = ?", groupID, key).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", nil
			}

			return "", fmt.Errorf("failed to get group meta: %w", err)
		}

		return meta.Value, nil
	})
}

// SetGroupMeta stores one metadata value.
func (m *GroupModel) SetGroupMeta(ctx context.Context, groupID int64, key, value string) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		meta := &types.GroupMeta{GroupID: groupID, Key: key, Value: value}

		_, err := m.db.NewInsert().
			Model(meta).
			On("CONFLICT (group_id, key) DO UPDATE").
			Set("value = EXCLUDED.value").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set group meta: %w", err)
		}

		return nil
	})
}
