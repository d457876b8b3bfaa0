package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mlaa/commons-sync/internal/database/dbretry"
	"github.com/mlaa/commons-sync/internal/database/types"
	"github.com/mlaa/commons-sync/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// CursorModel handles database operations for sync cursors.
type CursorModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewCursor creates a CursorModel.
func NewCursor(db *bun.DB, logger *zap.Logger) *CursorModel {
	return &CursorModel{
		db:     db,
		logger: logger.Named("db_cursor"),
	}
}

// GetCursor fetches the cursor for an entity. A never-synced entity gets a
// zero-valued cursor back, which always reads as stale.
func (m *CursorModel) GetCursor(
	ctx context.Context, entityType enum.SyncEntity, entityID string,
) (*types.SyncCursor, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.SyncCursor, error) {
		var cursor types.SyncCursor

		err := m.db.NewSelect().
			Model(&cursor).
			Where("entity_type = ? AND entity_id = ?", entityType, entityID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &types.SyncCursor{EntityType: entityType, EntityID: entityID}, nil
			}

			return nil, fmt.Errorf("failed to get sync cursor for %s %s: %w", entityType, entityID, err)
		}

		return &cursor, nil
	})
}

// GetStaleMemberIDs lists members whose cursor is older than the cutoff,
// never-synced members first. The limit bounds one sweep batch.
func (m *CursorModel) GetStaleMemberIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]string, error) {
		var ids []string

		err := m.db.NewSelect().
			TableExpr("members AS m").
			Column("m.external_id").
			Join("LEFT JOIN sync_cursors AS c ON c.entity_type = ? AND c.entity_id = m.external_id",
				enum.SyncEntityMember).
			Where("c.last_synced IS NULL OR c.last_synced < ?", cutoff).
			OrderExpr("c.last_synced ASC NULLS FIRST").
			Limit(limit).
			Scan(ctx, &ids)
		if err != nil {
			return nil, fmt.Errorf("failed to list stale members: %w", err)
		}

		return ids, nil
	})
}

// GetStaleGroupIDs lists local ids of directory-mapped groups whose cursor is
// older than the cutoff. Excluded groups never come back; syncing them would
// only short-circuit.
func (m *CursorModel) GetStaleGroupIDs(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]int64, error) {
		var ids []int64

		err := m.db.NewSelect().
			TableExpr("groups AS g").
			Column("g.local_id").
			Join("LEFT JOIN sync_cursors AS c ON c.entity_type = ? AND c.entity_id = g.external_id",
				enum.SyncEntityGroup).
			Where("g.external_id IS NOT NULL").
			Where("g.exclude_from_commons = FALSE").
			Where("c.last_synced IS NULL OR c.last_synced < ?", cutoff).
			OrderExpr("c.last_synced ASC NULLS FIRST").
			Limit(limit).
			Scan(ctx, &ids)
		if err != nil {
			return nil, fmt.Errorf("failed to list stale groups: %w", err)
		}

		return ids, nil
	})
}

// SetCursor records a successful sync at the given time. Only called after a
// fully successful reconciliation pass.
func (m *CursorModel) SetCursor(
	ctx context.Context, entityType enum.SyncEntity, entityID string, syncedAt time.Time,
) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		cursor := &types.SyncCursor{
			EntityType: entityType,
			EntityID:   entityID,
			LastSynced: syncedAt,
		}

		_, err := m.db.NewInsert().
			Model(cursor).
			On("CONFLICT (entity_type, entity_id) DO UPDATE").
			Set("last_synced = EXCLUDED.last_synced").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set sync cursor for %s %s: %w", entityType, entityID, err)
		}

		return nil
	})
}
