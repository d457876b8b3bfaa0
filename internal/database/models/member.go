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

// MemberModel handles database operations for member records.
type MemberModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewMember creates a MemberModel.
func NewMember(db *bun.DB, logger *zap.Logger) *MemberModel {
	return &MemberModel{
		db:     db,
		logger: logger.Named("db_member"),
	}
}

// UpsertMember creates or refreshes a member record from directory data.
// The username is only set on first insert: a member may have renamed locally,
// and the local name must survive directory refreshes until the rename is
// pushed upstream.
func (m *MemberModel) UpsertMember(ctx context.Context, member *types.Member) error {
	member.UpdatedAt = time.Now()

	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(member).
			On("CONFLICT (external_id) DO UPDATE").
			Set("status = EXCLUDED.status").
			Set("name = EXCLUDED.name").
			Set("email = EXCLUDED.email").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert member %s: %w", member.ExternalID, err)
		}

		return nil
	})
}

// GetMemberByExternalID fetches one member by their directory id.
func (m *MemberModel) GetMemberByExternalID(ctx context.Context, externalID string) (*types.Member, error) {
	return m.getMember(ctx, "external_id = ?", externalID)
}

// GetMemberByUsername fetches one member by their local username.
func (m *MemberModel) GetMemberByUsername(ctx context.Context, username string) (*types.Member, error) {
	return m.getMember(ctx, "lower(username) = lower(?)", username)
}

func (m *MemberModel) getMember(ctx context.Context, where string, arg string) (*types.Member, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Member, error) {
		var member types.Member

		err := m.db.NewSelect().
			Model(&member).
			Where(where, arg).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrMemberNotFound
			}

			return nil, fmt.Errorf("failed to get member: %w", err)
		}

		return &member, nil
	})
}

// RenameMember updates a member's local username.
func (m *MemberModel) RenameMember(ctx context.Context, externalID, username string) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		result, err := m.db.NewUpdate().
			Model((*types.Member)(nil)).
			Set("username = ?", username).
			Set("updated_at = ?", time.Now()).
			Where("external_id = ?", externalID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to rename member %s: %w", externalID, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if affected == 0 {
			return types.ErrMemberNotFound
		}

		m.logger.Debug("Renamed member",
			zap.String("externalID", externalID),
			zap.String("username", username))

		return nil
	})
}

// GetMemberMeta fetches one metadata value; returns an empty string when the
// key is absent.
func (m *MemberModel) GetMemberMeta(ctx context.Context, memberID, key string) (string, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (string, error) {
		var meta types.MemberMeta

		err := m.db.NewSelect().
			Model(&meta).
			Where("member_id = ? AND key = ?", memberID, key).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", nil
			}

			return "", fmt.Errorf("failed to get member meta: %w", err)
		}

		return meta.Value, nil
	})
}

// SetMemberMeta stores one metadata value.
func (m *MemberModel) SetMemberMeta(ctx context.Context, memberID, key, value string) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		meta := &types.MemberMeta{MemberID: memberID, Key: key, Value: value}

		_, err := m.db.NewInsert().
			Model(meta).
			On("CONFLICT (member_id, key) DO UPDATE").
			Set("value = EXCLUDED.value").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set member meta: %w", err)
		}

		return nil
	})
}
