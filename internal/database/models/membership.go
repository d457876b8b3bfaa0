package models

import (
	"context"
	"fmt"

	"github.com/mlaa/commons-sync/internal/database/dbretry"
	"github.com/mlaa/commons-sync/internal/database/types"
	"github.com/mlaa/commons-sync/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// MembershipModel handles database operations for membership edges. These
// are the only write paths for memberships; reconciliation mutations all
// land here.
type MembershipModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewMembership creates a MembershipModel.
func NewMembership(db *bun.DB, logger *zap.Logger) *MembershipModel {
	return &MembershipModel{
		db:     db,
		logger: logger.Named("db_membership"),
	}
}

// MemberRoleEntry is one row of a member's local roster joined with its
// group, keyed for reconciliation by the group's external id.
type MemberRoleEntry struct {
	GroupLocalID    int64          `bun:"group_local_id"`
	GroupExternalID string         `bun:"group_external_id"`
	GroupType       enum.GroupType `bun:"group_type"`
	Role            enum.Role      `bun:"role"`
}

// GetMemberRoleEntries returns the member's local memberships in groups that
// have an external mapping and are not opted out. Locally-created groups
// without a directory id never participate in reconciliation.
func (m *MembershipModel) GetMemberRoleEntries(ctx context.Context, memberID string) ([]MemberRoleEntry, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]MemberRoleEntry, error) {
		var entries []MemberRoleEntry

		err := m.db.NewSelect().
			Model((*types.Membership)(nil)).
			ColumnExpr("g.local_id AS group_local_id").
			ColumnExpr("g.external_id AS group_external_id").
			ColumnExpr("g.type AS group_type").
			ColumnExpr("membership.role AS role").
			Join("JOIN groups AS g ON g.local_id = membership.group_id").
			Where("membership.member_id = ?", memberID).
			Where("g.external_id IS NOT NULL").
			Where("g.exclude_from_commons = false").
			Scan(ctx, &entries)
		if err != nil {
			return nil, fmt.Errorf("failed to get role map for member %s: %w", memberID, err)
		}

		return entries, nil
	})
}

// GetGroupRoleMap returns a group's local roster keyed by member external id.
func (m *MembershipModel) GetGroupRoleMap(ctx context.Context, groupID int64) (map[string]enum.Role, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (map[string]enum.Role, error) {
		var rows []types.Membership

		err := m.db.NewSelect().
			Model(&rows).
			Where("group_id = ?", groupID).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get role map for group %d: %w", groupID, err)
		}

		roster := make(map[string]enum.Role, len(rows))
		for _, row := range rows {
			roster[row.MemberID] = row.Role
		}

		return roster, nil
	})
}

// AddMembership joins a member to a group with the default member role.
// Adding an existing membership is a no-op.
func (m *MembershipModel) AddMembership(ctx context.Context, memberID string, groupID int64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		membership := &types.Membership{
			MemberID: memberID,
			GroupID:  groupID,
			Role:     enum.RoleMember,
		}

		_, err := m.db.NewInsert().
			Model(membership).
			On("CONFLICT (member_id, group_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to add member %s to group %d: %w", memberID, groupID, err)
		}

		m.logger.Debug("Added membership",
			zap.String("memberID", memberID),
			zap.Int64("groupID", groupID))

		return nil
	})
}

// RemoveMembership removes a member from a group entirely.
func (m *MembershipModel) RemoveMembership(ctx context.Context, memberID string, groupID int64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewDelete().
			Model((*types.Membership)(nil)).
			Where("member_id = ? AND group_id = ?", memberID, groupID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to remove member %s from group %d: %w", memberID, groupID, err)
		}

		m.logger.Debug("Removed membership",
			zap.String("memberID", memberID),
			zap.Int64("groupID", groupID))

		return nil
	})
}

// Promote raises a member to group admin.
func (m *MembershipModel) Promote(ctx context.Context, memberID string, groupID int64) error {
	return m.setRole(ctx, memberID, groupID, enum.RoleAdmin)
}

// Demote lowers a member back to the plain member role.
func (m *MembershipModel) Demote(ctx context.Context, memberID string, groupID int64) error {
	return m.setRole(ctx, memberID, groupID, enum.RoleMember)
}

// SetPrimary marks or clears a member's primary forum flag.
func (m *MembershipModel) SetPrimary(ctx context.Context, memberID string, groupID int64, primary bool) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().
			Model((*types.Membership)(nil)).
			Set(`"primary" = ?`, primary).
			Where("member_id = ? AND group_id = ?", memberID, groupID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set primary flag for member %s in group %d: %w", memberID, groupID, err)
		}

		return nil
	})
}

func (m *MembershipModel) setRole(ctx context.Context, memberID string, groupID int64, role enum.Role) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		result, err := m.db.NewUpdate().
			Model((*types.Membership)(nil)).
			Set("role = ?", role).
			Where("member_id = ? AND group_id = ?", memberID, groupID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set role for member %s in group %d: %w", memberID, groupID, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if affected == 0 {
			return fmt.Errorf("member %s has no membership in group %d: %w", memberID, groupID, types.ErrMemberNotFound)
		}

		m.logger.Debug("Changed membership role",
			zap.String("memberID", memberID),
			zap.Int64("groupID", groupID),
			zap.Stringer("role", role))

		return nil
	})
}
