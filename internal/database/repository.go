package database

import (
	"github.com/mlaa/commons-sync/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all model operations.
type Repository struct {
	member     *models.MemberModel
	group      *models.GroupModel
	membership *models.MembershipModel
	cursor     *models.CursorModel
}

// NewRepository creates a new repository with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		member:     models.NewMember(db, logger),
		group:      models.NewGroup(db, logger),
		membership: models.NewMembership(db, logger),
		cursor:     models.NewCursor(db, logger),
	}
}

// Member returns the member model.
func (r *Repository) Member() *models.MemberModel {
	return r.member
}

// Group returns the group model.
func (r *Repository) Group() *models.GroupModel {
	return r.group
}

// Membership returns the membership model.
func (r *Repository) Membership() *models.MembershipModel {
	return r.membership
}

// Cursor returns the sync cursor model.
func (r *Repository) Cursor() *models.CursorModel {
	return r.cursor
}
