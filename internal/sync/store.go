package sync

import (
	"context"
	"time"

	"github.com/mlaa/commons-sync/internal/database/models"
	"github.com/mlaa/commons-sync/internal/database/types"
	"github.com/mlaa/commons-sync/internal/database/types/enum"
	"github.com/mlaa/commons-sync/internal/mla"
)

// Directory is the slice of the membership API client the orchestrator
// consumes.
type Directory interface {
	GetMember(ctx context.Context, idOrUsername string) (*mla.MemberRecord, error)
	GetGroup(ctx context.Context, externalID string) (*mla.GroupRecord, error)
	RemoteRoleMap(record *mla.GroupRecord) map[string]enum.Role
}

// MemberStore is the member slice of the local store.
type MemberStore interface {
	UpsertMember(ctx context.Context, member *types.Member) error
	GetMemberByExternalID(ctx context.Context, externalID string) (*types.Member, error)
}

// GroupStore is the group slice of the local store.
type GroupStore interface {
	CreateGroup(ctx context.Context, group *types.Group) (int64, error)
	GetGroupByLocalID(ctx context.Context, localID int64) (*types.Group, error)
	GetGroupByExternalID(ctx context.Context, externalID string) (*types.Group, error)
	SetExcludeFromCommons(ctx context.Context, localID int64, exclude bool) error
}

// MembershipStore is the membership slice of the local store. All roster
// mutations the reconciler emits are applied through these four operations.
type MembershipStore interface {
	GetMemberRoleEntries(ctx context.Context, memberID string) ([]models.MemberRoleEntry, error)
	GetGroupRoleMap(ctx context.Context, groupID int64) (map[string]enum.Role, error)
	AddMembership(ctx context.Context, memberID string, groupID int64) error
	RemoveMembership(ctx context.Context, memberID string, groupID int64) error
	Promote(ctx context.Context, memberID string, groupID int64) error
	Demote(ctx context.Context, memberID string, groupID int64) error
	SetPrimary(ctx context.Context, memberID string, groupID int64, primary bool) error
}

// CursorStore is the sync cursor slice of the local store.
type CursorStore interface {
	GetCursor(ctx context.Context, entityType enum.SyncEntity, entityID string) (*types.SyncCursor, error)
	SetCursor(ctx context.Context, entityType enum.SyncEntity, entityID string, syncedAt time.Time) error
}

// GroupIDCache is the optional lookup cache for external to local group id
// mappings. A nil cache is valid and simply means every lookup hits the store.
type GroupIDCache interface {
	GetLocalID(ctx context.Context, externalID string) (int64, bool)
	SetLocalID(ctx context.Context, externalID string, localID int64)
}
