package sync_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mlaa/commons-sync/internal/database/models"
	"github.com/mlaa/commons-sync/internal/database/types"
	"github.com/mlaa/commons-sync/internal/database/types/enum"
	"github.com/mlaa/commons-sync/internal/mla"
	syncer "github.com/mlaa/commons-sync/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeDirectory serves canned records and counts fetches so tests can assert
// the freshness gate suppresses network traffic.
type fakeDirectory struct {
	members     map[string]*mla.MemberRecord
	groups      map[string]*mla.GroupRecord
	memberCalls int
	groupCalls  int
}

func (d *fakeDirectory) GetMember(_ context.Context, idOrUsername string) (*mla.MemberRecord, error) {
	d.memberCalls++

	record, ok := d.members[idOrUsername]
	if !ok {
		return nil, mla.ErrEmptyResult
	}

	return record, nil
}

func (d *fakeDirectory) GetGroup(_ context.Context, externalID string) (*mla.GroupRecord, error) {
	d.groupCalls++

	record, ok := d.groups[externalID]
	if !ok {
		return nil, mla.ErrEmptyResult
	}

	return record, nil
}

func (d *fakeDirectory) RemoteRoleMap(record *mla.GroupRecord) map[string]enum.Role {
	roster := make(map[string]enum.Role, len(*record.Members))

	for _, member := range *record.Members {
		if member.ID == "" {
			continue
		}

		roster[member.ID] = mla.TranslateRole(member.Position)
	}

	return roster
}

// fakeStore backs every store interface with plain maps.
type fakeStore struct {
	members       map[string]*types.Member
	groups        map[int64]*types.Group
	nextGroupID   int64
	memberships   map[int64]map[string]enum.Role
	primaries     map[string]map[int64]bool
	cursors       map[string]time.Time
	failMutations bool
	mutationCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members:     make(map[string]*types.Member),
		groups:      make(map[int64]*types.Group),
		memberships: make(map[int64]map[string]enum.Role),
		primaries:   make(map[string]map[int64]bool),
		cursors:     make(map[string]time.Time),
	}
}

func (s *fakeStore) addGroup(group *types.Group) int64 {
	s.nextGroupID++
	group.LocalID = s.nextGroupID
	s.groups[group.LocalID] = group
	s.memberships[group.LocalID] = make(map[string]enum.Role)

	return group.LocalID
}

func (s *fakeStore) UpsertMember(_ context.Context, member *types.Member) error {
	s.members[member.ExternalID] = member
	return nil
}

func (s *fakeStore) GetMemberByExternalID(_ context.Context, externalID string) (*types.Member, error) {
	member, ok := s.members[externalID]
	if !ok {
		return nil, types.ErrMemberNotFound
	}

	return member, nil
}

func (s *fakeStore) CreateGroup(_ context.Context, group *types.Group) (int64, error) {
	return s.addGroup(group), nil
}

func (s *fakeStore) GetGroupByLocalID(_ context.Context, localID int64) (*types.Group, error) {
	group, ok := s.groups[localID]
	if !ok {
		return nil, types.ErrGroupNotFound
	}

	return group, nil
}

func (s *fakeStore) GetGroupByExternalID(_ context.Context, externalID string) (*types.Group, error) {
	for _, group := range s.groups {
		if group.ExternalID == externalID {
			return group, nil
		}
	}

	return nil, types.ErrGroupNotFound
}

func (s *fakeStore) SetExcludeFromCommons(_ context.Context, localID int64, exclude bool) error {
	group, ok := s.groups[localID]
	if !ok {
		return types.ErrGroupNotFound
	}

	group.ExcludeFromCommons = exclude

	return nil
}

func (s *fakeStore) GetMemberRoleEntries(_ context.Context, memberID string) ([]models.MemberRoleEntry, error) {
	var entries []models.MemberRoleEntry

	for groupID, roster := range s.memberships {
		role, ok := roster[memberID]
		if !ok {
			continue
		}

		group := s.groups[groupID]
		if group.ExternalID == "" || group.ExcludeFromCommons {
			continue
		}

		entries = append(entries, models.MemberRoleEntry{
			GroupLocalID:    groupID,
			GroupExternalID: group.ExternalID,
			GroupType:       group.Type,
			Role:            role,
		})
	}

	return entries, nil
}

func (s *fakeStore) GetGroupRoleMap(_ context.Context, groupID int64) (map[string]enum.Role, error) {
	roster := make(map[string]enum.Role, len(s.memberships[groupID]))
	for memberID, role := range s.memberships[groupID] {
		roster[memberID] = role
	}

	return roster, nil
}

func (s *fakeStore) mutate(groupID int64, apply func(map[string]enum.Role) error) error {
	s.mutationCalls++

	if s.failMutations {
		return errors.New("mutation refused")
	}

	roster, ok := s.memberships[groupID]
	if !ok {
		roster = make(map[string]enum.Role)
		s.memberships[groupID] = roster
	}

	return apply(roster)
}

func (s *fakeStore) AddMembership(_ context.Context, memberID string, groupID int64) error {
	return s.mutate(groupID, func(roster map[string]enum.Role) error {
		if _, ok := roster[memberID]; !ok {
			roster[memberID] = enum.RoleMember
		}
		return nil
	})
}

func (s *fakeStore) RemoveMembership(_ context.Context, memberID string, groupID int64) error {
	return s.mutate(groupID, func(roster map[string]enum.Role) error {
		delete(roster, memberID)
		return nil
	})
}

func (s *fakeStore) Promote(_ context.Context, memberID string, groupID int64) error {
	return s.mutate(groupID, func(roster map[string]enum.Role) error {
		if _, ok := roster[memberID]; !ok {
			return fmt.Errorf("member %s not in group %d", memberID, groupID)
		}
		roster[memberID] = enum.RoleAdmin
		return nil
	})
}

func (s *fakeStore) Demote(_ context.Context, memberID string, groupID int64) error {
	return s.mutate(groupID, func(roster map[string]enum.Role) error {
		if _, ok := roster[memberID]; !ok {
			return fmt.Errorf("member %s not in group %d", memberID, groupID)
		}
		roster[memberID] = enum.RoleMember
		return nil
	})
}

func (s *fakeStore) SetPrimary(_ context.Context, memberID string, groupID int64, primary bool) error {
	flags, ok := s.primaries[memberID]
	if !ok {
		flags = make(map[int64]bool)
		s.primaries[memberID] = flags
	}

	flags[groupID] = primary

	return nil
}

func (s *fakeStore) GetCursor(
	_ context.Context, entityType enum.SyncEntity, entityID string,
) (*types.SyncCursor, error) {
	return &types.SyncCursor{
		EntityType: entityType,
		EntityID:   entityID,
		LastSynced: s.cursors[cursorKey(entityType, entityID)],
	}, nil
}

func (s *fakeStore) SetCursor(
	_ context.Context, entityType enum.SyncEntity, entityID string, syncedAt time.Time,
) error {
	s.cursors[cursorKey(entityType, entityID)] = syncedAt
	return nil
}

func cursorKey(entityType enum.SyncEntity, entityID string) string {
	return fmt.Sprintf("%d:%s", entityType, entityID)
}

func newOrchestrator(
	directory *fakeDirectory, store *fakeStore, opts ...syncer.Option,
) *syncer.Orchestrator {
	return syncer.New(directory, store, store, store, store, zap.NewNop(), opts...)
}

func groupRecord(id string, groupType string, members ...mla.GroupMember) *mla.GroupRecord {
	return &mla.GroupRecord{
		ID:                 id,
		Name:               "Group " + id,
		Type:               groupType,
		ExcludeFromCommons: "N",
		Members:            &members,
	}
}

func TestSyncGroupFreshnessGate(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{groups: map[string]*mla.GroupRecord{
		"77": groupRecord("77", "committee", mla.GroupMember{ID: "100", Position: "Chair"}),
	}}
	store := newFakeStore()
	localID := store.addGroup(&types.Group{ExternalID: "77", Type: enum.GroupTypeCommittee})

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	orch := newOrchestrator(directory, store, syncer.WithClock(func() time.Time { return now }))

	synced, err := orch.SyncGroup(t.Context(), localID)
	require.NoError(t, err)
	assert.True(t, synced)
	assert.Equal(t, 1, directory.groupCalls)

	// Inside the interval the directory must not be touched again.
	now = now.Add(30 * time.Minute)

	synced, err = orch.SyncGroup(t.Context(), localID)
	require.NoError(t, err)
	assert.False(t, synced)
	assert.Equal(t, 1, directory.groupCalls)

	// Past the interval the entity is stale again.
	now = now.Add(time.Hour)

	synced, err = orch.SyncGroup(t.Context(), localID)
	require.NoError(t, err)
	assert.True(t, synced)
	assert.Equal(t, 2, directory.groupCalls)
}

func TestSyncGroupExcludedLocally(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{groups: map[string]*mla.GroupRecord{}}
	store := newFakeStore()
	localID := store.addGroup(&types.Group{
		ExternalID:         "77",
		Type:               enum.GroupTypeCommittee,
		ExcludeFromCommons: true,
	})

	orch := newOrchestrator(directory, store)

	synced, err := orch.SyncGroup(t.Context(), localID)
	require.ErrorIs(t, err, syncer.ErrExcluded)
	assert.False(t, synced)
	assert.Zero(t, directory.groupCalls)
	assert.Zero(t, store.mutationCalls)
}

func TestSyncGroupExcludedRemotely(t *testing.T) {
	t.Parallel()

	record := groupRecord("77", "committee", mla.GroupMember{ID: "100", Position: "member"})
	record.ExcludeFromCommons = "Y"

	directory := &fakeDirectory{groups: map[string]*mla.GroupRecord{"77": record}}
	store := newFakeStore()
	localID := store.addGroup(&types.Group{ExternalID: "77", Type: enum.GroupTypeCommittee})

	orch := newOrchestrator(directory, store)

	synced, err := orch.SyncGroup(t.Context(), localID)
	require.ErrorIs(t, err, syncer.ErrExcluded)
	assert.False(t, synced)

	// The exclude flag is persisted so the next pass short-circuits before
	// the fetch, and the cursor is left stale.
	assert.True(t, store.groups[localID].ExcludeFromCommons)
	assert.Zero(t, store.mutationCalls)
	assert.Empty(t, store.cursors)
}

func TestSyncGroupUnmappedGroup(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{}
	store := newFakeStore()
	localID := store.addGroup(&types.Group{Type: enum.GroupTypeForum})

	orch := newOrchestrator(directory, store)

	synced, err := orch.SyncGroup(t.Context(), localID)
	require.NoError(t, err)
	assert.False(t, synced)
	assert.Zero(t, directory.groupCalls)
}

func TestSyncGroupReconcilesRoster(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		groupType enum.GroupType
		want      map[string]enum.Role
	}{
		{
			// Absent members lose their membership entirely.
			name:      "committee removes absentees",
			groupType: enum.GroupTypeCommittee,
			want: map[string]enum.Role{
				"100": enum.RoleAdmin,
				"300": enum.RoleMember,
			},
		},
		{
			// Absent admins are demoted but never removed.
			name:      "forum demotes stale admins",
			groupType: enum.GroupTypeForum,
			want: map[string]enum.Role{
				"100": enum.RoleAdmin,
				"200": enum.RoleMember,
				"300": enum.RoleMember,
				"400": enum.RoleMember,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			directory := &fakeDirectory{groups: map[string]*mla.GroupRecord{
				"77": groupRecord("77", tt.groupType.String(),
					mla.GroupMember{ID: "100", Position: "Chair"},
					mla.GroupMember{ID: "300", Position: "member"},
				),
			}}
			store := newFakeStore()
			localID := store.addGroup(&types.Group{ExternalID: "77", Type: tt.groupType})
			store.memberships[localID] = map[string]enum.Role{
				"200": enum.RoleAdmin,
				"400": enum.RoleMember,
			}

			orch := newOrchestrator(directory, store)

			synced, err := orch.SyncGroup(t.Context(), localID)
			require.NoError(t, err)
			assert.True(t, synced)
			assert.Equal(t, tt.want, store.memberships[localID])
		})
	}
}

func TestSyncGroupPartialApplyKeepsCursorStale(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{groups: map[string]*mla.GroupRecord{
		"77": groupRecord("77", "committee", mla.GroupMember{ID: "100", Position: "member"}),
	}}
	store := newFakeStore()
	store.failMutations = true
	localID := store.addGroup(&types.Group{ExternalID: "77", Type: enum.GroupTypeCommittee})

	orch := newOrchestrator(directory, store)

	synced, err := orch.SyncGroup(t.Context(), localID)
	require.ErrorIs(t, err, syncer.ErrPartialApply)
	assert.False(t, synced)
	assert.Empty(t, store.cursors)

	// The entity stayed stale, so the next pass converges once the store
	// recovers.
	store.failMutations = false

	synced, err = orch.SyncGroup(t.Context(), localID)
	require.NoError(t, err)
	assert.True(t, synced)
	assert.Equal(t, map[string]enum.Role{"100": enum.RoleMember}, store.memberships[localID])
}

func memberRecord(id string, orgs ...mla.MemberOrganization) *mla.MemberRecord {
	return &mla.MemberRecord{
		ID:            id,
		Username:      "user" + id,
		Status:        "active",
		Name:          "User " + id,
		Email:         "user" + id + "@example.edu",
		Organizations: &orgs,
	}
}

func TestSyncMemberAutoCreatesGroups(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{members: map[string]*mla.MemberRecord{
		"100": memberRecord("100",
			mla.MemberOrganization{ID: "10", Name: "Bibliography", Type: "committee", Position: "Chair"},
			mla.MemberOrganization{ID: "20", Name: "Medieval Forum", Type: "forum", Position: "member", Primary: "Y"},
		),
	}}
	store := newFakeStore()

	orch := newOrchestrator(directory, store)

	synced, err := orch.SyncMember(t.Context(), "100")
	require.NoError(t, err)
	assert.True(t, synced)

	// Both groups were auto-created with type-derived visibility.
	committee, err := store.GetGroupByExternalID(t.Context(), "10")
	require.NoError(t, err)
	assert.Equal(t, enum.GroupTypeCommittee, committee.Type)
	assert.Equal(t, enum.GroupStatusPrivate, committee.Status)

	forum, err := store.GetGroupByExternalID(t.Context(), "20")
	require.NoError(t, err)
	assert.Equal(t, enum.GroupTypeForum, forum.Type)
	assert.Equal(t, enum.GroupStatusPublic, forum.Status)

	assert.Equal(t, enum.RoleAdmin, store.memberships[committee.LocalID]["100"])
	assert.Equal(t, enum.RoleMember, store.memberships[forum.LocalID]["100"])
	assert.True(t, store.primaries["100"][forum.LocalID])

	// Profile landed locally too.
	member, err := store.GetMemberByExternalID(t.Context(), "100")
	require.NoError(t, err)
	assert.Equal(t, "user100", member.Username)
	assert.Equal(t, enum.MemberStatusActive, member.Status)
}

func TestSyncMemberFreshnessGate(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{members: map[string]*mla.MemberRecord{
		"100": memberRecord("100"),
	}}
	store := newFakeStore()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	orch := newOrchestrator(directory, store, syncer.WithClock(func() time.Time { return now }))

	synced, err := orch.SyncMember(t.Context(), "100")
	require.NoError(t, err)
	assert.True(t, synced)

	synced, err = orch.SyncMember(t.Context(), "100")
	require.NoError(t, err)
	assert.False(t, synced)
	assert.Equal(t, 1, directory.memberCalls)
}

func TestSyncMemberSkipsExcludedAndSecondaryOrgs(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{members: map[string]*mla.MemberRecord{
		"100": memberRecord("100",
			mla.MemberOrganization{ID: "10", Type: "committee", Position: "member", ExcludeFromCommons: "Y"},
			mla.MemberOrganization{ID: "20", Type: "forum", Position: "member", Primary: "N"},
		),
	}}
	store := newFakeStore()

	orch := newOrchestrator(directory, store)

	synced, err := orch.SyncMember(t.Context(), "100")
	require.NoError(t, err)
	assert.True(t, synced)

	// Neither org participates, so no groups appear locally.
	assert.Empty(t, store.groups)
	assert.Zero(t, store.mutationCalls)
}

func TestSyncMemberDemotesStaleForumAdmin(t *testing.T) {
	t.Parallel()

	// The member no longer appears as forum leadership in the directory, but
	// the forum never drops them: they are demoted in place.
	directory := &fakeDirectory{members: map[string]*mla.MemberRecord{
		"100": memberRecord("100"),
	}}
	store := newFakeStore()
	forumID := store.addGroup(&types.Group{ExternalID: "20", Type: enum.GroupTypeForum})
	committeeID := store.addGroup(&types.Group{ExternalID: "10", Type: enum.GroupTypeCommittee})
	store.memberships[forumID]["100"] = enum.RoleAdmin
	store.memberships[committeeID]["100"] = enum.RoleMember

	orch := newOrchestrator(directory, store)

	synced, err := orch.SyncMember(t.Context(), "100")
	require.NoError(t, err)
	assert.True(t, synced)

	assert.Equal(t, enum.RoleMember, store.memberships[forumID]["100"])
	assert.NotContains(t, store.memberships[committeeID], "100")
}

func TestSyncMemberEmptyID(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{}
	orch := newOrchestrator(directory, newFakeStore())

	synced, err := orch.SyncMember(t.Context(), "")
	require.NoError(t, err)
	assert.False(t, synced)
	assert.Zero(t, directory.memberCalls)
}
