package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/mlaa/commons-sync/internal/database/types"
	"github.com/mlaa/commons-sync/internal/database/types/enum"
	"github.com/mlaa/commons-sync/internal/mla"
	"github.com/mlaa/commons-sync/internal/reconcile"
	"go.uber.org/zap"
)

// remoteOrg is one included roster entry from a member record, resolved to a
// local group.
type remoteOrg struct {
	localID int64
	primary bool
}

// SyncMember reconciles one member's memberships against their directory
// record. Returns true when a reconciliation pass ran and the cursor
// advanced; false when the member was fresh or has no external id.
func (o *Orchestrator) SyncMember(ctx context.Context, externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}

	unlock := o.locks.Lock("member:" + externalID)
	defer unlock()

	fresh, err := o.fresh(ctx, enum.SyncEntityMember, externalID)
	if err != nil {
		return false, fmt.Errorf("member %s: %w", externalID, err)
	}

	if fresh {
		return false, nil
	}

	record, err := o.directory.GetMember(ctx, externalID)
	if err != nil {
		return false, fmt.Errorf("member %s: %w", externalID, err)
	}

	if err := o.members.UpsertMember(ctx, &types.Member{
		ExternalID: record.ID,
		Username:   record.Username,
		Status:     enum.ParseMemberStatus(record.Status),
		Name:       record.Name,
		Email:      record.Email,
	}); err != nil {
		return false, fmt.Errorf("member %s: %w", externalID, err)
	}

	// Resolve the directory roster to local groups, auto-creating groups we
	// have never seen. Partition by group type since the reconciliation
	// policy differs.
	remote := map[enum.GroupType]map[string]enum.Role{
		enum.GroupTypeForum:     {},
		enum.GroupTypeCommittee: {},
	}
	orgs := make(map[string]remoteOrg)

	for i := range *record.Organizations {
		org := &(*record.Organizations)[i]

		role, included := mla.ClassifyMembership(org)
		if !included {
			continue
		}

		if org.ID == "" {
			o.logger.Warn("Skipping roster entry with empty group id",
				zap.String("memberID", externalID))

			continue
		}

		groupType := enum.ParseGroupType(org.Type)

		localID, err := o.ensureGroup(ctx, org, groupType)
		if err != nil {
			if errors.Is(err, ErrExcluded) {
				continue
			}

			return false, fmt.Errorf("member %s: %w", externalID, err)
		}

		remote[groupType][org.ID] = role
		orgs[org.ID] = remoteOrg{
			localID: localID,
			primary: groupType == enum.GroupTypeForum && org.Primary.Bool(),
		}
	}

	// Local roster, partitioned the same way, with the id mapping for
	// mutation application.
	entries, err := o.memberships.GetMemberRoleEntries(ctx, externalID)
	if err != nil {
		return false, fmt.Errorf("member %s: %w", externalID, err)
	}

	local := map[enum.GroupType]map[string]enum.Role{
		enum.GroupTypeForum:     {},
		enum.GroupTypeCommittee: {},
	}
	idMap := make(map[string]int64, len(entries))

	for _, entry := range entries {
		if entry.GroupType != enum.GroupTypeForum && entry.GroupType != enum.GroupTypeCommittee {
			continue
		}

		local[entry.GroupType][entry.GroupExternalID] = entry.Role
		idMap[entry.GroupExternalID] = entry.GroupLocalID
	}

	for extID, org := range orgs {
		idMap[extID] = org.localID
	}

	failed := 0
	for _, groupType := range []enum.GroupType{enum.GroupTypeForum, enum.GroupTypeCommittee} {
		mutations := o.reconciler.Reconcile(local[groupType], remote[groupType], groupType)
		failed += o.applyMemberMutations(ctx, externalID, idMap, mutations)
	}

	// Primary forum flags ride along after membership exists.
	for extID, org := range orgs {
		if !org.primary {
			continue
		}

		if err := o.memberships.SetPrimary(ctx, externalID, org.localID, true); err != nil {
			o.logger.Error("Failed to set primary forum flag",
				zap.String("memberID", externalID),
				zap.String("groupExternalID", extID),
				zap.Error(err))
		}
	}

	if failed > 0 {
		return false, fmt.Errorf("member %s: %w: %d failed", externalID, ErrPartialApply, failed)
	}

	if err := o.cursors.SetCursor(ctx, enum.SyncEntityMember, externalID, o.now()); err != nil {
		return false, fmt.Errorf("member %s: %w", externalID, err)
	}

	return true, nil
}

// ensureGroup resolves an external group id to a local group, creating the
// local group on first contact. Committee groups are created private, forums
// public. Returns ErrExcluded for groups opted out of the commons.
func (o *Orchestrator) ensureGroup(
	ctx context.Context, org *mla.MemberOrganization, groupType enum.GroupType,
) (int64, error) {
	if o.groupIDs != nil {
		if localID, ok := o.groupIDs.GetLocalID(ctx, org.ID); ok {
			return localID, nil
		}
	}

	group, err := o.groups.GetGroupByExternalID(ctx, org.ID)
	if err == nil {
		if group.ExcludeFromCommons {
			return 0, fmt.Errorf("group %q: %w", org.ID, ErrExcluded)
		}

		if o.groupIDs != nil {
			o.groupIDs.SetLocalID(ctx, org.ID, group.LocalID)
		}

		return group.LocalID, nil
	}

	if !errors.Is(err, types.ErrGroupNotFound) {
		return 0, fmt.Errorf("group %q: %w", org.ID, err)
	}

	localID, err := o.groups.CreateGroup(ctx, &types.Group{
		ExternalID: org.ID,
		Name:       org.Name,
		Type:       groupType,
		Status:     groupStatusFor(groupType),
	})
	if err != nil {
		return 0, fmt.Errorf("group %q: %w", org.ID, err)
	}

	if o.groupIDs != nil {
		o.groupIDs.SetLocalID(ctx, org.ID, localID)
	}

	return localID, nil
}

// applyMemberMutations plays a mutation list whose keys are group external
// ids, resolving each to its local group id.
func (o *Orchestrator) applyMemberMutations(
	ctx context.Context, memberID string, idMap map[string]int64, mutations []reconcile.Mutation,
) (failed int) {
	for _, m := range mutations {
		groupID, ok := idMap[m.Key]
		if !ok {
			failed++

			o.logger.Error("No local group mapping for mutation",
				zap.Stringer("op", m.Op),
				zap.String("groupExternalID", m.Key),
				zap.String("memberID", memberID))

			continue
		}

		var err error

		switch m.Op {
		case reconcile.OpAdd:
			err = o.memberships.AddMembership(ctx, memberID, groupID)
		case reconcile.OpRemove:
			err = o.memberships.RemoveMembership(ctx, memberID, groupID)
		case reconcile.OpPromote:
			err = o.memberships.Promote(ctx, memberID, groupID)
		case reconcile.OpDemote:
			err = o.memberships.Demote(ctx, memberID, groupID)
		}

		if err != nil {
			failed++

			o.logger.Error("Failed to apply roster mutation",
				zap.Stringer("op", m.Op),
				zap.String("groupExternalID", m.Key),
				zap.String("memberID", memberID),
				zap.Error(err))
		}
	}

	return failed
}
