package enum

// MemberStatus is the membership standing reported by the external directory.
type MemberStatus int

const (
	// MemberStatusOther covers statuses we do not recognize.
	MemberStatusOther MemberStatus = iota
	// MemberStatusActive indicates a member in good standing.
	MemberStatusActive
	// MemberStatusInactive indicates a lapsed membership.
	MemberStatusInactive
)

// String returns the lowercase name of the member status.
func (s MemberStatus) String() string {
	switch s {
	case MemberStatusActive:
		return "active"
	case MemberStatusInactive:
		return "inactive"
	default:
		return "other"
	}
}

// ParseMemberStatus maps the external directory's status strings onto a MemberStatus.
func ParseMemberStatus(s string) MemberStatus {
	switch s {
	case "active", "ACTIVE":
		return MemberStatusActive
	case "inactive", "INACTIVE":
		return MemberStatusInactive
	default:
		return MemberStatusOther
	}
}

// SyncEntity identifies which kind of entity a sync cursor belongs to.
type SyncEntity int

const (
	// SyncEntityMember cursors gate member roster syncs.
	SyncEntityMember SyncEntity = iota
	// SyncEntityGroup cursors gate group roster syncs.
	SyncEntityGroup
)

// String returns the lowercase name of the sync entity type.
func (e SyncEntity) String() string {
	if e == SyncEntityGroup {
		return "group"
	}
	return "member"
}
