package enum

// GroupType determines the reconciliation policy applied to a group.
type GroupType int

const (
	// GroupTypeUnknown covers group types the external directory reports
	// that we do not reconcile.
	GroupTypeUnknown GroupType = iota
	// GroupTypeForum is an open, general-interest group. Local membership is
	// sticky: members are never removed just because they vanished from the
	// external roster.
	GroupTypeForum
	// GroupTypeCommittee is a closed governance body. The external roster is
	// fully authoritative; members absent remotely are removed locally.
	GroupTypeCommittee
)

// String returns the lowercase name of the group type.
func (t GroupType) String() string {
	switch t {
	case GroupTypeForum:
		return "forum"
	case GroupTypeCommittee:
		return "committee"
	default:
		return "unknown"
	}
}

// ParseGroupType maps the external directory's type strings onto a GroupType.
func ParseGroupType(s string) GroupType {
	switch s {
	case "forum":
		return GroupTypeForum
	case "committee", "organization":
		return GroupTypeCommittee
	default:
		return GroupTypeUnknown
	}
}

// GroupStatus is the local visibility of a group.
type GroupStatus int

const (
	// GroupStatusPublic is the status for forums.
	GroupStatusPublic GroupStatus = iota
	// GroupStatusPrivate is the status for committees.
	GroupStatusPrivate
)

// String returns the lowercase name of the group status.
func (s GroupStatus) String() string {
	if s == GroupStatusPrivate {
		return "private"
	}
	return "public"
}
