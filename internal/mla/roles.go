package mla

import (
	"strings"

	"github.com/mlaa/commons-sync/internal/database/types/enum"
)

// adminPositions are the directory positions that grant group admin locally.
// "liason" is a known misspelling present in historical directory data; it
// stays until the directory itself is cleaned up.
var adminPositions = map[string]struct{}{
	"chair":     {},
	"liaison":   {},
	"liason":    {},
	"secretary": {},
	"executive": {},
}

// TranslateRole maps a free-text directory position onto a local role.
// Matching is case-insensitive; anything unrecognized is a plain member.
func TranslateRole(position string) enum.Role {
	if _, ok := adminPositions[strings.ToLower(position)]; ok {
		return enum.RoleAdmin
	}
	return enum.RoleMember
}

// ClassifyMembership decides whether one roster entry participates in
// reconciliation and, if so, with which local role.
//
// Committee memberships are always reconciled. Forum memberships are only
// reconciled when the member holds a leadership position or the forum is
// their primary one; plain secondary forum memberships are left to local
// choice. Entries flagged exclude_from_commons never participate.
func ClassifyMembership(org *MemberOrganization) (enum.Role, bool) {
	if org.ExcludeFromCommons.Bool() {
		return enum.RoleNone, false
	}

	switch enum.ParseGroupType(org.Type) {
	case enum.GroupTypeCommittee:
		return TranslateRole(org.Position), true
	case enum.GroupTypeForum:
		if !strings.EqualFold(org.Position, "member") || org.Primary.Bool() {
			return TranslateRole(org.Position), true
		}
		return enum.RoleNone, false
	default:
		return enum.RoleNone, false
	}
}
