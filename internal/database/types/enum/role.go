package enum

// Role represents a member's role within a local group.
type Role int

const (
	// RoleNone indicates no membership relationship exists.
	RoleNone Role = iota
	// RoleMember indicates a regular group member.
	RoleMember
	// RoleMod indicates a locally-granted moderator. The external directory
	// has no moderator concept, so the reconciler treats this as a member.
	RoleMod
	// RoleAdmin indicates a group administrator.
	RoleAdmin
)

// String returns the lowercase name of the role.
func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleMember:
		return "member"
	case RoleMod:
		return "mod"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// IsAdmin reports whether the role carries admin privileges.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}
