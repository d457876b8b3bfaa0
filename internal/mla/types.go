package mla

// YN is the directory's boolean wire format ("Y"/"N").
type YN string

// Bool reports whether the flag is set.
func (v YN) Bool() bool {
	return v == "Y" || v == "y"
}

// Envelope is the response wrapper every endpoint returns.
type Envelope[T any] struct {
	Meta Meta `json:"meta"`
	Data []T  `json:"data"`
}

// Meta carries the API's status and machine-readable result code.
type Meta struct {
	Status string `json:"status"`
	Code   string `json:"code"`
}

// MemberRecord is a member as returned by GET /members/{id_or_username}.
// Organizations is a pointer so a missing property can be told apart from an
// empty roster during schema validation.
type MemberRecord struct {
	ID            string                `json:"id"`
	Username      string                `json:"username"`
	Status        string                `json:"membership_status"`
	Name          string                `json:"name"`
	Email         string                `json:"email"`
	Organizations *[]MemberOrganization `json:"organizations"`
}

// MemberOrganization is one entry in a member's external roster.
type MemberOrganization struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Type               string `json:"type"`
	Position           string `json:"position"`
	Primary            YN     `json:"primary"`
	ExcludeFromCommons YN     `json:"exclude_from_commons"`
}

// GroupRecord is an organization as returned by GET /organizations/{id}.
// Members is a pointer for the same schema-validation reason as
// MemberRecord.Organizations.
type GroupRecord struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Type               string         `json:"type"`
	ExcludeFromCommons YN             `json:"exclude_from_commons"`
	Members            *[]GroupMember `json:"members"`
}

// GroupMember is one entry in a group's external roster.
type GroupMember struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Position      string `json:"position"`
	JoinedCommons YN     `json:"joined_commons"`
}

// DuplicateRecord is returned by the duplicate-username probe.
type DuplicateRecord struct {
	Username string `json:"username"`
}
