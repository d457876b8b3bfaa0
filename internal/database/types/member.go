package types

import (
	"errors"
	"time"

	"github.com/mlaa/commons-sync/internal/database/types/enum"
)

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrUsernameTaken  = errors.New("username already taken locally")
)

// Member is a locally-known member of the commons. ExternalID is the stable
// key in the external membership directory; Username may diverge from the
// directory's username if the member renamed locally.
type Member struct {
	ExternalID string            `bun:",pk"             json:"externalId"`
	Username   string            `bun:",notnull,unique" json:"username"`
	Status     enum.MemberStatus `bun:",notnull"        json:"status"`
	Name       string            `bun:",nullzero"       json:"name"`
	Email      string            `bun:",nullzero"       json:"email"`
	UpdatedAt  time.Time         `bun:",notnull"        json:"updatedAt"`
}

// MemberMeta stores free-form per-member metadata as key/value rows.
type MemberMeta struct {
	MemberID string `bun:",pk"      json:"memberId"`
	Key      string `bun:",pk"      json:"key"`
	Value    string `bun:",notnull" json:"value"`
}
