package types

import (
	"errors"
	"time"

	"github.com/mlaa/commons-sync/internal/database/types/enum"
)

var ErrGroupNotFound = errors.New("group not found")

// Group is a local group. ExternalID links it to the external directory's
// organization record; groups created purely locally have no external id and
// are never reconciled.
type Group struct {
	LocalID            int64            `bun:",pk,autoincrement" json:"localId"`
	ExternalID         string           `bun:",nullzero,unique"  json:"externalId"`
	Name               string           `bun:",notnull"          json:"name"`
	Type               enum.GroupType   `bun:",notnull"          json:"type"`
	Status             enum.GroupStatus `bun:",notnull"          json:"status"`
	ExcludeFromCommons bool             `bun:",notnull,default:false" json:"excludeFromCommons"`
	UpdatedAt          time.Time        `bun:",notnull"          json:"updatedAt"`
}

// GroupMeta stores free-form per-group metadata as key/value rows.
type GroupMeta struct {
	GroupID int64  `bun:",pk"      json:"groupId"`
	Key     string `bun:",pk"      json:"key"`
	Value   string `bun:",notnull" json:"value"`
}
