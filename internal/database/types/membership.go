package types

import (
	"github.com/mlaa/commons-sync/internal/database/types/enum"
)

// Membership is the edge between a member and a local group. Primary marks
// the member's home forum and is meaningful for forums only.
type Membership struct {
	MemberID string    `bun:",pk"                    json:"memberId"`
	GroupID  int64     `bun:",pk"                    json:"groupId"`
	Role     enum.Role `bun:",notnull"               json:"role"`
	Primary  bool      `bun:",notnull,default:false" json:"primary"`
}
