package types

import (
	"time"

	"github.com/mlaa/commons-sync/internal/database/types/enum"
)

// SyncCursor records when an entity's roster was last reconciled against the
// external directory. The cursor is written only after a fully successful
// pass; a failed sync leaves it untouched so the entity stays stale and is
// retried on the next attempt.
type SyncCursor struct {
	EntityType enum.SyncEntity `bun:",pk"      json:"entityType"`
	EntityID   string          `bun:",pk"      json:"entityId"`
	LastSynced time.Time       `bun:",notnull" json:"lastSynced"`
}

// Stale reports whether the cursor is due for a resync at the given time.
// A zero LastSynced is always stale.
func (c *SyncCursor) Stale(now time.Time, interval time.Duration) bool {
	if c == nil || c.LastSynced.IsZero() {
		return true
	}
	return now.Sub(c.LastSynced) >= interval
}
