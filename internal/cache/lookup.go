// Package cache holds the Redis-backed lookup cache for external group id to
// local group id mappings. The cache is purely a fast path: every miss or
// Redis failure falls through to the database, so correctness never depends
// on it.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// LookupTTL controls how long an id mapping stays cached. Mappings are
// stable once created, but a TTL keeps deleted groups from lingering forever.
const LookupTTL = 1 * time.Hour

// groupKeyPrefix namespaces the mapping keys ("group_id:{externalID}").
const groupKeyPrefix = "group_id:"

// GroupLookup caches external group id to local group id mappings.
type GroupLookup struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewGroupLookup creates a GroupLookup.
func NewGroupLookup(client rueidis.Client, logger *zap.Logger) *GroupLookup {
	return &GroupLookup{
		client: client,
		logger: logger.Named("group_lookup"),
	}
}

// GetLocalID returns the cached local id for an external group id. A Redis
// failure is logged and reported as a miss.
func (c *GroupLookup) GetLocalID(ctx context.Context, externalID string) (int64, bool) {
	value, err := c.client.Do(ctx, c.client.B().Get().Key(groupKeyPrefix+externalID).Build()).ToString()
	if err != nil {
		if !rueidis.IsRedisNil(err) {
			c.logger.Warn("Failed to read group lookup cache",
				zap.String("externalID", externalID),
				zap.Error(err))
		}

		return 0, false
	}

	localID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		c.logger.Warn("Discarding malformed group lookup cache entry",
			zap.String("externalID", externalID),
			zap.String("value", value))

		return 0, false
	}

	return localID, true
}

// SetLocalID caches a mapping. Failures are logged and ignored.
func (c *GroupLookup) SetLocalID(ctx context.Context, externalID string, localID int64) {
	err := c.client.Do(ctx, c.client.B().
		Set().
		Key(groupKeyPrefix+externalID).
		Value(strconv.FormatInt(localID, 10)).
		Ex(LookupTTL).
		Build()).Error()
	if err != nil {
		c.logger.Warn("Failed to write group lookup cache",
			zap.String("externalID", externalID),
			zap.Error(err))
	}
}
