// Package broadcast carries newly created notifications to other sessions.
//
// Channel is the transport seen by the dispatcher and the sync engine. StorageChannel
// approximates push delivery by writing records into the shared key-value store for other
// sessions to poll; AMQPChannel replaces it with a message bus without changing its callers.
package broadcast

import (
	"context"
	"time"

	"github.com/hoteldesk/notification-engine/common"
	"github.com/hoteldesk/notification-engine/model"
)

// DefaultRetention is how long a broadcast record is kept, whether or not it was consumed.
const DefaultRetention = time.Hour

var log = common.Log.WithField("context", "broadcast")

// Channel publishes broadcast records and returns the ones published since a checkpoint.
type Channel interface {
	// Publish makes a record visible to other sessions.
	Publish(ctx context.Context, record model.BroadcastRecord) error

	// Fetch returns the records created after since (epoch milliseconds), oldest first.
	// Records older than the retention window are discarded as a side effect.
	Fetch(ctx context.Context, since int64) ([]model.BroadcastRecord, error)
}

// stale reports whether a record created at createdAt is outside the retention window.
func stale(createdAt int64, now time.Time, retention time.Duration) bool {
	return common.EpochMillis(now)-createdAt > retention.Milliseconds()
}
