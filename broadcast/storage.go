package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/hoteldesk/notification-engine/kvstore"
	"github.com/hoteldesk/notification-engine/model"
	"github.com/pkg/errors"
)

// KeyPrefix is the prefix of the storage keys that hold broadcast records.
const KeyPrefix = "notification_broadcast_"

// StorageChannel keeps broadcast records in a key-value store shared by every session.
// There's no acknowledgement; records are pruned once they leave the retention window.
type StorageChannel struct {
	kv        kvstore.Store
	now       func() time.Time
	retention time.Duration
}

// NewStorageChannel returns a channel that stores records in kv. If now is nil, time.Now is
// used; a non-positive retention selects DefaultRetention.
func NewStorageChannel(kv kvstore.Store, now func() time.Time, retention time.Duration) *StorageChannel {
	if now == nil {
		now = time.Now
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &StorageChannel{kv: kv, now: now, retention: retention}
}

// recordKey returns the storage key for a record.
func recordKey(record model.BroadcastRecord) string {
	return fmt.Sprintf("%s%d_%s", KeyPrefix, record.CreatedAt, record.Notification.ID)
}

// Publish writes the record to the shared store.
func (c *StorageChannel) Publish(ctx context.Context, record model.BroadcastRecord) error {
	wrapMsg := "unable to publish the broadcast record"

	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	if err := c.kv.Set(ctx, recordKey(record), data); err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	return nil
}

// Fetch scans every stored record. Malformed and stale records are deleted; records newer
// than since are returned oldest first.
func (c *StorageChannel) Fetch(ctx context.Context, since int64) ([]model.BroadcastRecord, error) {
	keys, err := c.kv.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "unable to list broadcast records")
	}

	now := c.now()
	records := make([]model.BroadcastRecord, 0)
	for _, key := range keys {
		data, found, err := c.kv.Get(ctx, key)
		if err != nil {
			log.WithError(err).WithField("key", key).Warn("unable to read broadcast record")
			continue
		}
		if !found {
			continue
		}

		var record model.BroadcastRecord
		if err := json.Unmarshal(data, &record); err != nil || record.Notification.ID == "" {
			log.WithField("key", key).Warn("discarding malformed broadcast record")
			c.delete(ctx, key)
			continue
		}

		if stale(record.CreatedAt, now, c.retention) {
			c.delete(ctx, key)
			continue
		}

		if record.CreatedAt > since {
			records = append(records, record)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt < records[j].CreatedAt
	})
	return records, nil
}

// delete removes a record, logging failures. A record left behind is retried on the next fetch.
func (c *StorageChannel) delete(ctx context.Context, key string) {
	if err := c.kv.Delete(ctx, key); err != nil {
		log.WithError(err).WithField("key", key).Warn("unable to delete broadcast record")
	}
}
