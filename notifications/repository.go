// Package notifications keeps a session's notification inbox in the key-value store and
// decides whether a candidate notification duplicates one that is still active.
package notifications

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/hoteldesk/notification-engine/common"
	"github.com/hoteldesk/notification-engine/kvstore"
	"github.com/hoteldesk/notification-engine/model"
	"github.com/pkg/errors"
)

// Key is the storage key for the persisted notification list.
const Key = "notifications"

var log = common.Log.WithField("context", "notifications")

// Filter narrows the notifications returned by List.
type Filter struct {
	Category   model.Category
	UnreadOnly bool
}

// Repository stores notifications as a single newest-first list. Reads never fail: storage
// and parse errors are logged and treated as an empty list.
type Repository struct {
	kv  kvstore.Store
	now func() time.Time

	// writeMu serializes read-modify-write cycles within this process.
	writeMu sync.Mutex

	subMu       sync.Mutex
	subscribers map[int]func()
	nextSubID   int
}

// NewRepository returns a repository backed by kv. If now is nil, time.Now is used.
func NewRepository(kv kvstore.Store, now func() time.Time) *Repository {
	if now == nil {
		now = time.Now
	}
	return &Repository{
		kv:          kv,
		now:         now,
		subscribers: make(map[int]func()),
	}
}

// Subscribe registers fn to be called after every change to the repository. The returned
// function removes the subscription.
func (r *Repository) Subscribe(fn func()) func() {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = fn

	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		delete(r.subscribers, id)
	}
}

// emitChanged calls every subscriber. Subscribers are called outside the lock so that they
// may read from the repository.
func (r *Repository) emitChanged() {
	r.subMu.Lock()
	fns := make([]func(), 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		fns = append(fns, fn)
	}
	r.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// load reads the full persisted list, including expired entries.
func (r *Repository) load(ctx context.Context) []model.Notification {
	data, found, err := r.kv.Get(ctx, Key)
	if err != nil {
		log.WithError(err).Warn("unable to read notifications")
		return []model.Notification{}
	}
	if !found {
		return []model.Notification{}
	}

	var list []model.Notification
	if err := json.Unmarshal(data, &list); err != nil {
		log.WithError(err).Warn("unable to parse notifications")
		return []model.Notification{}
	}
	return list
}

// save replaces the persisted list.
func (r *Repository) save(ctx context.Context, list []model.Notification) error {
	wrapMsg := "unable to save notifications"

	data, err := json.Marshal(list)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	if err := r.kv.Set(ctx, Key, data); err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	return nil
}

// dropExpired returns the unexpired notifications in list, preserving order.
func (r *Repository) dropExpired(list []model.Notification) []model.Notification {
	nowMillis := common.EpochMillis(r.now())
	active := make([]model.Notification, 0, len(list))
	for _, n := range list {
		if !n.Expired(nowMillis) {
			active = append(active, n)
		}
	}
	return active
}

// ListActive returns the unexpired notifications, newest first. If any expired notifications
// were found, the pruned list is written back.
func (r *Repository) ListActive(ctx context.Context) []model.Notification {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	all := r.load(ctx)
	active := r.dropExpired(all)

	// Compact lazily; a failure here only means the expired entries linger in storage.
	if len(active) != len(all) {
		if err := r.save(ctx, active); err != nil {
			log.WithError(err).Warn("unable to compact expired notifications")
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].CreatedAt > active[j].CreatedAt
	})
	return active
}

// List returns the active notifications matching filter, newest first.
func (r *Repository) List(ctx context.Context, filter Filter) []model.Notification {
	active := r.ListActive(ctx)
	result := make([]model.Notification, 0, len(active))
	for _, n := range active {
		if filter.Category != "" && n.Category != filter.Category {
			continue
		}
		if filter.UnreadOnly && !n.Unread {
			continue
		}
		result = append(result, n)
	}
	return result
}

// CountUnread counts the active notifications that haven't been marked as read.
func (r *Repository) CountUnread(ctx context.Context) int {
	return len(r.List(ctx, Filter{UnreadOnly: true}))
}

// IDs returns the set of notification IDs currently persisted.
func (r *Repository) IDs(ctx context.Context) map[string]bool {
	list := r.load(ctx)
	ids := make(map[string]bool, len(list))
	for _, n := range list {
		ids[n.ID] = true
	}
	return ids
}

// update applies fn to the persisted list and writes the result back if fn reports a change.
func (r *Repository) update(ctx context.Context, fn func([]model.Notification) ([]model.Notification, bool)) error {
	r.writeMu.Lock()
	list, changed := fn(r.dropExpired(r.load(ctx)))
	if !changed {
		r.writeMu.Unlock()
		return nil
	}
	err := r.save(ctx, list)
	r.writeMu.Unlock()

	if err != nil {
		return err
	}
	r.emitChanged()
	return nil
}

// Insert prepends a notification to the list.
func (r *Repository) Insert(ctx context.Context, n model.Notification) error {
	return r.update(ctx, func(list []model.Notification) ([]model.Notification, bool) {
		return append([]model.Notification{n}, list...), true
	})
}

// MarkRead marks a single notification as read. Unknown IDs are ignored.
func (r *Repository) MarkRead(ctx context.Context, id string) error {
	return r.update(ctx, func(list []model.Notification) ([]model.Notification, bool) {
		for i := range list {
			if list[i].ID == id {
				changed := list[i].Unread
				list[i].Unread = false
				return list, changed
			}
		}
		return list, false
	})
}

// MarkAllRead marks every notification as read.
func (r *Repository) MarkAllRead(ctx context.Context) error {
	return r.update(ctx, func(list []model.Notification) ([]model.Notification, bool) {
		changed := false
		for i := range list {
			if list[i].Unread {
				list[i].Unread = false
				changed = true
			}
		}
		return list, changed
	})
}

// Remove deletes a notification. Unknown IDs are ignored.
func (r *Repository) Remove(ctx context.Context, id string) error {
	return r.update(ctx, func(list []model.Notification) ([]model.Notification, bool) {
		for i := range list {
			if list[i].ID == id {
				return append(list[:i], list[i+1:]...), true
			}
		}
		return list, false
	})
}

// Merge adds the notifications whose IDs aren't already present, newest first, and returns
// the ones that were added. Subscribers are notified once for the whole batch.
func (r *Repository) Merge(ctx context.Context, incoming []model.Notification) ([]model.Notification, error) {
	var added []model.Notification

	err := r.update(ctx, func(list []model.Notification) ([]model.Notification, bool) {
		seen := make(map[string]bool, len(list)+len(incoming))
		for _, n := range list {
			seen[n.ID] = true
		}

		added = make([]model.Notification, 0, len(incoming))
		for _, n := range incoming {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			added = append(added, n)
		}
		if len(added) == 0 {
			return list, false
		}

		sort.SliceStable(added, func(i, j int) bool {
			return added[i].CreatedAt > added[j].CreatedAt
		})
		return append(append([]model.Notification{}, added...), list...), true
	})
	if err != nil {
		return nil, err
	}

	return added, nil
}
