package rules

import (
	"context"
	"encoding/json"

	"github.com/hoteldesk/notification-engine/kvstore"
	"github.com/hoteldesk/notification-engine/model"
	"github.com/pkg/errors"
)

// Storage keys of the documents maintained by the hotel application.
const (
	BookingsKey = "bookings"
	RoomsKey    = "rooms"
)

// Source provides read-only snapshots of the booking state.
type Source interface {
	Snapshot(ctx context.Context) (*model.Snapshot, error)
}

// StoreSource reads the bookings and rooms documents from the key-value store.
type StoreSource struct {
	kv         kvstore.Store
	totalRooms int
}

// NewStoreSource returns a source backed by kv. totalRooms is used as the room count when the
// store has no rooms document.
func NewStoreSource(kv kvstore.Store, totalRooms int) *StoreSource {
	return &StoreSource{kv: kv, totalRooms: totalRooms}
}

// readDocument decodes the JSON document stored under key into v. A missing document leaves v
// untouched and returns false.
func (s *StoreSource) readDocument(ctx context.Context, key string, v interface{}) (bool, error) {
	wrapMsg := "unable to read the " + key + " document"

	data, found, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, errors.Wrap(err, wrapMsg)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Wrap(err, wrapMsg)
	}
	return true, nil
}

// Snapshot returns the current bookings and room count.
func (s *StoreSource) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	var bookings []model.Booking
	if _, err := s.readDocument(ctx, BookingsKey, &bookings); err != nil {
		return nil, err
	}

	totalRooms := s.totalRooms
	var rooms []model.Room
	found, err := s.readDocument(ctx, RoomsKey, &rooms)
	if err != nil {
		return nil, err
	}
	if found {
		totalRooms = len(rooms)
	}

	return &model.Snapshot{Bookings: bookings, TotalRooms: totalRooms}, nil
}

// StaticSource is a Source that always returns the same snapshot.
type StaticSource struct {
	Value model.Snapshot
}

// Snapshot returns a copy of the snapshot.
func (s StaticSource) Snapshot(context.Context) (*model.Snapshot, error) {
	snapshot := s.Value
	return &snapshot, nil
}
