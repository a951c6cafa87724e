// Package settings persists the notification settings through the key-value storage port.
package settings

import (
	"context"
	"encoding/json"

	"github.com/hoteldesk/notification-engine/common"
	"github.com/hoteldesk/notification-engine/kvstore"
	"github.com/hoteldesk/notification-engine/model"
	"github.com/pkg/errors"
)

// Key is the storage key for the persisted settings.
const Key = "notification_settings"

var log = common.Log.WithField("context", "settings")

// Store reads and writes notification settings.
type Store struct {
	kv kvstore.Store
}

// New returns a settings store backed by kv.
func New(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

// storedTypes holds the raw per-kind entries of a persisted settings document.
type storedTypes struct {
	Types map[model.Kind]json.RawMessage `json:"types"`
}

// Get returns the persisted settings merged over the defaults. Defaults only fill in keys
// that are absent from storage, both at the top level and inside each kind's entry. Read or
// parse failures yield the defaults.
func (s *Store) Get(ctx context.Context) model.Settings {
	settings := model.DefaultSettings()

	data, found, err := s.kv.Get(ctx, Key)
	if err != nil {
		log.WithError(err).Warn("unable to read notification settings; using defaults")
		return model.DefaultSettings()
	}
	if !found {
		return settings
	}

	// Unmarshalling into the defaults only overwrites the top-level keys present in the document.
	var stored storedTypes
	if err := json.Unmarshal(data, &settings); err != nil {
		log.WithError(err).Warn("unable to parse notification settings; using defaults")
		return model.DefaultSettings()
	}
	if err := json.Unmarshal(data, &stored); err != nil {
		log.WithError(err).Warn("unable to parse notification settings; using defaults")
		return model.DefaultSettings()
	}

	// Map entries are replaced wholesale by the decoder, so merge each kind separately.
	settings.Types = model.DefaultSettings().Types
	for kind, raw := range stored.Types {
		entry, ok := settings.Types[kind]
		if !ok {
			entry = model.TypeSettings{Enabled: true}
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			log.WithError(err).WithField("kind", kind).Warn("unable to parse notification type settings; using defaults")
			continue
		}
		settings.Types[kind] = entry
	}

	return settings
}

// Save replaces the persisted settings.
func (s *Store) Save(ctx context.Context, settings model.Settings) error {
	wrapMsg := "unable to save notification settings"

	data, err := json.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	if err := s.kv.Set(ctx, Key, data); err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}
