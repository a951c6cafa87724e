package model

// TypeSettings holds the per-kind switches for notifications.
type TypeSettings struct {
	Enabled  bool     `json:"enabled"`
	Priority Priority `json:"priority,omitempty"`
}

// Settings holds the process-wide notification configuration.
type Settings struct {
	Enabled        bool                  `json:"enabled"`
	SoundEnabled   bool                  `json:"soundEnabled"`
	DesktopEnabled bool                  `json:"desktopEnabled"`
	EmailEnabled   bool                  `json:"emailEnabled"`
	Types          map[Kind]TypeSettings `json:"types"`
}

// DefaultSettings returns the settings used when nothing has been persisted.
func DefaultSettings() Settings {
	types := make(map[Kind]TypeSettings, len(Kinds))
	for _, k := range Kinds {
		types[k] = TypeSettings{Enabled: true, Priority: k.DefaultPriority()}
	}
	return Settings{
		Enabled:        true,
		SoundEnabled:   true,
		DesktopEnabled: true,
		EmailEnabled:   false,
		Types:          types,
	}
}

// KindEnabled reports whether notifications of the given kind may be dispatched. Kinds
// without an entry are enabled.
func (s *Settings) KindEnabled(k Kind) bool {
	ts, ok := s.Types[k]
	return !ok || ts.Enabled
}

// PriorityOverride returns the configured priority for a kind, if any.
func (s *Settings) PriorityOverride(k Kind) (Priority, bool) {
	ts, ok := s.Types[k]
	if !ok || ts.Priority == "" {
		return "", false
	}
	return ts.Priority, true
}
