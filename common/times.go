package common

import (
	"time"

	"github.com/pkg/errors"
)

// dateLayouts are the formats accepted for booking dates, most common first.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
}

// EpochMillis returns the number of milliseconds since the epoch for a timestamp.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromEpochMillis converts milliseconds since the epoch to a UTC timestamp.
func FromEpochMillis(millis int64) time.Time {
	return time.UnixMilli(millis).UTC()
}

// StartOfDay returns midnight at the beginning of the calendar day containing t, in t's location.
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two timestamps fall on the same calendar day in the location of b.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a.In(b.Location())).Equal(StartOfDay(b))
}

// DaysBetween returns the number of calendar days from `from` to `to`. The result is negative
// if `to` is earlier than `from`.
func DaysBetween(from, to time.Time) int {
	start := StartOfDay(from.In(to.Location()))
	end := StartOfDay(to)

	// Use calendar arithmetic so that daylight saving transitions don't skew the count.
	startUTC := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	endUTC := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(endUTC.Sub(startUTC).Hours() / 24)
}

// ParseDate parses an ISO date or timestamp and returns midnight of that calendar day in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}

	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return StartOfDay(t.In(loc)), nil
		}
	}

	return time.Time{}, errors.Errorf("unrecognized date format: %s", value)
}
