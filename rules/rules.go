// Package rules scans booking state for conditions that deserve a notification.
//
// Every rule may run as often as the host likes. Repeated runs don't create duplicate
// notifications because every candidate goes through the dispatcher, which suppresses
// candidates equivalent to an active notification.
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/hoteldesk/notification-engine/common"
	"github.com/hoteldesk/notification-engine/model"
	"github.com/pkg/errors"
)

// Occupancy thresholds.
const (
	LowOccupancyThreshold = 0.30
	HighDemandThreshold   = 0.85
)

// TodayReminderLifetime is how long same-day check-in and checkout reminders stay active.
const TodayReminderLifetime = 12 * time.Hour

var log = common.Log.WithField("context", "rules")

// Dispatcher accepts candidate notifications. *dispatch.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, candidate model.Candidate) *model.Notification
}

// Rule examines a snapshot and proposes candidate notifications.
type Rule struct {
	Name   string
	Detect func(snapshot *model.Snapshot, now time.Time) []model.Candidate
}

// All lists the rules run by RunAll.
var All = []Rule{
	{Name: "upcoming check-in", Detect: UpcomingCheckins},
	{Name: "overdue payment", Detect: OverduePayments},
	{Name: "today checkout", Detect: TodayCheckouts},
	{Name: "today check-in", Detect: TodayCheckins},
	{Name: "low occupancy", Detect: LowOccupancy},
	{Name: "high demand", Detect: HighDemand},
}

// Engine runs the rules against snapshots and dispatches what they find.
type Engine struct {
	dispatcher Dispatcher
	rules      []Rule
}

// NewEngine returns an engine that runs every rule in All.
func NewEngine(dispatcher Dispatcher) *Engine {
	return &Engine{dispatcher: dispatcher, rules: All}
}

// RunAll runs every rule against the snapshot and returns the notifications that were created.
// A rule that panics is logged and skipped.
func (e *Engine) RunAll(ctx context.Context, snapshot *model.Snapshot, now time.Time) []model.Notification {
	created := make([]model.Notification, 0)
	for _, rule := range e.rules {
		created = append(created, e.run(ctx, rule, snapshot, now)...)
	}
	return created
}

// Run loads a snapshot from source and runs every rule against it.
func (e *Engine) Run(ctx context.Context, source Source, now time.Time) ([]model.Notification, error) {
	snapshot, err := source.Snapshot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load the booking snapshot")
	}
	return e.RunAll(ctx, snapshot, now), nil
}

// run runs a single rule.
func (e *Engine) run(ctx context.Context, rule Rule, snapshot *model.Snapshot, now time.Time) (created []model.Notification) {
	logger := log.WithField("rule", rule.Name)
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("rule failed: %v", r)
		}
	}()

	for _, candidate := range rule.Detect(snapshot, now) {
		if n := e.dispatcher.Dispatch(ctx, candidate); n != nil {
			created = append(created, *n)
		}
	}
	if len(created) > 0 {
		logger.Infof("created %d notifications", len(created))
	}
	return created
}

// bookingDate parses one of a booking's dates, logging unparseable values.
func bookingDate(b *model.Booking, field, value string, loc *time.Location) (time.Time, bool) {
	date, err := common.ParseDate(value, loc)
	if err != nil {
		log.WithError(err).WithField("booking", b.ID).Debugf("unusable %s", field)
		return time.Time{}, false
	}
	return date, true
}

func millis(t time.Time) *int64 {
	ms := common.EpochMillis(t)
	return &ms
}

func bookingURL(b *model.Booking) string {
	return "/bookings/" + b.ID
}

// UpcomingCheckins reminds staff of upcoming bookings that check in tomorrow. The reminder
// expires at the end of tomorrow.
func UpcomingCheckins(snapshot *model.Snapshot, now time.Time) []model.Candidate {
	tomorrow := common.StartOfDay(now).AddDate(0, 0, 1)

	var candidates []model.Candidate
	for i := range snapshot.Bookings {
		b := &snapshot.Bookings[i]
		if b.Status != model.BookingStatusUpcoming {
			continue
		}
		checkIn, ok := bookingDate(b, "check-in date", b.CheckInDate, now.Location())
		if !ok || !checkIn.Equal(tomorrow) {
			continue
		}

		candidates = append(candidates, model.Candidate{
			Kind:      model.KindCheckinReminder,
			Title:     "Check-in tomorrow",
			Message:   fmt.Sprintf("%s checks in to %s tomorrow (booking %s).", b.GuestName, b.RoomName, b.BookingNumber),
			BookingID: b.ID,
			ActionURL: bookingURL(b),
			ExpiresAt: millis(tomorrow.Add(24 * time.Hour)),
		})
	}
	return candidates
}

// OverduePayments flags bookings that still owe money after checking out. The notification
// never expires, so it stays until someone removes it.
func OverduePayments(snapshot *model.Snapshot, now time.Time) []model.Candidate {
	today := common.StartOfDay(now)

	var candidates []model.Candidate
	for i := range snapshot.Bookings {
		b := &snapshot.Bookings[i]
		if b.RemainingBalance <= 0 {
			continue
		}
		checkOut, ok := bookingDate(b, "checkout date", b.CheckOutDate, now.Location())
		if !ok || !checkOut.Before(today) {
			continue
		}

		overdueDays := common.DaysBetween(checkOut, now)
		candidates = append(candidates, model.Candidate{
			Kind:     model.KindPaymentOverdue,
			Priority: model.PriorityUrgent,
			Title:    "Payment overdue",
			Message: fmt.Sprintf(
				"Booking %s (%s) has an outstanding balance of %.2f, %d days after checkout.",
				b.BookingNumber, b.GuestName, b.RemainingBalance, overdueDays,
			),
			BookingID:      b.ID,
			ActionRequired: true,
			ActionURL:      bookingURL(b),
			Metadata: map[string]interface{}{
				"overdueDays": overdueDays,
				"amount":      b.RemainingBalance,
			},
		})
	}
	return candidates
}

// TodayCheckouts reminds staff of bookings that are ready to check out today.
func TodayCheckouts(snapshot *model.Snapshot, now time.Time) []model.Candidate {
	today := common.StartOfDay(now)

	var candidates []model.Candidate
	for i := range snapshot.Bookings {
		b := &snapshot.Bookings[i]
		if b.Status != model.BookingStatusReadyForCheckout {
			continue
		}
		checkOut, ok := bookingDate(b, "checkout date", b.CheckOutDate, now.Location())
		if !ok || !checkOut.Equal(today) {
			continue
		}

		candidates = append(candidates, model.Candidate{
			Kind:      model.KindCheckoutReminder,
			Title:     "Checkout today",
			Message:   fmt.Sprintf("%s checks out of %s today (booking %s).", b.GuestName, b.RoomName, b.BookingNumber),
			BookingID: b.ID,
			ActionURL: bookingURL(b),
			ExpiresAt: millis(now.Add(TodayReminderLifetime)),
		})
	}
	return candidates
}

// TodayCheckins reminds staff of bookings that are ready to check in today.
func TodayCheckins(snapshot *model.Snapshot, now time.Time) []model.Candidate {
	today := common.StartOfDay(now)

	var candidates []model.Candidate
	for i := range snapshot.Bookings {
		b := &snapshot.Bookings[i]
		if b.Status != model.BookingStatusReadyForCheckin {
			continue
		}
		checkIn, ok := bookingDate(b, "check-in date", b.CheckInDate, now.Location())
		if !ok || !checkIn.Equal(today) {
			continue
		}

		candidates = append(candidates, model.Candidate{
			Kind:      model.KindCheckinReminder,
			Title:     "Check-in today",
			Message:   fmt.Sprintf("%s checks in to %s today (booking %s).", b.GuestName, b.RoomName, b.BookingNumber),
			BookingID: b.ID,
			ActionURL: bookingURL(b),
			ExpiresAt: millis(now.Add(TodayReminderLifetime)),
		})
	}
	return candidates
}

// Occupancy returns the number of occupied rooms and the occupancy ratio. The ratio is zero
// when the hotel has no rooms.
func Occupancy(snapshot *model.Snapshot) (int, float64) {
	occupied := 0
	for i := range snapshot.Bookings {
		if snapshot.Bookings[i].Occupying() {
			occupied++
		}
	}
	if snapshot.TotalRooms <= 0 {
		return occupied, 0
	}
	return occupied, float64(occupied) / float64(snapshot.TotalRooms)
}

// occupancyMetadata describes the occupancy in notification metadata.
func occupancyMetadata(snapshot *model.Snapshot, occupied int, ratio float64) map[string]interface{} {
	return map[string]interface{}{
		"occupiedRooms": occupied,
		"totalRooms":    snapshot.TotalRooms,
		"occupancyRate": ratio,
	}
}

// LowOccupancy warns when fewer than 30% of the rooms are occupied. There's at most one
// warning per day.
func LowOccupancy(snapshot *model.Snapshot, _ time.Time) []model.Candidate {
	if snapshot.TotalRooms <= 0 {
		return nil
	}
	occupied, ratio := Occupancy(snapshot)
	if ratio >= LowOccupancyThreshold {
		return nil
	}

	return []model.Candidate{{
		Kind:     model.KindLowOccupancy,
		Title:    "Low occupancy",
		Message:  fmt.Sprintf("Only %d of %d rooms are occupied (%.0f%%).", occupied, snapshot.TotalRooms, ratio*100),
		Metadata: occupancyMetadata(snapshot, occupied, ratio),
	}}
}

// HighDemand reports when more than 85% of the rooms are occupied. There's at most one report
// per day.
func HighDemand(snapshot *model.Snapshot, _ time.Time) []model.Candidate {
	if snapshot.TotalRooms <= 0 {
		return nil
	}
	occupied, ratio := Occupancy(snapshot)
	if ratio <= HighDemandThreshold {
		return nil
	}

	return []model.Candidate{{
		Kind:     model.KindHighDemand,
		Title:    "High demand",
		Message:  fmt.Sprintf("%d of %d rooms are occupied (%.0f%%).", occupied, snapshot.TotalRooms, ratio*100),
		Metadata: occupancyMetadata(snapshot, occupied, ratio),
	}}
}
