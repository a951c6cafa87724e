package rules

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hoteldesk/notification-engine/broadcast"
	"github.com/hoteldesk/notification-engine/common"
	"github.com/hoteldesk/notification-engine/dispatch"
	"github.com/hoteldesk/notification-engine/kvstore"
	"github.com/hoteldesk/notification-engine/model"
	"github.com/hoteldesk/notification-engine/notifications"
	"github.com/hoteldesk/notification-engine/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

type fixture struct {
	kv     *kvstore.Memory
	clock  *testClock
	repo   *notifications.Repository
	engine *Engine
}

func newFixture(now time.Time) *fixture {
	f := &fixture{kv: kvstore.NewMemory(), clock: &testClock{now: now}}
	f.repo = notifications.NewRepository(f.kv, f.clock.Now)
	d := dispatch.New(
		settings.New(f.kv),
		f.repo,
		broadcast.NewStorageChannel(f.kv, f.clock.Now, 0),
		dispatch.Sinks{},
		f.clock.Now,
	)
	f.engine = NewEngine(d)
	return f
}

func (f *fixture) countKind(kind model.Kind) int {
	count := 0
	for _, n := range f.repo.ListActive(context.Background()) {
		if n.Kind == kind {
			count++
		}
	}
	return count
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 10, 0, 0, 0, time.UTC)
}

func TestOverduePaymentScenario(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(day(2025, time.January, 5))

	snapshot := &model.Snapshot{
		Bookings: []model.Booking{{
			ID:               "B42",
			BookingNumber:    "BK-0042",
			Status:           model.BookingStatusCheckedOut,
			GuestName:        "Ada Lovelace",
			CheckInDate:      "2024-12-28",
			CheckOutDate:     "2025-01-01",
			RemainingBalance: 300,
		}},
	}

	created := f.engine.RunAll(ctx, snapshot, f.clock.now)
	require.Len(t, created, 1)
	n := created[0]
	assert.Equal(model.KindPaymentOverdue, n.Kind)
	assert.Equal("B42", n.CorrelatingID())
	assert.Equal(model.PriorityUrgent, n.Priority)
	assert.Equal(model.CategoryPayments, n.Category)
	assert.Nil(n.ExpiresAt)
	assert.EqualValues(4, n.Metadata["overdueDays"])
	assert.EqualValues(300, n.Metadata["amount"])

	// The next day the booking still owes money, but the first notification is still active.
	f.clock.now = day(2025, time.January, 6)
	assert.Empty(f.engine.RunAll(ctx, snapshot, f.clock.now))
	assert.Equal(1, f.countKind(model.KindPaymentOverdue))
}

func occupancySnapshot(totalRooms, occupied int) *model.Snapshot {
	snapshot := &model.Snapshot{TotalRooms: totalRooms}
	for i := 0; i < occupied; i++ {
		snapshot.Bookings = append(snapshot.Bookings, model.Booking{
			ID:     fmt.Sprintf("B%d", i),
			Status: model.BookingStatusCheckedIn,
		})
	}
	return snapshot
}

func TestLowOccupancyScenario(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(day(2025, time.January, 5))
	snapshot := occupancySnapshot(50, 10)

	created := f.engine.RunAll(ctx, snapshot, f.clock.now)
	if assert.Len(created, 1) {
		assert.Equal(model.KindLowOccupancy, created[0].Kind)
		assert.InDelta(0.2, created[0].Metadata["occupancyRate"], 1e-9)
	}

	for i := 0; i < 5; i++ {
		f.clock.now = f.clock.now.Add(time.Hour)
		assert.Empty(f.engine.RunAll(ctx, snapshot, f.clock.now))
	}
	assert.Equal(1, f.countKind(model.KindLowOccupancy))

	f.clock.now = day(2025, time.January, 6)
	assert.Len(f.engine.RunAll(ctx, snapshot, f.clock.now), 1)
	assert.Equal(2, f.countKind(model.KindLowOccupancy))
}

func TestOccupancyThresholds(t *testing.T) {
	assert := assert.New(t)
	now := day(2025, time.January, 5)

	assert.Len(LowOccupancy(occupancySnapshot(10, 2), now), 1)
	assert.Empty(LowOccupancy(occupancySnapshot(10, 3), now), "30% isn't below the threshold")
	assert.Empty(LowOccupancy(occupancySnapshot(0, 0), now), "a hotel without rooms has no occupancy")

	assert.Len(HighDemand(occupancySnapshot(20, 18), now), 1)
	assert.Empty(HighDemand(occupancySnapshot(20, 17), now), "85% isn't above the threshold")
	assert.Empty(HighDemand(occupancySnapshot(0, 3), now))
}

func TestOccupancyCountsOccupyingStatuses(t *testing.T) {
	snapshot := &model.Snapshot{
		TotalRooms: 10,
		Bookings: []model.Booking{
			{Status: model.BookingStatusActive},
			{Status: model.BookingStatusCheckedIn},
			{Status: model.BookingStatusReadyForCheckout},
			{Status: model.BookingStatusUpcoming},
			{Status: model.BookingStatusReadyForCheckin},
			{Status: model.BookingStatusCheckedOut},
			{Status: model.BookingStatusCancelled},
		},
	}

	occupied, ratio := Occupancy(snapshot)
	assert.Equal(t, 3, occupied)
	assert.InDelta(t, 0.3, ratio, 1e-9)
}

func TestUpcomingCheckins(t *testing.T) {
	assert := assert.New(t)
	now := day(2025, time.January, 5)

	snapshot := &model.Snapshot{Bookings: []model.Booking{
		{ID: "B1", Status: model.BookingStatusUpcoming, CheckInDate: "2025-01-06"},
		{ID: "B2", Status: model.BookingStatusUpcoming, CheckInDate: "2025-01-07"},
		{ID: "B3", Status: model.BookingStatusCancelled, CheckInDate: "2025-01-06"},
		{ID: "B4", Status: model.BookingStatusUpcoming, CheckInDate: "2025-01-06T15:00:00Z"},
		{ID: "B5", Status: model.BookingStatusUpcoming, CheckInDate: "not a date"},
	}}

	candidates := UpcomingCheckins(snapshot, now)
	if assert.Len(candidates, 2) {
		assert.Equal("B1", candidates[0].BookingID)
		assert.Equal("B4", candidates[1].BookingID)
		assert.Equal(model.KindCheckinReminder, candidates[0].Kind)

		endOfTomorrow := time.Date(2025, time.January, 7, 0, 0, 0, 0, time.UTC)
		if assert.NotNil(candidates[0].ExpiresAt) {
			assert.Equal(common.EpochMillis(endOfTomorrow), *candidates[0].ExpiresAt)
		}
	}
}

func TestTodayReminders(t *testing.T) {
	assert := assert.New(t)
	now := day(2025, time.January, 5)

	snapshot := &model.Snapshot{Bookings: []model.Booking{
		{ID: "B1", Status: model.BookingStatusReadyForCheckout, CheckOutDate: "2025-01-05"},
		{ID: "B2", Status: model.BookingStatusReadyForCheckout, CheckOutDate: "2025-01-06"},
		{ID: "B3", Status: model.BookingStatusReadyForCheckin, CheckInDate: "2025-01-05"},
		{ID: "B4", Status: model.BookingStatusUpcoming, CheckInDate: "2025-01-05"},
	}}

	checkouts := TodayCheckouts(snapshot, now)
	if assert.Len(checkouts, 1) {
		assert.Equal("B1", checkouts[0].BookingID)
		assert.Equal(model.KindCheckoutReminder, checkouts[0].Kind)
		assert.Equal(common.EpochMillis(now.Add(12*time.Hour)), *checkouts[0].ExpiresAt)
	}

	checkins := TodayCheckins(snapshot, now)
	if assert.Len(checkins, 1) {
		assert.Equal("B3", checkins[0].BookingID)
		assert.Equal(common.EpochMillis(now.Add(12*time.Hour)), *checkins[0].ExpiresAt)
	}
}

func TestOverduePaymentsIgnoresSettledAndCurrentBookings(t *testing.T) {
	now := day(2025, time.January, 5)

	snapshot := &model.Snapshot{Bookings: []model.Booking{
		{ID: "paid", CheckOutDate: "2025-01-01", RemainingBalance: 0},
		{ID: "today", CheckOutDate: "2025-01-05", RemainingBalance: 50},
		{ID: "future", CheckOutDate: "2025-01-09", RemainingBalance: 50},
	}}

	assert.Empty(t, OverduePayments(snapshot, now))
}

type panickingDispatcher struct{}

func (panickingDispatcher) Dispatch(context.Context, model.Candidate) *model.Notification {
	panic("storage exploded")
}

func TestRunAllSurvivesPanics(t *testing.T) {
	engine := NewEngine(panickingDispatcher{})
	created := engine.RunAll(context.Background(), occupancySnapshot(10, 1), day(2025, time.January, 5))
	assert.Empty(t, created)
}

func TestRunWithStoreSource(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(day(2025, time.January, 5))

	require.NoError(t, f.kv.Set(ctx, BookingsKey, []byte(`[
		{"id": "B1", "status": "checked in"},
		{"id": "B2", "status": "ready for checkout", "checkOutDate": "2025-01-05", "guestName": "Grace"}
	]`)))
	require.NoError(t, f.kv.Set(ctx, RoomsKey, []byte(`[{"id": "R1"}, {"id": "R2"}]`)))

	created, err := f.engine.Run(ctx, NewStoreSource(f.kv, 100), f.clock.now)
	assert.NoError(err)

	kinds := make([]model.Kind, 0, len(created))
	for _, n := range created {
		kinds = append(kinds, n.Kind)
	}
	assert.ElementsMatch([]model.Kind{model.KindCheckoutReminder, model.KindHighDemand}, kinds)
}

func TestStoreSource(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	kv := kvstore.NewMemory()

	// Without documents, the configured room count is used.
	snapshot, err := NewStoreSource(kv, 40).Snapshot(ctx)
	assert.NoError(err)
	assert.Empty(snapshot.Bookings)
	assert.Equal(40, snapshot.TotalRooms)

	require.NoError(t, kv.Set(ctx, BookingsKey, []byte("{broken")))
	_, err = NewStoreSource(kv, 40).Snapshot(ctx)
	assert.Error(err)
}

func TestEventCandidates(t *testing.T) {
	assert := assert.New(t)

	booking := &model.Booking{ID: "B7", BookingNumber: "BK-0007", GuestName: "Alan", RoomName: "101"}
	assert.Equal("B7", BookingConfirmed(booking).CorrelatingID())
	assert.Equal(model.KindBookingCancelled, BookingCancelled(booking).Kind)
	assert.EqualValues(120.5, PaymentReceived(booking, 120.5).Metadata["amount"])

	request := GuestRequest("Q9", "Alan", "101", "extra pillows")
	assert.Equal("Q9", request.CorrelatingID())
	assert.True(request.ActionRequired)

	maintenance := RoomMaintenance(&model.Room{ID: "R101", Name: "101"}, "leaking tap")
	assert.Equal("R101", maintenance.CorrelatingID())
	assert.Equal(model.KindSystemAlert, SystemAlert("Backup failed", "").Kind)
	assert.Empty(StaffShift("Night shift", "").CorrelatingID())
}
