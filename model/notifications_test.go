package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationPrecedence(t *testing.T) {
	assert := assert.New(t)

	// Candidates returned by value can be correlated directly.
	candidate := func() Candidate {
		return Candidate{Kind: KindRoomMaintenance, RoomID: "R1", GuestID: "G1"}
	}
	assert.Equal("R1", candidate().CorrelatingID())
	assert.Equal(Correlation{Field: CorrelationRoom, ID: "R1"}, candidate().Correlation())

	n := &Notification{BookingID: "B1", RoomID: "R1"}
	assert.Equal(Correlation{Field: CorrelationBooking, ID: "B1"}, n.Correlation())

	assert.Equal(Correlation{Field: CorrelationRequest, ID: "Q1"}, Candidate{RequestID: "Q1"}.Correlation())
	assert.Empty(Candidate{Kind: KindStaffShift}.CorrelatingID())
}

func TestCorrelationComparesField(t *testing.T) {
	room := Candidate{RoomID: "X"}.Correlation()
	booking := (&Notification{BookingID: "X"}).Correlation()

	assert.Equal(t, room.ID, booking.ID)
	assert.NotEqual(t, room, booking)
}
