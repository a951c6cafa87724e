package model

// Booking statuses the rule engine cares about.
const (
	BookingStatusUpcoming         = "upcoming"
	BookingStatusReadyForCheckin  = "ready for checkin"
	BookingStatusReadyForCheckout = "ready for checkout"
	BookingStatusActive           = "active"
	BookingStatusCheckedIn        = "checked in"
	BookingStatusCheckedOut       = "checked out"
	BookingStatusCancelled        = "cancelled"
)

// Booking is the read-only view of a booking document used by the rule engine.
type Booking struct {
	ID               string  `json:"id"`
	BookingNumber    string  `json:"bookingNumber"`
	Status           string  `json:"status"`
	GuestName        string  `json:"guestName"`
	RoomName         string  `json:"roomName"`
	CheckInDate      string  `json:"checkInDate"`
	CheckOutDate     string  `json:"checkOutDate"`
	RemainingBalance float64 `json:"remainingBalance"`
}

// Occupying reports whether the booking currently occupies a room.
func (b *Booking) Occupying() bool {
	switch b.Status {
	case BookingStatusActive, BookingStatusCheckedIn, BookingStatusReadyForCheckout:
		return true
	}
	return false
}

// Room is the read-only view of a room document.
type Room struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// Snapshot is the domain state evaluated by one run of the rule engine.
type Snapshot struct {
	Bookings   []Booking
	TotalRooms int
}
