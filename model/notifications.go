package model

// Kind identifies the type of event a notification reports.
type Kind string

// The closed set of notification kinds.
const (
	KindBookingConfirmed Kind = "booking_confirmed"
	KindBookingCancelled Kind = "booking_cancelled"
	KindPaymentReceived  Kind = "payment_received"
	KindPaymentOverdue   Kind = "payment_overdue"
	KindCheckinReminder  Kind = "checkin_reminder"
	KindCheckoutReminder Kind = "checkout_reminder"
	KindRoomMaintenance  Kind = "room_maintenance"
	KindGuestRequest     Kind = "guest_request"
	KindSystemAlert      Kind = "system_alert"
	KindStaffShift       Kind = "staff_shift"
	KindLowOccupancy     Kind = "low_occupancy"
	KindHighDemand       Kind = "high_demand"
)

// Kinds lists every notification kind.
var Kinds = []Kind{
	KindBookingConfirmed,
	KindBookingCancelled,
	KindPaymentReceived,
	KindPaymentOverdue,
	KindCheckinReminder,
	KindCheckoutReminder,
	KindRoomMaintenance,
	KindGuestRequest,
	KindSystemAlert,
	KindStaffShift,
	KindLowOccupancy,
	KindHighDemand,
}

// Category is the coarse grouping used when filtering notifications.
type Category string

// Notification categories.
const (
	CategoryBookings Category = "bookings"
	CategoryPayments Category = "payments"
	CategoryRooms    Category = "rooms"
	CategoryGuests   Category = "guests"
	CategorySystem   Category = "system"
	CategoryStaff    Category = "staff"
)

// Priority determines which delivery channels a notification uses.
type Priority string

// Notification priorities, lowest first.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// kindDefaults holds the category and priority used when a candidate doesn't name them.
var kindDefaults = map[Kind]struct {
	category Category
	priority Priority
}{
	KindBookingConfirmed: {CategoryBookings, PriorityMedium},
	KindBookingCancelled: {CategoryBookings, PriorityHigh},
	KindPaymentReceived:  {CategoryPayments, PriorityLow},
	KindPaymentOverdue:   {CategoryPayments, PriorityUrgent},
	KindCheckinReminder:  {CategoryBookings, PriorityMedium},
	KindCheckoutReminder: {CategoryBookings, PriorityMedium},
	KindRoomMaintenance:  {CategoryRooms, PriorityHigh},
	KindGuestRequest:     {CategoryGuests, PriorityHigh},
	KindSystemAlert:      {CategorySystem, PriorityUrgent},
	KindStaffShift:       {CategoryStaff, PriorityLow},
	KindLowOccupancy:     {CategoryRooms, PriorityMedium},
	KindHighDemand:       {CategoryRooms, PriorityHigh},
}

// DefaultCategory returns the category normally associated with a kind.
func (k Kind) DefaultCategory() Category {
	if d, ok := kindDefaults[k]; ok {
		return d.category
	}
	return CategorySystem
}

// DefaultPriority returns the priority normally associated with a kind.
func (k Kind) DefaultPriority() Priority {
	if d, ok := kindDefaults[k]; ok {
		return d.priority
	}
	return PriorityMedium
}

// DayScoped reports whether notifications of this kind are singletons per calendar day
// when they carry no correlating ID.
func (k Kind) DayScoped() bool {
	return k == KindLowOccupancy || k == KindHighDemand
}

// Notification represents a single notification kept in a session's inbox.
type Notification struct {
	ID             string                 `json:"id"`
	Kind           Kind                   `json:"kind"`
	Category       Category               `json:"category"`
	Priority       Priority               `json:"priority"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Unread         bool                   `json:"unread"`
	BookingID      string                 `json:"bookingId,omitempty"`
	RoomID         string                 `json:"roomId,omitempty"`
	GuestID        string                 `json:"guestId,omitempty"`
	RequestID      string                 `json:"requestId,omitempty"`
	ActionRequired bool                   `json:"actionRequired"`
	ActionURL      string                 `json:"actionUrl,omitempty"`
	CreatedAt      int64                  `json:"createdAt"`
	ExpiresAt      *int64                 `json:"expiresAt,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Correlation returns the domain entity the notification is about. It's the zero value if
// the notification isn't about any particular entity.
func (n *Notification) Correlation() Correlation {
	return correlate(n.BookingID, n.RoomID, n.GuestID, n.RequestID)
}

// CorrelatingID returns the ID of the domain entity the notification is about, or an empty
// string if it isn't about any particular entity.
func (n *Notification) CorrelatingID() string {
	return n.Correlation().ID
}

// Expired reports whether the notification has expired as of nowMillis.
func (n *Notification) Expired(nowMillis int64) bool {
	return n.ExpiresAt != nil && *n.ExpiresAt <= nowMillis
}

// Candidate is a notification proposal that hasn't been assigned an ID or persisted yet.
type Candidate struct {
	Kind           Kind
	Category       Category
	Priority       Priority
	Title          string
	Message        string
	BookingID      string
	RoomID         string
	GuestID        string
	RequestID      string
	ActionRequired bool
	ActionURL      string
	ExpiresAt      *int64
	Metadata       map[string]interface{}
}

// Correlation returns the domain entity the candidate is about.
func (c Candidate) Correlation() Correlation {
	return correlate(c.BookingID, c.RoomID, c.GuestID, c.RequestID)
}

// CorrelatingID returns the ID of the domain entity the candidate is about.
func (c Candidate) CorrelatingID() string {
	return c.Correlation().ID
}

// BroadcastRecord is the envelope used to carry a new notification to other sessions.
type BroadcastRecord struct {
	Notification Notification `json:"notification"`
	CreatedAt    int64        `json:"createdAt"`
}

// NewBroadcastRecord wraps a notification for broadcasting.
func NewBroadcastRecord(n Notification) BroadcastRecord {
	return BroadcastRecord{Notification: n, CreatedAt: n.CreatedAt}
}

// Correlation identifies a domain entity by the kind of ID and the ID itself. IDs from
// different fields never correlate, even when their values are equal.
type Correlation struct {
	Field string
	ID    string
}

// Correlation fields, in order of precedence.
const (
	CorrelationBooking = "booking"
	CorrelationRoom    = "room"
	CorrelationGuest   = "guest"
	CorrelationRequest = "request"
)

// correlate returns the first non-empty ID along with the field it came from.
func correlate(bookingID, roomID, guestID, requestID string) Correlation {
	switch {
	case bookingID != "":
		return Correlation{Field: CorrelationBooking, ID: bookingID}
	case roomID != "":
		return Correlation{Field: CorrelationRoom, ID: roomID}
	case guestID != "":
		return Correlation{Field: CorrelationGuest, ID: guestID}
	case requestID != "":
		return Correlation{Field: CorrelationRequest, ID: requestID}
	}
	return Correlation{}
}
