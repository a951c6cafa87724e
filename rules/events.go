package rules

import (
	"fmt"

	"github.com/hoteldesk/notification-engine/model"
)

// The functions below build candidates for events reported by the rest of the hotel
// application rather than detected by a rule.

// BookingConfirmed builds the candidate for a newly confirmed booking.
func BookingConfirmed(b *model.Booking) model.Candidate {
	return model.Candidate{
		Kind:      model.KindBookingConfirmed,
		Title:     "Booking confirmed",
		Message:   fmt.Sprintf("%s confirmed booking %s for %s.", b.GuestName, b.BookingNumber, b.RoomName),
		BookingID: b.ID,
		ActionURL: bookingURL(b),
	}
}

// BookingCancelled builds the candidate for a cancelled booking.
func BookingCancelled(b *model.Booking) model.Candidate {
	return model.Candidate{
		Kind:      model.KindBookingCancelled,
		Title:     "Booking cancelled",
		Message:   fmt.Sprintf("Booking %s for %s was cancelled.", b.BookingNumber, b.GuestName),
		BookingID: b.ID,
		ActionURL: bookingURL(b),
	}
}

// PaymentReceived builds the candidate for a payment against a booking.
func PaymentReceived(b *model.Booking, amount float64) model.Candidate {
	return model.Candidate{
		Kind:      model.KindPaymentReceived,
		Title:     "Payment received",
		Message:   fmt.Sprintf("Received %.2f for booking %s.", amount, b.BookingNumber),
		BookingID: b.ID,
		ActionURL: bookingURL(b),
		Metadata:  map[string]interface{}{"amount": amount},
	}
}

// GuestRequest builds the candidate for a request made by a guest.
func GuestRequest(requestID, guestName, roomName, request string) model.Candidate {
	return model.Candidate{
		Kind:           model.KindGuestRequest,
		Title:          "Guest request",
		Message:        fmt.Sprintf("%s in %s: %s", guestName, roomName, request),
		RequestID:      requestID,
		ActionRequired: true,
	}
}

// RoomMaintenance builds the candidate for a room that needs maintenance.
func RoomMaintenance(room *model.Room, issue string) model.Candidate {
	return model.Candidate{
		Kind:           model.KindRoomMaintenance,
		Title:          "Maintenance required",
		Message:        fmt.Sprintf("%s: %s", room.Name, issue),
		RoomID:         room.ID,
		ActionRequired: true,
		ActionURL:      "/rooms/" + room.ID,
	}
}

// StaffShift builds the candidate for a staff shift announcement.
func StaffShift(title, message string) model.Candidate {
	return model.Candidate{
		Kind:    model.KindStaffShift,
		Title:   title,
		Message: message,
	}
}

// SystemAlert builds the candidate for a system alert.
func SystemAlert(title, message string) model.Candidate {
	return model.Candidate{
		Kind:    model.KindSystemAlert,
		Title:   title,
		Message: message,
	}
}
