package models

import "time"

type BookingEventType string

const (
	BookingCreated BookingEventType = "booking.created"
	BookingUpdated BookingEventType = "booking.updated"
	BookingDeleted BookingEventType = "booking.deleted"
	EventDeleted   BookingEventType = "event.deleted"
)

// BookingEvent is the message published to the bookings topic.
// PreviousEventID is set when an update moved the booking off another event.
type BookingEvent struct {
	Type            BookingEventType `json:"type"`
	EventID         int64            `json:"event_id"`
	PreviousEventID int64            `json:"previous_event_id,omitempty"`
	Booking         *Booking         `json:"booking,omitempty"`
	OccurredAt      time.Time        `json:"occurred_at"`
}

func NewBookingEvent(t BookingEventType, b *Booking) BookingEvent {
	ev := BookingEvent{Type: t, Booking: b, OccurredAt: time.Now().UTC()}
	if b != nil {
		ev.EventID = b.EventID
	}
	return ev
}
