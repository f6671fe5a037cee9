package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:b"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	EventID       int64     `bun:"event_id,notnull" json:"event_id"`
	AttendeeName  string    `bun:"attendee_name,notnull" json:"attendee_name"`
	AttendeeEmail string    `bun:"attendee_email,notnull" json:"attendee_email"`
	Slot          string    `bun:"slot,notnull" json:"slot"`
	BookedAt      time.Time `bun:"booked_at,notnull" json:"booked_at"`
}

// BookingFilter narrows a booking listing. Zero values mean "any".
type BookingFilter struct {
	EventID       int64
	AttendeeEmail string
}

// Page is an offset window over an id-ordered listing.
type Page struct {
	Skip  int
	Limit int
}
