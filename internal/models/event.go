package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Description string    `bun:"description" json:"description"`
	StartTime   time.Time `bun:"start_time,notnull" json:"start_time"`
	EndTime     time.Time `bun:"end_time,notnull" json:"end_time"`
	Organizer   string    `bun:"organizer,notnull" json:"organizer"`
	Slots       []string  `bun:"slots,type:jsonb,notnull" json:"slots"`
	MaxBookings int       `bun:"max_bookings,notnull" json:"max_bookings"`
}

// HasSlot reports whether label is one of the event's bookable slots.
func (e *Event) HasSlot(label string) bool {
	for _, s := range e.Slots {
		if s == label {
			return true
		}
	}
	return false
}

// SlotAvailability is the per-slot usage returned by the availability endpoint.
type SlotAvailability struct {
	Slot      string `json:"slot"`
	Capacity  int    `json:"capacity"`
	Booked    int    `json:"booked"`
	Remaining int    `json:"remaining"`
}

type EventAvailability struct {
	EventID int64              `json:"event_id"`
	Slots   []SlotAvailability `json:"slots"`
}
