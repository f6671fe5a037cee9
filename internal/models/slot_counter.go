package models

import "github.com/uptrace/bun"

// SlotCounter guards the capacity of one (event, slot) pair. Reservations
// claim a place with a conditional update on this row, so concurrent writers
// serialise on the row lock instead of racing on a COUNT(*).
type SlotCounter struct {
	bun.BaseModel `bun:"table:slot_counters,alias:sc"`

	EventID  int64  `bun:"event_id,pk"`
	Slot     string `bun:"slot,pk"`
	Capacity int    `bun:"capacity,notnull"`
	Booked   int    `bun:"booked,notnull"`
}

// CounterDrift describes a counter whose booked value disagreed with the
// bookings table when reconciled.
type CounterDrift struct {
	EventID int64  `json:"event_id"`
	Slot    string `json:"slot"`
	Stored  int    `json:"stored"`
	Actual  int    `json:"actual"`
}
