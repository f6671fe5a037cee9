package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent() EventRequest {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return EventRequest{
		Title:       "Office hours",
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		Organizer:   "Carol",
		Slots:       []string{"09:00", "09:30"},
		MaxBookings: 2,
	}
}

func TestEventRequest_Validate(t *testing.T) {
	require.NoError(t, func() error { r := validEvent(); return r.Validate() }())

	tests := []struct {
		name    string
		mutate  func(*EventRequest)
		message string
	}{
		{"missing title", func(r *EventRequest) { r.Title = "  " }, "title is required"},
		{"end equals start", func(r *EventRequest) { r.EndTime = r.StartTime }, "end_time must be after start_time"},
		{"duplicate slots", func(r *EventRequest) { r.Slots = []string{"a", " a"} }, "slots must not contain duplicates"},
		{"blank slot", func(r *EventRequest) { r.Slots = []string{"a", ""} }, "is required"},
		{"zero capacity", func(r *EventRequest) { r.MaxBookings = 0 }, "max_bookings is required"},
		{"negative capacity", func(r *EventRequest) { r.MaxBookings = -2 }, "max_bookings must be at least 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validEvent()
			tt.mutate(&r)
			err := r.Validate()
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestEventRequest_NilSlotsBecomeEmpty(t *testing.T) {
	r := validEvent()
	r.Slots = nil
	require.NoError(t, r.Validate())

	e := r.ToEvent(4)
	assert.Equal(t, int64(4), e.ID)
	assert.NotNil(t, e.Slots)
	assert.Empty(t, e.Slots)
}

func TestBookingRequest_Normalize(t *testing.T) {
	r := BookingRequest{AttendeeName: " Alice ", AttendeeEmail: " Alice@Example.COM ", Slot: " 09:00 "}
	require.NoError(t, r.Validate())
	assert.Equal(t, "Alice", r.AttendeeName)
	assert.Equal(t, "alice@example.com", r.AttendeeEmail)
	assert.Equal(t, "09:00", r.Slot)

	bad := BookingRequest{AttendeeName: "Bob", AttendeeEmail: "bob-at-example", Slot: "09:00"}
	err := bad.Validate()
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "attendee_email must be a valid email address")
}

func TestEvent_HasSlot(t *testing.T) {
	e := Event{Slots: []string{"09:00", "10:00"}}
	assert.True(t, e.HasSlot("10:00"))
	assert.False(t, e.HasSlot("10:0"))
	assert.False(t, e.HasSlot(""))
}

func TestNotFoundWrapping(t *testing.T) {
	assert.ErrorIs(t, ErrEventNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrBookingNotFound, ErrNotFound)
	assert.NotErrorIs(t, ErrEventNotFound, ErrBookingNotFound)
}
