package models

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

var (
	ErrEventNotFound   = fmt.Errorf("event %w", ErrNotFound)
	ErrBookingNotFound = fmt.Errorf("booking %w", ErrNotFound)
)

// Admission rejections.
var (
	ErrInvalidSlot      = errors.New("slot not valid")
	ErrDuplicateBooking = errors.New("you have already booked this slot")
	ErrSlotFull         = errors.New("slot already fully booked")
)

var (
	ErrValidation       = errors.New("validation error")
	ErrConflictRetry    = errors.New("booking contention, please retry")
	ErrCapacityConflict = errors.New("change conflicts with existing bookings")
)
