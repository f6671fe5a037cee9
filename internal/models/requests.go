package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// EventRequest is the body of event create and replace calls.
type EventRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Organizer   string    `json:"organizer" validate:"required"`
	Slots       []string  `json:"slots" validate:"unique,dive,required"`
	MaxBookings int       `json:"max_bookings" validate:"required,min=1"`
}

func (r *EventRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Organizer = strings.TrimSpace(r.Organizer)
	for i, s := range r.Slots {
		r.Slots[i] = strings.TrimSpace(s)
	}
	if r.Slots == nil {
		r.Slots = []string{}
	}
}

func (r *EventRequest) Validate() error {
	r.Normalize()
	return validationError(validate.Struct(r))
}

// ToEvent builds the stored record. id is zero for creates.
func (r *EventRequest) ToEvent(id int64) *Event {
	slots := make([]string, len(r.Slots))
	copy(slots, r.Slots)
	return &Event{
		ID:          id,
		Title:       r.Title,
		Description: r.Description,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Organizer:   r.Organizer,
		Slots:       slots,
		MaxBookings: r.MaxBookings,
	}
}

// BookingRequest is the body of reservation and booking replace calls.
// BookedAt is accepted for compatibility with older clients and ignored:
// the reservation time is always assigned by the server.
type BookingRequest struct {
	EventID       int64      `json:"event_id"`
	AttendeeName  string     `json:"attendee_name" validate:"required"`
	AttendeeEmail string     `json:"attendee_email" validate:"required,email"`
	Slot          string     `json:"slot" validate:"required"`
	BookedAt      *time.Time `json:"booked_at,omitempty"`
}

func (r *BookingRequest) Normalize() {
	r.AttendeeName = strings.TrimSpace(r.AttendeeName)
	r.AttendeeEmail = NormalizeEmail(r.AttendeeEmail)
	r.Slot = strings.TrimSpace(r.Slot)
}

func (r *BookingRequest) Validate() error {
	r.Normalize()
	return validationError(validate.Struct(r))
}

// NormalizeEmail is the canonical form used for duplicate detection.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "gtfield":
		return field + " must be after start_time"
	case "min":
		return field + " must be at least " + fe.Param()
	case "unique":
		return field + " must not contain duplicates"
	default:
		return fmt.Sprintf("%s failed %q", field, fe.Tag())
	}
}
