package booking_api

import (
	"errors"
	"fmt"
	"net/http"

	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

// Error codes carried in the "code" field of error bodies.
const (
	CodeEventNotFound    = "event_not_found"
	CodeBookingNotFound  = "booking_not_found"
	CodeInvalidSlot      = "invalid_slot"
	CodeDuplicateBooking = "duplicate_booking"
	CodeSlotFull         = "slot_full"
	CodeValidation       = "validation_error"
	CodeCapacityConflict = "capacity_conflict"
	CodeConflictRetry    = "conflict_retry"
	CodeInternal         = "internal_error"
)

// classify maps a service error to its HTTP status, code and client-facing
// message. Store failures are reported without their cause.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, models.ErrEventNotFound):
		return http.StatusNotFound, CodeEventNotFound, "Event not found"
	case errors.Is(err, models.ErrBookingNotFound):
		return http.StatusNotFound, CodeBookingNotFound, "Booking not found"
	case errors.Is(err, models.ErrInvalidSlot):
		return http.StatusBadRequest, CodeInvalidSlot, models.ErrInvalidSlot.Error()
	case errors.Is(err, models.ErrDuplicateBooking):
		return http.StatusBadRequest, CodeDuplicateBooking, models.ErrDuplicateBooking.Error()
	case errors.Is(err, models.ErrSlotFull):
		return http.StatusBadRequest, CodeSlotFull, models.ErrSlotFull.Error()
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, CodeValidation, err.Error()
	case errors.Is(err, models.ErrCapacityConflict):
		return http.StatusConflict, CodeCapacityConflict, err.Error()
	case errors.Is(err, models.ErrConflictRetry):
		return http.StatusConflict, CodeConflictRetry, models.ErrConflictRetry.Error()
	default:
		return http.StatusInternalServerError, CodeInternal, "internal server error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, detail := classify(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	} else {
		h.Logger.Debug("API", fmt.Sprintf("%s %s: %s", r.Method, r.URL.Path, code))
	}
	if werr := utils.WriteError(w, status, code, detail); werr != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to write error response: %v", werr))
	}
}
