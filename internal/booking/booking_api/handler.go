package booking_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"ms-booking/internal/booking"
	qr "ms-booking/internal/booking/qr_generator"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/sse"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

const emailListingLimit = 20

type Handler struct {
	BookingService *booking.BookingService
	EventService   *booking.EventService
	QR             *qr.QRGenerator
	Feed           *sse.BookingEmitter
	Ping           func(ctx context.Context) error
	Logger         *logger.Logger
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, utils.MessageResponse{Message: "Hello, slot booking backend is working!"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			h.Logger.Error("API", fmt.Sprintf("Health: database ping failed: %v", err))
			_ = utils.WriteError(w, http.StatusServiceUnavailable, "unavailable", "database unavailable")
			return
		}
	}
	h.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReserveForEvent handles POST /events/{event_id}/bookings.
func (h *Handler) ReserveForEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.pathID(w, r, "event_id")
	if !ok {
		return
	}
	var req models.BookingRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.reserve(w, r, eventID, req)
}

// CreateBooking handles POST /bookings/, taking the event from the body.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.EventID <= 0 {
		h.writeError(w, r, fmt.Errorf("%w: event_id is required", models.ErrValidation))
		return
	}
	h.reserve(w, r, req.EventID, req)
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request, eventID int64, req models.BookingRequest) {
	b, err := h.BookingService.ReserveSlot(r.Context(), eventID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, b)
}

func (h *Handler) ListEventBookings(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.pathID(w, r, "event_id")
	if !ok {
		return
	}
	h.listBookings(w, r, models.BookingFilter{EventID: eventID}, utils.DefaultLimit)
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	h.listBookings(w, r, models.BookingFilter{}, utils.DefaultLimit)
}

func (h *Handler) ListUserBookings(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || email == "" {
		h.writeError(w, r, fmt.Errorf("%w: invalid email", models.ErrValidation))
		return
	}
	h.listBookings(w, r, models.BookingFilter{AttendeeEmail: email}, emailListingLimit)
}

func (h *Handler) listBookings(w http.ResponseWriter, r *http.Request, filter models.BookingFilter, defaultLimit int) {
	page, err := utils.ParsePage(r, defaultLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	bookings, err := h.BookingService.ListBookings(r.Context(), filter, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, bookings)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "booking_id")
	if !ok {
		return
	}
	b, err := h.BookingService.GetBooking(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, b)
}

func (h *Handler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "booking_id")
	if !ok {
		return
	}
	var req models.BookingRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.BookingService.UpdateBooking(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, b)
}

func (h *Handler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "booking_id")
	if !ok {
		return
	}
	b, err := h.BookingService.DeleteBooking(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, b)
}

// BookingQR serves the booking confirmation as a PNG QR code.
func (h *Handler) BookingQR(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "booking_id")
	if !ok {
		return
	}
	b, err := h.BookingService.GetBooking(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	png, err := h.QR.GenerateConfirmationQR(*b, 256)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("generate qr for booking %d: %w", id, err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("BookingQR: failed to write response: %v", err))
	}
}

type verifyQRRequest struct {
	Token string `json:"token"`
}

// QRVerification is the result of checking a scanned confirmation token.
type QRVerification struct {
	Valid   bool            `json:"valid"`
	Reason  string          `json:"reason,omitempty"`
	Booking *models.Booking `json:"booking,omitempty"`
}

// VerifyBookingQR checks a token scanned from a confirmation QR code against
// the stored booking. Tokens that fail to open are a validation error; a
// token for a booking that has since changed is reported as not valid.
func (h *Handler) VerifyBookingQR(w http.ResponseWriter, r *http.Request) {
	var req verifyQRRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Token == "" {
		h.writeError(w, r, fmt.Errorf("%w: token is required", models.ErrValidation))
		return
	}
	c, err := h.QR.Open(req.Token)
	if err != nil {
		h.Logger.Debug("API", fmt.Sprintf("VerifyBookingQR: %v", err))
		h.writeError(w, r, fmt.Errorf("%w: invalid confirmation token", models.ErrValidation))
		return
	}
	b, err := h.BookingService.GetBooking(r.Context(), c.BookingID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !c.Matches(*b) {
		h.respond(w, http.StatusOK, QRVerification{Valid: false, Reason: "booking changed since the code was issued"})
		return
	}
	h.respond(w, http.StatusOK, QRVerification{Valid: true, Booking: b})
}

// ---------------- HELPERS ----------------

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, r, fmt.Errorf("%w: %s must be a positive integer", models.ErrValidation, name))
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid request body: %v", models.ErrValidation, err))
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, status int, v interface{}) {
	if err := utils.WriteJSON(w, status, v); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}
