package booking_api

import (
	"net/http"

	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.EventRequest
	if !h.decode(w, r, &req) {
		return
	}
	event, err := h.EventService.CreateEvent(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, event)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	page, err := utils.ParsePage(r, utils.DefaultLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	events, err := h.EventService.ListEvents(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, events)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "event_id")
	if !ok {
		return
	}
	event, err := h.EventService.GetEvent(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, event)
}

func (h *Handler) ReplaceEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "event_id")
	if !ok {
		return
	}
	var req models.EventRequest
	if !h.decode(w, r, &req) {
		return
	}
	event, err := h.EventService.ReplaceEvent(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, event)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "event_id")
	if !ok {
		return
	}
	event, err := h.EventService.DeleteEvent(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, event)
}

func (h *Handler) EventAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "event_id")
	if !ok {
		return
	}
	availability, err := h.EventService.Availability(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, availability)
}
