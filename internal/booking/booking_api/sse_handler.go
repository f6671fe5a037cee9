package booking_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-booking/internal/utils"
)

// StreamEventBookings handles GET /events/{event_id}/bookings/stream: a
// server-sent event per booking change on the event.
func (h *Handler) StreamEventBookings(w http.ResponseWriter, r *http.Request) {
	if h.Feed == nil {
		_ = utils.WriteError(w, http.StatusServiceUnavailable, "unavailable", "live feed disabled")
		return
	}
	eventID, ok := h.pathID(w, r, "event_id")
	if !ok {
		return
	}
	if _, err := h.EventService.GetEvent(r.Context(), eventID); err != nil {
		h.writeError(w, r, err)
		return
	}

	// Streams outlive the server's write timeout.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	setupSSEHeaders(w)
	ctx := r.Context()
	events := h.Feed.SubscribeToEvent(ctx, eventID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"event_id\":%d}\n\n", eventID)
	if err := rc.Flush(); err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Streaming unsupported: %v", err))
		return
	}
	h.Logger.Info("SSE", fmt.Sprintf("Client connected to booking feed for event %d", eventID))

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize booking event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			if err := rc.Flush(); err != nil {
				return
			}
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from booking feed for event %d", eventID))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
