package booking_api

import (
	"fmt"
	"net/http"
	"time"

	"ms-booking/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	AllowedOrigins []string
}

// NewRouter builds the HTTP surface. Trailing slashes are stripped before
// routing, so "/events" and "/events/" reach the same handler.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Get("/", h.ListEvents)
		r.Route("/{event_id}", func(r chi.Router) {
			r.Get("/", h.GetEvent)
			r.Put("/", h.ReplaceEvent)
			r.Delete("/", h.DeleteEvent)
			r.Get("/availability", h.EventAvailability)
			r.Post("/bookings", h.ReserveForEvent)
			r.Get("/bookings", h.ListEventBookings)
			r.Get("/bookings/stream", h.StreamEventBookings)
		})
	})

	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", h.CreateBooking)
		r.Get("/", h.ListBookings)
		r.Post("/qr/verify", h.VerifyBookingQR)
		r.Route("/{booking_id}", func(r chi.Router) {
			r.Get("/", h.GetBooking)
			r.Put("/", h.UpdateBooking)
			r.Delete("/", h.DeleteBooking)
			r.Get("/qr", h.BookingQR)
		})
	})

	r.Get("/users/{email}/bookings", h.ListUserBookings)

	return r
}

func accessLog(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", status), time.Since(start).String())
		})
	}
}
