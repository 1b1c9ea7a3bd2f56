package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/timeslice/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса таймслайс.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/user/me", h.Me)
			r.Get("/user/credits", h.GetCredits)

			r.Post("/tasks", h.CreateTask)
			r.Get("/tasks", h.ListTasks)
			r.Get("/tasks/{id}", h.GetTask)
			r.Delete("/tasks/{id}", h.DeleteTask)
			r.Put("/tasks/{id}/cancel", h.CancelTask)
			r.Get("/tasks/{id}/applications", h.ListTaskApplications)
			r.Post("/tasks/{id}/applications", h.Apply)

			r.Get("/applications", h.ListApplications)
			r.Put("/applications/{id}/respond", h.Respond)
			r.Put("/applications/{id}/withdraw", h.Withdraw)

			r.Get("/bookings", h.ListBookings)
			r.Get("/bookings/{id}", h.GetBooking)
			r.Put("/bookings/{id}/status", h.UpdateBookingStatus)
			r.Put("/bookings/{id}/work", h.SubmitWork)
			r.Put("/bookings/{id}/dispute", h.Dispute)
			r.Put("/bookings/{id}/resolve", h.Resolve)
			r.Post("/bookings/{id}/review", h.AddReview)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
