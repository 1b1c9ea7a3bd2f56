package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mmeshcher/timeslice/internal/model"
	"github.com/mmeshcher/timeslice/internal/repository"
)

type bookingResponse struct {
	ID            int64    `json:"id"`
	TaskID        int64    `json:"task_id"`
	ApplicationID int64    `json:"application_id"`
	HelperID      int64    `json:"helper_id"`
	ProviderID    int64    `json:"provider_id"`
	AgreedCredits int64    `json:"agreed_credits"`
	Status        string   `json:"status"`
	WorkNote      string   `json:"work_note,omitempty"`
	Deliverables  []string `json:"deliverables,omitempty"`
	StartedAt     string   `json:"started_at,omitempty"`
	CompletedAt   string   `json:"completed_at,omitempty"`
	CreatedAt     string   `json:"created_at"`
}

func toBookingResponse(b *model.Booking) bookingResponse {
	resp := bookingResponse{
		ID:            b.ID,
		TaskID:        b.TaskID,
		ApplicationID: b.ApplicationID,
		HelperID:      b.HelperID,
		ProviderID:    b.ProviderID,
		AgreedCredits: b.AgreedCredits,
		Status:        string(b.Status),
		WorkNote:      b.WorkNote,
		Deliverables:  b.Deliverables,
		CreatedAt:     b.CreatedAt.Format(time.RFC3339),
	}
	if b.StartedAt != nil {
		resp.StartedAt = b.StartedAt.Format(time.RFC3339)
	}
	if b.CompletedAt != nil {
		resp.CompletedAt = b.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

// ListBookings возвращает бронирования текущего пользователя.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	bookings, err := h.service.ListBookings(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(bookings) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		resp = append(resp, toBookingResponse(&bookings[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetBooking возвращает бронирование его участнику.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, err := urlID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, err := h.service.GetBooking(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

type bookingStatusRequest struct {
	Status string `json:"status"`
}

// UpdateBookingStatus выполняет переход статуса бронирования от имени участника.
func (h *Handler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, err := urlID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req bookingStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, err := h.service.UpdateBookingStatus(r.Context(), id, userID, model.BookingStatus(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

type submitWorkRequest struct {
	Deliverables []string `json:"deliverables,omitempty"`
	Note         string   `json:"note,omitempty"`
}

// SubmitWork сдаёт результат работы исполнителем.
func (h *Handler) SubmitWork(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, err := urlID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req submitWorkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, err := h.service.SubmitWork(r.Context(), id, userID, req.Deliverables, req.Note)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// Dispute открывает спор по бронированию.
func (h *Handler) Dispute(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, err := urlID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, err := h.service.DisputeBooking(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

type resolveRequest struct {
	Outcome string `json:"outcome"`
}

// Resolve фиксирует исход спора: refund или resume.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, err := urlID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, err := h.service.ResolveDispute(r.Context(), id, userID, repository.DisputeOutcome(req.Outcome))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

type reviewResponse struct {
	ID           int64  `json:"id"`
	BookingID    int64  `json:"booking_id"`
	ReviewerRole string `json:"reviewer_role"`
	Rating       int    `json:"rating"`
	Comment      string `json:"comment,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// AddReview сохраняет отзыв участника завершённого бронирования.
func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, err := urlID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rev, err := h.service.AddReview(r.Context(), id, userID, req.Rating, req.Comment)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, reviewResponse{
		ID:           rev.ID,
		BookingID:    rev.BookingID,
		ReviewerRole: string(rev.ReviewerRole),
		Rating:       rev.Rating,
		Comment:      rev.Comment,
		CreatedAt:    rev.CreatedAt.Format(time.RFC3339),
	})
}
