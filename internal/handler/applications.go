package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mmeshcher/timeslice/internal/model"
)

type applyRequest struct {
	Proposal        string `json:"proposal"`
	ProposedCredits int64  `json:"proposed_credits"`
}

type applicationResponse struct {
	ID              int64  `json:"id"`
	TaskID          int64  `json:"task_id"`
	ApplicantID     int64  `json:"applicant_id"`
	Proposal        string `json:"proposal"`
	ProposedCredits int64  `json:"proposed_credits"`
	Status          string `json:"status"`
	MatchScore      int    `json:"match_score"`
	ResponseMessage string `json:"response_message,omitempty"`
	RespondedAt     string `json:"responded_at,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func toApplicationResponse(a *model.Application) applicationResponse {
	resp := applicationResponse{
		ID:              a.ID,
		TaskID:          a.TaskID,
		ApplicantID:     a.ApplicantID,
		Proposal:        a.Proposal,
		ProposedCredits: a.ProposedCredits,
		Status:          string(a.Status),
		MatchScore:      a.MatchScore,
		ResponseMessage: a.ResponseMessage,
		CreatedAt:       a.CreatedAt.Format(time.RFC3339),
	}
	if a.RespondedAt != nil {
		resp.RespondedAt = a.RespondedAt.Format(time.RFC3339)
	}
	return resp
}

// Apply создаёт отклик текущего пользователя на задачу.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	taskID, err := urlID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	a, err := h.service.ApplyToTask(r.Context(), taskID, userID, req.Proposal, req.ProposedCredits)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toApplicationResponse(a))
}

type respondRequest struct {
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	AgreedCredits *int64 `json:"agreed_credits,omitempty"`
}

// Respond обрабатывает ответ заказчика на отклик: accepted, rejected или interviewed.
// Принятие возвращает созданное бронирование.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	appID, err := urlID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, err := h.service.RespondToApplication(r.Context(), appID, userID,
		model.ApplicationStatus(req.Status), req.Message, req.AgreedCredits)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if b == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// Withdraw отзывает отклик его автором.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	appID, err := urlID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.WithdrawApplication(r.Context(), appID, userID); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ListApplications возвращает отклики текущего пользователя.
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	apps, err := h.service.ListApplications(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(apps) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]applicationResponse, 0, len(apps))
	for i := range apps {
		resp = append(resp, toApplicationResponse(&apps[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}
