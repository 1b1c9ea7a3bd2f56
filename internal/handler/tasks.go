package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mmeshcher/timeslice/internal/model"
	"github.com/mmeshcher/timeslice/internal/repository"
)

type createTaskRequest struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	SkillsRequired  []string   `json:"skills_required,omitempty"`
	Credits         int64      `json:"credits"`
	MaxApplications int        `json:"max_applications,omitempty"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
}

type taskResponse struct {
	ID                  int64    `json:"id"`
	ProviderID          int64    `json:"provider_id"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	SkillsRequired      []string `json:"skills_required"`
	Credits             int64    `json:"credits"`
	Status              string   `json:"status"`
	SelectedHelperID    *int64   `json:"selected_helper_id,omitempty"`
	MaxApplications     int      `json:"max_applications"`
	AcceptsApplications bool     `json:"accepts_applications"`
	ApplicationCount    int      `json:"application_count"`
	ScheduledAt         *string  `json:"scheduled_at,omitempty"`
	DurationMinutes     int      `json:"duration_minutes,omitempty"`
	CreatedAt           string   `json:"created_at"`
}

func toTaskResponse(t *model.Task) taskResponse {
	resp := taskResponse{
		ID:                  t.ID,
		ProviderID:          t.ProviderID,
		Title:               t.Title,
		Description:         t.Description,
		SkillsRequired:      t.SkillsRequired,
		Credits:             t.Credits,
		Status:              string(t.Status),
		SelectedHelperID:    t.SelectedHelperID,
		MaxApplications:     t.MaxApplications,
		AcceptsApplications: t.AcceptsApplications,
		ApplicationCount:    t.ApplicationCount,
		DurationMinutes:     t.DurationMinutes,
		CreatedAt:           t.CreatedAt.Format(time.RFC3339),
	}
	if t.ScheduledAt != nil {
		s := t.ScheduledAt.Format(time.RFC3339)
		resp.ScheduledAt = &s
	}
	return resp
}

// CreateTask создаёт новую задачу от имени текущего пользователя.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.MaxApplications == 0 {
		req.MaxApplications = 10
	}

	t := &model.Task{
		ProviderID:      userID,
		Title:           req.Title,
		Description:     req.Description,
		SkillsRequired:  req.SkillsRequired,
		Credits:         req.Credits,
		MaxApplications: req.MaxApplications,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
	}

	id, err := h.service.CreateTask(r.Context(), t)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// ListTasks возвращает задачи по фильтрам status и skill.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	f := repository.TaskFilter{
		Status: model.TaskStatus(r.URL.Query().Get("status")),
		Skill:  r.URL.Query().Get("skill"),
	}
	if f.Status == "" {
		f.Status = model.TaskStatusOpen
	}

	tasks, err := h.service.ListTasks(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(tasks) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		resp = append(resp, toTaskResponse(&tasks[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetTask возвращает одну задачу.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	id, err := urlID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	t, err := h.service.GetTask(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

// ListTaskApplications возвращает отклики на задачу её владельцу.
func (h *Handler) ListTaskApplications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, err := urlID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	apps, err := h.service.ListTaskApplications(r.Context(), id, userID)
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

// DeleteTask удаляет открытую задачу её владельцем.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, err := urlID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteTask(r.Context(), id, userID); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CancelTask отменяет задачу её владельцем.
func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, err := urlID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.CancelTask(r.Context(), id, userID); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
