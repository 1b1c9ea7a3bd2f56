// Package handler содержит HTTP-обработчики API сервиса таймслайс.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/timeslice/internal/middleware"
	"github.com/mmeshcher/timeslice/internal/model"
	"github.com/mmeshcher/timeslice/internal/repository"
	"github.com/mmeshcher/timeslice/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string, skills []string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetBalance(ctx context.Context, userID int64) (*model.Balance, error)
	GetCreditEntries(ctx context.Context, userID int64) ([]model.CreditEntry, error)

	CreateTask(ctx context.Context, t *model.Task) (int64, error)
	GetTask(ctx context.Context, id int64) (*model.Task, error)
	ListTasks(ctx context.Context, f repository.TaskFilter) ([]model.Task, error)
	ListTaskApplications(ctx context.Context, taskID, callerID int64) ([]model.Application, error)
	DeleteTask(ctx context.Context, taskID, providerID int64) error
	CancelTask(ctx context.Context, taskID, providerID int64) error

	ApplyToTask(ctx context.Context, taskID, applicantID int64, proposal string, proposedCredits int64) (*model.Application, error)
	RespondToApplication(ctx context.Context, appID, providerID int64, status model.ApplicationStatus, message string, agreedCredits *int64) (*model.Booking, error)
	WithdrawApplication(ctx context.Context, appID, applicantID int64) error
	ListApplications(ctx context.Context, applicantID int64) ([]model.Application, error)

	GetBooking(ctx context.Context, bookingID, callerID int64) (*model.Booking, error)
	ListBookings(ctx context.Context, userID int64) ([]model.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID, actorID int64, to model.BookingStatus) (*model.Booking, error)
	SubmitWork(ctx context.Context, bookingID, helperID int64, deliverables []string, note string) (*model.Booking, error)
	DisputeBooking(ctx context.Context, bookingID, actorID int64) (*model.Booking, error)
	ResolveDispute(ctx context.Context, bookingID, callerID int64, outcome repository.DisputeOutcome) (*model.Booking, error)
	AddReview(ctx context.Context, bookingID, reviewerID int64, rating int, comment string) (*model.Review, error)
}

// Handler реализует HTTP-обработчики API сервиса таймслайс.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// writeError переводит доменные ошибки в HTTP-статусы. Текст ошибки называет
// нарушенный инвариант и отдаётся клиенту как есть.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrForbidden), errors.Is(err, repository.ErrForbiddenTransition):
		status = http.StatusForbidden
	case errors.Is(err, repository.ErrInsufficientCredits):
		status = http.StatusPaymentRequired
	case errors.Is(err, repository.ErrSelfApplication):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrDuplicateApplication),
		errors.Is(err, repository.ErrTaskNotOpen),
		errors.Is(err, repository.ErrNotAccepting),
		errors.Is(err, repository.ErrAlreadyResponded),
		errors.Is(err, repository.ErrAlreadyReviewed),
		errors.Is(err, repository.ErrInvalidState):
		status = http.StatusConflict
	default:
		h.logger.Error("request failed", zap.String("uri", r.RequestURI), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func urlID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return userID, ok
}

type credentialsRequest struct {
	Login    string   `json:"login"`
	Password string   `json:"password"`
	Skills   []string `json:"skills,omitempty"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password, req.Skills)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	writeJSON(w, http.StatusOK, map[string]int64{"id": userID})
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || err.Error() == "invalid credentials" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

type userResponse struct {
	ID             int64    `json:"id"`
	Login          string   `json:"login"`
	Skills         []string `json:"skills"`
	Credits        int64    `json:"credits"`
	Rating         float64  `json:"rating"`
	TotalRatings   int      `json:"total_ratings"`
	CompletedTasks int      `json:"completed_tasks"`
	TasksCreated   int      `json:"tasks_created"`
}

// Me возвращает профиль текущего пользователя.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:             u.ID,
		Login:          u.Login,
		Skills:         u.Skills,
		Credits:        u.Credits,
		Rating:         u.Rating,
		TotalRatings:   u.TotalRatings,
		CompletedTasks: u.CompletedTasks,
		TasksCreated:   u.TasksCreated,
	})
}

type creditEntryResponse struct {
	BookingID  int64  `json:"booking_id"`
	FromUserID int64  `json:"from_user_id"`
	ToUserID   int64  `json:"to_user_id"`
	Amount     int64  `json:"amount"`
	CreatedAt  string `json:"created_at"`
}

type creditsResponse struct {
	Balance *model.Balance        `json:"balance"`
	Entries []creditEntryResponse `json:"entries"`
}

// GetCredits возвращает баланс текущего пользователя и журнал переводов.
func (h *Handler) GetCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	entries, err := h.service.GetCreditEntries(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := creditsResponse{Balance: balance, Entries: make([]creditEntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, creditEntryResponse{
			BookingID:  e.BookingID,
			FromUserID: e.FromUserID,
			ToUserID:   e.ToUserID,
			Amount:     e.Amount,
			CreatedAt:  e.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
