// Package service реализует бизнес-логику сервиса таймслайс.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/timeslice/internal/metrics"
	"github.com/mmeshcher/timeslice/internal/model"
	"github.com/mmeshcher/timeslice/internal/notify"
	"github.com/mmeshcher/timeslice/internal/repository"
	"github.com/mmeshcher/timeslice/internal/validation"
)

// ErrValidation оборачивает тексты проверок входных данных.
var ErrValidation = errors.New("validation failed")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, login string, passwordHash []byte, skills []string, startCredits int64) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetBalance(ctx context.Context, userID int64) (*model.Balance, error)
	GetCreditEntries(ctx context.Context, userID int64) ([]model.CreditEntry, error)

	CreateTask(ctx context.Context, t *model.Task) (int64, error)
	GetTask(ctx context.Context, id int64) (*model.Task, error)
	ListTasks(ctx context.Context, f repository.TaskFilter) ([]model.Task, error)
	DeleteTask(ctx context.Context, taskID, providerID int64) error
	CancelTask(ctx context.Context, taskID, providerID int64) error

	CreateApplication(ctx context.Context, a *model.Application) (int64, error)
	GetApplication(ctx context.Context, id int64) (*model.Application, error)
	ListApplicationsByApplicant(ctx context.Context, applicantID int64) ([]model.Application, error)
	ListApplicationsByTask(ctx context.Context, taskID int64) ([]model.Application, error)
	RespondApplication(ctx context.Context, appID, providerID int64, status model.ApplicationStatus, message string, agreedCredits *int64) (*model.Booking, error)
	WithdrawApplication(ctx context.Context, appID, applicantID int64) error

	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	ListBookingsByUser(ctx context.Context, userID int64) ([]model.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID, actorID int64, to model.BookingStatus) (*model.Booking, error)
	SubmitWork(ctx context.Context, bookingID, helperID int64, deliverables []string, note string) (*model.Booking, error)
	DisputeBooking(ctx context.Context, bookingID, actorID int64) (*model.Booking, error)
	ResolveDispute(ctx context.Context, bookingID int64, outcome repository.DisputeOutcome) (*model.Booking, error)
	AddReview(ctx context.Context, bookingID, reviewerID int64, rating int, comment string) (*model.Review, error)
}

// Service содержит бизнес-логику сервиса таймслайс.
type Service struct {
	repo         Repository
	notifier     *notify.Client
	logger       *zap.Logger
	startCredits int64
}

// New создаёт сервис с указанным репозиторием и клиентом уведомлений.
func New(repo Repository, notifier *notify.Client, logger *zap.Logger, startCredits int64) *Service {
	return &Service{
		repo:         repo,
		notifier:     notifier,
		logger:       logger,
		startCredits: startCredits,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя со стартовым балансом кредитов.
func (s *Service) RegisterUser(ctx context.Context, login, password string, skills []string) (int64, error) {
	if msg := validation.ValidateSkills(skills); msg != "" {
		return 0, fmt.Errorf("%w: %s", ErrValidation, msg)
	}
	hashed := hashPassword(login, password)
	return s.repo.CreateUser(ctx, login, hashed, skills, s.startCredits)
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, errors.New("invalid credentials")
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// GetUser возвращает профиль пользователя.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// GetBalance возвращает баланс пользователя.
func (s *Service) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	return s.repo.GetBalance(ctx, userID)
}

// GetCreditEntries возвращает журнал переводов пользователя.
func (s *Service) GetCreditEntries(ctx context.Context, userID int64) ([]model.CreditEntry, error) {
	return s.repo.GetCreditEntries(ctx, userID)
}

// CreateTask создаёт задачу от имени заказчика.
func (s *Service) CreateTask(ctx context.Context, t *model.Task) (int64, error) {
	if msg := validation.ValidateTaskInput(t.Title, t.Description, t.Credits, t.MaxApplications); msg != "" {
		return 0, fmt.Errorf("%w: %s", ErrValidation, msg)
	}
	if msg := validation.ValidateSkills(t.SkillsRequired); msg != "" {
		return 0, fmt.Errorf("%w: %s", ErrValidation, msg)
	}

	id, err := s.repo.CreateTask(ctx, t)
	if err != nil {
		return 0, err
	}
	metrics.TasksCreated.Inc()
	return id, nil
}

// GetTask возвращает задачу.
func (s *Service) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	return s.repo.GetTask(ctx, id)
}

// ListTasks возвращает задачи по фильтру.
func (s *Service) ListTasks(ctx context.Context, f repository.TaskFilter) ([]model.Task, error) {
	return s.repo.ListTasks(ctx, f)
}

// ListTaskApplications возвращает отклики на задачу; доступно только её владельцу.
func (s *Service) ListTaskApplications(ctx context.Context, taskID, callerID int64) ([]model.Application, error) {
	t, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.ProviderID != callerID {
		return nil, repository.ErrForbidden
	}
	return s.repo.ListApplicationsByTask(ctx, taskID)
}

// DeleteTask удаляет открытую задачу её владельцем.
func (s *Service) DeleteTask(ctx context.Context, taskID, providerID int64) error {
	return s.repo.DeleteTask(ctx, taskID, providerID)
}

// CancelTask отменяет задачу её владельцем.
func (s *Service) CancelTask(ctx context.Context, taskID, providerID int64) error {
	return s.repo.CancelTask(ctx, taskID, providerID)
}

// ApplyToTask создаёт отклик на задачу. Скоринг соответствия считается один раз
// на момент подачи и далее не пересчитывается.
func (s *Service) ApplyToTask(ctx context.Context, taskID, applicantID int64, proposal string, proposedCredits int64) (*model.Application, error) {
	if msg := validation.ValidateApplicationInput(proposal, proposedCredits); msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrValidation, msg)
	}

	t, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	applicant, err := s.repo.GetUserByID(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	// предварительная проверка; решающая выполняется в транзакции репозитория
	if ok, reason := CanUserApply(t, applicantID); !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotAccepting, reason)
	}

	a := &model.Application{
		TaskID:          taskID,
		ApplicantID:     applicantID,
		ProviderID:      t.ProviderID,
		Proposal:        proposal,
		ProposedCredits: proposedCredits,
		Status:          model.ApplicationStatusPending,
		MatchScore:      MatchScore(t, applicant, proposal),
	}

	id, err := s.repo.CreateApplication(ctx, a)
	if err != nil {
		return nil, err
	}
	a.ID = id
	metrics.ApplicationsSubmitted.Inc()
	return a, nil
}

// CanUserApply — предикат возможности подать отклик. Несовпадение навыков не
// блокирует подачу, только снижает скоринг.
func CanUserApply(t *model.Task, userID int64) (bool, string) {
	if t.Status != model.TaskStatusOpen {
		return false, "task is not open"
	}
	if t.ProviderID == userID {
		return false, "task provider cannot apply to own task"
	}
	if t.ApplicationCount >= t.MaxApplications {
		return false, "application limit reached"
	}
	if !t.AcceptsApplications {
		return false, "task is not accepting applications"
	}
	return true, ""
}

// RespondToApplication обрабатывает ответ заказчика на отклик.
func (s *Service) RespondToApplication(ctx context.Context, appID, providerID int64, status model.ApplicationStatus, message string, agreedCredits *int64) (*model.Booking, error) {
	b, err := s.repo.RespondApplication(ctx, appID, providerID, status, message, agreedCredits)
	if err != nil {
		return nil, err
	}

	if status == model.ApplicationStatusAccepted {
		metrics.AcceptCascades.Inc()
	}
	s.notifyApplicationResponded(ctx, appID, status, message)
	if b != nil {
		s.notifyBookingCreated(ctx, b)
	}

	return b, nil
}

// WithdrawApplication отзывает отклик его автором.
func (s *Service) WithdrawApplication(ctx context.Context, appID, applicantID int64) error {
	return s.repo.WithdrawApplication(ctx, appID, applicantID)
}

// ListApplications возвращает отклики пользователя.
func (s *Service) ListApplications(ctx context.Context, applicantID int64) ([]model.Application, error) {
	return s.repo.ListApplicationsByApplicant(ctx, applicantID)
}

// GetBooking возвращает бронирование; доступно только его участникам.
func (s *Service) GetBooking(ctx context.Context, bookingID, callerID int64) (*model.Booking, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.HelperID != callerID && b.ProviderID != callerID {
		return nil, repository.ErrForbidden
	}
	return b, nil
}

// ListBookings возвращает бронирования пользователя.
func (s *Service) ListBookings(ctx context.Context, userID int64) ([]model.Booking, error) {
	return s.repo.ListBookingsByUser(ctx, userID)
}

// UpdateBookingStatus выполняет переход статуса бронирования от имени участника.
func (s *Service) UpdateBookingStatus(ctx context.Context, bookingID, actorID int64, to model.BookingStatus) (*model.Booking, error) {
	b, err := s.repo.UpdateBookingStatus(ctx, bookingID, actorID, to)
	if err != nil {
		return nil, err
	}
	metrics.BookingTransitions.WithLabelValues(string(to)).Inc()
	if to == model.BookingStatusCompleted {
		metrics.CreditsTransferred.Add(float64(b.AgreedCredits))
	}
	return b, nil
}

// SubmitWork сдаёт результат работы исполнителем.
func (s *Service) SubmitWork(ctx context.Context, bookingID, helperID int64, deliverables []string, note string) (*model.Booking, error) {
	b, err := s.repo.SubmitWork(ctx, bookingID, helperID, deliverables, note)
	if err != nil {
		return nil, err
	}
	metrics.BookingTransitions.WithLabelValues(string(model.BookingStatusWorkSubmitted)).Inc()
	return b, nil
}

// DisputeBooking открывает спор по бронированию.
func (s *Service) DisputeBooking(ctx context.Context, bookingID, actorID int64) (*model.Booking, error) {
	b, err := s.repo.DisputeBooking(ctx, bookingID, actorID)
	if err != nil {
		return nil, err
	}
	metrics.BookingTransitions.WithLabelValues(string(model.BookingStatusDisputed)).Inc()
	return b, nil
}

// ResolveDispute фиксирует решение по спору. Зафиксировать исход может только
// участник бронирования; само решение принимается вне сервиса.
func (s *Service) ResolveDispute(ctx context.Context, bookingID, callerID int64, outcome repository.DisputeOutcome) (*model.Booking, error) {
	if _, err := s.GetBooking(ctx, bookingID, callerID); err != nil {
		return nil, err
	}
	b, err := s.repo.ResolveDispute(ctx, bookingID, outcome)
	if err != nil {
		return nil, err
	}
	metrics.BookingTransitions.WithLabelValues(string(b.Status)).Inc()
	return b, nil
}

// AddReview сохраняет отзыв участника завершённого бронирования.
func (s *Service) AddReview(ctx context.Context, bookingID, reviewerID int64, rating int, comment string) (*model.Review, error) {
	if msg := validation.ValidateRating(rating); msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrValidation, msg)
	}
	return s.repo.AddReview(ctx, bookingID, reviewerID, rating, comment)
}

// Уведомления отправляются по принципу best effort: сбой внешнего сервиса
// не откатывает уже зафиксированную транзакцию.
func (s *Service) notifyBookingCreated(ctx context.Context, b *model.Booking) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.BookingCreated(ctx, b); err != nil && s.logger != nil {
		s.logger.Warn("notify booking created", zap.Int64("bookingID", b.ID), zap.Error(err))
	}
}

func (s *Service) notifyApplicationResponded(ctx context.Context, appID int64, status model.ApplicationStatus, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.ApplicationResponded(ctx, appID, string(status), message); err != nil && s.logger != nil {
		s.logger.Warn("notify application responded", zap.Int64("applicationID", appID), zap.Error(err))
	}
}
