// Package model содержит доменные сущности сервиса таймслайс.
package model

import "time"

// User представляет участника площадки: заказчика задач и/или исполнителя.
type User struct {
	ID             int64
	Login          string
	PasswordHash   []byte
	Skills         []string
	Credits        int64
	Rating         float64
	TotalRatings   int
	CompletedTasks int
	TasksCreated   int
	CreatedAt      time.Time
}

// TaskStatus описывает статус задачи.
type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "open"
	TaskStatusInReview   TaskStatus = "in-review"
	TaskStatusAssigned   TaskStatus = "assigned"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Task описывает опубликованную задачу и её жизненный цикл.
type Task struct {
	ID                  int64
	ProviderID          int64
	Title               string
	Description         string
	SkillsRequired      []string
	Credits             int64
	Status              TaskStatus
	SelectedHelperID    *int64
	MaxApplications     int
	AcceptsApplications bool
	ApplicationCount    int
	ScheduledAt         *time.Time
	DurationMinutes     int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ApplicationStatus описывает статус отклика на задачу.
type ApplicationStatus string

const (
	ApplicationStatusPending     ApplicationStatus = "pending"
	ApplicationStatusInterviewed ApplicationStatus = "interviewed"
	ApplicationStatusAccepted    ApplicationStatus = "accepted"
	ApplicationStatusRejected    ApplicationStatus = "rejected"
	ApplicationStatusWithdrawn   ApplicationStatus = "withdrawn"
)

// Application описывает отклик исполнителя на задачу.
type Application struct {
	ID              int64
	TaskID          int64
	ApplicantID     int64
	ProviderID      int64
	Proposal        string
	ProposedCredits int64
	Status          ApplicationStatus
	MatchScore      int
	ResponseMessage string
	RespondedAt     *time.Time
	CreatedAt       time.Time
}

// BookingStatus описывает статус бронирования.
type BookingStatus string

const (
	BookingStatusConfirmed     BookingStatus = "confirmed"
	BookingStatusInProgress    BookingStatus = "in-progress"
	BookingStatusWorkSubmitted BookingStatus = "work-submitted"
	BookingStatusCompleted     BookingStatus = "completed"
	BookingStatusCancelled     BookingStatus = "cancelled"
	BookingStatusDisputed      BookingStatus = "disputed"
	BookingStatusRefunded      BookingStatus = "refunded"
)

// Booking описывает договорённость между заказчиком и исполнителем по принятому отклику.
type Booking struct {
	ID            int64
	TaskID        int64
	ApplicationID int64
	HelperID      int64
	ProviderID    int64
	AgreedCredits int64
	Status        BookingStatus
	DisputedFrom  *BookingStatus
	WorkNote      string
	Deliverables  []string
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReviewerRole определяет, с какой стороны бронирования оставлен отзыв.
type ReviewerRole string

const (
	RoleHelper   ReviewerRole = "helper"
	RoleProvider ReviewerRole = "provider"
)

// Review описывает отзыв одной из сторон завершённого бронирования.
type Review struct {
	ID           int64
	BookingID    int64
	ReviewerRole ReviewerRole
	Rating       int
	Comment      string
	CreatedAt    time.Time
}

// CreditEntry описывает запись журнала перевода кредитов между пользователями.
type CreditEntry struct {
	ID         int64
	BookingID  int64
	FromUserID int64
	ToUserID   int64
	Amount     int64
	CreatedAt  time.Time
}

// Balance содержит текущий баланс пользователя и движение средств по журналу.
type Balance struct {
	Current int64 `json:"current"`
	Earned  int64 `json:"earned"`
	Spent   int64 `json:"spent"`
}
