package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmeshcher/timeslice/internal/model"
	"github.com/mmeshcher/timeslice/internal/repository"
)

func TestHashPasswordDeterministic(t *testing.T) {
	a := hashPassword("user", "pass")
	b := hashPassword("user", "pass")
	c := hashPassword("user", "other")

	if string(a) != string(b) {
		t.Fatalf("hashPassword must be deterministic, got %x and %x", a, b)
	}
	if string(a) == string(c) {
		t.Fatalf("different passwords must produce different hashes")
	}
}

func TestCanUserApply(t *testing.T) {
	base := func() *model.Task {
		return &model.Task{
			ID:                  1,
			ProviderID:          10,
			Status:              model.TaskStatusOpen,
			MaxApplications:     3,
			ApplicationCount:    1,
			AcceptsApplications: true,
		}
	}

	tests := []struct {
		name   string
		mutate func(*model.Task)
		userID int64
		want   bool
	}{
		{"eligible", func(t *model.Task) {}, 20, true},
		{"own task", func(t *model.Task) {}, 10, false},
		{"not open", func(t *model.Task) { t.Status = model.TaskStatusAssigned }, 20, false},
		{"limit reached", func(t *model.Task) { t.ApplicationCount = 3 }, 20, false},
		{"closed for applications", func(t *model.Task) { t.AcceptsApplications = false }, 20, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := base()
			tt.mutate(task)
			got, reason := CanUserApply(task, tt.userID)
			if got != tt.want {
				t.Errorf("CanUserApply() = %v (%q), want %v", got, reason, tt.want)
			}
			if !got && reason == "" {
				t.Error("rejection must carry a reason")
			}
		})
	}
}

type stubRepo struct {
	Repository

	user    *model.User
	userErr error

	task    *model.Task
	taskErr error

	createdApplication *model.Application
	createAppID        int64
	createAppErr       error

	booking    *model.Booking
	bookingErr error

	respondBooking *model.Booking
	respondErr     error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubRepo) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	return s.task, s.taskErr
}

func (s *stubRepo) CreateApplication(ctx context.Context, a *model.Application) (int64, error) {
	s.createdApplication = a
	return s.createAppID, s.createAppErr
}

func (s *stubRepo) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	return s.booking, s.bookingErr
}

func (s *stubRepo) RespondApplication(ctx context.Context, appID, providerID int64, status model.ApplicationStatus, message string, agreedCredits *int64) (*model.Booking, error) {
	return s.respondBooking, s.respondErr
}

func (s *stubRepo) ResolveDispute(ctx context.Context, bookingID int64, outcome repository.DisputeOutcome) (*model.Booking, error) {
	return s.booking, nil
}

func TestRegisterUser_RejectsBadSkills(t *testing.T) {
	svc := New(&stubRepo{}, nil, nil, 100)

	_, err := svc.RegisterUser(context.Background(), "user", "pass", []string{"go", "go"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestAuthenticateUser_WrongPassword(t *testing.T) {
	repo := &stubRepo{
		user: &model.User{ID: 1, Login: "user", PasswordHash: hashPassword("user", "pass")},
	}
	svc := New(repo, nil, nil, 100)

	if _, err := svc.AuthenticateUser(context.Background(), "user", "pass"); err != nil {
		t.Fatalf("valid credentials rejected: %v", err)
	}
	if _, err := svc.AuthenticateUser(context.Background(), "user", "wrong"); err == nil {
		t.Fatal("invalid credentials accepted")
	}
}

func TestApplyToTask_Validation(t *testing.T) {
	svc := New(&stubRepo{}, nil, nil, 100)

	_, err := svc.ApplyToTask(context.Background(), 1, 2, "", 45)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	_, err = svc.ApplyToTask(context.Background(), 1, 2, "proposal", 0)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestApplyToTask_SnapshotsMatchScore(t *testing.T) {
	repo := &stubRepo{
		createAppID: 7,
		task: &model.Task{
			ID:                  1,
			ProviderID:          10,
			Status:              model.TaskStatusOpen,
			SkillsRequired:      []string{"go"},
			MaxApplications:     5,
			AcceptsApplications: true,
			CreatedAt:           time.Now(),
		},
		user: &model.User{ID: 2, Skills: []string{"go"}, CompletedTasks: 10, Rating: 5, TotalRatings: 3},
	}
	svc := New(repo, nil, nil, 100)

	a, err := svc.ApplyToTask(context.Background(), 1, 2, "I can start today and finish by evening.", 45)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if a.ID != 7 {
		t.Errorf("application id = %d, want 7", a.ID)
	}
	if repo.createdApplication == nil {
		t.Fatal("application not passed to repository")
	}
	if repo.createdApplication.MatchScore != a.MatchScore {
		t.Errorf("stored score %d differs from returned %d", repo.createdApplication.MatchScore, a.MatchScore)
	}
	if a.MatchScore <= 0 || a.MatchScore > 100 {
		t.Errorf("match score out of range: %d", a.MatchScore)
	}
}

func TestApplyToTask_OwnTask(t *testing.T) {
	repo := &stubRepo{
		task: &model.Task{
			ID: 1, ProviderID: 2, Status: model.TaskStatusOpen,
			MaxApplications: 5, AcceptsApplications: true, CreatedAt: time.Now(),
		},
		user: &model.User{ID: 2},
	}
	svc := New(repo, nil, nil, 100)

	_, err := svc.ApplyToTask(context.Background(), 1, 2, "let me do my own task", 45)
	if err == nil {
		t.Fatal("self-application accepted")
	}
	if repo.createdApplication != nil {
		t.Fatal("self-application reached the repository")
	}
}

func TestAddReview_RatingValidation(t *testing.T) {
	svc := New(&stubRepo{}, nil, nil, 100)

	_, err := svc.AddReview(context.Background(), 1, 2, 0, "")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	_, err = svc.AddReview(context.Background(), 1, 2, 6, "")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestResolveDispute_RequiresParticipant(t *testing.T) {
	repo := &stubRepo{
		booking: &model.Booking{ID: 1, HelperID: 5, ProviderID: 6, Status: model.BookingStatusDisputed},
	}
	svc := New(repo, nil, nil, 100)

	_, err := svc.ResolveDispute(context.Background(), 1, 99, repository.DisputeOutcomeRefund)
	if !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	if _, err := svc.ResolveDispute(context.Background(), 1, 5, repository.DisputeOutcomeRefund); err != nil {
		t.Fatalf("participant rejected: %v", err)
	}
}

func TestRespondToApplication_ReturnsBooking(t *testing.T) {
	repo := &stubRepo{
		respondBooking: &model.Booking{ID: 3, AgreedCredits: 45, Status: model.BookingStatusConfirmed},
	}
	svc := New(repo, nil, nil, 100)

	b, err := svc.RespondToApplication(context.Background(), 1, 10, model.ApplicationStatusAccepted, "welcome", nil)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if b == nil || b.ID != 3 {
		t.Fatalf("booking = %+v, want id 3", b)
	}
}
