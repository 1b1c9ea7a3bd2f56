package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/timeslice/internal/middleware"
	"github.com/mmeshcher/timeslice/internal/model"
	"github.com/mmeshcher/timeslice/internal/repository"
	"github.com/mmeshcher/timeslice/internal/service"
)

type stubService struct {
	Service

	registerID  int64
	registerErr error

	createdTask *model.Task
	createErr   error

	tasks   []model.Task
	task    *model.Task
	taskErr error

	booking    *model.Booking
	bookingErr error

	review    *model.Review
	reviewErr error
}

func (s *stubService) RegisterUser(ctx context.Context, login, password string, skills []string) (int64, error) {
	return s.registerID, s.registerErr
}

func (s *stubService) CreateTask(ctx context.Context, t *model.Task) (int64, error) {
	s.createdTask = t
	return 1, s.createErr
}

func (s *stubService) ListTasks(ctx context.Context, f repository.TaskFilter) ([]model.Task, error) {
	return s.tasks, nil
}

func (s *stubService) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	return s.task, s.taskErr
}

func (s *stubService) GetBooking(ctx context.Context, bookingID, callerID int64) (*model.Booking, error) {
	return s.booking, s.bookingErr
}

func (s *stubService) UpdateBookingStatus(ctx context.Context, bookingID, actorID int64, to model.BookingStatus) (*model.Booking, error) {
	return s.booking, s.bookingErr
}

func (s *stubService) AddReview(ctx context.Context, bookingID, reviewerID int64, rating int, comment string) (*model.Review, error) {
	return s.review, s.reviewErr
}

func newTestServer(t *testing.T, svc *stubService) (*httptest.Server, *middleware.AuthMiddleware) {
	t.Helper()

	auth := middleware.NewAuthMiddleware("test-secret")
	h := NewHandler(svc, zap.NewNop(), auth)
	srv := httptest.NewServer(h.SetupRouter())
	t.Cleanup(srv.Close)
	return srv, auth
}

func authCookie(t *testing.T, auth *middleware.AuthMiddleware, userID int64) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	auth.SetAuthCookie(rec, userID)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one auth cookie, got %d", len(cookies))
	}
	return cookies[0]
}

func doRequest(t *testing.T, method, url string, body string, cookie *http.Cookie) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRegister(t *testing.T) {
	srv, _ := newTestServer(t, &stubService{registerID: 42})

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/user/register",
		`{"login":"helper","password":"secret","skills":["go"]}`, nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got map[string]int64
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["id"] != 42 {
		t.Errorf("id = %d, want 42", got["id"])
	}

	found := false
	for _, c := range resp.Cookies() {
		if c.Name == "ts_auth" && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("auth cookie not set after registration")
	}
}

func TestRegister_Conflict(t *testing.T) {
	srv, _ := newTestServer(t, &stubService{registerErr: repository.ErrUserExists})

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/user/register",
		`{"login":"helper","password":"secret"}`, nil)

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestRegister_MissingFields(t *testing.T) {
	srv, _ := newTestServer(t, &stubService{})

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/user/register", `{"login":"helper"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	srv, _ := newTestServer(t, &stubService{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/tasks", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestCreateTask_DefaultApplicationLimit(t *testing.T) {
	svc := &stubService{}
	srv, auth := newTestServer(t, svc)
	cookie := authCookie(t, auth, 7)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/tasks",
		`{"title":"Fix the fence","description":"One broken plank","credits":30}`, cookie)

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if svc.createdTask == nil {
		t.Fatal("task not passed to service")
	}
	if svc.createdTask.ProviderID != 7 {
		t.Errorf("provider id = %d, want 7", svc.createdTask.ProviderID)
	}
	if svc.createdTask.MaxApplications != 10 {
		t.Errorf("max applications = %d, want default 10", svc.createdTask.MaxApplications)
	}
}

func TestListTasks_Empty(t *testing.T) {
	srv, auth := newTestServer(t, &stubService{})
	cookie := authCookie(t, auth, 7)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/tasks", "", cookie)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
}

func TestGetTask(t *testing.T) {
	svc := &stubService{task: &model.Task{
		ID:         5,
		ProviderID: 7,
		Title:      "Walk the dog",
		Status:     model.TaskStatusOpen,
		Credits:    10,
		CreatedAt:  time.Now(),
	}}
	srv, auth := newTestServer(t, svc)
	cookie := authCookie(t, auth, 7)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/tasks/5", "", cookie)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.ID != 5 || got.Title != "Walk the dog" || got.Status != string(model.TaskStatusOpen) {
		t.Errorf("unexpected body: %+v", got)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", repository.ErrNotFound, http.StatusNotFound},
		{"forbidden", repository.ErrForbidden, http.StatusForbidden},
		{"forbidden transition", repository.ErrForbiddenTransition, http.StatusForbidden},
		{"insufficient credits", repository.ErrInsufficientCredits, http.StatusPaymentRequired},
		{"invalid state", repository.ErrInvalidState, http.StatusConflict},
		{"internal", fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, auth := newTestServer(t, &stubService{bookingErr: tt.err})
			cookie := authCookie(t, auth, 7)

			resp := doRequest(t, http.MethodPut, srv.URL+"/api/bookings/3/status",
				`{"status":"in-progress"}`, cookie)

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestAddReview(t *testing.T) {
	svc := &stubService{review: &model.Review{
		ID:           1,
		BookingID:    3,
		ReviewerRole: model.RoleProvider,
		Rating:       5,
		CreatedAt:    time.Now(),
	}}
	srv, auth := newTestServer(t, svc)
	cookie := authCookie(t, auth, 7)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/bookings/3/review",
		`{"rating":5,"comment":"great work"}`, cookie)

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
}

func TestAddReview_ValidationError(t *testing.T) {
	svc := &stubService{reviewErr: fmt.Errorf("%w: rating must be between 1 and 5", service.ErrValidation)}
	srv, auth := newTestServer(t, svc)
	cookie := authCookie(t, auth, 7)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/bookings/3/review",
		`{"rating":9}`, cookie)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestBadTaskID(t *testing.T) {
	srv, auth := newTestServer(t, &stubService{})
	cookie := authCookie(t, auth, 7)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/tasks/abc", "", cookie)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestNotFoundRoute(t *testing.T) {
	srv, _ := newTestServer(t, &stubService{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/unknown", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	body := new(strings.Builder)
	if _, err := io.Copy(body, resp.Body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body.String(), http.StatusText(http.StatusNotFound)) {
		t.Errorf("unexpected body: %q", body.String())
	}
}
