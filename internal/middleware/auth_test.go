package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func protectedEcho(t *testing.T) (http.Handler, *int64) {
	t.Helper()

	var gotUserID int64
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetUserIDFromContext(r.Context())
		if !ok {
			t.Error("user id missing from context")
		}
		gotUserID = id
		w.WriteHeader(http.StatusOK)
	})
	return h, &gotUserID
}

func TestAuthMiddleware_ValidCookie(t *testing.T) {
	auth := NewAuthMiddleware("secret")
	inner, gotUserID := protectedEcho(t)

	rec := httptest.NewRecorder()
	auth.SetAuthCookie(rec, 42)
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	auth.Middleware(inner).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if *gotUserID != 42 {
		t.Errorf("user id = %d, want 42", *gotUserID)
	}
}

func TestAuthMiddleware_NoCookie(t *testing.T) {
	auth := NewAuthMiddleware("secret")
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not be called without a cookie")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	auth.Middleware(inner).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware_ForgedSignature(t *testing.T) {
	issuer := NewAuthMiddleware("secret-a")
	verifier := NewAuthMiddleware("secret-b")

	rec := httptest.NewRecorder()
	issuer.SetAuthCookie(rec, 42)
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	verifier.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not be called with a foreign signature")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	auth := NewAuthMiddleware("secret")

	issued := time.Now().Add(-31 * 24 * time.Hour)
	auth.now = func() time.Time { return issued }
	rec := httptest.NewRecorder()
	auth.SetAuthCookie(rec, 42)
	cookie := rec.Result().Cookies()[0]
	auth.now = time.Now

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not be called with an expired token")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware_MalformedToken(t *testing.T) {
	auth := NewAuthMiddleware("secret")

	for _, value := range []string{"", "abc", "1.2", "x.y.z", "1.notanumber.deadbeef"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "ts_auth", Value: value})
		rec := httptest.NewRecorder()
		auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("handler called for token %q", value)
		})).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", value, rec.Code)
		}
	}
}
