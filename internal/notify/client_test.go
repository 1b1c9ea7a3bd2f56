package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmeshcher/timeslice/internal/model"
)

func TestBookingCreated(t *testing.T) {
	var got bookingCreatedEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/events" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.BookingCreated(context.Background(), &model.Booking{
		ID:            3,
		TaskID:        1,
		HelperID:      5,
		ProviderID:    6,
		AgreedCredits: 45,
	})
	if err != nil {
		t.Fatalf("BookingCreated: %v", err)
	}

	if got.Event != "booking.created" {
		t.Errorf("event = %q, want booking.created", got.Event)
	}
	if got.BookingID != 3 || got.HelperID != 5 || got.ProviderID != 6 || got.AgreedCredits != 45 {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestApplicationResponded(t *testing.T) {
	var got applicationRespondedEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.ApplicationResponded(context.Background(), 7, "rejected", "sorry"); err != nil {
		t.Fatalf("ApplicationResponded: %v", err)
	}

	if got.Event != "application.responded" || got.ApplicationID != 7 || got.Status != "rejected" {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestPost_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.ApplicationResponded(context.Background(), 7, "accepted", ""); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestPost_NotConfigured(t *testing.T) {
	c := NewClient("")
	if err := c.ApplicationResponded(context.Background(), 7, "accepted", ""); err == nil {
		t.Fatal("expected error for missing base URL")
	}
}

func TestPost_SchemePrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// адрес без схемы, как приходит из флага -n
	c := NewClient(srv.Listener.Addr().String())
	if err := c.ApplicationResponded(context.Background(), 7, "accepted", ""); err != nil {
		t.Fatalf("ApplicationResponded: %v", err)
	}
}
