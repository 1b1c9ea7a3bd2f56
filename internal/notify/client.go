// Package notify предоставляет клиент внешнего сервиса уведомлений.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mmeshcher/timeslice/internal/model"
)

// Client инкапсулирует HTTP-взаимодействие с сервисом уведомлений.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// NewClient создаёт клиент уведомлений по указанному адресу. Доставка
// выполняется с повторами, логирование транспорта отключено.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc,
	}
}

type bookingCreatedEvent struct {
	Event         string `json:"event"`
	BookingID     int64  `json:"booking_id"`
	TaskID        int64  `json:"task_id"`
	HelperID      int64  `json:"helper_id"`
	ProviderID    int64  `json:"provider_id"`
	AgreedCredits int64  `json:"agreed_credits"`
}

type applicationRespondedEvent struct {
	Event         string `json:"event"`
	ApplicationID int64  `json:"application_id"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
}

// BookingCreated уведомляет о создании бронирования.
func (c *Client) BookingCreated(ctx context.Context, b *model.Booking) error {
	return c.post(ctx, bookingCreatedEvent{
		Event:         "booking.created",
		BookingID:     b.ID,
		TaskID:        b.TaskID,
		HelperID:      b.HelperID,
		ProviderID:    b.ProviderID,
		AgreedCredits: b.AgreedCredits,
	})
}

// ApplicationResponded уведомляет об ответе заказчика на отклик.
func (c *Client) ApplicationResponded(ctx context.Context, appID int64, status, message string) error {
	return c.post(ctx, applicationRespondedEvent{
		Event:         "application.responded",
		ApplicationID: appID,
		Status:        status,
		Message:       message,
	})
}

func (c *Client) post(ctx context.Context, event any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("notify client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, base+"/api/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}
