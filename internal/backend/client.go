// Package backend is the HTTP client for the booking backend endpoints.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/transfer-booking/internal/models"
)

var ErrBookingNotFound = errors.New("booking not found")

// StatusError reports a non-success HTTP answer.
type StatusError struct {
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s: http status %d", e.Path, e.Status)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: &http.Client{Timeout: timeout}}
}

// CreateDraft posts a trip request and returns the status field of the
// answer body; the backend reports success as 200 there.
func (c *Client) CreateDraft(ctx context.Context, tr models.TripRequest) (int, error) {
	var out struct {
		Status int `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/form-data", tr, &out); err != nil {
		return 0, err
	}
	return out.Status, nil
}

// Cleanup asks the backend to drop stale drafts. The answer is ignored.
func (c *Client) Cleanup(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/cleanup", nil, nil)
}

func (c *Client) GetBooking(ctx context.Context, uuid string) (*models.Booking, error) {
	path := "/api/get-booking?uuid=" + url.QueryEscape(uuid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %w", ErrBookingNotFound, &StatusError{Path: "/api/get-booking", Status: resp.StatusCode})
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return models.DecodeBooking(body)
}

// SendBookingMail sends the confirmation mail. The payload is the booking
// document as fetched, plus the display price and currency symbol. A nil
// price is sent as null.
func (c *Client) SendBookingMail(ctx context.Context, b *models.Booking, price *int64, symbol string) error {
	payload := map[string]any{}
	if len(b.Raw) > 0 {
		if err := json.Unmarshal(b.Raw, &payload); err != nil {
			return fmt.Errorf("mail payload: %w", err)
		}
	} else {
		raw, err := json.Marshal(b)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return err
		}
	}
	payload["price"] = price
	payload["symbol"] = symbol
	return c.do(ctx, http.MethodPost, "/api/send-booking-mail", payload, nil, idempotencyKey("mail:"+b.UUID))
}

func (c *Client) UpdatePaymentStatus(ctx context.Context, uuid, status string) error {
	return c.do(ctx, http.MethodPost, "/api/update-payment-status", map[string]string{"uuid": uuid, "status": status}, nil)
}

type requestOption func(*http.Request)

// idempotencyKey lets the backend drop repeated sends for one booking.
func idempotencyKey(key string) requestOption {
	return func(r *http.Request) { r.Header.Set("Idempotency-Key", key) }
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, opts ...requestOption) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Path: path, Status: resp.StatusCode}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend %s decode: %w", path, err)
	}
	return nil
}
