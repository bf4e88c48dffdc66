// Package transport is the thin HTTP client for the ride backend. Every
// endpoint answers with the uniform envelope {success, data, message}; a
// network or HTTP-level failure surfaces as an ordinary error, while
// success=false surfaces as a *RejectionError so callers can tell a backend
// rejection from a transport fault.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/example/ride-companion/internal/models"
)

// Envelope is the backend's uniform response shape.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// RejectionError is an application-level failure: the request reached the
// backend and was rejected (success=false).
type RejectionError struct {
	Message string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return "backend rejected the request"
	}
	return "backend rejected the request: " + e.Message
}

// IsRejection reports whether err is an application rejection rather than a
// transport failure.
func IsRejection(err error) bool {
	var r *RejectionError
	return errors.As(err, &r)
}

// Client issues authenticated requests to the ride backend. It carries no
// retry or backoff logic; callers retry on their own schedule.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient builds a client with a short request timeout; slow calls are
// treated as transport failures and retried by the owning component.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// UpdatePosition upserts the caller's current position for the ride.
func (c *Client) UpdatePosition(ctx context.Context, rideID string, lat, lon float64) error {
	body := map[string]float64{"lat": lat, "lon": lon}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/rides/%s/location", rideID), body, nil)
}

// ListMembers returns the current roster with last known positions.
func (c *Client) ListMembers(ctx context.Context, rideID string) ([]models.MemberPresence, error) {
	var members []models.MemberPresence
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/rides/%s/members", rideID), nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// ListAlerts returns the backend's alert records for the ride, most relevant
// first. Returned alerts are marked server-origin.
func (c *Client) ListAlerts(ctx context.Context, rideID string) ([]models.Alert, error) {
	var alerts []models.Alert
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/rides/%s/alerts", rideID), nil, &alerts); err != nil {
		return nil, err
	}
	for i := range alerts {
		alerts[i].Origin = models.OriginServer
		alerts[i].RideID = rideID
	}
	return alerts, nil
}

// CreateAlert records an alert on the backend.
func (c *Client) CreateAlert(ctx context.Context, rideID string, category models.AlertCategory, severity models.AlertSeverity, message string) (models.Alert, error) {
	body := map[string]string{
		"category": string(category),
		"severity": string(severity),
		"message":  message,
	}
	var created models.Alert
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/rides/%s/alerts", rideID), body, &created); err != nil {
		return models.Alert{}, err
	}
	created.Origin = models.OriginServer
	return created, nil
}

// CreateEmergencyAlert records an emergency on the backend; the backend
// implies category=emergency and severity=critical.
func (c *Client) CreateEmergencyAlert(ctx context.Context, rideID, message string) (models.Alert, error) {
	body := map[string]string{"message": message}
	var created models.Alert
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/rides/%s/alerts/emergency", rideID), body, &created); err != nil {
		return models.Alert{}, err
	}
	created.Origin = models.OriginServer
	return created, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: status %d: decode envelope: %w", method, path, resp.StatusCode, err)
	}
	if !env.Success {
		return &RejectionError{Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}
