// Package backend is a thin client for the fleet backend REST API. Only
// geofence creation and the dashboard counts are typed; everything else is
// passed through as raw JSON.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const DefaultURL = "http://localhost:8080"

// SubmissionError is a non-2xx answer from the backend
type SubmissionError struct {
	Status  int
	Message string
}

func (e *SubmissionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// GeofenceRequest is the body of POST /geofences. Coordinates are
// [lat, lng] pairs forming a closed ring.
type GeofenceRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Coordinates [][2]float64 `json:"coordinates"`
}

// Stats are the dashboard counters
type Stats struct {
	Geofences  int `json:"geofences"`
	Vehicles   int `json:"vehicles"`
	Alerts     int `json:"alerts"`
	Violations int `json:"violations"`
}

// Client talks to the backend
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates a backend client
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "backend").Logger(),
	}
}

// Do sends a request and returns the raw response body. body may be nil,
// a []byte/json.RawMessage that is sent as-is, or a value to marshal.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case json.RawMessage:
		reader = bytes.NewReader(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("Backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SubmissionError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage("{}"), nil
	}
	return data, nil
}

// errorMessage pulls a readable message from an error body, which may be
// plain text or a JSON object with an error or message field.
func errorMessage(data []byte) string {
	var obj struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &obj) == nil {
		if obj.Error != "" {
			return obj.Error
		}
		if obj.Message != "" {
			return obj.Message
		}
	}
	return strings.TrimSpace(string(data))
}

// CreateGeofence submits a closed ring
func (c *Client) CreateGeofence(ctx context.Context, req GeofenceRequest) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, "/geofences", nil, req)
}

func (c *Client) ListGeofences(ctx context.Context, category string) (json.RawMessage, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	return c.Do(ctx, http.MethodGet, "/geofences", q, nil)
}

func (c *Client) ListVehicles(ctx context.Context) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, "/vehicles", nil, nil)
}

func (c *Client) CreateVehicle(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, "/vehicles", nil, body)
}

func (c *Client) VehicleLocation(ctx context.Context, vehicleID string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, "/vehicles/location/"+url.PathEscape(vehicleID), nil, nil)
}

func (c *Client) UpdateLocation(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, "/vehicles/location", nil, body)
}

// ListAlertRules accepts geofence_id and vehicle_id filters
func (c *Client) ListAlertRules(ctx context.Context, filter url.Values) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, "/alerts", pick(filter, "geofence_id", "vehicle_id"), nil)
}

func (c *Client) ConfigureAlert(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, "/alerts/configure", nil, body)
}

// ViolationHistory accepts vehicle_id, geofence_id, start_date, end_date and limit
func (c *Client) ViolationHistory(ctx context.Context, filter url.Values) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, "/violations/history",
		pick(filter, "vehicle_id", "geofence_id", "start_date", "end_date", "limit"), nil)
}

// Stats counts geofences, vehicles, alert rules and the violation total
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var s Stats

	geofences, err := c.ListGeofences(ctx, "")
	if err != nil {
		return s, err
	}
	if s.Geofences, err = countField(geofences, "geofences"); err != nil {
		return s, err
	}

	vehicles, err := c.ListVehicles(ctx)
	if err != nil {
		return s, err
	}
	if s.Vehicles, err = countField(vehicles, "vehicles"); err != nil {
		return s, err
	}

	alerts, err := c.ListAlertRules(ctx, nil)
	if err != nil {
		return s, err
	}
	if s.Alerts, err = countField(alerts, "alerts"); err != nil {
		return s, err
	}

	violations, err := c.ViolationHistory(ctx, url.Values{"limit": {"1"}})
	if err != nil {
		return s, err
	}
	var total struct {
		TotalCount int `json:"total_count"`
	}
	if err := json.Unmarshal(violations, &total); err != nil {
		return s, fmt.Errorf("decode violations: %w", err)
	}
	s.Violations = total.TotalCount

	return s, nil
}

// countField returns the length of the array under key, 0 when absent
func countField(data json.RawMessage, key string) (int, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	raw, ok := obj[key]
	if !ok || string(raw) == "null" {
		return 0, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return len(items), nil
}

func pick(in url.Values, keys ...string) url.Values {
	out := url.Values{}
	for _, k := range keys {
		if v := in.Get(k); v != "" {
			out.Set(k, v)
		}
	}
	return out
}
