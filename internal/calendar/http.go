package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mpetrenko/taskbot/internal/config"
)

// HTTPClient talks to a calendar service over its REST API. The service is
// expected to expose Google-Calendar-shaped event resources under
// /calendars/{calendarID}/events.
type HTTPClient struct {
	baseURL    string
	token      string
	calendarID string
	client     *http.Client
}

// NewHTTPClient creates a calendar client from configuration.
func NewHTTPClient(cfg config.CalendarConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		calendarID: cfg.CalendarID,
		client:     &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

type eventResource struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       eventTime `json:"start"`
	End         eventTime `json:"end"`
}

type eventTime struct {
	DateTime string `json:"dateTime"`
}

type createdEvent struct {
	ID string `json:"id"`
}

// CreateEvent creates a calendar event and returns its ID. An event with a
// missing end time spans one hour from its start.
func (c *HTTPClient) CreateEvent(ctx context.Context, event Event) (string, error) {
	end := event.End
	if end.IsZero() {
		end = event.Start.Add(time.Hour)
	}

	body, err := json.Marshal(eventResource{
		Summary:     event.Title,
		Description: event.Description,
		Start:       eventTime{DateTime: event.Start.Format(time.RFC3339)},
		End:         eventTime{DateTime: end.Format(time.RFC3339)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal calendar event: %w", err)
	}

	url := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, c.calendarID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build calendar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create calendar event: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("calendar API error: status %d: %s", resp.StatusCode, respBody)
	}

	var created createdEvent
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to parse calendar response: %w", err)
	}

	return created.ID, nil
}

// DeleteEvent removes a previously created event by its reference.
func (c *HTTPClient) DeleteEvent(ctx context.Context, ref string) error {
	url := fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, c.calendarID, ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build calendar request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete calendar event: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Deleting an already-deleted event is not an error.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("calendar API error: status %d: %s", resp.StatusCode, respBody)
	}

	return nil
}
