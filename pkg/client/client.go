// Package client is a Go client for the stagepage HTTP API.
//
// It covers the public page endpoints and the admin API used to edit the
// page through editor sessions:
//
//	c := client.NewClient("http://localhost:8080")
//	sess, _ := c.OpenSession(ctx)
//	_, _ = c.Apply(ctx, sess.ID, draft.SetField{Section: "profile", Field: "bio", Value: "hello"})
//	_, _ = c.Publish(ctx, sess.ID)
//
// Failed requests return an [*APIError] carrying the status code and the
// error body of the server.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/stagepage/stagepage/pkg/draft"
	"github.com/stagepage/stagepage/pkg/models"
	"github.com/stagepage/stagepage/pkg/stagepage"
)

// Client is a stagepage API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL, such as
// "http://localhost:8080", without a trailing slash.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a response with a status of 400 or above.
type APIError struct {
	StatusCode int
	Message    string
	// Section, Op and ID describe a failed publish step.
	Section string
	Op      draft.Op
	ID      int64
}

func (e *APIError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("API error: status=%d, %s %s %d: %s", e.StatusCode, e.Op, e.Section, e.ID, e.Message)
	}
	return fmt.Sprintf("API error: status=%d, %s", e.StatusCode, e.Message)
}

// StatusCode returns the status of err when it is an *APIError, 0 otherwise.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

func (c *Client) do(ctx context.Context, method, path string, payload, target any) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return decodeResponse(resp, target)
}

func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
		var body struct {
			Error   string   `json:"error"`
			Section string   `json:"section"`
			Op      draft.Op `json:"op"`
			ID      int64    `json:"id"`
		}
		if json.Unmarshal(raw, &body) == nil && body.Error != "" {
			apiErr.Message = body.Error
			apiErr.Section = body.Section
			apiErr.Op = body.Op
			apiErr.ID = body.ID
		}
		return apiErr
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Health returns the health report of the server.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var result map[string]any
	if err := c.do(ctx, http.MethodGet, "/health", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Page returns the published page.
func (c *Client) Page(ctx context.Context) (*models.Page, error) {
	var result models.Page
	if err := c.do(ctx, http.MethodGet, "/api/page", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TrackView records a page view of path.
func (c *Client) TrackView(ctx context.Context, path, referrer string) error {
	body := map[string]string{"path": path, "referrer": referrer}
	return c.do(ctx, http.MethodPost, "/api/track", body, nil)
}

// TrackClick records a click on a link.
func (c *Client) TrackClick(ctx context.Context, linkID int64, referrer string) error {
	body := map[string]any{"linkId": linkID, "referrer": referrer}
	return c.do(ctx, http.MethodPost, "/api/track", body, nil)
}

// Stats returns the analytics of the last days days. A zero days uses the
// server default.
func (c *Client) Stats(ctx context.Context, days int) (*models.Stats, error) {
	path := "/api/admin/stats"
	if days > 0 {
		path += "?" + url.Values{"days": {strconv.Itoa(days)}}.Encode()
	}
	var result models.Stats
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ReadOnly reports whether the server rejects content writes.
func (c *Client) ReadOnly(ctx context.Context) (bool, error) {
	var result stagepage.ModeRequest
	if err := c.do(ctx, http.MethodGet, "/api/admin/mode", nil, &result); err != nil {
		return false, err
	}
	return result.ReadOnly, nil
}

// SetReadOnly toggles the read-only mode of the server.
func (c *Client) SetReadOnly(ctx context.Context, readOnly bool) error {
	return c.do(ctx, http.MethodPost, "/api/admin/mode", stagepage.ModeRequest{ReadOnly: readOnly}, nil)
}

// Editor sessions

// OpenSession opens an editor session on the current page.
func (c *Client) OpenSession(ctx context.Context) (*stagepage.SessionView, error) {
	var result stagepage.SessionView
	if err := c.do(ctx, http.MethodPost, "/api/admin/sessions", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Session returns the state and working copy of a session.
func (c *Client) Session(ctx context.Context, id string) (*stagepage.SessionView, error) {
	var result stagepage.SessionView
	if err := c.do(ctx, http.MethodGet, sessionPath(id, ""), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Apply applies one draft command to a session.
func (c *Client) Apply(ctx context.Context, id string, cmd draft.Command) (*stagepage.CommandResponse, error) {
	body, err := draft.EncodeCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}
	resp, err := c.doRequest(ctx, http.MethodPost, sessionPath(id, "/commands"), body)
	if err != nil {
		return nil, err
	}
	var result stagepage.CommandResponse
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Publish saves the session's draft.
func (c *Client) Publish(ctx context.Context, id string) (*stagepage.PublishResponse, error) {
	var result stagepage.PublishResponse
	if err := c.do(ctx, http.MethodPost, sessionPath(id, "/publish"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Undo discards the unsaved changes of a session.
func (c *Client) Undo(ctx context.Context, id string) (*stagepage.SessionView, error) {
	var result stagepage.SessionView
	if err := c.do(ctx, http.MethodPost, sessionPath(id, "/undo"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CloseSession closes a session, dropping its unsaved changes.
func (c *Client) CloseSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, sessionPath(id, ""), nil, nil)
}

func sessionPath(id, suffix string) string {
	return "/api/admin/sessions/" + url.PathEscape(id) + suffix
}
