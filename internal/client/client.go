// Package client is the HTTP adapter for the notes backend. It normalizes
// paths, attaches the JSON content type, and translates failures into typed
// errors the rest of the CLI can branch on.
package client

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

	"github.com/mkazmer/sopdesk/internal/notes"
)

// DefaultBaseURL matches the backend's default listen address.
const DefaultBaseURL = "http://localhost:8000"

// ErrUnreachable marks transport-level failures, as opposed to the backend
// rejecting a request.
var ErrUnreachable = errors.New("cannot reach backend")

// BackendError is a non-2xx response. Message is resolved from the response
// body's "detail" field, then "message", then the HTTP status line.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return e.Message
}

// SOPPayload is the approve body sent to POST /generate-sop/{noteID}.
type SOPPayload struct {
	NoteID   string `json:"note_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	SOPDraft string `json:"sop_draft"`
}

// Client issues requests against a single backend base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Client for baseURL. A zero timeout defaults to 30s.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL reports the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrUnreachable, c.baseURL, err)
	}
	return resp, nil
}

// decodeJSON consumes resp, translating non-2xx statuses into *BackendError
// before decoding the body into v. Pass nil v to discard the body.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		var errBody struct {
			Detail  string `json:"detail"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil {
			if errBody.Detail != "" {
				msg = errBody.Detail
			} else if errBody.Message != "" {
				msg = errBody.Message
			}
		}
		return &BackendError{Status: resp.StatusCode, Message: msg}
	}

	if v == nil {
		_, err := io.Copy(io.Discard, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// ListNotes fetches all notes.
func (c *Client) ListNotes(ctx context.Context) ([]notes.Note, error) {
	resp, err := c.do(ctx, http.MethodGet, "/notes", nil)
	if err != nil {
		return nil, err
	}
	var result []notes.Note
	if err := decodeJSON(resp, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateNote submits a new note and returns the backend's echo, including
// the assigned ID.
func (c *Client) CreateNote(ctx context.Context, title, content string) (notes.Note, error) {
	body := map[string]string{"title": title, "content": content}
	resp, err := c.do(ctx, http.MethodPost, "/notes", body)
	if err != nil {
		return notes.Note{}, err
	}
	var created notes.Note
	if err := decodeJSON(resp, &created); err != nil {
		return notes.Note{}, err
	}
	return created, nil
}

// ListSOPs fetches all approved SOPs.
func (c *Client) ListSOPs(ctx context.Context) ([]notes.SOP, error) {
	resp, err := c.do(ctx, http.MethodGet, "/sops", nil)
	if err != nil {
		return nil, err
	}
	var result []notes.SOP
	if err := decodeJSON(resp, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ApproveSOP persists payload as the SOP for its note, overwriting any
// existing SOP with the same ID.
func (c *Client) ApproveSOP(ctx context.Context, payload SOPPayload) error {
	if payload.NoteID == "" {
		return fmt.Errorf("approve: note_id is required")
	}
	resp, err := c.do(ctx, http.MethodPost, "/generate-sop/"+url.PathEscape(payload.NoteID), payload)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}

// GenerateSOP asks the backend to regenerate the SOP for noteID server-side
// (no request body) and returns the stored draft.
func (c *Client) GenerateSOP(ctx context.Context, noteID string) (notes.SOP, error) {
	resp, err := c.do(ctx, http.MethodPost, "/generate-sop/"+url.PathEscape(noteID), nil)
	if err != nil {
		return notes.SOP{}, err
	}
	var result notes.SOP
	if err := decodeJSON(resp, &result); err != nil {
		return notes.SOP{}, err
	}
	return result, nil
}

// Search sends query to the backend and returns scored notes. Ranking is
// entirely backend-owned.
func (c *Client) Search(ctx context.Context, query string) ([]notes.SearchResult, error) {
	resp, err := c.do(ctx, http.MethodGet, "/search?query="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	var result []notes.SearchResult
	if err := decodeJSON(resp, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Health probes GET /health with a short timeout, independent of the
// client's configured timeout.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}
