package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type recordedRequest struct {
	Method      string
	Path        string
	Body        string
	ContentType string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.RequestURI(),
			Body:        body.String(),
			ContentType: r.Header.Get("Content-Type"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"detail":"not found"}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *Client {
	return New(ts.server.URL, 5*time.Second)
}

var ctx = context.Background()

func TestListNotes(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /notes": `[{"id":"n1","title":"Sync – July 25 – Login","content":"token bug"}]`,
	})

	got, err := ts.client().ListNotes(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 note, got %d", len(got))
	}
	if got[0].ID != "n1" || got[0].Content != "token bug" {
		t.Errorf("unexpected note: %+v", got[0])
	}
}

func TestCreateNote(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /notes": `{"id":"n2","title":"t","content":"c"}`,
	})

	created, err := ts.client().CreateNote(ctx, "t", "c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != "n2" {
		t.Errorf("id = %q, want n2", created.ID)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.ContentType != "application/json" {
		t.Errorf("content type = %q, want application/json", r.ContentType)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["title"] != "t" || body["content"] != "c" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestApproveSOP_PathAndBody(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /generate-sop/n1": `{"status":"approved"}`,
	})

	payload := SOPPayload{NoteID: "n1", Title: "T", Content: "C", SOPDraft: "# SOP"}
	if err := ts.client().ApproveSOP(ctx, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Path != "/generate-sop/n1" {
		t.Errorf("path = %q, want /generate-sop/n1", r.Path)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["note_id"] != "n1" || body["sop_draft"] != "# SOP" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestApproveSOP_MissingNoteID(t *testing.T) {
	ts := newTestServer(t, nil)
	err := ts.client().ApproveSOP(ctx, SOPPayload{Title: "T"})
	if err == nil {
		t.Fatal("expected error for empty note_id")
	}
	if len(ts.requests) != 0 {
		t.Errorf("expected no request, got %d", len(ts.requests))
	}
}

func TestGenerateSOP_NoBody(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /generate-sop/n1": `{"id":"n1","title":"t","sop_draft":"regenerated draft"}`,
	})

	got, err := ts.client().GenerateSOP(ctx, "n1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SOPDraft != "regenerated draft" {
		t.Errorf("draft = %q", got.SOPDraft)
	}
	if ts.requests[0].Body != "" {
		t.Errorf("expected empty body, got %q", ts.requests[0].Body)
	}
}

func TestSearch_QueryEncoding(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /search": `[{"id":"n1","title":"t","content":"c","score":0.82}]`,
	})

	results, err := ts.client().Search(ctx, "login & token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Score != 0.82 {
		t.Fatalf("unexpected results: %+v", results)
	}

	path := ts.requests[0].Path
	if strings.Contains(path, "& token") {
		t.Errorf("query not URL-encoded: %q", path)
	}
	if !strings.Contains(path, "query=login+%26+token") {
		t.Errorf("unexpected encoded path: %q", path)
	}
}

func TestErrorPriority_Detail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		w.Write([]byte(`{"detail":"content is required","message":"ignored"}`))
	}))
	defer ts.Close()

	_, err := New(ts.URL, time.Second).ListNotes(ctx)
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BackendError, got %v", err)
	}
	if be.Status != 400 || be.Message != "content is required" {
		t.Errorf("unexpected error: %+v", be)
	}
}

func TestErrorPriority_Message(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		w.Write([]byte(`{"message":"boom"}`))
	}))
	defer ts.Close()

	_, err := New(ts.URL, time.Second).ListNotes(ctx)
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BackendError, got %v", err)
	}
	if be.Message != "boom" {
		t.Errorf("message = %q, want boom", be.Message)
	}
}

func TestErrorPriority_StatusFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
		w.Write([]byte(`not json at all`))
	}))
	defer ts.Close()

	_, err := New(ts.URL, time.Second).ListNotes(ctx)
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BackendError, got %v", err)
	}
	if be.Message != "HTTP 503: Service Unavailable" {
		t.Errorf("message = %q", be.Message)
	}
}

func TestUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	_, err := New(ts.URL, time.Second).ListNotes(ctx)
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestPathNormalization(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /notes": `[]`,
	})

	c := ts.client()
	resp, err := c.do(ctx, http.MethodGet, "notes", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if ts.requests[0].Path != "/notes" {
		t.Errorf("path = %q, want /notes", ts.requests[0].Path)
	}
}
