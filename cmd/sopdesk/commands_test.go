package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mkazmer/sopdesk/internal/client"
	"github.com/mkazmer/sopdesk/internal/sop"
	"github.com/mkazmer/sopdesk/internal/store"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
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
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
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

func (ts *testServer) install(t *testing.T) {
	t.Helper()
	orig := newBackendClient
	newBackendClient = func() (*client.Client, error) {
		return client.New(ts.server.URL, 0), nil
	}
	t.Cleanup(func() { newBackendClient = orig })
}

func (ts *testServer) requestsTo(path string) []recordedRequest {
	var out []recordedRequest
	for _, r := range ts.requests {
		if strings.HasPrefix(r.Path, path) {
			out = append(out, r)
		}
	}
	return out
}

var ctx = context.Background()

func execute(args ...string) error {
	defer rootCmd.SetArgs(nil)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestAddCommand_MissingSource(t *testing.T) {
	err := execute("add", "--title", "x")
	if err == nil {
		t.Fatal("expected error for missing source flags")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestAddCommand_Text(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /notes": `{"id":"n1","title":"Standup – July 25 – Deploy Freeze","content":"Freeze Friday."}`,
	})
	ts.install(t)

	err := execute("add", "--title", "Standup – July 25 – Deploy Freeze", "--text", "Freeze Friday.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["content"] != "Freeze Friday." {
		t.Errorf("body.content = %q", body["content"])
	}
}

func TestSearchCommand_BlankQuery(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.install(t)

	err := execute("search", "   ")
	if err == nil {
		t.Fatal("expected error for blank query")
	}
	if len(ts.requests) != 0 {
		t.Errorf("expected no request for blank query, got %d", len(ts.requests))
	}
}

func TestExportCommand_JSON(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /notes": `[{"id":"n1","title":"t","content":"c"}]`,
		"GET /sops":  `[]`,
	})
	ts.install(t)

	out := filepath.Join(t.TempDir(), "notes.json")
	if err := execute("export", "notes", "--format", "json", "--output", out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if !strings.Contains(string(data), `"id": "n1"`) {
		t.Errorf("export content = %s", data)
	}
}

func TestExportCommand_Stdout(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /notes": `[{"id":"n1","title":"t","content":"c"}]`,
		"GET /sops":  `[]`,
	})
	ts.install(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	defer rootCmd.SetOut(nil)

	if err := execute("export", "notes", "--output", "-"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), `"id": "n1"`) {
		t.Errorf("stdout export = %s", out.String())
	}
	// Reset the sticky flag value for later tests.
	exportCmd.Flags().Set("output", "")
}

func TestExportCommand_BadFormat(t *testing.T) {
	if err := execute("export", "notes", "--format", "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
	// Reset the sticky flag value for later tests.
	exportCmd.Flags().Set("format", "json")
}

func newReviewController(t *testing.T, ts *testServer) (*sop.Controller, sop.Preview) {
	t.Helper()
	c := client.New(ts.server.URL, 0)
	st := store.New(c)
	if err := st.Load(ctx); err != nil {
		t.Fatalf("store load: %v", err)
	}

	ctrl := sop.NewController(st, c, nil)
	preview, err := ctrl.Suggest(ctx, "n1")
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	return ctrl, preview
}

func TestReviewLoop_Approve(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /notes":            `[{"id":"n1","title":"Sync – July 25 – Login Issues","content":"401s everywhere"}]`,
		"GET /sops":             `[]`,
		"POST /generate-sop/n1": `{"id":"n1","title":"Sync – July 25 – Login Issues","sop_draft":"draft"}`,
	})
	ctrl, preview := newReviewController(t, ts)

	if err := reviewLoop(ctx, ctrl, preview, strings.NewReader("a\n")); err != nil {
		t.Fatalf("review loop: %v", err)
	}

	posts := ts.requestsTo("/generate-sop/n1")
	if len(posts) != 1 {
		t.Fatalf("expected 1 approve request, got %d", len(posts))
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(posts[0].Body), &payload); err != nil {
		t.Fatalf("payload parse: %v", err)
	}
	if !strings.Contains(payload["sop_draft"], "Login Issues") {
		t.Errorf("sop_draft = %q", payload["sop_draft"])
	}
	if ctrl.State() != sop.StateIdle {
		t.Errorf("state = %v after approve", ctrl.State())
	}
}

func TestReviewLoop_Deny(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /notes": `[{"id":"n1","title":"t","content":"c"}]`,
		"GET /sops":  `[]`,
	})
	ctrl, preview := newReviewController(t, ts)

	if err := reviewLoop(ctx, ctrl, preview, strings.NewReader("d\n")); err != nil {
		t.Fatalf("review loop: %v", err)
	}

	if len(ts.requestsTo("/generate-sop/")) != 0 {
		t.Error("deny must not call the backend")
	}
	if _, open := ctrl.Preview(); open {
		t.Error("preview still open after deny")
	}
}

func TestReviewLoop_EOFDiscards(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /notes": `[{"id":"n1","title":"t","content":"c"}]`,
		"GET /sops":  `[]`,
	})
	ctrl, preview := newReviewController(t, ts)

	if err := reviewLoop(ctx, ctrl, preview, strings.NewReader("")); err != nil {
		t.Fatalf("review loop: %v", err)
	}

	if len(ts.requestsTo("/generate-sop/")) != 0 {
		t.Error("aborted session must not approve")
	}
	if ctrl.State() != sop.StateIdle {
		t.Errorf("state = %v after EOF", ctrl.State())
	}
}

func TestReviewLoop_RegenerateThenDeny(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /notes": `[{"id":"n1","title":"Sync – July 25 – Login Issues","content":"c"}]`,
		"GET /sops":  `[]`,
	})
	ctrl, preview := newReviewController(t, ts)

	if err := reviewLoop(ctx, ctrl, preview, strings.NewReader("r\nd\n")); err != nil {
		t.Fatalf("review loop: %v", err)
	}

	if len(ts.requestsTo("/generate-sop/")) != 0 {
		t.Error("client-side regenerate must not call the backend")
	}
}
