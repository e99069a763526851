// Package server implements the local development backend: a small chi
// router over the SQLite store exposing the endpoints the CLI client
// talks to.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mkazmer/sopdesk/internal/notes"
	"github.com/mkazmer/sopdesk/internal/sop"
	"github.com/mkazmer/sopdesk/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

type Deps struct {
	Store  *storage.Store
	Logger *slog.Logger
	Now    func() time.Time // nil means time.Now
}

type createNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := chi.NewRouter()
	r.Use(requestLogger(deps.Logger))

	r.Get("/health", handleHealth)
	r.Get("/notes", handleListNotes(deps))
	r.Post("/notes", handleCreateNote(deps))
	r.Get("/sops", handleListSOPs(deps))
	r.Post("/generate-sop/{noteID}", handleGenerateSOP(deps))
	r.Get("/search", handleSearch(deps))

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(start),
			)
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleListNotes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stored, err := deps.Store.ListNotes()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to list notes: %v", err)
			return
		}

		out := make([]notes.Note, 0, len(stored))
		for _, n := range stored {
			out = append(out, toNote(n))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleCreateNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req createNoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			httpError(w, http.StatusBadRequest, "title is required")
			return
		}
		if strings.TrimSpace(req.Content) == "" {
			httpError(w, http.StatusBadRequest, "content is required")
			return
		}

		n := storage.Note{
			ID:        uuid.New().String(),
			Title:     req.Title,
			Content:   req.Content,
			CreatedAt: deps.Now(),
		}
		if err := deps.Store.SaveNote(n); err != nil {
			httpError(w, http.StatusInternalServerError, "failed to save note: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, toNote(n))
	}
}

func handleListSOPs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stored, err := deps.Store.ListSOPs()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to list SOP drafts: %v", err)
			return
		}

		out := make([]notes.SOP, 0, len(stored))
		for _, d := range stored {
			out = append(out, notes.SOP{ID: d.ID, Title: d.Title, SOPDraft: d.Draft})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleGenerateSOP serves both halves of the draft lifecycle. A request
// with a JSON body stores the caller's (possibly edited) draft for the
// note. A request with an empty body generates a fresh draft from the
// note's content server-side. Either way the draft is upserted, so
// re-approving a note replaces its earlier draft.
func handleGenerateSOP(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		noteID := chi.URLParam(r, "noteID")

		stored, err := deps.Store.GetNote(noteID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "note %s not found", noteID)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to get note: %v", err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var payload struct {
			NoteID   string `json:"note_id"`
			Title    string `json:"title"`
			Content  string `json:"content"`
			SOPDraft string `json:"sop_draft"`
		}
		decodeErr := json.NewDecoder(r.Body).Decode(&payload)

		draft := storage.SOPDraft{ID: noteID}
		switch {
		case decodeErr == nil && payload.SOPDraft != "":
			draft.Title = payload.Title
			if draft.Title == "" {
				draft.Title = stored.Title
			}
			draft.Draft = payload.SOPDraft
		case errors.Is(decodeErr, io.EOF):
			draft.Title = stored.Title
			draft.Draft = sop.DraftText(toNote(stored), deps.Now())
		default:
			if decodeErr != nil {
				httpError(w, http.StatusBadRequest, "invalid request body: %v", decodeErr)
				return
			}
			httpError(w, http.StatusBadRequest, "sop_draft is required")
			return
		}

		if err := deps.Store.UpsertSOP(draft); err != nil {
			httpError(w, http.StatusInternalServerError, "failed to save SOP draft: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, notes.SOP{ID: draft.ID, Title: draft.Title, SOPDraft: draft.Draft})
	}
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("query"))
		if query == "" {
			httpError(w, http.StatusBadRequest, "query is required")
			return
		}

		scored, err := deps.Store.SearchNotes(query)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "search failed: %v", err)
			return
		}

		out := make([]notes.SearchResult, 0, len(scored))
		for _, s := range scored {
			out = append(out, notes.SearchResult{Note: toNote(s.Note), Score: s.Score})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toNote(n storage.Note) notes.Note {
	return notes.Note{ID: n.ID, Title: n.Title, Content: n.Content}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]string{"detail": fmt.Sprintf(format, args...)})
}
