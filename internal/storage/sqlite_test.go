package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestNoteRoundTrip(t *testing.T) {
	s := openTestStore(t)

	n := Note{ID: "n1", Title: "Standup – July 25 – Deploy Freeze", Content: "Freeze starts Friday.", CreatedAt: time.Now()}
	if err := s.SaveNote(n); err != nil {
		t.Fatalf("SaveNote: %v", err)
	}

	got, err := s.GetNote("n1")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Title != n.Title || got.Content != n.Content {
		t.Errorf("got %+v, want %+v", got, n)
	}

	if _, err := s.GetNote("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetNote(missing) = %v, want ErrNotFound", err)
	}
}

func TestListNotesNewestFirst(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 7, 25, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		n := Note{
			ID:        fmt.Sprintf("n%d", i),
			Title:     fmt.Sprintf("Note %d", i),
			Content:   "body",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveNote(n); err != nil {
			t.Fatalf("SaveNote %d: %v", i, err)
		}
	}

	notes, err := s.ListNotes()
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(notes) != 3 {
		t.Fatalf("got %d notes, want 3", len(notes))
	}
	if notes[0].ID != "n2" || notes[2].ID != "n0" {
		t.Errorf("wrong order: %s, %s, %s", notes[0].ID, notes[1].ID, notes[2].ID)
	}
}

func TestUpsertSOPOverwrites(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveNote(Note{ID: "n1", Title: "t", Content: "c"}); err != nil {
		t.Fatalf("SaveNote: %v", err)
	}

	if err := s.UpsertSOP(SOPDraft{ID: "n1", Title: "t", Draft: "first"}); err != nil {
		t.Fatalf("first UpsertSOP: %v", err)
	}
	if err := s.UpsertSOP(SOPDraft{ID: "n1", Title: "t", Draft: "second"}); err != nil {
		t.Fatalf("second UpsertSOP: %v", err)
	}

	sops, err := s.ListSOPs()
	if err != nil {
		t.Fatalf("ListSOPs: %v", err)
	}
	if len(sops) != 1 {
		t.Fatalf("got %d drafts, want 1", len(sops))
	}
	if sops[0].Draft != "second" {
		t.Errorf("draft = %q, want %q", sops[0].Draft, "second")
	}
}

func TestSearchNotesRanking(t *testing.T) {
	s := openTestStore(t)

	seed := []Note{
		{ID: "n1", Title: "Morning Sync – July 25 – Platform Login Issues", Content: "Users cannot log in after the rollout."},
		{ID: "n2", Title: "Retro – July 24 – Deploy Pipeline", Content: "Login gateway timed out during deploy."},
		{ID: "n3", Title: "Planning – July 23 – Roadmap", Content: "Q3 roadmap discussion."},
	}
	for _, n := range seed {
		if err := s.SaveNote(n); err != nil {
			t.Fatalf("SaveNote %s: %v", n.ID, err)
		}
	}

	results, err := s.SearchNotes("login")
	if err != nil {
		t.Fatalf("SearchNotes: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	// Title match outranks content-only match.
	if results[0].ID != "n1" || results[1].ID != "n2" {
		t.Errorf("wrong order: %s, %s", results[0].ID, results[1].ID)
	}
	for _, r := range results {
		if r.Score <= 0 || r.Score > 1 {
			t.Errorf("score for %s out of range: %v", r.ID, r.Score)
		}
	}
}

func TestSearchNotesEmptyQuery(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveNote(Note{ID: "n1", Title: "t", Content: "c"}); err != nil {
		t.Fatalf("SaveNote: %v", err)
	}

	results, err := s.SearchNotes("   ")
	if err != nil {
		t.Fatalf("SearchNotes: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results for blank query, want 0", len(results))
	}
}
