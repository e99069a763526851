// Package store holds the session-wide cache of notes and SOPs backing every
// command. It is constructed explicitly and handed to its consumers; there is
// no ambient singleton.
package store

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mkazmer/sopdesk/internal/notes"
)

// Backend is the slice of the HTTP client the store needs.
type Backend interface {
	ListNotes(ctx context.Context) ([]notes.Note, error)
	ListSOPs(ctx context.Context) ([]notes.SOP, error)
}

// Store caches the notes and sops collections. Both are replaced wholesale
// on Load; mutations go to the backend, then callers Refresh. Safe for
// concurrent use.
type Store struct {
	backend Backend

	mu      sync.Mutex
	notes   []notes.Note
	sops    []notes.SOP
	loading bool
	err     error
}

// New returns an empty Store reading from backend. Loading() reports true
// until the first Load completes either way.
func New(backend Backend) *Store {
	return &Store{backend: backend, loading: true}
}

// Load fetches /notes and /sops concurrently and replaces both collections
// once both fetches succeed. A failure of either fetch fails the whole load:
// neither collection is touched, so previously loaded data stays visible,
// and Err reports the failure until the next Load.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()

	var (
		fetchedNotes []notes.Note
		fetchedSOPs  []notes.SOP
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fetchedNotes, err = s.backend.ListNotes(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		fetchedSOPs, err = s.backend.ListSOPs(gCtx)
		return err
	})
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.err = err
		return err
	}
	s.notes = fetchedNotes
	s.sops = fetchedSOPs
	return nil
}

// Refresh re-runs Load. Callers use it after any mutation instead of
// patching locally, trading a round trip for consistency with the backend.
func (s *Store) Refresh(ctx context.Context) error {
	return s.Load(ctx)
}

// AddNote prepends n (newest first) without consulting the backend, for
// embedders that keep a long-lived store open across writes. Ordering is
// reconciled by the next Refresh; the one-shot CLI posts and re-loads
// instead.
func (s *Store) AddNote(n notes.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append([]notes.Note{n}, s.notes...)
}

// AddSOP prepends sop without consulting the backend. The approve flow uses
// it so a saved draft stays visible when the follow-up Refresh fails.
func (s *Store) AddSOP(sop notes.SOP) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sops = append([]notes.SOP{sop}, s.sops...)
}

// Notes returns a snapshot of the cached notes.
func (s *Store) Notes() []notes.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notes.Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// SOPs returns a snapshot of the cached SOPs.
func (s *Store) SOPs() []notes.SOP {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notes.SOP, len(s.sops))
	copy(out, s.sops)
	return out
}

// Loading reports whether the first Load is still in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the failure of the most recent Load, or nil.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// NoteByID looks up a cached note.
func (s *Store) NoteByID(id string) (notes.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notes {
		if n.ID == id {
			return n, true
		}
	}
	return notes.Note{}, false
}

// HasSOP reports whether an approved SOP exists for the given note ID.
func (s *Store) HasSOP(noteID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasSOPLocked(noteID)
}

func (s *Store) hasSOPLocked(noteID string) bool {
	for _, sop := range s.sops {
		if sop.ID == noteID {
			return true
		}
	}
	return false
}

// EligibleNotes returns the notes with no SOP sharing their ID, i.e. the
// candidates for SOP suggestion.
func (s *Store) EligibleNotes() []notes.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notes.Note
	for _, n := range s.notes {
		if !s.hasSOPLocked(n.ID) {
			out = append(out, n)
		}
	}
	return out
}
