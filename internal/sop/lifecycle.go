// Package sop implements the single-slot preview/edit/decide workflow that
// turns one meeting note into an approved SOP.
package sop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mkazmer/sopdesk/internal/client"
	"github.com/mkazmer/sopdesk/internal/notes"
)

var (
	// ErrNoPreview is returned for decisions taken with the slot empty.
	ErrNoPreview = errors.New("no SOP preview is open")
	// ErrPreviewOpen rejects a suggest while the slot is occupied or a
	// generation is in flight.
	ErrPreviewOpen = errors.New("a SOP preview is already open")
	// ErrUnknownNote is returned when the note ID is not in the store.
	ErrUnknownNote = errors.New("note not found in store")
	// ErrNotEditing rejects buffer writes outside edit mode.
	ErrNotEditing = errors.New("preview is not in edit mode")
	// ErrStalePreview marks a response that completed after the preview it
	// belonged to was discarded; the result is dropped, not applied.
	ErrStalePreview = errors.New("preview was superseded")
)

// State is the controller's position in the lifecycle.
type State int

const (
	StateIdle State = iota
	StatePreviewing
	StateEditing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreviewing:
		return "previewing"
	case StateEditing:
		return "editing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Preview is the transient candidate SOP held in the controller's slot. It
// is never persisted; approve sends it, deny and regenerate destroy it.
type Preview struct {
	NoteID   string
	Title    string
	Content  string
	SOPDraft string
}

// NoteSource is the slice of the data store the controller reads and
// refreshes. AddSOP makes an approved draft visible before the follow-up
// refresh lands (or when it fails).
type NoteSource interface {
	NoteByID(id string) (notes.Note, bool)
	AddSOP(s notes.SOP)
	Refresh(ctx context.Context) error
}

// SOPWriter persists an approved SOP, overwriting any SOP with the same ID.
type SOPWriter interface {
	ApproveSOP(ctx context.Context, payload client.SOPPayload) error
}

// Controller owns the single preview slot. All transitions are serialized by
// an internal mutex; a generation counter detects responses that arrive
// after their preview was discarded.
type Controller struct {
	source    NoteSource
	writer    SOPWriter
	generator Generator

	mu          sync.Mutex
	gen         uint64
	pending     bool
	state       State
	preview     Preview
	editedTitle string
	editedDraft string
}

// NewController wires a controller to its store, backend, and generator.
// A nil generator falls back to the templated stand-in.
func NewController(source NoteSource, writer SOPWriter, generator Generator) *Controller {
	if generator == nil {
		generator = TemplateGenerator{}
	}
	return &Controller{source: source, writer: writer, generator: generator}
}

// State reports the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Preview returns the open preview, if any.
func (c *Controller) Preview() (Preview, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preview, c.state != StateIdle
}

// EditBuffer returns the live edited title and draft. The buffer is seeded
// when a preview opens and folded back on every edit toggle, so it tracks
// the preview whenever edit mode is off.
func (c *Controller) EditBuffer() (title, draft string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editedTitle, c.editedDraft
}

// Suggest opens a preview for noteID. The note must be present in the
// store. While a preview is open (or generating) further suggests are
// rejected with ErrPreviewOpen; the slot never holds more than one preview.
func (c *Controller) Suggest(ctx context.Context, noteID string) (Preview, error) {
	c.mu.Lock()
	if c.state != StateIdle || c.pending {
		c.mu.Unlock()
		return Preview{}, ErrPreviewOpen
	}
	note, ok := c.source.NoteByID(noteID)
	if !ok {
		c.mu.Unlock()
		return Preview{}, fmt.Errorf("%w: %s", ErrUnknownNote, noteID)
	}
	c.pending = true
	c.gen++
	myGen := c.gen
	c.mu.Unlock()

	draft, err := c.generator.Draft(ctx, note)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false
	if err != nil {
		return Preview{}, fmt.Errorf("generating draft for %s: %w", noteID, err)
	}
	// A deny issued while the draft was being generated bumps the
	// generation; the late result is dropped instead of reopening the slot.
	if c.gen != myGen {
		return Preview{}, ErrStalePreview
	}

	c.preview = Preview{
		NoteID:   note.ID,
		Title:    note.Title,
		Content:  note.Content,
		SOPDraft: draft,
	}
	c.editedTitle = c.preview.Title
	c.editedDraft = c.preview.SOPDraft
	c.state = StatePreviewing
	return c.preview, nil
}

// ToggleEdit flips between view and edit mode. Entering edit snapshots the
// preview into the buffer; leaving edit folds the buffer back into the
// preview. Neither direction touches the backend.
func (c *Controller) ToggleEdit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StatePreviewing:
		c.editedTitle = c.preview.Title
		c.editedDraft = c.preview.SOPDraft
		c.state = StateEditing
		return nil
	case StateEditing:
		c.preview.Title = c.editedTitle
		c.preview.SOPDraft = c.editedDraft
		c.state = StatePreviewing
		return nil
	default:
		return ErrNoPreview
	}
}

// SetTitle updates the edit buffer's title. Edit mode only.
func (c *Controller) SetTitle(title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateEditing {
		return ErrNotEditing
	}
	c.editedTitle = title
	return nil
}

// SetDraft updates the edit buffer's draft body. Edit mode only.
func (c *Controller) SetDraft(draft string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateEditing {
		return ErrNotEditing
	}
	c.editedDraft = draft
	return nil
}

// Approve persists the preview as the note's SOP and closes the slot. The
// payload always carries the live edit buffer, edit mode on or off; since
// the buffer is seeded at open and folded on every toggle this is the value
// the operator last saw. On backend failure the preview stays open and the
// error is returned for the caller to surface. On success the new SOP is
// added to the store straight away, then the store is refreshed so ordering
// and eligibility reconcile with the backend.
func (c *Controller) Approve(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return ErrNoPreview
	}
	payload := client.SOPPayload{
		NoteID:   c.preview.NoteID,
		Title:    c.editedTitle,
		Content:  c.preview.Content,
		SOPDraft: c.editedDraft,
	}
	myGen := c.gen
	c.mu.Unlock()

	if err := c.writer.ApproveSOP(ctx, payload); err != nil {
		return fmt.Errorf("approving SOP for %s: %w", payload.NoteID, err)
	}

	c.mu.Lock()
	if c.gen != myGen {
		// The preview this approval belonged to is gone (denied or
		// regenerated mid-flight). The backend write happened; the local
		// slot is left alone.
		c.mu.Unlock()
		return ErrStalePreview
	}
	c.discardLocked()
	c.mu.Unlock()

	// The write is durable at this point. Even if the refresh below fails,
	// the approved draft stays visible locally.
	c.source.AddSOP(notes.SOP{
		ID:       payload.NoteID,
		Title:    payload.Title,
		SOPDraft: payload.SOPDraft,
	})

	if err := c.source.Refresh(ctx); err != nil {
		return fmt.Errorf("SOP approved, but store refresh failed: %w", err)
	}
	return nil
}

// Deny discards the preview and all edit state unconditionally. No backend
// call; an unapproved preview leaves no trace.
func (c *Controller) Deny() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discardLocked()
}

// Regenerate discards the open preview, unsaved edits included, and
// immediately opens a fresh one for the same note.
func (c *Controller) Regenerate(ctx context.Context) (Preview, error) {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return Preview{}, ErrNoPreview
	}
	noteID := c.preview.NoteID
	c.discardLocked()
	c.mu.Unlock()

	return c.Suggest(ctx, noteID)
}

// discardLocked empties the slot and invalidates in-flight work. Callers
// hold c.mu.
func (c *Controller) discardLocked() {
	c.gen++
	c.state = StateIdle
	c.preview = Preview{}
	c.editedTitle = ""
	c.editedDraft = ""
}
