package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type Note struct {
	ID        string
	Title     string
	Content   string
	CreatedAt time.Time
}

type SOPDraft struct {
	ID        string // same ID as the source note
	Title     string
	Draft     string
	UpdatedAt time.Time
}

// ScoredNote is a note plus its relevance score for a search query,
// normalized to (0, 1].
type ScoredNote struct {
	Note
	Score float64
}
