// Package notes defines the meeting-note and SOP domain types shared by the
// client, the store, and the dev backend.
package notes

import "strings"

// titleSep is the en dash used by the title convention
// "<context> – <date> – <topic>". Notes without the convention are fine;
// the accessors fall back to placeholder values.
const titleSep = "–"

// Note is a stored meeting-note record. The backend assigns the ID at
// creation; notes are immutable from the client's perspective.
type Note struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// SOP is an approved Standard Operating Procedure derived from exactly one
// note. Its ID equals the originating note's ID, so at most one SOP exists
// per note.
type SOP struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	SOPDraft string `json:"sop_draft"`
}

// SearchResult is a note augmented with the backend's relevance score (0..1).
type SearchResult struct {
	Note
	Score float64 `json:"score"`
}

func titlePart(title string, idx int) (string, bool) {
	parts := strings.Split(title, titleSep)
	if idx >= len(parts) {
		return "", false
	}
	p := strings.TrimSpace(parts[idx])
	if p == "" {
		return "", false
	}
	return p, true
}

// Topic extracts the topic segment after the second separator,
// e.g. "Morning Sync – July 25 – Platform Login Issues" -> "Platform Login
// Issues". Titles without the convention report "Other".
func (n Note) Topic() string {
	if t, ok := titlePart(n.Title, 2); ok {
		return t
	}
	return "Other"
}

// DateFragment extracts the date segment between the separators, or
// "Unknown" when the title does not follow the convention.
func (n Note) DateFragment() string {
	if d, ok := titlePart(n.Title, 1); ok {
		return d
	}
	return "Unknown"
}
