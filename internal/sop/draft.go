package sop

import (
	"context"
	"fmt"
	"time"

	"github.com/mkazmer/sopdesk/internal/notes"
)

// Generator produces a candidate SOP draft for a note. The real system
// delegates this to an AI backend; TemplateGenerator is the local stand-in.
type Generator interface {
	Draft(ctx context.Context, n notes.Note) (string, error)
}

// TemplateGenerator synthesizes a draft from the note's title convention.
type TemplateGenerator struct {
	// Now is the clock used for the draft footer; defaults to time.Now.
	Now func() time.Time
}

func (g TemplateGenerator) Draft(_ context.Context, n notes.Note) (string, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return DraftText(n, now()), nil
}

// DraftText renders the templated SOP body for a note. The dev backend uses
// the same template for server-side regeneration so both paths agree.
func DraftText(n notes.Note, now time.Time) string {
	topic := n.Topic()
	scope := topic
	if scope == "Other" {
		scope = "this process"
	}
	return fmt.Sprintf(`# Standard Operating Procedure: %s

## Purpose
Turn the outcome of %q into a repeatable procedure the team can follow
without reconstructing the discussion.

## Scope
Applies to everyone involved in %s.

## Procedure
1. Assess the situation and collect the relevant facts.
2. Notify the stakeholders named in the meeting.
3. Apply the agreed resolution steps.
4. Record what was done and what happened.
5. Schedule a follow-up to confirm the outcome held.

## Roles
- Lead: coordination and final call.
- Engineers: execution and troubleshooting.
- Scribe: keeping this document current.

## References
- Source meeting note: %s

---
Drafted from meeting notes on %s.
`, topic, n.Title, scope, n.Title, now.Format("2006-01-02"))
}
