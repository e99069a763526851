// Package export serializes the in-memory notes or SOPs collection to a
// file. Pure data transformation; no network involved.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mkazmer/sopdesk/internal/notes"
)

// Format selects the output serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatText Format = "txt"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatText:
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown export format %q (want json, csv, or txt)", s)
}

// Kind selects which collection is exported.
type Kind string

const (
	KindNotes Kind = "notes"
	KindSOPs  Kind = "sops"
)

// ParseKind validates a user-supplied export type.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindNotes:
		return KindNotes, nil
	case KindSOPs:
		return KindSOPs, nil
	}
	return "", fmt.Errorf("unknown export type %q (want notes or sops)", s)
}

// noDataLine is emitted for a CSV export with zero records instead of an
// empty (invalid) table.
const noDataLine = "No data to export"

// recordSep visually separates records in text exports.
var recordSep = strings.Repeat("=", 80)

// FileName builds the download-style file name for an export:
// meeting-notes-<ISO date>.<ext> or sop-drafts-<ISO date>.<ext>.
func FileName(kind Kind, format Format, now time.Time) string {
	base := "meeting-notes"
	if kind == KindSOPs {
		base = "sop-drafts"
	}
	return fmt.Sprintf("%s-%s.%s", base, now.Format("2006-01-02"), format)
}

// record is a flattened row with a stable field order.
type record struct {
	fields []string
	values []any
}

func noteRecord(n notes.Note) record {
	return record{
		fields: []string{"id", "title", "content"},
		values: []any{n.ID, n.Title, n.Content},
	}
}

func sopRecord(s notes.SOP) record {
	return record{
		fields: []string{"id", "title", "sop_draft"},
		values: []any{s.ID, s.Title, s.SOPDraft},
	}
}

// Notes writes ns to w in the given format.
func Notes(w io.Writer, format Format, ns []notes.Note) error {
	if format == FormatJSON {
		return writeJSON(w, ns)
	}
	records := make([]record, len(ns))
	for i, n := range ns {
		records[i] = noteRecord(n)
	}
	return writeRecords(w, format, records)
}

// SOPs writes ss to w in the given format.
func SOPs(w io.Writer, format Format, ss []notes.SOP) error {
	if format == FormatJSON {
		return writeJSON(w, ss)
	}
	records := make([]record, len(ss))
	for i, s := range ss {
		records[i] = sopRecord(s)
	}
	return writeRecords(w, format, records)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling export: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func writeRecords(w io.Writer, format Format, records []record) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, records)
	case FormatText:
		return writeText(w, records)
	}
	return fmt.Errorf("unsupported format %q", format)
}

func writeCSV(w io.Writer, records []record) error {
	if len(records) == 0 {
		_, err := io.WriteString(w, noDataLine+"\n")
		return err
	}

	var b strings.Builder
	b.WriteString(strings.Join(records[0].fields, ","))
	b.WriteByte('\n')
	for _, r := range records {
		for i, v := range r.values {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(csvValue(v))
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// csvValue quotes text fields (doubling embedded quotes) and leaves
// numeric and boolean fields bare.
func csvValue(v any) string {
	if s, ok := v.(string); ok {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return fmt.Sprintf("%v", v)
}

func writeText(w io.Writer, records []record) error {
	var b strings.Builder
	for _, r := range records {
		for i, name := range r.fields {
			if name == "id" {
				continue
			}
			b.WriteString(textLabel(name))
			b.WriteString(": ")
			b.WriteString(fmt.Sprintf("%v", r.values[i]))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
		b.WriteString(recordSep)
		b.WriteString("\n\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func textLabel(field string) string {
	switch field {
	case "title":
		return "Title"
	case "content":
		return "Content"
	case "sop_draft":
		return "SOP Draft"
	}
	return field
}
