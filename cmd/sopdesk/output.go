package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mkazmer/sopdesk/internal/sop"
)

// Status lines go to stderr so list and export output on stdout stays
// pipeable. Tests swap the writer.
var stderr io.Writer = os.Stderr

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

// say writes one glyph-prefixed status line.
func say(color, glyph, format string, args ...any) {
	fmt.Fprintln(stderr, colorize(color, glyph+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { say(colorGreen, "✓", format, args...) }

func printError(format string, args ...any) { say(colorRed, "✗", format, args...) }

func printWarning(format string, args ...any) { say(colorYellow, "⚠", format, args...) }

// printStep points at the follow-up command after an action completes.
func printStep(format string, args ...any) { say(colorCyan, "→", format, args...) }

// printStatus writes the indented "Label: value" lines used by `status`.
func printStatus(label string, format string, args ...any) {
	l := colorize(colorBold, label+":")
	fmt.Fprintf(stderr, "  %s %s\n", l, fmt.Sprintf(format, args...))
}

// shortID trims a uuid to the prefix shown in listings.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// printPreview renders a draft so it shares a stream with the review prompt.
func printPreview(p sop.Preview) {
	fmt.Fprintf(stderr, "\n%s %s\n", colorize(colorBold, "Title:"), p.Title)
	fmt.Fprintln(stderr, colorize(colorBold, "Draft:"))
	fmt.Fprintln(stderr, p.SOPDraft)
}
