package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkazmer/sopdesk/internal/sop"
	"github.com/mkazmer/sopdesk/internal/store"
)

var sopCmd = &cobra.Command{
	Use:   "sop",
	Short: "Preview, edit, and approve SOP drafts",
}

var sopSuggestCmd = &cobra.Command{
	Use:   "suggest [note-id]",
	Short: "List notes without an SOP, or preview a draft for one note",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newBackendClient()
		if err != nil {
			return err
		}

		st := store.New(c)
		if err := st.Load(cmd.Context()); err != nil {
			return err
		}

		if len(args) == 0 {
			eligible := st.EligibleNotes()
			if len(eligible) == 0 {
				fmt.Println("Every note already has an SOP draft.")
				return nil
			}
			for _, n := range eligible {
				fmt.Printf("%s  %s\n", colorize(colorCyan, shortID(n.ID)), n.Title)
			}
			printStep("Run 'sopdesk sop suggest <note-id>' to preview a draft")
			return nil
		}

		ctrl := sop.NewController(st, c, nil)
		preview, err := ctrl.Suggest(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer ctrl.Deny()

		printPreview(preview)
		printStep("Run 'sopdesk sop review %s' to edit and approve", args[0])
		return nil
	},
}

var sopReviewCmd = &cobra.Command{
	Use:   "review <note-id>",
	Short: "Interactively review, edit, and approve an SOP draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newBackendClient()
		if err != nil {
			return err
		}

		st := store.New(c)
		if err := st.Load(cmd.Context()); err != nil {
			return err
		}

		ctrl := sop.NewController(st, c, nil)
		preview, err := ctrl.Suggest(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		return reviewLoop(cmd.Context(), ctrl, preview, cmd.InOrStdin())
	},
}

func reviewLoop(ctx context.Context, ctrl *sop.Controller, preview sop.Preview, in io.Reader) error {
	printPreview(preview)
	reader := bufio.NewReader(in)

	for {
		fmt.Fprint(stderr, "\n[a]pprove  [e]dit  [r]egenerate  [d]eny > ")
		line, err := reader.ReadString('\n')
		if err != nil {
			// Treat EOF as deny so an aborted session never approves.
			ctrl.Deny()
			if err == io.EOF {
				printWarning("Session ended, draft discarded")
				return nil
			}
			return err
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "a", "approve":
			if err := ctrl.Approve(ctx); err != nil {
				// A closed preview means the draft was saved but the
				// follow-up refresh failed.
				if ctrl.State() == sop.StateIdle {
					printWarning("%v", err)
					return nil
				}
				printError("Approve failed: %v", err)
				continue
			}
			printSuccess("SOP approved")
			return nil

		case "e", "edit":
			if err := editPreview(ctrl); err != nil {
				printError("Edit failed: %v", err)
				continue
			}
			title, draft := ctrl.EditBuffer()
			printPreview(sop.Preview{NoteID: preview.NoteID, Title: title, Content: preview.Content, SOPDraft: draft})

		case "r", "regenerate":
			fresh, err := ctrl.Regenerate(ctx)
			if err != nil {
				printError("Regenerate failed: %v", err)
				continue
			}
			preview = fresh
			printWarning("Unsaved edits discarded")
			printPreview(preview)

		case "d", "deny":
			ctrl.Deny()
			printSuccess("Draft discarded")
			return nil

		default:
			printWarning("Unknown choice %q", strings.TrimSpace(line))
		}
	}
}

// editPreview round-trips the edit buffer through $EDITOR as a small JSON
// document, then folds the result back into the controller.
func editPreview(ctrl *sop.Controller) error {
	if err := ctrl.ToggleEdit(); err != nil {
		return err
	}

	title, draft := ctrl.EditBuffer()
	doc := map[string]string{"title": title, "sop_draft": draft}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	edited, err := editInTempFile(data)
	if err != nil {
		ctrl.ToggleEdit()
		return err
	}

	var fields map[string]string
	if err := json.Unmarshal(edited, &fields); err != nil {
		ctrl.ToggleEdit()
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if v, ok := fields["title"]; ok {
		if err := ctrl.SetTitle(v); err != nil {
			return err
		}
	}
	if v, ok := fields["sop_draft"]; ok {
		if err := ctrl.SetDraft(v); err != nil {
			return err
		}
	}

	return ctrl.ToggleEdit()
}

func editInTempFile(content []byte) ([]byte, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	tmpFile, err := os.CreateTemp("", "sopdesk-draft-*.json")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(content); err != nil {
		tmpFile.Close()
		return nil, err
	}
	tmpFile.Close()

	editorCmd := exec.Command(editor, tmpPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	if err := editorCmd.Run(); err != nil {
		return nil, fmt.Errorf("editor exited with error: %w", err)
	}

	return os.ReadFile(tmpPath)
}

var sopRegenerateCmd = &cobra.Command{
	Use:   "regenerate <note-id>",
	Short: "Regenerate and store a note's SOP draft server-side",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newBackendClient()
		if err != nil {
			return err
		}

		generated, err := c.GenerateSOP(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printSuccess("Regenerated SOP for %s", shortID(generated.ID))
		fmt.Println(generated.SOPDraft)
		return nil
	},
}

var sopListCmd = &cobra.Command{
	Use:   "list",
	Short: "List approved SOP drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newBackendClient()
		if err != nil {
			return err
		}

		sops, err := c.ListSOPs(cmd.Context())
		if err != nil {
			return err
		}

		if len(sops) == 0 {
			fmt.Println("No SOP drafts found.")
			return nil
		}
		for _, s := range sops {
			fmt.Printf("%s  %s\n", colorize(colorCyan, shortID(s.ID)), s.Title)
		}
		return nil
	},
}

func init() {
	sopCmd.AddCommand(sopSuggestCmd)
	sopCmd.AddCommand(sopReviewCmd)
	sopCmd.AddCommand(sopRegenerateCmd)
	sopCmd.AddCommand(sopListCmd)
}
