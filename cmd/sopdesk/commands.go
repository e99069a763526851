package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkazmer/sopdesk/internal/client"
	"github.com/mkazmer/sopdesk/internal/config"
	"github.com/mkazmer/sopdesk/internal/export"
	"github.com/mkazmer/sopdesk/internal/ingest"
	"github.com/mkazmer/sopdesk/internal/notes"
	"github.com/mkazmer/sopdesk/internal/store"
)

// newBackendClient is a var so command tests can point it at a test server.
var newBackendClient = func() (*client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return client.New(cfg.Backend.BaseURL, cfg.Backend.TimeoutDuration()), nil
}

// --- add ---

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a meeting note",
	Long: `Add a meeting note to the backend.

Title convention is "<context> – <date> – <topic>", which drives the topic
shown in generated SOP drafts.

Examples:
  sopdesk add --title "Morning Sync – July 25 – Platform Login Issues" --text "Users report 401s..."
  sopdesk add --file ./standup.md
  sopdesk add --url https://wiki.example.com/incident-2026-07-25`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		file, _ := cmd.Flags().GetString("file")
		rawURL, _ := cmd.Flags().GetString("url")
		title, _ := cmd.Flags().GetString("title")

		set := 0
		for _, v := range []string{text, file, rawURL} {
			if v != "" {
				set++
			}
		}
		if set == 0 {
			return fmt.Errorf("one of --text, --file, or --url is required")
		}
		if set > 1 {
			return fmt.Errorf("--text, --file, and --url are mutually exclusive")
		}

		content := text
		switch {
		case file != "":
			src, err := ingest.ReadFile(file)
			if err != nil {
				return err
			}
			content = src.Content
			if title == "" {
				title = src.Title
			}
		case rawURL != "":
			src, err := ingest.FetchURL(cmd.Context(), nil, rawURL)
			if err != nil {
				return err
			}
			content = src.Content
			if title == "" {
				title = src.Title
			}
		}

		if title == "" {
			return fmt.Errorf("--title is required with --text")
		}

		c, err := newBackendClient()
		if err != nil {
			return err
		}

		n, err := c.CreateNote(cmd.Context(), title, content)
		if err != nil {
			return err
		}

		printSuccess("Added note %s", n.ID)
		return nil
	},
}

func init() {
	addCmd.Flags().String("text", "", "note text")
	addCmd.Flags().String("file", "", "read note text from a .txt, .md, or .pdf file")
	addCmd.Flags().String("url", "", "fetch note text from a web page")
	addCmd.Flags().String("title", "", "note title")
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List meeting notes and their SOP status",
	RunE: func(cmd *cobra.Command, args []string) error {
		showSOPs, _ := cmd.Flags().GetBool("sops")
		topicFilter, _ := cmd.Flags().GetString("topic")
		dateFilter, _ := cmd.Flags().GetString("date")

		c, err := newBackendClient()
		if err != nil {
			return err
		}

		st := store.New(c)
		if err := st.Load(cmd.Context()); err != nil {
			return err
		}

		if showSOPs {
			sops := st.SOPs()
			if len(sops) == 0 {
				fmt.Println("No SOP drafts found.")
				return nil
			}
			for _, s := range sops {
				fmt.Printf("%s  %s\n", colorize(colorCyan, shortID(s.ID)), s.Title)
			}
			return nil
		}

		var ns []notes.Note
		for _, n := range st.Notes() {
			if topicFilter != "" && !containsFold(n.Topic(), topicFilter) {
				continue
			}
			if dateFilter != "" && !containsFold(n.DateFragment(), dateFilter) {
				continue
			}
			ns = append(ns, n)
		}
		if len(ns) == 0 {
			fmt.Println("No notes found.")
			return nil
		}
		for _, n := range ns {
			marker := " "
			if st.HasSOP(n.ID) {
				marker = colorize(colorGreen, "✓")
			}
			fmt.Printf("%s %s  %s\n", marker, colorize(colorCyan, shortID(n.ID)), n.Title)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().Bool("sops", false, "list approved SOP drafts instead of notes")
	listCmd.Flags().String("topic", "", "only notes whose topic contains this substring")
	listCmd.Flags().String("date", "", "only notes whose date fragment contains this substring")
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search meeting notes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return fmt.Errorf("query must not be blank")
		}

		c, err := newBackendClient()
		if err != nil {
			return err
		}

		results, err := c.Search(cmd.Context(), query)
		if err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		for i, r := range results {
			fmt.Printf("\n%s [%.0f%% match]\n", colorize(colorBold, fmt.Sprintf("Result %d", i+1)), r.Score*100)
			fmt.Printf("  %s  %s\n", colorize(colorCyan, shortID(r.ID)), r.Title)
			content := r.Content
			if len(content) > 200 {
				content = content[:200] + "..."
			}
			fmt.Printf("  %s\n", content)
		}
		return nil
	},
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export <notes|sops>",
	Short: "Export notes or SOP drafts to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := export.ParseKind(args[0])
		if err != nil {
			return err
		}
		formatStr, _ := cmd.Flags().GetString("format")
		format, err := export.ParseFormat(formatStr)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = export.FileName(kind, format, time.Now())
		}

		c, err := newBackendClient()
		if err != nil {
			return err
		}

		st := store.New(c)
		if err := st.Load(cmd.Context()); err != nil {
			return err
		}

		var w io.Writer
		if output == "-" {
			w = cmd.OutOrStdout()
		} else {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		if kind == export.KindNotes {
			err = export.Notes(w, format, st.Notes())
		} else {
			err = export.SOPs(w, format, st.SOPs())
		}
		if err != nil {
			return err
		}

		if output != "-" {
			printSuccess("Exported %s to %s", kind, output)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "json", "output format: json, csv, or txt")
	exportCmd.Flags().String("output", "", "output file path, or - for stdout (default: <kind>-<date>.<format>)")
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend status",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newBackendClient()
		if err != nil {
			return err
		}

		if err := c.Health(cmd.Context()); err != nil {
			printStatus("Backend", "unreachable at %s", c.BaseURL())
			return nil
		}
		printStatus("Backend", "running at %s", c.BaseURL())

		st := store.New(c)
		if err := st.Load(cmd.Context()); err != nil {
			printWarning("could not load collections: %v", err)
			return nil
		}
		printStatus("Notes", "%d", len(st.Notes()))
		printStatus("SOP drafts", "%d", len(st.SOPs()))
		printStatus("Pending", "%d notes without an SOP", len(st.EligibleNotes()))
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
