package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding meeting notes and their SOP drafts.
type Store struct {
	db *sql.DB
}

// Open creates or opens sopdesk.db under dataDir and brings the schema up to
// date. A dataDir of ":memory:" opens a throwaway in-memory database.
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "sopdesk.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// One connection, WAL, and a busy timeout: the pure-Go driver reports
	// writer contention as "database is locked" under anything looser.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies embedded migrations that are not yet recorded in
// schema_version, each inside its own transaction.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Filenames start with the version number, so lexical order is apply order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations reports the migration versions already recorded, ascending.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Notes ---

func (s *Store) SaveNote(n Note) error {
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO notes (id, title, content, created_at) VALUES (?, ?, ?, ?)`,
		n.ID, n.Title, n.Content, createdAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetNote(id string) (Note, error) {
	var n Note
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, title, content, created_at FROM notes WHERE id = ?`, id,
	).Scan(&n.ID, &n.Title, &n.Content, &createdAt)
	if err == sql.ErrNoRows {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Note{}, fmt.Errorf("parsing created_at: %w", err)
	}
	n.CreatedAt = t
	return n, nil
}

// ListNotes returns all notes, newest first.
func (s *Store) ListNotes() ([]Note, error) {
	rows, err := s.db.Query(`
		SELECT id, title, content, created_at FROM notes ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Note
	for rows.Next() {
		var n Note
		var createdAt string
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		n.CreatedAt = t
		results = append(results, n)
	}
	return results, rows.Err()
}

// --- SOP Drafts ---

// UpsertSOP inserts or replaces the SOP draft for a note. Approving the
// same note twice overwrites the earlier draft instead of duplicating it.
func (s *Store) UpsertSOP(d SOPDraft) error {
	_, err := s.db.Exec(`
		INSERT INTO sop_drafts (id, title, draft, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, draft = excluded.draft, updated_at = excluded.updated_at`,
		d.ID, d.Title, d.Draft, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetSOP(id string) (SOPDraft, error) {
	var d SOPDraft
	var updatedAt string
	err := s.db.QueryRow(`
		SELECT id, title, draft, updated_at FROM sop_drafts WHERE id = ?`, id,
	).Scan(&d.ID, &d.Title, &d.Draft, &updatedAt)
	if err == sql.ErrNoRows {
		return SOPDraft{}, ErrNotFound
	}
	if err != nil {
		return SOPDraft{}, err
	}
	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return SOPDraft{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	d.UpdatedAt = t
	return d, nil
}

// ListSOPs returns all SOP drafts, most recently updated first.
func (s *Store) ListSOPs() ([]SOPDraft, error) {
	rows, err := s.db.Query(`
		SELECT id, title, draft, updated_at FROM sop_drafts ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SOPDraft
	for rows.Next() {
		var d SOPDraft
		var updatedAt string
		if err := rows.Scan(&d.ID, &d.Title, &d.Draft, &updatedAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		d.UpdatedAt = t
		results = append(results, d)
	}
	return results, rows.Err()
}

// --- Search ---

// SearchNotes ranks notes by term overlap with the query. Title matches
// count double. Notes with no matching term are omitted; results are
// sorted by descending score, ties broken by newest first.
func (s *Store) SearchNotes(query string) ([]ScoredNote, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	all, err := s.ListNotes()
	if err != nil {
		return nil, err
	}

	var results []ScoredNote
	maxScore := float64(3 * len(terms))
	for _, n := range all {
		titleWords := wordSet(n.Title)
		contentWords := wordSet(n.Content)

		var score float64
		for _, term := range terms {
			if titleWords[term] {
				score += 2
			}
			if contentWords[term] {
				score++
			}
		}
		if score == 0 {
			continue
		}
		results = append(results, ScoredNote{Note: n, Score: score / maxScore})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	seen := make(map[string]bool, len(fields))
	var terms []string
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if f != "" {
			set[f] = true
		}
	}
	return set
}
