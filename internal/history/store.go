// Package history keeps a SQLite log of finished downloads.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/trackload/trackload/internal/engine/types"
)

// Entry is one finished run.
type Entry struct {
	ID          string
	URL         string
	DestPath    string
	Outcome     string // types.OutcomeKind.String()
	Error       string
	MIME        string
	Transferred int64
	Total       int64 // types.UnknownSize when unknown
	StartedAt   time.Time
	Elapsed     time.Duration
}

// NewEntry builds an entry from a finished run.
func NewEntry(id string, req types.DownloadRequest, outcome types.Outcome, mime string, startedAt time.Time) Entry {
	e := Entry{
		ID:          id,
		URL:         req.URL,
		DestPath:    outcome.DestPath,
		Outcome:     outcome.Kind.String(),
		MIME:        mime,
		Transferred: outcome.Transferred,
		Total:       outcome.Total,
		StartedAt:   startedAt,
		Elapsed:     outcome.Elapsed,
	}
	if e.DestPath == "" {
		e.DestPath = req.DestPath
	}
	if outcome.Kind == types.Failed && outcome.Err != nil {
		e.Error = outcome.Err.Error()
	}
	return e
}

// Store is the SQLite-backed history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS downloads (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			dest_path TEXT NOT NULL,
			outcome TEXT NOT NULL,
			error TEXT,
			mime TEXT,
			transferred INTEGER NOT NULL DEFAULT 0,
			total INTEGER NOT NULL DEFAULT -1,
			started_at INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_downloads_started ON downloads(started_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Record stores e. Recording the same ID twice replaces the earlier row.
func (s *Store) Record(ctx context.Context, e Entry) error {
	query := `
		INSERT OR REPLACE INTO downloads (
			id, url, dest_path, outcome, error, mime,
			transferred, total, started_at, elapsed_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.URL, e.DestPath, e.Outcome, nullString(e.Error), nullString(e.MIME),
		e.Transferred, e.Total, e.StartedAt.UnixMilli(), e.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record download %s: %w", e.ID, err)
	}
	return nil
}

// List returns up to limit entries, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, url, dest_path, outcome, error, mime,
			   transferred, total, started_at, elapsed_ms
		FROM downloads
		ORDER BY started_at DESC, rowid DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var errText, mime sql.NullString
		var startedMs, elapsedMs int64
		if err := rows.Scan(&e.ID, &e.URL, &e.DestPath, &e.Outcome, &errText, &mime,
			&e.Transferred, &e.Total, &startedMs, &elapsedMs); err != nil {
			return nil, err
		}
		e.Error = errText.String
		e.MIME = mime.String
		e.StartedAt = time.UnixMilli(startedMs)
		e.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear deletes every entry.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM downloads`)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
