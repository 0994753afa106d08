package history

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/mmr-tortoise/allotment/internal/report"
)

// DefaultPath is the database used when no path is configured.
const DefaultPath = "allotment-history.db"

// ErrRunNotFound is returned when no stored run matches an id.
var ErrRunNotFound = errors.New("run not found")

// AmbiguousIDError is returned when an id prefix matches more than one run.
type AmbiguousIDError struct {
	Prefix  string
	Matches []string
}

// Error implements the error interface for AmbiguousIDError.
func (e *AmbiguousIDError) Error() string {
	return fmt.Sprintf("run id prefix %q is ambiguous (%d matches)", e.Prefix, len(e.Matches))
}

// Entry is the listing view of a stored run.
type Entry struct {
	RunID       string    `json:"runId" yaml:"run_id"`
	GeneratedAt time.Time `json:"generatedAt" yaml:"generated_at"`
	Source      string    `json:"source" yaml:"source"`
	Total       int       `json:"total" yaml:"total"`
	Allocated   int       `json:"allocated" yaml:"allocated"`
	Unresolved  int       `json:"unresolved" yaml:"unresolved"`
}

// Complete reports whether every participant of the run was allocated.
func (e Entry) Complete() bool {
	return e.Unresolved == 0
}

// Store is a SQLite-backed run history.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		generated_at TEXT NOT NULL,
		source TEXT NOT NULL,
		total INTEGER NOT NULL,
		allocated INTEGER NOT NULL,
		unresolved INTEGER NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores a report. source names the preference input it was computed
// from. Saving a run id that already exists replaces the earlier row.
func (s *Store) Save(ctx context.Context, rep *report.Report, source string) error {
	if rep.RunID == "" {
		return fmt.Errorf("cannot save a report without a run id")
	}
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO runs(run_id,generated_at,source,total,allocated,unresolved,payload)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(run_id) DO UPDATE SET
			generated_at=excluded.generated_at,
			source=excluded.source,
			total=excluded.total,
			allocated=excluded.allocated,
			unresolved=excluded.unresolved,
			payload=excluded.payload`,
		rep.RunID,
		rep.GeneratedAt.UTC().Format(time.RFC3339Nano),
		source,
		rep.Total,
		rep.Allocated(),
		rep.UnresolvedCount(),
		payload,
	)
	if err != nil {
		return fmt.Errorf("upsert run %s: %w", rep.RunID, err)
	}
	return nil
}

// List returns every stored run, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, generated_at, source, total, allocated, unresolved
		FROM runs ORDER BY generated_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			at string
		)
		if err := rows.Scan(&e.RunID, &at, &e.Source, &e.Total, &e.Allocated, &e.Unresolved); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if e.GeneratedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("run %s: invalid timestamp %q: %w", e.RunID, at, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Resolve expands an id or unique id prefix to a stored run id.
func (s *Store) Resolve(ctx context.Context, idOrPrefix string) (string, error) {
	if idOrPrefix == "" {
		return "", ErrRunNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id FROM runs WHERE run_id = ? OR substr(run_id, 1, ?) = ? ORDER BY run_id`,
		idOrPrefix, len(idOrPrefix), idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("select run ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan: %w", err)
		}
		if id == idOrPrefix {
			return id, nil
		}
		matches = append(matches, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, idOrPrefix)
	case 1:
		return matches[0], nil
	}
	return "", &AmbiguousIDError{Prefix: idOrPrefix, Matches: matches}
}

// Get loads the full report of a run by id or unique id prefix.
func (s *Store) Get(ctx context.Context, idOrPrefix string) (*report.Report, error) {
	id, err := s.Resolve(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}
	var payload []byte
	err = s.db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE run_id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("select run %s: %w", id, err)
	}
	return report.Decode(bytes.NewReader(payload))
}

// Delete removes a run by id or unique id prefix and returns the full id
// that was removed.
func (s *Store) Delete(ctx context.Context, idOrPrefix string) (string, error) {
	id, err := s.Resolve(ctx, idOrPrefix)
	if err != nil {
		return "", err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, id)
	if err != nil {
		return "", fmt.Errorf("delete run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return id, nil
}
