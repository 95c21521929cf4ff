// Package store provides a SQLite-backed ledger of corpus rebuild runs. Each
// run of the embedding pipeline is recorded when it starts and closed when it
// finishes, so operators can see when the corpus was last rebuilt, how many
// entries it holds and why a run failed.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Status is the lifecycle state of a run.
type Status string

const (
	// StatusRunning marks a run that has begun and not yet finished. A run
	// left in this state was interrupted.
	StatusRunning Status = "running"
	// StatusOK marks a run that rebuilt the whole corpus.
	StatusOK Status = "ok"
	// StatusFailed marks a run that stopped on an error.
	StatusFailed Status = "failed"
)

// ErrRunNotFound is returned by Finish when the run id is unknown.
var ErrRunNotFound = errors.New("store: run not found")

// Run is one recorded pipeline run.
type Run struct {
	// ID is the ledger-assigned identifier.
	ID int64
	// Backend names the corpus store the run wrote to.
	Backend string
	// Model is the embedding model used for the run.
	Model string
	// Status is the lifecycle state.
	Status Status
	// Records is the number of entries stored. For a failed run this is the
	// committed prefix.
	Records int
	// Error holds the failure message, empty unless Status is failed.
	Error string
	// StartedAt is when the run began.
	StartedAt time.Time
	// FinishedAt is when the run finished; zero while running.
	FinishedAt time.Time
}

// Duration returns how long a finished run took, or zero while it runs.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunLedger records pipeline runs. Implementations must be safe for
// concurrent use.
type RunLedger interface {
	// Begin records a new running run and returns its id.
	Begin(ctx context.Context, backend, model string) (int64, error)
	// Finish closes the run with its stored count and outcome. A nil runErr
	// marks the run ok.
	Finish(ctx context.Context, id int64, records int, runErr error) error
	// Recent returns the most recent n runs, newest first.
	Recent(ctx context.Context, n int) ([]Run, error)
	// Close releases any resources held by the ledger.
	Close() error
}

// RunStore is a RunLedger backed by a local SQLite database.
type RunStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// now is the clock; replaced in tests.
	now func() time.Time
}

// DefaultDBPath returns the default path for the run ledger database.
// It resolves to ~/.ednevnik-kb/runs.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ednevnik-kb")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "runs.db"), nil
}

// Open opens (or creates) a RunStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*RunStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &RunStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *RunStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS runs (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    backend      TEXT    NOT NULL,
    model        TEXT    NOT NULL,
    status       TEXT    NOT NULL CHECK(status IN ('running','ok','failed')),
    records      INTEGER NOT NULL DEFAULT 0,
    error        TEXT    NOT NULL DEFAULT '',
    started_at   INTEGER NOT NULL, -- Unix timestamp (milliseconds)
    finished_at  INTEGER           -- NULL while running
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs (started_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Begin records a new running run.
func (s *RunStore) Begin(ctx context.Context, backend, model string) (int64, error) {
	const q = `INSERT INTO runs (backend, model, status, started_at) VALUES (?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, backend, model, string(StatusRunning), s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: begin id: %w", err)
	}
	return id, nil
}

// Finish closes a running run. Finishing a run twice overwrites the outcome.
func (s *RunStore) Finish(ctx context.Context, id int64, records int, runErr error) error {
	status, msg := StatusOK, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	const q = `UPDATE runs SET status = ?, records = ?, error = ?, finished_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, string(status), records, msg, s.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("store: finish: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: finish rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return nil
}

// Recent returns the most recent n runs, newest first.
func (s *RunStore) Recent(ctx context.Context, n int) ([]Run, error) {
	const q = `
SELECT id, backend, model, status, records, error, started_at, finished_at
FROM   runs
ORDER  BY started_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Backend, &r.Model, &status, &r.Records, &r.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		r.Status = Status(status)
		r.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			r.FinishedAt = time.UnixMilli(finished.Int64)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return runs, nil
}

// Close releases the database connection pool.
func (s *RunStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
