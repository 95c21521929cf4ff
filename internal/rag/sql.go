package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // register "postgres" driver
	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/ednevnik-kb/internal/corpus"
	"github.com/54b3r/ednevnik-kb/internal/filter"
)

// SQLStore keeps the corpus in a single embeddings table. Vectors are stored
// as text in the bracketed decimal form of [corpus.FormatVector], which is
// the form a database-side vector function parses. Search decodes every row
// whose metadata satisfies the predicate and ranks them in process.
type SQLStore struct {
	// db is the underlying connection pool.
	db *sqlx.DB
}

// embeddingsDDL is portable across sqlite and postgres.
const embeddingsDDL = `
CREATE TABLE IF NOT EXISTS embeddings (
    id        TEXT    PRIMARY KEY,
    position  INTEGER NOT NULL,
    metadata  TEXT    NOT NULL,
    content   TEXT    NOT NULL,
    embedding TEXT    NOT NULL
)`

// OpenSQLStore opens the corpus database and creates the table if needed.
// driver is "sqlite" or "postgres". For sqlite, dsn is a file path, or
// ":memory:" in tests.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var db *sqlx.DB
	var err error
	switch driver {
	case "sqlite":
		db, err = sqlx.Open("sqlite", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
		if err == nil {
			// Single writer avoids SQLITE_BUSY and keeps ":memory:" one database.
			db.SetMaxOpenConns(1)
		}
	case "postgres":
		db, err = sqlx.ConnectContext(ctx, "postgres", dsn)
	default:
		return nil, fmt.Errorf("rag: unsupported sql driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("rag: open %s corpus: %w", driver, err)
	}

	s, err := NewSQLStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open handle and runs the schema migration.
func NewSQLStore(ctx context.Context, db *sqlx.DB) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, embeddingsDDL); err != nil {
		return nil, fmt.Errorf("rag: migrate: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Clear implements [Store].
func (s *SQLStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings`); err != nil {
		return fmt.Errorf("rag: clear: %w", err)
	}
	return nil
}

// InsertBatch implements [Store]. The batch is one transaction.
func (s *SQLStore) InsertBatch(ctx context.Context, entries []corpus.Entry) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rag: insert: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(
		`INSERT INTO embeddings (id, position, metadata, content, embedding) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("rag: insert: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		md, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("rag: insert: encode metadata at %d: %w", e.Position, err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID(), e.Position, string(md), e.Description, corpus.FormatVector(e.Vector)); err != nil {
			return fmt.Errorf("rag: insert: row %d: %w", e.Position, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rag: insert: commit: %w", err)
	}
	return nil
}

// storedRow is one row of the embeddings table.
type storedRow struct {
	Metadata  string `db:"metadata"`
	Content   string `db:"content"`
	Embedding string `db:"embedding"`
}

// Search implements [Store]. Ties keep insertion order.
func (s *SQLStore) Search(ctx context.Context, vector []float32, expr filter.Expr, k int) ([]Hit, error) {
	if expr == nil {
		return nil, ErrNoFilter
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	rows, err := s.db.QueryxContext(ctx, `SELECT metadata, content, embedding FROM embeddings ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var r storedRow
		if err := rows.StructScan(&r); err != nil {
			return nil, fmt.Errorf("rag: search scan: %w", err)
		}
		md, err := decodeMetadata(r.Metadata)
		if err != nil {
			return nil, err
		}
		if !filter.Eval(expr, md) {
			continue
		}
		vec, err := corpus.ParseVector(r.Embedding)
		if err != nil {
			return nil, fmt.Errorf("rag: search: %w", err)
		}
		hits = append(hits, Hit{
			Record: corpus.Record{Metadata: md, Description: r.Content},
			Score:  cosine(vector, vec),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rag: search rows: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// decodeMetadata keeps integers exact so scoping keys compare as int64.
func decodeMetadata(raw string) (corpus.Metadata, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var md corpus.Metadata
	if err := dec.Decode(&md); err != nil {
		return nil, fmt.Errorf("rag: decode metadata: %w", err)
	}
	return md, nil
}

// Count implements [Store].
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM embeddings`); err != nil {
		return 0, fmt.Errorf("rag: count: %w", err)
	}
	return n, nil
}

// Ping implements [Store].
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("rag: close: %w", err)
	}
	return nil
}

// cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
