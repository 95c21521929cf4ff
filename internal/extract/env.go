package extract

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/54b3r/ednevnik-kb/internal/catalog"
	"github.com/54b3r/ednevnik-kb/internal/corpus"
	"github.com/54b3r/ednevnik-kb/internal/logging"
)

// defaultWorkers bounds concurrent partition scans when Options.Workers is 0.
const defaultWorkers = 4

// Env is the read-only input shared by every stage of one run.
type Env struct {
	// Workspace is the shared workspace handle.
	Workspace *sqlx.DB
	// Partitions lists every tenant partition in catalog order.
	Partitions []*catalog.Partition
	// Refs holds workspace lookup tables used while projecting tenant rows.
	Refs *Refs
	// Workers bounds concurrent partition scans.
	Workers int
}

func (e *Env) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return defaultWorkers
}

// Options tunes a [Run].
type Options struct {
	// Workers bounds concurrent partition scans. Zero uses the default.
	Workers int
}

// NewEnv resolves every partition and loads the workspace lookup tables.
func NewEnv(ctx context.Context, cat *catalog.Catalog, opts Options) (*Env, error) {
	parts, err := cat.Partitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	refs, err := LoadRefs(ctx, cat.Workspace())
	if err != nil {
		return nil, err
	}
	return &Env{
		Workspace:  cat.Workspace(),
		Partitions: parts,
		Refs:       refs,
		Workers:    opts.Workers,
	}, nil
}

// All returns the six extractors in emission order.
func All() []Extractor {
	return []Extractor{
		Institutions(),
		Sections(),
		Teachers(),
		Pupils(),
		Grades(),
		Behaviours(),
	}
}

// Run extracts every kind and returns the concatenated records. Any error
// aborts the whole extraction.
func Run(ctx context.Context, cat *catalog.Catalog, opts Options) ([]corpus.Record, error) {
	log := logging.FromContext(ctx)

	env, err := NewEnv(ctx, cat, opts)
	if err != nil {
		return nil, err
	}
	log.Info("extract: starting", slog.Int("tenants", len(env.Partitions)))

	var all []corpus.Record
	for _, x := range All() {
		start := time.Now()
		recs, err := x.Extract(ctx, env)
		if err != nil {
			return nil, err
		}
		log.Info("extract: collected",
			slog.String("source", string(x.Source())),
			slog.Int("records", len(recs)),
			slog.Duration("duration", time.Since(start)),
		)
		all = append(all, recs...)
	}
	return all, nil
}

// query runs a select against db with placeholders rebound for its driver.
func query(ctx context.Context, db *sqlx.DB, dest any, q string, args ...any) error {
	return db.SelectContext(ctx, dest, db.Rebind(q), args...)
}

// tally accumulates grade values for a mean.
type tally struct {
	Sum   float64 `db:"total"`
	Count int64   `db:"n"`
}

func (t *tally) add(o tally) {
	t.Sum += o.Sum
	t.Count += o.Count
}

// mean returns the average, or [DefaultAverage] when nothing was counted.
func (t tally) mean() float64 {
	if t.Count == 0 {
		return DefaultAverage
	}
	return t.Sum / float64(t.Count)
}

// eligibleGrades restricts student_grades rows to those counted anywhere.
// The final grade type is intentionally absent.
const eligibleGrades = `type IN ('exam', 'oral', 'written_assignment') AND grade IS NOT NULL`

// keyedTally is one row of a grouped tally query.
type keyedTally struct {
	Key   int64   `db:"k"`
	Sum   float64 `db:"total"`
	Count int64   `db:"n"`
}

func tallyBy(ctx context.Context, db *sqlx.DB, column string) (map[int64]tally, error) {
	var rows []keyedTally
	q := `SELECT ` + column + ` AS k, COALESCE(SUM(grade), 0) AS total, COUNT(grade) AS n
FROM student_grades WHERE ` + column + ` IS NOT NULL AND ` + eligibleGrades + ` GROUP BY ` + column
	if err := query(ctx, db, &rows, q); err != nil {
		return nil, fmt.Errorf("grade tally by %s: %w", column, err)
	}
	out := make(map[int64]tally, len(rows))
	for _, r := range rows {
		out[r.Key] = tally{Sum: r.Sum, Count: r.Count}
	}
	return out, nil
}

// nullInt renders a nullable id as metadata: int64 or nil.
func nullInt(v sql.NullInt64) any {
	if !v.Valid {
		return nil
	}
	return v.Int64
}

// tenantList returns ids or an empty, non-nil list.
func tenantList(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
