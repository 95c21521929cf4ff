package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// openTestStore opens an in-memory RunStore with a stepping clock.
func openTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	clock := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func Test_Store_BeginAndFinish(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Begin(ctx, "sql", "nomic-embed-text")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.Finish(ctx, id, 250, nil); err != nil {
		t.Fatalf("finish: %v", err)
	}

	runs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("want 1 run, got %d", len(runs))
	}
	r := runs[0]
	if r.ID != id || r.Status != StatusOK || r.Records != 250 || r.Error != "" {
		t.Errorf("want ok run with 250 records, got %+v", r)
	}
	if r.Backend != "sql" || r.Model != "nomic-embed-text" {
		t.Errorf("want sql/nomic-embed-text, got %s/%s", r.Backend, r.Model)
	}
	if r.Duration() != time.Second {
		t.Errorf("want 1s duration, got %v", r.Duration())
	}
}

func Test_Store_FailedRunKeepsMessage(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Begin(ctx, "qdrant", "text-embedding-3-small")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.Finish(ctx, id, 100, errors.New("batch 2/3: encode: timeout")); err != nil {
		t.Fatalf("finish: %v", err)
	}

	runs, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if runs[0].Status != StatusFailed || runs[0].Records != 100 || runs[0].Error != "batch 2/3: encode: timeout" {
		t.Errorf("want failed run with prefix and message, got %+v", runs[0])
	}
}

func Test_Store_RunningHasNoFinish(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Begin(ctx, "sql", "m"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	runs, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if runs[0].Status != StatusRunning || !runs[0].FinishedAt.IsZero() || runs[0].Duration() != 0 {
		t.Errorf("want unfinished running run, got %+v", runs[0])
	}
}

func Test_Store_NewestFirstAndLimit(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	var ids []int64
	for range 4 {
		id, err := s.Begin(ctx, "sql", "m")
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		ids = append(ids, id)
	}

	runs, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("want 3 runs, got %d", len(runs))
	}
	for i, r := range runs {
		if want := ids[len(ids)-1-i]; r.ID != want {
			t.Errorf("run[%d]: want id %d, got %d", i, want, r.ID)
		}
	}
}

func Test_Store_FinishUnknownRun(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	err := s.Finish(context.Background(), 42, 0, nil)
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("want ErrRunNotFound, got %v", err)
	}
}

func Test_Store_EmptyLedger(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	runs, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("want 0 runs, got %d", len(runs))
	}
}

func Test_Store_PersistsAcrossOpen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id, err := s.Begin(ctx, "sql", "m")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.Finish(ctx, id, 7, nil); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	runs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 1 || runs[0].Records != 7 {
		t.Errorf("want the run to survive reopen, got %+v", runs)
	}
}
