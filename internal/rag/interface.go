// Package rag holds the corpus store and retrieval side of the knowledge
// base: persisting encoded records and running access-scoped vector search.
// Concrete stores (SQL, Qdrant) satisfy [Store] so the pipeline and the
// retrieval API never depend on a specific backend.
package rag

import (
	"context"
	"errors"

	"github.com/54b3r/ednevnik-kb/internal/corpus"
	"github.com/54b3r/ednevnik-kb/internal/filter"
)

// Embedder converts text into dense vectors. Implementations must be safe to
// call from multiple goroutines. The result should be parallel to texts;
// callers verify the count.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Store persists corpus entries and searches them.
// Implementations must be safe to call from multiple goroutines.
type Store interface {
	// Clear removes every entry in one atomic step.
	Clear(ctx context.Context) error

	// InsertBatch persists entries atomically: either every entry of the
	// batch is visible afterwards or none is.
	InsertBatch(ctx context.Context, entries []corpus.Entry) error

	// Search returns at most k entries satisfying expr, most similar to
	// vector first.
	Search(ctx context.Context, vector []float32, expr filter.Expr, k int) ([]Hit, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Hit is one search result.
type Hit struct {
	corpus.Record
	// Score is the cosine similarity to the query vector.
	Score float32 `json:"score"`
}

// ErrNoFilter is returned when a search is attempted without an access
// predicate. Unscoped search has to be requested with filter.True.
var ErrNoFilter = errors.New("rag: search requires an access filter")
