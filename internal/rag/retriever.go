package rag

import (
	"context"
	"fmt"

	"github.com/54b3r/ednevnik-kb/internal/filter"
)

// DefaultTopK is the number of hits returned when the caller passes 0.
const DefaultTopK = 40

// Retriever combines an Embedder and a Store. It embeds the query at
// retrieval time and delegates scoped similarity search to the store.
type Retriever struct {
	// embedder converts query text to a dense vector. It must be the model
	// the corpus was built with.
	embedder Embedder

	// store performs the vector similarity search.
	store Store

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// NewRetriever constructs a Retriever from the given Embedder and Store.
// defaultTopK sets the fallback result count; values <= 0 mean [DefaultTopK].
func NewRetriever(embedder Embedder, store Store, defaultTopK int) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &Retriever{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}, nil
}

// Retrieve embeds query and returns the top-k entries satisfying expr.
// A nil expr is rejected with [ErrNoFilter].
func (r *Retriever) Retrieve(ctx context.Context, query string, expr filter.Expr, topK int) ([]Hit, error) {
	if expr == nil {
		return nil, ErrNoFilter
	}
	if topK <= 0 {
		topK = r.defaultTopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("rag: embedder returned %d vectors for one query", len(embeddings))
	}

	hits, err := r.store.Search(ctx, embeddings[0], expr, topK)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}
	return hits, nil
}
