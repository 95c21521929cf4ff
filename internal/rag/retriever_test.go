package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/54b3r/ednevnik-kb/internal/corpus"
	"github.com/54b3r/ednevnik-kb/internal/filter"
)

type fakeEmbedder struct {
	vectors [][]float32
	err     error
	calls   [][]string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	return f.vectors, f.err
}

type recordingStore struct {
	Store
	k    int
	expr filter.Expr
}

func (s *recordingStore) Search(_ context.Context, _ []float32, expr filter.Expr, k int) ([]Hit, error) {
	s.k, s.expr = k, expr
	return []Hit{{Record: corpus.Record{Description: "x"}, Score: 1}}, nil
}

func TestNewRetriever_Validation(t *testing.T) {
	t.Parallel()
	if _, err := NewRetriever(nil, &recordingStore{}, 0); err == nil {
		t.Error("want error for nil embedder")
	}
	if _, err := NewRetriever(&fakeEmbedder{}, nil, 0); err == nil {
		t.Error("want error for nil store")
	}
}

func TestRetriever_DefaultTopK(t *testing.T) {
	t.Parallel()
	store := &recordingStore{}
	r, err := NewRetriever(&fakeEmbedder{vectors: [][]float32{{1}}}, store, 0)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	hits, err := r.Retrieve(context.Background(), "ko predaje matematiku", filter.True{}, 0)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("want 1 hit, got %d", len(hits))
	}
	if store.k != DefaultTopK {
		t.Errorf("want k=%d, got %d", DefaultTopK, store.k)
	}
	if _, ok := store.expr.(filter.True); !ok {
		t.Errorf("want filter passed through, got %T", store.expr)
	}
}

func TestRetriever_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r, _ := NewRetriever(&fakeEmbedder{vectors: [][]float32{{1}}}, &recordingStore{}, 5)
	if _, err := r.Retrieve(ctx, "q", nil, 0); !errors.Is(err, ErrNoFilter) {
		t.Errorf("want ErrNoFilter, got %v", err)
	}

	r, _ = NewRetriever(&fakeEmbedder{err: errors.New("down")}, &recordingStore{}, 5)
	if _, err := r.Retrieve(ctx, "q", filter.True{}, 0); err == nil {
		t.Error("want embed error")
	}

	r, _ = NewRetriever(&fakeEmbedder{vectors: [][]float32{{1}, {2}}}, &recordingStore{}, 5)
	if _, err := r.Retrieve(ctx, "q", filter.True{}, 0); err == nil {
		t.Error("want error for wrong vector count")
	}
}
