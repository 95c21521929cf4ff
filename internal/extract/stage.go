// Package extract projects academic records into embedding records.
//
// Every entity kind is described by a [Stage]: an optional read of the shared
// workspace, a per-partition scan that runs concurrently across tenants, and
// a sequential emit step that folds the partition results in tenant order.
// The six kinds differ only in their descriptor; concurrency, ordering and
// record validation live here once.
package extract

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/ednevnik-kb/internal/catalog"
	"github.com/54b3r/ednevnik-kb/internal/corpus"
)

// Extractor produces all records of one source.
type Extractor interface {
	// Source is the discriminator of every record this extractor emits.
	Source() corpus.Source
	// Extract reads env and returns records in scan order.
	Extract(ctx context.Context, env *Env) ([]corpus.Record, error)
}

// Stage is the generic extractor. B is the workspace result shared by all
// partitions; S is one partition's scan result.
type Stage[B, S any] struct {
	// Kind is the emitted source.
	Kind corpus.Source
	// Base reads the workspace once. Nil means no workspace rows are needed.
	Base func(ctx context.Context, env *Env) (B, error)
	// Scan reads one tenant partition. Scans run concurrently and must not
	// share mutable state. Nil means the kind has no per-tenant data.
	Scan func(ctx context.Context, env *Env, base B, p *catalog.Partition) (S, error)
	// Emit folds scans, aligned with env.Partitions, into records.
	Emit func(env *Env, base B, scans []S) []corpus.Record
}

// Source implements [Extractor].
func (s Stage[B, S]) Source() corpus.Source { return s.Kind }

// Extract implements [Extractor].
func (s Stage[B, S]) Extract(ctx context.Context, env *Env) ([]corpus.Record, error) {
	var base B
	if s.Base != nil {
		var err error
		if base, err = s.Base(ctx, env); err != nil {
			return nil, fmt.Errorf("extract: %s: workspace: %w", s.Kind, err)
		}
	}

	scans := make([]S, len(env.Partitions))
	if s.Scan != nil {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(env.workers())
		for i, p := range env.Partitions {
			g.Go(func() error {
				res, err := s.Scan(gctx, env, base, p)
				if err != nil {
					return fmt.Errorf("extract: %s: %s: %w", s.Kind, p.Name, err)
				}
				scans[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	records := s.Emit(env, base, scans)
	for i, r := range records {
		if err := corpus.Validate(r); err != nil {
			return nil, fmt.Errorf("extract: %s: record %d: %w", s.Kind, i, err)
		}
	}
	return records, nil
}

// concat flattens per-partition record slices in partition order.
func concat[B any](_ *Env, _ B, scans [][]corpus.Record) []corpus.Record {
	var n int
	for _, s := range scans {
		n += len(s)
	}
	out := make([]corpus.Record, 0, n)
	for _, s := range scans {
		out = append(out, s...)
	}
	return out
}
