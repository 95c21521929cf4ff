// Package ingestion implements the embedding batcher. It takes the full
// record set produced by extraction, replaces the corpus with it, encoding
// descriptions in fixed-size batches. Extraction finishes before the corpus
// is touched, so a failed extraction leaves the previous corpus intact.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ednevnik-kb/internal/budget"
	"github.com/54b3r/ednevnik-kb/internal/corpus"
	"github.com/54b3r/ednevnik-kb/internal/logging"
	"github.com/54b3r/ednevnik-kb/internal/rag"
)

// Defaults applied by NewPipeline.
const (
	DefaultBatchSize     = 100
	DefaultEncodeRetries = 2
	defaultRetryInterval = time.Second
)

// ErrVectorCountMismatch is returned when the encoder answers a batch with a
// different number of vectors than it was given texts. The run aborts: the
// records of that batch can not be paired with vectors safely.
var ErrVectorCountMismatch = errors.New("ingestion: encoder vector count mismatch")

// ExtractFunc produces the complete record set of one run.
type ExtractFunc func(ctx context.Context) ([]corpus.Record, error)

// Config holds the configuration for the pipeline.
type Config struct {
	// BatchSize is the number of records encoded and inserted together.
	// Defaults to 100 if zero.
	BatchSize int

	// EncodeRetries is how many times a failed encode call is retried.
	// Zero uses the default of 2; negative disables retries.
	EncodeRetries int

	// RetryInterval is the first backoff delay between encode attempts.
	// Defaults to 1s if zero.
	RetryInterval time.Duration

	// MaxInputTokens is the encoder input window. Descriptions estimated
	// above it are logged and counted, since the encoder truncates them.
	// Zero uses budget.DefaultMaxInputTokens; negative disables the check.
	MaxInputTokens int

	// MetricsRegistry receives the pipeline metrics. Nil registers into a
	// private registry that is never exported.
	MetricsRegistry prometheus.Registerer
}

// Pipeline orchestrates the extract → clear → encode → insert flow.
type Pipeline struct {
	// extract produces every record of the run.
	extract ExtractFunc

	// embedder converts descriptions into dense vectors.
	embedder rag.Embedder

	// store is the corpus being replaced.
	store rag.Store

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// metrics is registered once per pipeline.
	metrics *pipelineMetrics
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(extract ExtractFunc, embedder rag.Embedder, store rag.Store, cfg *Config) (*Pipeline, error) {
	if extract == nil {
		return nil, fmt.Errorf("ingestion: extract must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}

	resolved := Config{}
	if cfg != nil {
		resolved = *cfg
	}
	if resolved.BatchSize <= 0 {
		resolved.BatchSize = DefaultBatchSize
	}
	switch {
	case resolved.EncodeRetries == 0:
		resolved.EncodeRetries = DefaultEncodeRetries
	case resolved.EncodeRetries < 0:
		resolved.EncodeRetries = 0
	}
	if resolved.MaxInputTokens == 0 {
		resolved.MaxInputTokens = budget.DefaultMaxInputTokens
	}
	if resolved.RetryInterval <= 0 {
		resolved.RetryInterval = defaultRetryInterval
	}
	if resolved.MetricsRegistry == nil {
		resolved.MetricsRegistry = prometheus.NewRegistry()
	}

	return &Pipeline{
		extract:  extract,
		embedder: embedder,
		store:    store,
		cfg:      &resolved,
		metrics:  newPipelineMetrics(resolved.MetricsRegistry),
	}, nil
}

// Run rebuilds the corpus and returns the number of entries stored. On error
// the count is the prefix that was committed before the failure.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	records, err := p.extract(ctx)
	if err != nil {
		p.metrics.runs.WithLabelValues(outcomeExtractError).Inc()
		return 0, fmt.Errorf("ingestion: extract: %w", err)
	}
	log.Info("ingestion: extracted", slog.Int("records", len(records)))

	if err := p.store.Clear(ctx); err != nil {
		p.metrics.runs.WithLabelValues(outcomeError).Inc()
		return 0, fmt.Errorf("ingestion: clear corpus: %w", err)
	}

	stored, err := p.insertAll(ctx, log, records)
	if err != nil {
		p.metrics.runs.WithLabelValues(outcomeError).Inc()
		log.Error("ingestion: run aborted",
			slog.Int("stored", stored),
			slog.Int("records", len(records)),
			slog.String("error", err.Error()),
		)
		return stored, err
	}

	p.metrics.runs.WithLabelValues(outcomeOK).Inc()
	p.metrics.lastRecords.Set(float64(stored))
	log.Info("ingestion: corpus rebuilt",
		slog.Int("records", stored),
		slog.Duration("duration", time.Since(start)),
	)
	return stored, nil
}

func (p *Pipeline) insertAll(ctx context.Context, log *slog.Logger, records []corpus.Record) (int, error) {
	size := p.cfg.BatchSize
	total := (len(records) + size - 1) / size
	stored := 0

	for n, lo := 1, 0; lo < len(records); n, lo = n+1, lo+size {
		hi := min(lo+size, len(records))
		batch := records[lo:hi]

		texts := make([]string, len(batch))
		for i, r := range batch {
			texts[i] = r.Description
		}

		p.checkBudget(log, batch, texts, lo)

		vectors, err := p.encode(ctx, log, texts)
		if err != nil {
			return stored, fmt.Errorf("ingestion: batch %d/%d: encode: %w", n, total, err)
		}
		if len(vectors) != len(batch) {
			return stored, fmt.Errorf("%w: batch %d/%d: %d vectors for %d texts", ErrVectorCountMismatch, n, total, len(vectors), len(batch))
		}

		entries := make([]corpus.Entry, len(batch))
		for i, r := range batch {
			entries[i] = corpus.Entry{Record: r, Position: lo + i, Vector: vectors[i]}
		}
		if err := p.store.InsertBatch(ctx, entries); err != nil {
			return stored, fmt.Errorf("ingestion: batch %d/%d: insert: %w", n, total, err)
		}

		stored += len(batch)
		p.metrics.batches.Inc()
		p.metrics.records.Add(float64(len(batch)))
		log.Info("ingestion: batch stored",
			slog.Int("batch", n),
			slog.Int("batches", total),
			slog.Int("size", len(batch)),
			slog.Int("stored", stored),
		)
	}
	return stored, nil
}

// checkBudget warns about descriptions the encoder would truncate. offset is
// the run position of batch[0].
func (p *Pipeline) checkBudget(log *slog.Logger, batch []corpus.Record, texts []string, offset int) {
	for _, i := range budget.Oversized(texts, p.cfg.MaxInputTokens) {
		p.metrics.oversized.Inc()
		log.Warn("ingestion: description exceeds encoder input window",
			slog.String("source", string(batch[i].Source())),
			slog.Int("position", offset+i),
			slog.Int("estimated_tokens", budget.Estimate(texts[i])),
			slog.Int("max_tokens", p.cfg.MaxInputTokens),
		)
	}
}

// encode calls the embedder with exponential backoff. Exhausting the retries
// is fatal for the run.
func (p *Pipeline) encode(ctx context.Context, log *slog.Logger, texts []string) ([][]float32, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.RetryInterval
	b.MaxElapsedTime = 0

	var vectors [][]float32
	attempt := 0
	operation := func() error {
		attempt++
		start := time.Now()
		v, err := p.embedder.Embed(ctx, texts)
		p.metrics.encodeSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		vectors = v
		return nil
	}
	notify := func(err error, wait time.Duration) {
		p.metrics.encodeRetries.Inc()
		log.Warn("ingestion: encode failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.cfg.EncodeRetries)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return vectors, nil
}
