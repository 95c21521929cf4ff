package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/ednevnik-kb/internal/config"
	"github.com/54b3r/ednevnik-kb/internal/corpus"
	"github.com/54b3r/ednevnik-kb/internal/embedder"
	"github.com/54b3r/ednevnik-kb/internal/extract"
	"github.com/54b3r/ednevnik-kb/internal/logging"
)

// NewEmbedCmd constructs the `ekb embed` command, which rebuilds the corpus
// from every tenant partition.
func NewEmbedCmd() *cobra.Command {
	var batchSize int
	var workers int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Rebuild the corpus from all tenant partitions",
		Long:  `Extract every institution, class section, teacher, pupil, grade group and
behaviour mark, encode the descriptions and replace the stored corpus.

The corpus is cleared only after extraction has succeeded. Entries are
encoded and written in batches; a failed batch stops the run and leaves the
batches before it in place.

Required environment variables:
  SOURCE_DRIVER        sqlite or postgres (default: sqlite)
  SOURCE_DSN / SOURCE_DIR  Where the workspace and tenant partitions live
  CORPUS_BACKEND       sql or qdrant (default: sql)
  CORPUS_DSN           Corpus database for the sql backend
  EMBEDDING_PROVIDER   ollama, openai or azure (default: ollama)

Examples:
  ekb embed
  ekb embed --batch-size 50 --workers 4
  ekb embed --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			s, err := config.FromEnv()
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			if cmd.Flags().Changed("batch-size") {
				s.BatchSize = batchSize
			}
			if cmd.Flags().Changed("workers") {
				s.Workers = workers
			}

			cat, err := openCatalog(ctx, s)
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			defer func() { _ = cat.Close() }()

			if dryRun {
				records, err := extract.Run(ctx, cat, extract.Options{Workers: s.Workers})
				if err != nil {
					return fmt.Errorf("embed: extraction failed: %w", err)
				}
				printSourceCounts(cmd.OutOrStdout(), records)
				return nil
			}

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("embed: failed to initialise embedder: %w", err)
			}
			backend := embedder.Backend()

			st, err := openStore(ctx, s, backend)
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			defer func() { _ = st.Close() }()

			ledger := openLedger(s, log)
			if ledger != nil {
				defer func() { _ = ledger.Close() }()
			}

			pipeline, err := newPipeline(cat, emb, st, s, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("embed: failed to create pipeline: %w", err)
			}

			log.Info("starting rebuild",
				slog.String("embedder", backend),
				slog.String("corpus", s.CorpusBackend),
			)
			n, err := runRecorded(ctx, pipeline, ledger, s.CorpusBackend, embedder.Model(backend))
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "embedded %d records\n", n)
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Entries encoded and written per batch (default: PIPELINE_BATCH_SIZE or 100)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Partitions scanned concurrently (default: PIPELINE_WORKERS or 4)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Extract only and print record counts per source")

	return cmd
}

// printSourceCounts writes one "source count" line per source in emission
// order, then the total.
func printSourceCounts(w io.Writer, records []corpus.Record) {
	counts := make(map[corpus.Source]int)
	for _, r := range records {
		counts[r.Source()]++
	}
	for _, src := range corpus.Sources() {
		fmt.Fprintf(w, "%-10s %d\n", src, counts[src])
	}
	fmt.Fprintf(w, "%-10s %d\n", "total", len(records))
}
