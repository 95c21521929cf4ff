package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/54b3r/ednevnik-kb/internal/config"
	"github.com/54b3r/ednevnik-kb/internal/embedder"
	"github.com/54b3r/ednevnik-kb/internal/ingestion"
	"github.com/54b3r/ednevnik-kb/internal/logging"
	"github.com/54b3r/ednevnik-kb/internal/rag"
	"github.com/54b3r/ednevnik-kb/internal/server"
	"github.com/54b3r/ednevnik-kb/internal/store"
)

// NewServeCmd constructs the `ekb serve` command, which starts the HTTP
// search API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var rebuildEvery time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scoped search HTTP API",
		Long:  `Start the HTTP server exposing scoped search over the corpus.

Endpoints:
  POST /api/search   {"query": ..., "scope": {...}, "k": 10}
  POST /api/filter   {"scope": {...}}
  GET  /api/health   liveness
  GET  /api/ready    corpus store and encoder reachability
  GET  /metrics      Prometheus metrics

Set EKB_API_KEY to require a bearer token on /api/search and /api/filter.
With --rebuild-every the server also rebuilds the corpus on a timer and
records each rebuild in the run ledger.

Examples:
  ekb serve
  ekb serve --port 9090
  ekb serve --rebuild-every 6h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logging.FromContext(ctx)

			s, err := config.FromEnv()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			if cmd.Flags().Changed("host") {
				s.Host = host
			}
			if cmd.Flags().Changed("port") {
				s.Port = port
			}

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}
			backend := embedder.Backend()

			st, err := openStore(ctx, s, backend)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = st.Close() }()

			retriever, err := rag.NewRetriever(emb, st, s.TopK)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := []server.Pinger{server.NewStorePinger(st, s.CorpusBackend)}
			if backend == "ollama" {
				pingers = append(pingers, server.NewHTTPPinger(embedder.OllamaHost(), "ollama"))
			}

			srv, err := server.New(retriever, &server.Config{
				Host:    s.Host,
				Port:    s.Port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  s.APIKey,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			if rebuildEvery <= 0 {
				return srv.Start(ctx)
			}

			cat, err := openCatalog(ctx, s)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = cat.Close() }()

			ledger := openLedger(s, log)
			if ledger != nil {
				defer func() { _ = ledger.Close() }()
			}

			pipeline, err := newPipeline(cat, emb, st, s, prometheus.DefaultRegisterer)
			if err != nil {
				return fmt.Errorf("serve: failed to create pipeline: %w", err)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Start(gctx) })
			g.Go(func() error {
				rebuildLoop(gctx, pipeline, ledger, rebuildEvery, s.CorpusBackend, embedder.Model(backend))
				return nil
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default: EKB_HOST or 127.0.0.1)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default: EKB_PORT or 8080)")
	cmd.Flags().DurationVar(&rebuildEvery, "rebuild-every", 0, "Rebuild the corpus at this interval while serving (0 disables)")

	return cmd
}

// rebuildLoop rebuilds the corpus every interval until ctx is cancelled. A
// failed rebuild is logged and retried at the next tick; searches keep
// serving whatever the store holds.
func rebuildLoop(ctx context.Context, p *ingestion.Pipeline, ledger store.RunLedger, every time.Duration, corpusBackend, model string) {
	ctx = logging.With(ctx, slog.String("trigger", "schedule"))
	log := logging.FromContext(ctx)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := runRecorded(ctx, p, ledger, corpusBackend, model)
			if err != nil {
				log.Error("serve: scheduled rebuild failed", slog.Int("stored", n), slog.Any("error", err))
				continue
			}
			log.Info("serve: scheduled rebuild complete", slog.Int("records", n))
		}
	}
}
