package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/ednevnik-kb/internal/access"
	"github.com/54b3r/ednevnik-kb/internal/catalog"
	"github.com/54b3r/ednevnik-kb/internal/config"
	"github.com/54b3r/ednevnik-kb/internal/corpus"
	"github.com/54b3r/ednevnik-kb/internal/embedder"
	"github.com/54b3r/ednevnik-kb/internal/extract"
	"github.com/54b3r/ednevnik-kb/internal/ingestion"
	"github.com/54b3r/ednevnik-kb/internal/logging"
	"github.com/54b3r/ednevnik-kb/internal/rag"
	"github.com/54b3r/ednevnik-kb/internal/store"
)

// openCatalog connects to the tenant partitions described by s.
func openCatalog(ctx context.Context, s config.Settings) (*catalog.Catalog, error) {
	return catalog.Open(ctx, catalog.Config{
		Driver: s.SourceDriver,
		DSN:    s.SourceDSN,
		Dir:    s.SourceDir,
	})
}

// openStore connects to the corpus store selected by CORPUS_BACKEND. Qdrant
// collections are sized for the configured encoder backend.
func openStore(ctx context.Context, s config.Settings, encoder string) (rag.Store, error) {
	if s.CorpusBackend == config.BackendQdrant {
		st, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
			Host:       s.QdrantHost,
			Port:       s.QdrantPort,
			Collection: s.QdrantCollection,
			VectorSize: uint64(embedder.DefaultDimensions(encoder)), //nolint:gosec // dimensions are bounded
			APIKey:     s.QdrantAPIKey,
			UseTLS:     s.QdrantTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", s.QdrantHost, s.QdrantPort, err)
		}
		return st, nil
	}
	st, err := rag.OpenSQLStore(ctx, s.CorpusDriver, s.CorpusDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s corpus store: %w", s.CorpusDriver, err)
	}
	return st, nil
}

// openLedger opens the run ledger. EKB_RUNS_DB=disabled returns nil. A ledger
// that fails to open is logged and skipped: it never blocks a rebuild.
func openLedger(s config.Settings, log *slog.Logger) store.RunLedger {
	if s.RunsDisabled() {
		log.Info("runs: ledger disabled via EKB_RUNS_DB=disabled")
		return nil
	}
	path := s.RunsDB
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("runs: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	ledger, err := store.Open(path)
	if err != nil {
		log.Warn("runs: failed to open ledger, disabling", slog.Any("error", err))
		return nil
	}
	log.Debug("runs: ledger opened", slog.String("path", path))
	return ledger
}

// newPipeline wires extraction over cat into a batcher writing to st.
func newPipeline(cat *catalog.Catalog, emb rag.Embedder, st rag.Store, s config.Settings, reg prometheus.Registerer) (*ingestion.Pipeline, error) {
	extractAll := func(ctx context.Context) ([]corpus.Record, error) {
		return extract.Run(ctx, cat, extract.Options{Workers: s.Workers})
	}
	return ingestion.NewPipeline(extractAll, emb, st, &ingestion.Config{
		BatchSize:       s.BatchSize,
		EncodeRetries:   s.EncodeRetries,
		MaxInputTokens:  s.MaxInputTokens,
		MetricsRegistry: reg,
	})
}

// runRecorded runs p once and records the outcome in ledger when present.
func runRecorded(ctx context.Context, p *ingestion.Pipeline, ledger store.RunLedger, corpusBackend, model string) (int, error) {
	log := logging.FromContext(ctx)
	if ledger == nil {
		return p.Run(ctx)
	}

	id, err := ledger.Begin(ctx, corpusBackend, model)
	if err != nil {
		log.Warn("runs: failed to record run start", slog.Any("error", err))
		return p.Run(ctx)
	}
	ctx = logging.With(ctx, slog.Int64("run_id", id))
	n, runErr := p.Run(ctx)
	// Record the outcome even when ctx was cancelled mid-run.
	if err := ledger.Finish(context.WithoutCancel(ctx), id, n, runErr); err != nil {
		log.Warn("runs: failed to record run outcome", slog.Int64("run", id), slog.Any("error", err))
	}
	return n, runErr
}

// scopeFlags are the requester claims accepted by search and filter.
type scopeFlags struct {
	role        string
	accountID   int64
	tenantIDs   []int64
	adminTenant int64
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.role, "role", string(access.RoleRoot), "Requester role: root, tenant_admin, teacher, pupil")
	cmd.Flags().Int64Var(&f.accountID, "account-id", 0, "Requester account id (pupils are scoped by it)")
	cmd.Flags().Int64SliceVar(&f.tenantIDs, "tenant", nil, "Tenant id the requester belongs to (repeatable)")
	cmd.Flags().Int64Var(&f.adminTenant, "admin-tenant", 0, "Tenant administered by a tenant_admin")
}

// scope builds the wire claims. --admin-tenant is only set when given so an
// omitted flag is reported as a missing scope.
func (f *scopeFlags) scope(cmd *cobra.Command) access.Scope {
	s := access.Scope{
		Role:      access.Role(f.role),
		AccountID: f.accountID,
		TenantIDs: f.tenantIDs,
	}
	if cmd.Flags().Changed("admin-tenant") {
		id := f.adminTenant
		s.AdministeredTenantID = &id
	}
	return s
}
