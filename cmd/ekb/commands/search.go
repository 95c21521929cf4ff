package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/ednevnik-kb/internal/access"
	"github.com/54b3r/ednevnik-kb/internal/config"
	"github.com/54b3r/ednevnik-kb/internal/corpus"
	"github.com/54b3r/ednevnik-kb/internal/embedder"
	"github.com/54b3r/ednevnik-kb/internal/logging"
	"github.com/54b3r/ednevnik-kb/internal/rag"
)

// NewSearchCmd constructs the `ekb search` command, which runs one scoped
// similarity query against the corpus.
func NewSearchCmd() *cobra.Command {
	var scope scopeFlags
	var k int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the corpus as a given requester",
		Long:  `Embed the query and return the most similar corpus entries the requester
is allowed to see.

The requester is described by --role and its scope flags. A teacher sees
entries of the tenants given with --tenant; a pupil additionally sees only
their own pupil, grade and behaviour entries; a tenant_admin needs
--admin-tenant.

Examples:
  ekb search "najbolji učenici iz matematike"
  ekb search --role teacher --tenant 3 --tenant 7 "razredne starješine"
  ekb search --role pupil --account-id 901 --tenant 3 --json "moje ocjene"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			expr, err := access.CompileScope(scope.scope(cmd))
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			s, err := config.FromEnv()
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("search: %w", err)
			}
			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("search: failed to initialise embedder: %w", err)
			}
			st, err := openStore(ctx, s, embedder.Backend())
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer func() { _ = st.Close() }()

			retriever, err := rag.NewRetriever(emb, st, s.TopK)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			hits, err := retriever.Retrieve(ctx, strings.Join(args, " "), expr, k)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(hits)
			}
			printHits(cmd.OutOrStdout(), hits)
			return nil
		},
	}

	scope.register(cmd)
	cmd.Flags().IntVarP(&k, "top-k", "k", 0, "Number of hits to return (default: EKB_TOP_K or 40)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print hits as JSON")

	return cmd
}

// printHits writes one block per hit: rank, score, source and description.
func printHits(w io.Writer, hits []rag.Hit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "no matching entries")
		return
	}
	for i, h := range hits {
		fmt.Fprintf(w, "%2d. [%.4f] %s", i+1, h.Score, h.Source())
		if id, ok := h.Metadata[corpus.KeyTenantID]; ok && id != nil {
			fmt.Fprintf(w, " tenant=%v", id)
		}
		fmt.Fprintf(w, "\n    %s\n", h.Description)
	}
}
