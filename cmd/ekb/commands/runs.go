package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/ednevnik-kb/internal/config"
	"github.com/54b3r/ednevnik-kb/internal/logging"
)

// NewRunsCmd constructs the `ekb runs` command, which shows recent corpus
// rebuilds from the run ledger.
func NewRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent corpus rebuilds",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s, err := config.FromEnv()
			if err != nil {
				return fmt.Errorf("runs: %w", err)
			}
			ledger := openLedger(s, logging.FromContext(ctx))
			if ledger == nil {
				return fmt.Errorf("runs: run ledger is not available")
			}
			defer func() { _ = ledger.Close() }()

			runs, err := ledger.Recent(ctx, limit)
			if err != nil {
				return fmt.Errorf("runs: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tRECORDS\tDURATION\tBACKEND\tMODEL\tERROR")
			for _, r := range runs {
				duration := "-"
				if !r.FinishedAt.IsZero() {
					duration = r.Duration().Round(time.Millisecond).String()
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.Records,
					duration, r.Backend, r.Model, r.Error)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}
