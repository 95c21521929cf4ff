package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/54b3r/ednevnik-kb/internal/catalog"
	"github.com/54b3r/ednevnik-kb/internal/config"
)

// NewTenantsCmd constructs the `ekb tenants` command.
func NewTenantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tenants",
		Short: "List tenants and their partition names",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s, err := config.FromEnv()
			if err != nil {
				return fmt.Errorf("tenants: %w", err)
			}
			cat, err := openCatalog(ctx, s)
			if err != nil {
				return fmt.Errorf("tenants: %w", err)
			}
			defer func() { _ = cat.Close() }()

			ids, err := cat.ListTenants(ctx)
			if err != nil {
				return fmt.Errorf("tenants: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TENANT\tPARTITION")
			for _, id := range ids {
				fmt.Fprintf(tw, "%d\t%s\n", id, catalog.PartitionName(id))
			}
			return tw.Flush()
		},
	}
}
