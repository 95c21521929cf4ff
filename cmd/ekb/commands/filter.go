package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ednevnik-kb/internal/access"
	"github.com/54b3r/ednevnik-kb/internal/filter"
)

// NewFilterCmd constructs the `ekb filter` command, which prints the access
// predicate compiled for a requester without touching any store.
func NewFilterCmd() *cobra.Command {
	var scope scopeFlags

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Print the access filter compiled for a requester",
		Long:  `Compile the requester's claims into the metadata filter applied to every
search, and print it as JSON. Root compiles to the empty filter {}.

Examples:
  ekb filter --role teacher --tenant 3
  ekb filter --role pupil --account-id 901 --tenant 3
  ekb filter --role tenant_admin --admin-tenant 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			expr, err := access.CompileScope(scope.scope(cmd))
			if err != nil {
				return fmt.Errorf("filter: %w", err)
			}
			b, err := filter.MarshalJSON(expr)
			if err != nil {
				return fmt.Errorf("filter: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}

	scope.register(cmd)
	return cmd
}
