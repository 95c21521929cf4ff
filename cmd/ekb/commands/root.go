// Package commands defines all Cobra CLI commands for the ekb binary.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/54b3r/ednevnik-kb/internal/audit"
	"github.com/54b3r/ednevnik-kb/internal/config"
	"github.com/54b3r/ednevnik-kb/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ekb",
		Short: "eDnevnik knowledge base: scoped semantic search over school records",
		Long:  `ekb turns the records of every eDnevnik institution into a searchable
vector corpus.

Each institution keeps its data in its own partition. 'ekb embed' reads
all partitions, renders one description per institution, class section,
teacher, pupil, grade group and behaviour mark, embeds them and replaces
the corpus. 'ekb search' and 'ekb serve' answer questions against that
corpus, restricted by the caller's role to the records they may see.

Configuration comes from the environment, a .env file, or a YAML file
(~/.ednevnik-kb/config.yaml). Environment variables always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			// Rebuild the logger in case the config file set LOG_LEVEL/LOG_FORMAT.
			log = logging.New()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = logging.WithLogger(ctx, log)
			cmd.SetContext(ctx)

			audit.LogCommandStart(ctx, log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ednevnik-kb/config.yaml)")

	root.AddCommand(
		NewEmbedCmd(),
		NewSearchCmd(),
		NewFilterCmd(),
		NewTenantsCmd(),
		NewRunsCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
