package main

import (
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/backoffice/internal/app"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "backoffice",
		Short:         "Commerce back office: automatic ledger posting and multi-warehouse stock",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCommand(),
		newWorkerCommand(),
		newDrainCommand(),
		newBackfillCommand(),
		newIntegrityCommand(),
		newJobsCommand(),
	)
	return root
}

// loadRuntime reads the configuration shared by every subcommand.
func loadRuntime() (*app.Config, error) {
	return app.LoadConfig()
}
