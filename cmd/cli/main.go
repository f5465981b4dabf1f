package main

import (
	"os"

	"github.com/akeren/waitlist-foundry/config"
	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/spf13/cobra"
)

func main() {
	logger := log.NewLoggerWithJSONOutput()

	config.InitializeEnvFile(logger) // Load envs early for CLI consistency

	if err := newRootCommand(logger).Execute(); err != nil {
		logger.Error("Command failed", "error", err.Error())
		os.Exit(1)
	}
}

func newRootCommand(logger *log.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "waitlist",
		Short: "Operate the waitlist store from the command line",
		Long: `Operate the waitlist store selected by STORAGE_BACKEND.

Examples:
  waitlist migrate
  waitlist import waitlist-export.csv
  waitlist export backup.csv
  waitlist count
  waitlist delete 42`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCommand(logger),
		newImportCommand(logger),
		newExportCommand(logger),
		newCountCommand(logger),
		newDeleteCommand(logger),
	)
	return root
}
