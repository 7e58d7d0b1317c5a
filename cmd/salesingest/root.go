package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rpattn/salesingest/internal/config"
)

func execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		cfg        config.Config
	)

	rootCmd := &cobra.Command{
		Use:           "salesingest",
		Short:         "Multi-tenant sales file ingestion",
		Long:          "Ingests per-tenant sales CSV and XLSX exports into a deduplicated store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "Directory holding config.yaml and .env")

	// Subcommands read cfg lazily, after PersistentPreRunE has run.
	loadConfig := func() config.Config { return cfg }

	rootCmd.AddCommand(newServeCmd(loadConfig))
	rootCmd.AddCommand(newMigrateCmd(loadConfig))
	rootCmd.AddCommand(newIngestCmd(loadConfig))
	rootCmd.AddCommand(newTenantCmd(loadConfig))
	return rootCmd
}
