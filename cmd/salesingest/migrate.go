package main

import (
	"github.com/spf13/cobra"

	"github.com/rpattn/salesingest/internal/config"
	"github.com/rpattn/salesingest/internal/db"
)

func newMigrateCmd(loadConfig func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig().Database
			if cfg.Driver == db.DriverSQLite {
				conn, err := openSQLite(cfg)
				if err != nil {
					return err
				}
				return conn.Close()
			}
			return db.RunMigrations(cfg)
		},
	}
}
