package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		if err := ensureDatabase(cfg.Database, logger); err != nil {
			logger.Warn("could not verify database existence", "error", err)
		}
		return runMigrations(cfg.Database, logger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
