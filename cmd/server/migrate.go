package main

import (
	"github.com/spf13/cobra"

	"floorflow/backend/internal/repository"
)

func newMigrateCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			if err := repository.Migrate(cfg.DatabaseURL()); err != nil {
				return err
			}
			logger.Info("migrations applied", "database", cfg.DB.Name)
			return nil
		},
	}
}
