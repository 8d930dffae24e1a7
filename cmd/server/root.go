package main

import (
	"os"

	"github.com/spf13/cobra"

	"floorflow/backend/internal/config"
	"floorflow/backend/internal/logging"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "floorflow",
		Short:         "Production floor workflow service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	load := func() (*config.Config, *logging.Logger, error) {
		cfg, err := config.LoadConfig(configFlag)
		if err != nil {
			return nil, nil, err
		}
		return cfg, logging.New(os.Stdout, cfg.Environment, cfg.LogLevel), nil
	}

	rootCmd.AddCommand(newServeCommand(load))
	rootCmd.AddCommand(newMigrateCommand(load))
	return rootCmd
}

type loader func() (*config.Config, *logging.Logger, error)
