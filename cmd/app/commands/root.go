// Package commands holds the pace command line.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"Pace/pkg/config"
)

const defaultConfigPath = "config/config.yaml"

// NewRootCmd builds the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pace",
		Short:         "Pace activity dashboard",
		Long:          "Pace serves a daily step and distance dashboard backed by ClickHouse or a health data bridge.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().String("config", defaultConfigPath, "Path to configuration file (YAML)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSnapshotCmd())
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
