package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"learn-transfer/internal/config"
	"learn-transfer/internal/logging"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "learn-transfer",
		Short:         "Transfer and de-identify XVI CBCT imaging data",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newRunCommand(&configFlag))
	rootCmd.AddCommand(newSessionsCommand(&configFlag))
	rootCmd.AddCommand(newVerifyCommand())
	rootCmd.AddCommand(newReportCommand())
	rootCmd.AddCommand(newInitConfigCommand())

	return rootCmd
}

// loadConfig reads the config file named by the flag and builds the
// logger it asks for.
func loadConfig(path string) (*config.Config, *slog.Logger, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, nil, err
	}

	return cfg, logger, nil
}
