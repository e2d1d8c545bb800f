package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"learn-transfer/internal/config"
)

func newInitConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config <path>",
		Short: "Write a sample configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteSample(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample config written to %s\n", args[0])
			return nil
		},
	}
}
