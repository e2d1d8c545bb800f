package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"learn-transfer/internal/logging"
	"learn-transfer/internal/verify"
)

func newVerifyCommand() *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "verify <directory> <term>...",
		Short: "Scan a transferred tree for residual patient identifiers",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(logging.Options{Level: level})
			if err != nil {
				return err
			}

			scanner := verify.NewScanner(logger)
			report, err := scanner.Scan(args[0], args[1:])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d files in %s\n",
				report.FilesScanned, args[0])

			if report.Clean() {
				fmt.Fprintln(cmd.OutOrStdout(), "PASS: no residual PII detected")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"File", "Location", "Matched"})
			for _, f := range report.Findings {
				t.AppendRow(table.Row{f.File, f.Location, f.Matched})
			}
			t.Render()

			return fmt.Errorf("FAIL: %d residual PII finding(s)", len(report.Findings))
		},
	}

	cmd.Flags().StringVar(&level, "log-level", "info", "Log level")
	return cmd
}
