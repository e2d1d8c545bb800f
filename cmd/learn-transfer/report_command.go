package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"learn-transfer/internal/logging"
	"learn-transfer/internal/report"
)

func newReportCommand() *cobra.Command {
	var (
		output       string
		mosaiqLog    string
		toleranceMin int
	)

	cmd := &cobra.Command{
		Use:   "report <images-dir>",
		Short: "Generate a CBCT shift report from transferred registration files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(logging.Options{})
			if err != nil {
				return err
			}

			markdown, err := report.Generate(args[0], logger)
			if err != nil {
				return err
			}

			if output != "" {
				if err := os.WriteFile(output, []byte(markdown), 0644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", output)
			} else {
				fmt.Fprint(cmd.OutOrStdout(), markdown)
			}

			if mosaiqLog == "" {
				return nil
			}

			mosaiq, err := report.ParseMosaiqLog(mosaiqLog)
			if err != nil {
				return err
			}

			paths, err := report.FindRPSFiles(args[0])
			if err != nil {
				return err
			}
			var records []*report.RPSRecord
			for _, path := range paths {
				rec, err := report.ExtractRPS(path, logger)
				if err != nil {
					logger.Warn("skipping unreadable registration file",
						"path", path, "error", err)
					continue
				}
				records = append(records, rec)
			}

			matches := report.MatchRecords(mosaiq, records,
				time.Duration(toleranceMin)*time.Minute)
			report.RenderComparison(matches, cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the markdown report to a file")
	cmd.Flags().StringVar(&mosaiqLog, "mosaiq", "", "Mosaiq shifts TSV to compare against")
	cmd.Flags().IntVar(&toleranceMin, "tolerance", 15, "Match tolerance in minutes")
	return cmd
}
