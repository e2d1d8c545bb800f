package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"learn-transfer/internal/session"
)

func newSessionsCommand(configFlag *string) *cobra.Command {
	var enrich bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List discovered imaging sessions without transferring",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}

			d := session.NewDiscoverer(cfg.Paths.PatientDir, cfg.Patient.ImagesSubdir, logger)
			sessions, err := d.Discover(enrich)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			header := table.Row{"Directory", "Kind", "Preset", "Treatment"}
			if enrich {
				header = append(header, "Scan Time", "Registration")
			}
			t.AppendHeader(header)

			for _, s := range sessions {
				row := table.Row{s.Name, string(s.Kind), s.Preset, s.TreatmentID}
				if enrich {
					scanTime := ""
					if s.HasScanTime {
						scanTime = s.ScanTime.Format("2006-01-02 15:04:05")
					}
					reg := ""
					if s.RegistrationPath != "" {
						reg = "yes"
					}
					row = append(row, scanTime, reg)
				}
				t.AppendRow(row)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&enrich, "enrich", false,
		"Read reconstruction INI and registration data (slower)")
	return cmd
}
