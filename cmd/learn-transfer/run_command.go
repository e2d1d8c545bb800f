package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"learn-transfer/internal/anonymize"
	"learn-transfer/internal/config"
	"learn-transfer/internal/identity"
	"learn-transfer/internal/transfer"
)

func newRunCommand(configFlag *string) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full transfer pipeline for one patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}

			anonID, err := resolveAnonID(cfg, logger)
			if err != nil {
				return err
			}
			logger.Info("starting transfer",
				"patient_dir", cfg.Paths.PatientDir,
				"anon_id", anonID,
				"site", cfg.Patient.SiteName,
				"dry_run", dryRun)

			mapper, err := transfer.NewMapper(
				cfg.Paths.PatientDir, anonID, cfg.Patient.SiteName,
				cfg.Paths.OutputBase, cfg.Patient.ImagesSubdir, logger)
			if err != nil {
				return err
			}

			plans, err := resolvePlanDirs(cfg, mapper, dryRun, logger)
			if err != nil {
				return err
			}

			summary, err := mapper.Execute(transfer.Options{
				Plans:         plans,
				CentroidPath:  cfg.Patient.CentroidFile,
				TrajectoryDir: cfg.Patient.TrajectoryDir,
				DryRun:        dryRun,
			})
			if err != nil {
				return err
			}

			summary.Render(cmd.OutOrStdout())
			if summary.Errors > 0 {
				return fmt.Errorf("%d file(s) failed, see %s",
					summary.Errors, filepath.Join(cfg.Paths.OutputBase, "errors.log"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Create the directory tree without copying files")
	return cmd
}

// resolveAnonID takes the configured ID or assigns one from the
// registry using the hospital ID embedded in the patient directory
// name.
func resolveAnonID(cfg *config.Config, logger *slog.Logger) (string, error) {
	if cfg.Patient.AnonID != "" {
		return cfg.Patient.AnonID, nil
	}

	name := filepath.Base(cfg.Paths.PatientDir)
	originalID := name
	if strings.HasPrefix(strings.ToLower(name), "patient_") {
		originalID = name[len("patient_"):]
	}

	registry := identity.Open(cfg.Patient.RegistryFile, logger)
	if anonID, ok := registry.Lookup(originalID); ok {
		logger.Info("reusing anonymous ID from registry",
			"original_id", originalID, "anon_id", anonID,
			"patients", registry.Count())
		return anonID, nil
	}

	anonID, err := registry.Assign(originalID)
	if err != nil {
		return "", fmt.Errorf("assign anonymous ID: %w", err)
	}
	logger.Info("assigned anonymous ID from registry",
		"original_id", originalID, "anon_id", anonID,
		"patients", registry.Count())
	return anonID, nil
}

// resolvePlanDirs stages plan anonymization when a mixed source
// directory is configured, otherwise passes the per-category
// directories through.
func resolvePlanDirs(cfg *config.Config, mapper *transfer.Mapper, dryRun bool, logger *slog.Logger) (transfer.PlanDirs, error) {
	if cfg.Plans.SourceDir == "" {
		return transfer.PlanDirs{
			CT:         cfg.Plans.CTDir,
			Plan:       cfg.Plans.PlanDir,
			Structures: cfg.Plans.StructuresDir,
			Dose:       cfg.Plans.DoseDir,
		}, nil
	}

	if dryRun {
		return transfer.PlanDirs{}, nil
	}

	if _, err := os.Stat(cfg.Plans.SourceDir); err != nil {
		return transfer.PlanDirs{}, fmt.Errorf("%w: plans.source_dir %s not found",
			config.ErrConfiguration, cfg.Plans.SourceDir)
	}

	anonymizer, err := anonymize.New(cfg.Paths.PatientDir, mapper.AnonID,
		cfg.Patient.SiteName, logger)
	if err != nil {
		return transfer.PlanDirs{}, err
	}

	staged, err := anonymizer.AnonymizePlanFiles(cfg.Plans.SourceDir, cfg.Paths.StagingDir)
	if err != nil {
		return transfer.PlanDirs{}, fmt.Errorf("stage plan files: %w", err)
	}

	return transfer.PlanDirs{
		CT:         staged[anonymize.CategoryCT],
		Plan:       staged[anonymize.CategoryPlan],
		Structures: staged[anonymize.CategoryStructures],
		Dose:       staged[anonymize.CategoryDose],
	}, nil
}
