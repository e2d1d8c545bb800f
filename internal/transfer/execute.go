package transfer

import (
	"fmt"
	"os"
	"path/filepath"

	"learn-transfer/internal/fraction"
	"learn-transfer/internal/session"
)

// Options configures one pipeline run. All inputs besides the patient
// directory are optional.
type Options struct {
	// Plans are directories of already anonymized plan files.
	Plans PlanDirs
	// CentroidPath is a marker centroid file to de-identify.
	CentroidPath string
	// TrajectoryDir is the base directory holding FX## log folders.
	TrajectoryDir string
	// DryRun creates the directory tree but copies nothing.
	DryRun bool
}

// Execute runs the full pipeline: discover, date-match, group into
// fractions, create the layout and copy everything across. Per-file
// failures are logged and counted; only setup problems abort the run.
func (m *Mapper) Execute(opts Options) (*Summary, error) {
	sessions, err := m.Discover(true)
	if err != nil {
		return nil, err
	}
	m.logger.Info("discovered sessions", "count", len(sessions))

	dated, undated := fraction.Split(sessions)
	if len(undated) > 0 {
		strategy := m.Strategy
		if strategy == nil {
			strategy = fraction.LexicalProximity{Logger: m.logger}
		}
		strategy.Assign(dated, undated)
	}

	fractions := fraction.Assign(sessions)
	m.logger.Info("assigned fractions", "count", len(fractions))

	var trajectoryLabels []string
	if opts.TrajectoryDir != "" {
		trajectoryLabels = TrajectoryLabels(opts.TrajectoryDir)
	}

	if _, err := m.CreateLayout(fractions, trajectoryLabels); err != nil {
		return nil, err
	}

	summary := &Summary{
		Sessions:  len(sessions),
		Fractions: len(fractions),
		DryRun:    opts.DryRun,
	}

	if opts.DryRun {
		m.logger.Info("dry run, directories created, no files copied")
		return summary, nil
	}

	audit, err := OpenAuditLog(filepath.Join(m.OutputBase, "errors.log"))
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	m.audit = audit
	defer func() {
		audit.Close()
		m.audit = nil
	}()

	for _, fx := range fractions {
		fxPath := filepath.Join(m.imagesRoot(), fx.Label)

		for i, s := range cbctByTime(fx.Sessions) {
			cbctPath := filepath.Join(fxPath, dirCBCT, fmt.Sprintf("CBCT%d", i+1))
			m.CopyCBCTFiles(s, cbctPath, summary)
		}

		for _, s := range fx.Sessions {
			if s.Kind == session.KindMotionView {
				m.CopyMotionViewFiles(s, fxPath, summary)
			}
		}
	}

	m.CopyPlanFiles(opts.Plans, summary)

	if opts.CentroidPath != "" {
		if _, err := os.Stat(opts.CentroidPath); err == nil {
			if _, err := m.CopyCentroidFile(opts.CentroidPath); err != nil {
				m.recordError(opts.CentroidPath, err, summary)
			} else {
				summary.Files.Centroid++
			}
		}
	}

	if opts.TrajectoryDir != "" {
		if info, err := os.Stat(opts.TrajectoryDir); err == nil && info.IsDir() {
			m.CopyTrajectoryLogs(opts.TrajectoryDir, summary)
		}
	}

	m.logger.Info("transfer complete",
		"files_copied", summary.Files.Total(),
		"errors", audit.Count(),
		"audit", audit.Summary())

	return summary, nil
}
