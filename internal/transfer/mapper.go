// Package transfer maps discovered XVI sessions onto the clinical
// trial archive layout, copying and de-identifying files as it goes.
package transfer

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"learn-transfer/internal/anonymize"
	"learn-transfer/internal/fraction"
	"learn-transfer/internal/session"
)

// Archive directory names. These strings are the wire contract with
// the downstream analysis tooling; do not rename them.
const (
	dirPatientFiles   = "Patient Files"
	dirPatientPlans   = "Patient Plans"
	dirGroundTruth    = "Ground Truth"
	dirPatientImages  = "Patient Images"
	dirTrajectoryLogs = "Trajectory Logs"

	dirCT           = "CT"
	dirPlan         = "Plan"
	dirDose         = "Dose"
	dirStructureSet = "Structure Set"

	dirCBCT            = "CBCT"
	dirProjections     = "CBCT Projections"
	dirProjectionsCDOG = "CDOG"
	dirProjectionsIPS  = "IPS"
	dirReconstructed   = "Reconstructed CBCT"
	dirRegistration    = "Registration file"
	dirKIMKV           = "KIM-KV"

	dirTrajectory       = "Trajectory Logs"
	dirTreatmentRecords = "Treatment Records"
)

var fxDirPattern = regexp.MustCompile(`(?i)^FX\d+`)

// Mapper drives the transfer for one patient.
type Mapper struct {
	PatientDir   string
	AnonID       string
	SiteName     string
	OutputBase   string
	ImagesSubdir string

	// Strategy infers timestamps for undated sessions. Defaults to
	// fraction.LexicalProximity.
	Strategy fraction.TimestampStrategy

	anonymizer *anonymize.Anonymizer
	logger     *slog.Logger
	audit      *AuditLog
}

// NewMapper builds a Mapper. The patient directory must exist.
func NewMapper(patientDir, anonID, siteName, outputBase, imagesSubdir string, logger *slog.Logger) (*Mapper, error) {
	anonymizer, err := anonymize.New(patientDir, anonID, siteName, logger)
	if err != nil {
		return nil, err
	}

	if imagesSubdir == "" {
		imagesSubdir = "IMAGES"
	}

	return &Mapper{
		PatientDir:   patientDir,
		AnonID:       anonID,
		SiteName:     siteName,
		OutputBase:   outputBase,
		ImagesSubdir: imagesSubdir,
		anonymizer:   anonymizer,
		logger:       logger.With("component", "transfer"),
	}, nil
}

// SiteRoot returns the site directory under the output base.
func (m *Mapper) SiteRoot() string {
	return filepath.Join(m.OutputBase, m.SiteName)
}

func (m *Mapper) imagesRoot() string {
	return filepath.Join(m.SiteRoot(), dirPatientImages, m.AnonID)
}

// Discover lists the patient's imaging sessions. With enrich false
// only the cheap descriptor pass runs.
func (m *Mapper) Discover(enrich bool) ([]*session.Session, error) {
	d := session.NewDiscoverer(m.PatientDir, m.ImagesSubdir, m.logger)
	return d.Discover(enrich)
}

// CreateLayout creates the full archive tree for the given fractions
// and trajectory labels, returning the site root. Existing directories
// are left alone, so re-runs are safe.
func (m *Mapper) CreateLayout(fractions []fraction.Fraction, trajectoryLabels []string) (string, error) {
	siteRoot := m.SiteRoot()

	static := []string{
		filepath.Join(siteRoot, dirPatientFiles, m.AnonID),
		filepath.Join(siteRoot, dirPatientPlans, m.AnonID, dirCT),
		filepath.Join(siteRoot, dirPatientPlans, m.AnonID, dirPlan),
		filepath.Join(siteRoot, dirPatientPlans, m.AnonID, dirDose),
		filepath.Join(siteRoot, dirPatientPlans, m.AnonID, dirStructureSet),
		filepath.Join(siteRoot, dirGroundTruth, m.AnonID),
	}
	for _, dir := range static {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("create %s: %w", dir, err)
		}
	}

	for _, fx := range fractions {
		fxPath := filepath.Join(m.imagesRoot(), fx.Label)

		cbctSessions := cbctByTime(fx.Sessions)
		for i := range cbctSessions {
			cbctPath := filepath.Join(fxPath, dirCBCT, fmt.Sprintf("CBCT%d", i+1))
			for _, sub := range []string{
				filepath.Join(dirProjections, dirProjectionsCDOG),
				filepath.Join(dirProjections, dirProjectionsIPS),
				dirReconstructed,
				dirRegistration,
			} {
				if err := os.MkdirAll(filepath.Join(cbctPath, sub), 0755); err != nil {
					return "", fmt.Errorf("create %s: %w", cbctPath, err)
				}
			}
		}

		// KIM-KV always exists per fraction, with one subdirectory
		// per MotionView acquisition keeping its original name.
		if err := os.MkdirAll(filepath.Join(fxPath, dirKIMKV), 0755); err != nil {
			return "", fmt.Errorf("create %s: %w", fxPath, err)
		}
		for _, s := range fx.Sessions {
			if s.Kind != session.KindMotionView {
				continue
			}
			mvPath := filepath.Join(fxPath, dirKIMKV, s.Name)
			if err := os.MkdirAll(mvPath, 0755); err != nil {
				return "", fmt.Errorf("create %s: %w", mvPath, err)
			}
		}
	}

	for _, label := range trajectoryLabels {
		base := filepath.Join(siteRoot, dirTrajectoryLogs, m.AnonID, label)
		for _, sub := range []string{dirTrajectory, dirTreatmentRecords} {
			if err := os.MkdirAll(filepath.Join(base, sub), 0755); err != nil {
				return "", fmt.Errorf("create %s: %w", base, err)
			}
		}
	}

	return siteRoot, nil
}

// cbctByTime filters a fraction's sessions down to the CBCT slots,
// ordered by timestamp. The order fixes the CBCT1..CBCTn numbering.
func cbctByTime(sessions []*session.Session) []*session.Session {
	var out []*session.Session
	for _, s := range sessions {
		if s.IsCBCT() {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.HasScanTime != b.HasScanTime {
			return a.HasScanTime
		}
		if a.HasScanTime {
			return a.ScanTime.Before(b.ScanTime)
		}
		return false
	})
	return out
}

// recordError logs a per-file failure and keeps going.
func (m *Mapper) recordError(path string, err error, summary *Summary) {
	m.logger.Error("file transfer failed", "path", path, "error", err)
	if m.audit != nil {
		m.audit.Record(path, err)
	}
	summary.Errors++
}

// CopyCBCTFiles fills one CBCT slot from a session: projection frames
// verbatim, reconstructed volumes verbatim, the frames descriptor and
// registration file de-identified.
func (m *Mapper) CopyCBCTFiles(s *session.Session, cbctPath string, summary *Summary) {
	ipsDir := filepath.Join(cbctPath, dirProjections, dirProjectionsIPS)
	for _, his := range filesWithSuffix(s.Dir, ".his") {
		if err := copyFile(his, filepath.Join(ipsDir, filepath.Base(his))); err != nil {
			m.recordError(his, err, summary)
			continue
		}
		summary.Files.Projections++
	}

	framesXML := filepath.Join(s.Dir, "_Frames.xml")
	if _, err := os.Stat(framesXML); err == nil {
		dst := filepath.Join(ipsDir, "_Frames.xml")
		if err := m.anonymizer.AnonymizeFramesXML(framesXML, dst); err != nil {
			m.recordError(framesXML, err, summary)
		} else {
			summary.Files.FramesXML++
		}
	}

	reconDir := filepath.Join(s.Dir, "Reconstruction")
	reconDest := filepath.Join(cbctPath, dirReconstructed)
	for _, name := range sortedEntries(reconDir) {
		if !strings.Contains(strings.ToUpper(name), ".SCAN") {
			continue
		}
		src := filepath.Join(reconDir, name)
		if err := copyFile(src, filepath.Join(reconDest, name)); err != nil {
			m.recordError(src, err, summary)
			continue
		}
		summary.Files.Volumes++
	}

	if s.RegistrationPath != "" {
		regDest := filepath.Join(cbctPath, dirRegistration)
		_, err := m.anonymizer.AnonymizeFile(s.RegistrationPath,
			filepath.Dir(s.RegistrationPath), regDest)
		if err != nil {
			m.recordError(s.RegistrationPath, err, summary)
		} else {
			summary.Files.Registrations++
		}
	}
}

// CopyMotionViewFiles copies a MotionView session into the fraction's
// KIM-KV area, keeping the original directory name.
func (m *Mapper) CopyMotionViewFiles(s *session.Session, fxPath string, summary *Summary) {
	dest := filepath.Join(fxPath, dirKIMKV, s.Name)
	if err := os.MkdirAll(dest, 0755); err != nil {
		m.recordError(dest, err, summary)
		return
	}

	for _, his := range filesWithSuffix(s.Dir, ".his") {
		if err := copyFile(his, filepath.Join(dest, filepath.Base(his))); err != nil {
			m.recordError(his, err, summary)
			continue
		}
		summary.Files.MotionView++
	}

	framesXML := filepath.Join(s.Dir, "_Frames.xml")
	if _, err := os.Stat(framesXML); err == nil {
		dst := filepath.Join(dest, "_Frames.xml")
		if err := m.anonymizer.AnonymizeFramesXML(framesXML, dst); err != nil {
			m.recordError(framesXML, err, summary)
		} else {
			summary.Files.FramesXML++
		}
	}
}

// PlanDirs points at directories of already anonymized plan files.
type PlanDirs struct {
	CT         string
	Plan       string
	Structures string
	Dose       string
}

// CopyPlanFiles copies each plan category into its archive slot.
// Missing or empty source directories are skipped silently.
func (m *Mapper) CopyPlanFiles(dirs PlanDirs, summary *Summary) {
	plansRoot := filepath.Join(m.SiteRoot(), dirPatientPlans, m.AnonID)

	mapping := []struct {
		src   string
		dest  string
		count *int
	}{
		{dirs.CT, dirCT, &summary.Files.CT},
		{dirs.Plan, dirPlan, &summary.Files.Plan},
		{dirs.Structures, dirStructureSet, &summary.Files.Structures},
		{dirs.Dose, dirDose, &summary.Files.Dose},
	}

	for _, entry := range mapping {
		if entry.src == "" {
			continue
		}
		info, err := os.Stat(entry.src)
		if err != nil || !info.IsDir() {
			continue
		}

		dest := filepath.Join(plansRoot, entry.dest)
		if err := os.MkdirAll(dest, 0755); err != nil {
			m.recordError(dest, err, summary)
			continue
		}

		for _, src := range filesRecursive(entry.src) {
			if err := copyFile(src, filepath.Join(dest, filepath.Base(src))); err != nil {
				m.recordError(src, err, summary)
				continue
			}
			*entry.count++
		}
	}
}

// CopyCentroidFile de-identifies a marker centroid file into Patient
// Files. Line one holds the hospital ID, line two the patient name;
// both become the anonymous ID, as does the ID embedded in the file
// name. Returns the output path.
func (m *Mapper) CopyCentroidFile(centroidPath string) (string, error) {
	data, err := os.ReadFile(centroidPath)
	if err != nil {
		return "", fmt.Errorf("read centroid file: %w", err)
	}

	lines := splitKeepEnds(strings.ToValidUTF8(string(data), ""))

	originalID := ""
	if len(lines) > 0 {
		originalID = strings.TrimSpace(lines[0])
		lines[0] = m.AnonID + "\n"
	}
	if len(lines) > 1 {
		lines[1] = m.AnonID + "\n"
	}

	outName := filepath.Base(centroidPath)
	if originalID != "" {
		outName = strings.ReplaceAll(outName, originalID, m.AnonID)
	}

	destDir := filepath.Join(m.SiteRoot(), dirPatientFiles, m.AnonID)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", destDir, err)
	}

	outPath := filepath.Join(destDir, outName)
	if err := os.WriteFile(outPath, []byte(strings.Join(lines, "")), 0644); err != nil {
		return "", fmt.Errorf("write centroid file: %w", err)
	}

	m.logger.Info("anonymized centroid file", "source", centroidPath, "output", outPath)
	return outPath, nil
}

// CopyTrajectoryLogs transfers KIM trajectory logs, auto-discovering
// FX## directories under baseDir. MarkerLocations files get the
// patient_<ID> token rewritten; the known auxiliary files copy
// verbatim; everything else is ignored.
func (m *Mapper) CopyTrajectoryLogs(baseDir string, summary *Summary) {
	// The patient directory is conventionally named patient_<ID>.
	originalID := ""
	if name := filepath.Base(m.PatientDir); strings.HasPrefix(strings.ToLower(name), "patient_") {
		originalID = name[len("patient_"):]
	}

	for _, label := range TrajectoryLabels(baseDir) {
		fxDir := filepath.Join(baseDir, label)
		destBase := filepath.Join(m.SiteRoot(), dirTrajectoryLogs, m.AnonID, label)
		destTraj := filepath.Join(destBase, dirTrajectory)

		for _, sub := range []string{dirTrajectory, dirTreatmentRecords} {
			if err := os.MkdirAll(filepath.Join(destBase, sub), 0755); err != nil {
				m.recordError(destBase, err, summary)
				return
			}
		}

		for _, name := range sortedEntries(fxDir) {
			src := filepath.Join(fxDir, name)
			lower := strings.ToLower(name)

			switch {
			case strings.HasPrefix(lower, "markerlocations"):
				if err := m.copyMarkerLocations(src, filepath.Join(destTraj, name), originalID); err != nil {
					m.recordError(src, err, summary)
					continue
				}
				summary.Files.Trajectory++
			case lower == "couchshifts.txt" || lower == "covoutput.txt" || lower == "rotation.txt":
				if err := copyFile(src, filepath.Join(destTraj, name)); err != nil {
					m.recordError(src, err, summary)
					continue
				}
				summary.Files.Trajectory++
			}
		}
	}
}

func (m *Mapper) copyMarkerLocations(src, dst, originalID string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	text := strings.ToValidUTF8(string(data), "")
	if originalID != "" {
		text = strings.ReplaceAll(text, "patient_"+originalID, "patient_"+m.AnonID)
	}
	return os.WriteFile(dst, []byte(text), 0644)
}

// TrajectoryLabels lists the FX## directory names under baseDir in
// sorted order.
func TrajectoryLabels(baseDir string) []string {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil
	}
	var labels []string
	for _, entry := range entries {
		if entry.IsDir() && fxDirPattern.MatchString(entry.Name()) {
			labels = append(labels, entry.Name())
		}
	}
	sort.Strings(labels)
	return labels
}

// copyFile copies src to dst, preserving the modification time.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if info, err := os.Stat(src); err == nil {
		os.Chtimes(dst, info.ModTime(), info.ModTime())
	}
	return nil
}

// filesWithSuffix lists files in dir ending with suffix, sorted.
func filesWithSuffix(dir, suffix string) []string {
	var out []string
	for _, name := range sortedEntries(dir) {
		if strings.HasSuffix(name, suffix) {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out
}

// sortedEntries lists the file names in dir, sorted, skipping
// subdirectories. A missing dir yields nil.
func sortedEntries(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}

// filesRecursive lists every file under root, sorted.
func filesRecursive(root string) []string {
	var files []string
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files
}

// splitKeepEnds splits text into lines, each retaining its trailing
// newline.
func splitKeepEnds(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
