// Package anonymize strips patient-identifying data from DICOM files,
// acquisition XML descriptors and file names while preserving
// everything the research analysis depends on.
package anonymize

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"

	"learn-transfer/internal/config"
	"learn-transfer/internal/dicomfile"
)

// Anonymizer rewrites files for one patient under one anonymous ID.
type Anonymizer struct {
	PatientDir string
	AnonID     string
	SiteName   string

	logger *slog.Logger
}

// New builds an Anonymizer. The patient directory must exist: a
// missing source tree means the run is misconfigured, not that there
// is nothing to do.
func New(patientDir, anonID, siteName string, logger *slog.Logger) (*Anonymizer, error) {
	info, err := os.Stat(patientDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: patient directory %s not found", config.ErrConfiguration, patientDir)
	}

	return &Anonymizer{
		PatientDir: patientDir,
		AnonID:     anonID,
		SiteName:   siteName,
		logger:     logger.With("component", "anonymize"),
	}, nil
}

// patientNameValue composes the replacement PersonName. The site label
// rides in the given-name component so site provenance survives
// de-identification.
func (a *Anonymizer) patientNameValue() string {
	if a.SiteName == "" {
		return a.AnonID
	}
	return a.AnonID + "^" + a.SiteName
}

// AnonymizeFile rewrites one DICOM file into outputDir, preserving the
// file's position relative to sourceBase and scrubbing its name.
// Returns the output path.
func (a *Anonymizer) AnonymizeFile(dcmPath, sourceBase, outputDir string) (string, error) {
	ds, err := dicomfile.Read(dcmPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", dcmPath, err)
	}

	originalID := strings.TrimSpace(ds.GetString(tag.PatientID))

	ds.SetString(tag.PatientName, a.patientNameValue())
	ds.SetString(tag.PatientID, a.AnonID)
	ds.SetString(tag.StudyID, a.AnonID)

	for _, t := range ClearTags {
		ds.ClearIfPresent(t)
	}

	// The patient ID sometimes leaks into the study description.
	if originalID != "" {
		if desc := ds.GetString(tag.StudyDescription); strings.Contains(desc, originalID) {
			ds.SetString(tag.StudyDescription, strings.ReplaceAll(desc, originalID, a.AnonID))
		}
	}

	rel, err := filepath.Rel(sourceBase, dcmPath)
	if err != nil {
		rel = filepath.Base(dcmPath)
	}

	outPath := filepath.Join(outputDir, filepath.Dir(rel), ScrubFilename(filepath.Base(dcmPath), a.AnonID))
	if err := ds.Save(outPath); err != nil {
		return "", fmt.Errorf("write %s: %w", outPath, err)
	}

	a.logger.Debug("anonymized DICOM file", "source", dcmPath, "output", outPath)
	return outPath, nil
}

// Export names carry the patient name in parentheses, e.g.
// "DCMRT_Plan(SMITH JOHN).dcm".
var parenthesized = regexp.MustCompile(`\(([^)]*)\)`)

// ScrubFilename replaces the first parenthesized group in a file name
// with the anonymous ID.
func ScrubFilename(name, anonID string) string {
	loc := parenthesized.FindStringSubmatchIndex(name)
	if loc == nil {
		return name
	}
	return name[:loc[2]] + anonID + name[loc[3]:]
}
