// Package verify scans a transferred tree for residual
// patient-identifiable strings in file names, DICOM elements, XML and
// plain text.
package verify

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"learn-transfer/internal/dicomfile"
)

// Finding is one residual PII hit.
type Finding struct {
	File     string
	Location string // "filename", "tag <name> (gggg,eeee)", "xml text", "text content"
	Matched  string // the search term that hit
}

// Report is the outcome of one scan.
type Report struct {
	FilesScanned int
	Findings     []Finding
}

// Clean reports whether the scan found nothing.
func (r *Report) Clean() bool {
	return len(r.Findings) == 0
}

// Scanner walks output trees looking for PII substrings.
type Scanner struct {
	logger *slog.Logger
}

// NewScanner builds a Scanner.
func NewScanner(logger *slog.Logger) *Scanner {
	return &Scanner{logger: logger.With("component", "verify")}
}

// Scan recursively checks every file under root for the given terms,
// case-insensitively. File names are always checked; .dcm files are
// parsed and their string elements inspected, .xml and .txt files are
// read as text.
func (s *Scanner) Scan(root string, terms []string) (*Report, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", root)
	}

	lowered := make([]string, len(terms))
	for i, term := range terms {
		lowered[i] = strings.ToLower(term)
	}

	report := &Report{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		report.FilesScanned++

		name := strings.ToLower(d.Name())
		for i, term := range lowered {
			if strings.Contains(name, term) {
				report.Findings = append(report.Findings, Finding{
					File: path, Location: "filename", Matched: terms[i],
				})
			}
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".dcm":
			s.checkDICOM(path, lowered, terms, report)
		case ".xml":
			s.checkText(path, lowered, terms, "xml text", report)
		case ".txt":
			s.checkText(path, lowered, terms, "text content", report)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}

func (s *Scanner) checkDICOM(path string, lowered, terms []string, report *Report) {
	ds, err := dicomfile.Read(path)
	if err != nil {
		s.logger.Warn("could not read DICOM file", "path", path, "error", err)
		return
	}

	for _, elem := range ds.StringElements() {
		value := strings.ToLower(elem.Value)
		for i, term := range lowered {
			if strings.Contains(value, term) {
				report.Findings = append(report.Findings, Finding{
					File: path,
					Location: fmt.Sprintf("tag %s (%04X,%04X)",
						elem.Name, elem.Tag.Group, elem.Tag.Element),
					Matched: terms[i],
				})
			}
		}
	}
}

func (s *Scanner) checkText(path string, lowered, terms []string, location string, report *Report) {
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("could not read file", "path", path, "error", err)
		return
	}

	text := strings.ToLower(string(data))
	for i, term := range lowered {
		if strings.Contains(text, term) {
			report.Findings = append(report.Findings, Finding{
				File: path, Location: location, Matched: terms[i],
			})
		}
	}
}
