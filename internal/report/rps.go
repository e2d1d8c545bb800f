// Package report summarizes CBCT alignment shifts from transferred
// registration files and cross-checks them against Mosaiq records.
package report

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/suyashkumar/dicom/pkg/tag"

	"learn-transfer/internal/dicomfile"
	"learn-transfer/internal/xvi"
)

// RPSRecord is one registration file with its decoded data and labels
// recovered from the archive path.
type RPSRecord struct {
	Path    string
	FX      string // FX label from the path, "?" when absent
	CBCT    string // CBCT label from the path, "?" when absent
	Record  *xvi.RegistrationRecord
	Time    time.Time
	HasTime bool
}

// FindRPSFiles locates registration DICOM files under an archive
// images tree by their "Registration file" parent directory.
func FindRPSFiles(base string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) != "Registration file" {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(path), ".dcm") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// ExtractRPS reads one registration file. The timestamp comes from the
// INI's DateTime stamp, falling back to the DICOM content date and
// time.
func ExtractRPS(path string, logger *slog.Logger) (*RPSRecord, error) {
	ds, err := dicomfile.ReadMetadata(path)
	if err != nil {
		return nil, err
	}

	ini, err := xvi.ExtractRegistrationINI(ds)
	if err != nil {
		return nil, err
	}

	rec := &RPSRecord{
		Path:   path,
		FX:     pathLabel(path, "FX"),
		CBCT:   pathLabel(path, "CBCT"),
		Record: xvi.ParseRegistration(ini),
	}

	if t, ok := xvi.ParseAlignmentDateTime(ini); ok {
		rec.Time = t
		rec.HasTime = true
	} else if t, ok := contentDateTime(ds); ok {
		rec.Time = t
		rec.HasTime = true
	} else if logger != nil {
		logger.Warn("registration file carries no timestamp", "path", path)
	}

	return rec, nil
}

// pathLabel finds the path component starting with prefix, skipping
// the bare container name (the "CBCT" directory itself is not a
// label).
func pathLabel(path, prefix string) string {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.HasPrefix(part, prefix) && part != prefix {
			return part
		}
	}
	return "?"
}

func contentDateTime(ds *dicomfile.Dataset) (time.Time, bool) {
	date := strings.TrimSpace(ds.GetString(tag.ContentDate))
	ct := strings.TrimSpace(ds.GetString(tag.ContentTime))
	if date == "" || ct == "" {
		return time.Time{}, false
	}

	// ContentTime may carry fractional seconds.
	if i := strings.IndexByte(ct, '.'); i >= 0 {
		ct = ct[:i]
	}

	t, err := time.Parse("20060102 150405", date+" "+ct)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
