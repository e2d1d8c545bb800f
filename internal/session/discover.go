package session

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"learn-transfer/internal/xvi"
)

const (
	framesDescriptor = "_Frames.xml"
	reconSubdir      = "Reconstruction"
)

// Discoverer scans an XVI patient directory for imaging sessions.
type Discoverer struct {
	PatientDir   string
	ImagesSubdir string

	logger *slog.Logger
}

// NewDiscoverer builds a Discoverer for one patient directory.
func NewDiscoverer(patientDir, imagesSubdir string, logger *slog.Logger) *Discoverer {
	return &Discoverer{
		PatientDir:   patientDir,
		ImagesSubdir: imagesSubdir,
		logger:       logger.With("component", "discovery"),
	}
}

// Discover walks the images container and returns sessions ordered
// dated-first chronologically, undated after in directory order.
// Sessions without a descriptor or preset are skipped with a warning.
// When enrich is false the cheap descriptor pass runs alone, leaving
// timestamps and registration data unset.
func (d *Discoverer) Discover(enrich bool) ([]*Session, error) {
	imagesDir := filepath.Join(d.PatientDir, d.ImagesSubdir)
	entries, err := os.ReadDir(imagesDir)
	if err != nil {
		if os.IsNotExist(err) {
			d.logger.Warn("images directory not found", "path", imagesDir)
			return nil, nil
		}
		return nil, fmt.Errorf("read images directory: %w", err)
	}

	var sessions []*Session
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "img_") {
			continue
		}

		s := d.readSession(filepath.Join(imagesDir, entry.Name()))
		if s == nil {
			continue
		}
		if enrich {
			d.enrich(s)
		}
		sessions = append(sessions, s)
	}

	// Dated sessions sort chronologically ahead of undated ones,
	// which keep their directory order.
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if a.HasScanTime != b.HasScanTime {
			return a.HasScanTime
		}
		if a.HasScanTime {
			return a.ScanTime.Before(b.ScanTime)
		}
		return false
	})

	return sessions, nil
}

func (d *Discoverer) readSession(dir string) *Session {
	framesPath := filepath.Join(dir, framesDescriptor)
	if _, err := os.Stat(framesPath); err != nil {
		d.logger.Warn("session has no frames descriptor, skipping", "dir", dir)
		return nil
	}

	info, err := xvi.ParseFrames(framesPath, d.logger)
	if err != nil {
		d.logger.Warn("unreadable frames descriptor, skipping session",
			"dir", dir, "error", err)
		return nil
	}
	if info.AcquisitionPreset == "" {
		d.logger.Warn("session has no acquisition preset, skipping", "dir", dir)
		return nil
	}

	s := &Session{
		Dir:         dir,
		Name:        filepath.Base(dir),
		UID:         info.DicomUID,
		Preset:      info.AcquisitionPreset,
		Kind:        Classify(info.AcquisitionPreset),
		TreatmentID: info.TreatmentID,
		TubeKV:      info.TubeKV,
		TubeMA:      info.TubeMA,
	}
	if s.UID == "" {
		s.UID = s.Name
	}
	return s
}

// enrich opens the Reconstruction subdirectory for the scan timestamp
// and couch shift data. Everything here is optional.
func (d *Discoverer) enrich(s *Session) {
	reconDir := filepath.Join(s.Dir, reconSubdir)

	if iniPath := firstWithSuffix(reconDir, ".INI"); iniPath != "" {
		s.ReconINIPath = iniPath
		data, err := os.ReadFile(iniPath)
		if err != nil {
			d.logger.Warn("unreadable reconstruction INI", "path", iniPath, "error", err)
		} else {
			fields := xvi.ParseINI(strings.ToValidUTF8(string(data), ""))
			if uid, ok := fields["ScanUID"]; ok {
				if t, ok := xvi.ParseScanTime(uid); ok {
					s.SetScanTime(t)
				} else {
					d.logger.Warn("scan UID carries no usable timestamp",
						"session", s.Name, "scan_uid", uid)
				}
			}
		}
	}

	if rpsPath := firstWithSuffix(reconDir, ".dcm"); rpsPath != "" {
		s.RegistrationPath = rpsPath
		ini, err := xvi.ReadRegistrationINI(rpsPath)
		if err != nil {
			d.logger.Warn("could not decode registration file",
				"path", rpsPath, "error", err)
			return
		}
		if shifts, ok := xvi.ParseCouchShifts(ini); ok {
			s.CouchShifts = &shifts
		}
	}
}

// firstWithSuffix returns the lexically first file in dir whose name
// ends with suffix, or "" when there is none.
func firstWithSuffix(dir, suffix string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), suffix) {
			return filepath.Join(dir, entry.Name())
		}
	}
	return ""
}
