// Package session discovers imaging sessions inside an XVI patient
// directory and classifies them by acquisition preset.
package session

import (
	"strings"
	"time"

	"learn-transfer/internal/xvi"
)

// Kind is the session category derived from the acquisition preset.
type Kind string

const (
	KindCBCT        Kind = "cbct"
	KindKIMLearning Kind = "kim_learning"
	KindMotionView  Kind = "motionview"
)

// Classify maps an acquisition preset name to a session kind.
// MotionView takes priority when a preset mentions both motionview
// and kim; anything else is a plain CBCT.
func Classify(preset string) Kind {
	p := strings.ToLower(preset)
	switch {
	case strings.Contains(p, "motionview"):
		return KindMotionView
	case strings.Contains(p, "kim"):
		return KindKIMLearning
	default:
		return KindCBCT
	}
}

// Session is one img_* acquisition directory with its decoded
// metadata. HasScanTime distinguishes dated from undated sessions;
// undated sessions may later receive an inferred timestamp.
type Session struct {
	Dir         string // absolute path of the img_* directory
	Name        string // directory base name
	UID         string // DICOM UID, falling back to the directory name
	Preset      string
	Kind        Kind
	TreatmentID string
	ScanTime    time.Time
	HasScanTime bool
	TubeKV      *float64
	TubeMA      *float64

	// Enrichment from the Reconstruction subdirectory.
	ReconINIPath     string
	RegistrationPath string
	CouchShifts      *xvi.CouchShifts
}

// SetScanTime records a timestamp, whether read or inferred.
func (s *Session) SetScanTime(t time.Time) {
	s.ScanTime = t
	s.HasScanTime = true
}

// IsCBCT reports whether the session lands in a CBCT slot of the
// archive (plain CBCT and KIM learning scans both do).
func (s *Session) IsCBCT() bool {
	return s.Kind == KindCBCT || s.Kind == KindKIMLearning
}
