package xvi

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/suyashkumar/dicom/pkg/tag"

	"learn-transfer/internal/dicomfile"
)

// ErrFormat marks recoverable decode failures in vendor files. A file
// that fails with ErrFormat is skipped; the run continues.
var ErrFormat = errors.New("format error")

// RegistrationZIPTag is the Elekta private element whose payload is a
// ZIP archive containing the registration INI.
var RegistrationZIPTag = tag.Tag{Group: 0x0021, Element: 0x103A}

const registrationMemberSuffix = ".INI.XVI"

// ExtractRegistrationINI pulls the registration INI text out of a
// parsed RPS dataset. The payload is decoded tolerantly: byte
// sequences that are not valid UTF-8 are dropped rather than rejected.
func ExtractRegistrationINI(ds *dicomfile.Dataset) (string, error) {
	payload, ok := ds.GetBytes(RegistrationZIPTag)
	if !ok {
		return "", fmt.Errorf("%w: registration payload tag (0021,103A) not found", ErrFormat)
	}

	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return "", fmt.Errorf("%w: registration payload is not a valid ZIP: %v", ErrFormat, err)
	}

	for _, member := range reader.File {
		if !strings.HasSuffix(member.Name, registrationMemberSuffix) {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return "", fmt.Errorf("%w: open %s: %v", ErrFormat, member.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: read %s: %v", ErrFormat, member.Name, err)
		}
		return strings.ToValidUTF8(string(data), ""), nil
	}

	return "", fmt.Errorf("%w: no %s member in registration ZIP", ErrFormat, registrationMemberSuffix)
}

// ReadRegistrationINI reads an RPS DICOM file and extracts its
// registration INI text.
func ReadRegistrationINI(path string) (string, error) {
	ds, err := dicomfile.ReadMetadata(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return ExtractRegistrationINI(ds)
}

// Matrix is a 4x4 row-major transformation matrix.
type Matrix [4][4]float64

// Alignment is one six-degree-of-freedom alignment result:
// translations in centimetres, rotations in degrees.
type Alignment struct {
	Lateral      float64
	Longitudinal float64
	Vertical     float64
	Rotation     float64
	Pitch        float64
	Roll         float64
}

// Isocenter is the reference isocenter position.
type Isocenter struct {
	X, Y, Z float64
}

// RegistrationRecord is everything decoded from one registration INI.
// Nil pointer fields mean the section was absent or malformed.
type RegistrationRecord struct {
	Unmatched   []Matrix
	Correction  []Matrix
	Clipbox     *Alignment
	Mask        *Alignment
	CouchShifts *CouchShifts
	Isocenter   *Isocenter
	Protocol    string
	Date        string // digits from the [ALIGNMENT.x; t] header
	Time        string
}

var (
	unmatchedPattern   = regexp.MustCompile(`OnlineToRefTransformUnMatched=([^\n]+)`)
	correctionPattern  = regexp.MustCompile(`OnlineToRefTransformCorrection=([^\n]+)`)
	alignHeaderPattern = regexp.MustCompile(`\[ALIGNMENT\.(\d+); ([\d:]+)\]`)
	clipboxPattern     = regexp.MustCompile(`Align\.clip1=([^\n]+)`)
	maskPattern        = regexp.MustCompile(`Align\.mask1=([^\n]+)`)
	// Isocenter components must appear on consecutive lines.
	isocenterPattern   = regexp.MustCompile(`IsocX=(.+?)\nIsocY=(.+?)\nIsocZ=(.+?)\n`)
	protocolPattern    = regexp.MustCompile(`RegistrationProtocol=([^\n]+)`)
	iniDateTimePattern = regexp.MustCompile(`DateTime=(\d{8});\s*(\d{2}:\d{2}:\d{2})`)
)

// ParseRegistration decodes the sections of a registration INI.
// Malformed sections are dropped; decoding never fails outright.
func ParseRegistration(ini string) *RegistrationRecord {
	rec := &RegistrationRecord{}

	for _, m := range unmatchedPattern.FindAllStringSubmatch(ini, -1) {
		if matrix, ok := parseMatrix(m[1]); ok {
			rec.Unmatched = append(rec.Unmatched, matrix)
		}
	}
	for _, m := range correctionPattern.FindAllStringSubmatch(ini, -1) {
		if matrix, ok := parseMatrix(m[1]); ok {
			rec.Correction = append(rec.Correction, matrix)
		}
	}

	if m := alignHeaderPattern.FindStringSubmatch(ini); m != nil {
		rec.Date = m[1]
		rec.Time = m[2]
	}

	rec.Clipbox = parseAlignment(clipboxPattern, ini)
	rec.Mask = parseAlignment(maskPattern, ini)

	if shifts, ok := ParseCouchShifts(ini); ok {
		rec.CouchShifts = &shifts
	}

	if m := isocenterPattern.FindStringSubmatch(ini); m != nil {
		x, errX := strconv.ParseFloat(strings.TrimSpace(m[1]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(m[2]), 64)
		z, errZ := strconv.ParseFloat(strings.TrimSpace(m[3]), 64)
		if errX == nil && errY == nil && errZ == nil {
			rec.Isocenter = &Isocenter{X: x, Y: y, Z: z}
		}
	}

	if m := protocolPattern.FindStringSubmatch(ini); m != nil {
		rec.Protocol = strings.TrimSpace(m[1])
	}

	return rec
}

// parseMatrix decodes a whitespace-separated matrix value. Anything
// other than exactly 16 numeric tokens is rejected.
func parseMatrix(s string) (Matrix, bool) {
	fields := strings.Fields(s)
	if len(fields) != 16 {
		return Matrix{}, false
	}

	var m Matrix
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return Matrix{}, false
		}
		m[i/4][i%4] = v
	}
	return m, true
}

func parseAlignment(pattern *regexp.Regexp, ini string) *Alignment {
	m := pattern.FindStringSubmatch(ini)
	if m == nil {
		return nil
	}

	parts := strings.Split(m[1], ",")
	if len(parts) != 6 {
		return nil
	}

	values := make([]float64, 6)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil
		}
		values[i] = v
	}

	return &Alignment{
		Lateral:      values[0],
		Longitudinal: values[1],
		Vertical:     values[2],
		Rotation:     values[3],
		Pitch:        values[4],
		Roll:         values[5],
	}
}

// ParseAlignmentDateTime extracts the DateTime=YYYYMMDD; HH:MM:SS
// stamp some registration INIs carry.
func ParseAlignmentDateTime(ini string) (time.Time, bool) {
	m := iniDateTimePattern.FindStringSubmatch(ini)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102 15:04:05", m[1]+" "+m[2])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
