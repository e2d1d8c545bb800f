// Package xvi decodes the vendor file formats written by the Elekta
// XVI workstation: plain key=value INI files, per-acquisition XML
// descriptors, and the zipped registration payload embedded in RPS
// DICOM files. Decoders treat malformed or missing data as absence,
// never as a fatal error.
package xvi

import (
	"regexp"
	"strconv"
	"strings"
)

// iniFields are the keys extracted from XVI INI text. Anything else in
// the file is ignored.
var iniFields = []string{
	"PatientID",
	"TreatmentID",
	"TreatmentUID",
	"ReferenceUID",
	"FirstName",
	"LastName",
	"ScanUID",
	"TubeKV",
	"TubeMA",
	"CollimatorName",
}

var iniPatterns = compileINIPatterns()

func compileINIPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(iniFields))
	for _, field := range iniFields {
		patterns[field] = regexp.MustCompile(`(?m)^` + field + `=(.+)$`)
	}
	return patterns
}

// ParseINI extracts the known fields from INI text. Fields that are
// missing or empty are omitted from the result.
func ParseINI(text string) map[string]string {
	fields := make(map[string]string)
	for _, field := range iniFields {
		m := iniPatterns[field].FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[1])
		if value == "" {
			continue
		}
		fields[field] = value
	}
	return fields
}

// CouchShifts are the per-scan couch corrections in centimetres.
type CouchShifts struct {
	Lateral      float64
	Longitudinal float64
	Vertical     float64
}

var couchShiftPatterns = map[string]*regexp.Regexp{
	"CouchShiftLat":    regexp.MustCompile(`(?m)^CouchShiftLat=(.+)$`),
	"CouchShiftLong":   regexp.MustCompile(`(?m)^CouchShiftLong=(.+)$`),
	"CouchShiftHeight": regexp.MustCompile(`(?m)^CouchShiftHeight=(.+)$`),
}

// ParseCouchShifts extracts the couch shift triple from INI text. All
// three values must be present and numeric, otherwise ok is false.
func ParseCouchShifts(text string) (shifts CouchShifts, ok bool) {
	values := make(map[string]float64, 3)
	for key, pattern := range couchShiftPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			return CouchShifts{}, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(m[1]), 64)
		if err != nil {
			return CouchShifts{}, false
		}
		values[key] = v
	}
	return CouchShifts{
		Lateral:      values["CouchShiftLat"],
		Longitudinal: values["CouchShiftLong"],
		Vertical:     values["CouchShiftHeight"],
	}, true
}
