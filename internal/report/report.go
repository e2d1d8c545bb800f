package report

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"learn-transfer/internal/xvi"
)

// UnwrapAngle maps a [0,360) degree value into [-180,180), so a
// 359.8 degree correction reads as -0.2.
func UnwrapAngle(deg float64) float64 {
	if deg > 180 {
		return deg - 360
	}
	return deg
}

// MosaiqShifts are clipbox values expressed in Mosaiq conventions.
type MosaiqShifts struct {
	Sup   float64 // cm
	Lat   float64 // cm
	Ant   float64 // cm
	Cor   float64 // deg
	Sag   float64 // deg
	Trans float64 // deg
}

// ClipboxToMosaiq converts an XVI clipbox alignment to Mosaiq-style
// shifts. Translations map directly; rotation axes are permuted
// between the systems and pitch flips sign.
func ClipboxToMosaiq(a *xvi.Alignment) MosaiqShifts {
	if a == nil {
		return MosaiqShifts{}
	}
	return MosaiqShifts{
		Sup:   a.Longitudinal,
		Lat:   a.Lateral,
		Ant:   a.Vertical,
		Cor:   UnwrapAngle(a.Roll),
		Sag:   UnwrapAngle(a.Rotation),
		Trans: -UnwrapAngle(a.Pitch),
	}
}

// studyDetails are the report header fields. Values not derivable from
// the data stay blank for manual completion.
var studyDetails = []struct{ key, value string }{
	{"Image Collected", "CBCTs"},
	{"Linac Type", "Versa HD"},
	{"Imager Position (SDD)", "150 cm"},
	{"Couch Type", "Precise Table/Hexapod"},
	{"Coordinate System", ""},
	{"kV", "120"},
	{"mAs", "25"},
	{"Marker Length and Type", ""},
}

// Generate builds a markdown shift report for one patient's images
// tree. Sessions are listed chronologically; registration files that
// fail to decode are skipped with a warning.
func Generate(imagesDir string, logger *slog.Logger) (string, error) {
	paths, err := FindRPSFiles(imagesDir)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("no registration files found under %s", imagesDir)
	}

	var records []*RPSRecord
	for _, path := range paths {
		rec, err := ExtractRPS(path, logger)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping unreadable registration file",
					"path", path, "error", err)
			}
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return "", fmt.Errorf("no readable registration files under %s", imagesDir)
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.HasTime != b.HasTime {
			return a.HasTime
		}
		return a.Time.Before(b.Time)
	})

	patientID := patientLabel(imagesDir)

	var b strings.Builder
	fmt.Fprintf(&b, "# CBCT Shift Report: %s\n\n", patientID)
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().Format("2006-01-02"))

	b.WriteString("## Study Details\n\n")
	fmt.Fprintf(&b, "- **RedCap ID:** %s\n", patientID)
	for _, d := range studyDetails {
		value := d.value
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(&b, "- **%s:** %s\n", d.key, value)
	}

	b.WriteString("\n## CBCT Sessions\n\n")
	b.WriteString("| FX | CBCT | Date | Time | Sup (cm) | Lat (cm) | Ant (cm) | Cor (deg) | Sag (deg) | Trans (deg) |\n")
	b.WriteString("|----|------|------|------|----------|----------|----------|-----------|-----------|-------------|\n")

	for _, rec := range records {
		dateStr, timeStr := "?", "?"
		if rec.HasTime {
			dateStr = rec.Time.Format("02/01/2006")
			timeStr = rec.Time.Format("15:04")
		}
		mq := ClipboxToMosaiq(rec.Record.Clipbox)
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %.2f | %.2f | %.2f | %.1f | %.1f | %.1f |\n",
			rec.FX, rec.CBCT, dateStr, timeStr,
			mq.Sup, mq.Lat, mq.Ant, mq.Cor, mq.Sag, mq.Trans)
	}

	b.WriteString("\n## Mapping Reference\n\n")
	b.WriteString("Translations: clipbox long/lat/vert map to Sup/Lat/Ant (same sign, cm)\n")
	b.WriteString("Rotations: clipbox roll to Cor(B), rotation to Sag(B), negated pitch to Trans(B) (degrees)\n")

	return b.String(), nil
}

// patientLabel extracts the anonymous patient ID from an archive
// images path like .../Patient Images/PAT01.
func patientLabel(imagesDir string) string {
	parts := strings.Split(strings.TrimRight(filepath.ToSlash(imagesDir), "/"), "/")
	if len(parts) == 0 {
		return imagesDir
	}
	return parts[len(parts)-1]
}
