package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MosaiqRecord is one row of the Mosaiq CBCT shifts export.
type MosaiqRecord struct {
	Time time.Time
	Kind string

	// Signed shifts; nil when the column was empty.
	Sup    *float64
	Lat    *float64
	Ant    *float64
	CorB   *float64
	SagB   *float64
	TransB *float64
	Mag    *float64
}

// HasShifts reports whether the record carries translation data.
func (r *MosaiqRecord) HasShifts() bool {
	return r.Sup != nil || r.Lat != nil || r.Ant != nil
}

// Mosaiq sign convention: Sup, Lft, Ant and CW are positive; Inf, Rht,
// Pos and CCW negative.
var directionPattern = regexp.MustCompile(`^(Sup|Inf|Lft|Rht|Ant|Pos|CW|CCW)\s+([\d.]+)\s*(cm|deg\.?)?`)

var negativeDirections = map[string]bool{
	"Inf": true, "Rht": true, "Pos": true, "CCW": true,
}

// ParseDirectionValue parses a directional string like "Sup 0.1 cm"
// into a signed value.
func ParseDirectionValue(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}

	m := directionPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}

	v, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, false
	}
	if negativeDirections[m[1]] {
		v = -v
	}
	return v, true
}

// Mosaiq exports use day-first dates with a 12-hour clock.
const mosaiqTimeLayout = "02/01/2006 3:04 PM"

// ParseMosaiqLog reads the tab-delimited Mosaiq CBCT shifts export.
// Rows without a parseable timestamp are skipped; quoted multi-line
// comment fields are handled by the CSV reader.
func ParseMosaiqLog(path string) ([]*MosaiqRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mosaiq log: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse mosaiq log: %w", err)
	}
	if len(rows) > 0 {
		rows = rows[1:] // header
	}

	var records []*MosaiqRecord
	for _, row := range rows {
		if len(row) < 12 || strings.TrimSpace(row[1]) == "" {
			continue
		}

		t, err := time.Parse(mosaiqTimeLayout, strings.TrimSpace(row[1]))
		if err != nil {
			continue
		}

		rec := &MosaiqRecord{Time: t}
		if len(row) > 4 {
			rec.Kind = strings.TrimSpace(row[4])
		}
		rec.Sup = directionAt(row, 11)
		rec.Lat = directionAt(row, 12)
		rec.Ant = directionAt(row, 13)
		rec.CorB = directionAt(row, 15)
		rec.SagB = directionAt(row, 16)
		rec.TransB = directionAt(row, 17)

		if len(row) > 14 {
			if v, err := strconv.ParseFloat(strings.TrimSpace(row[14]), 64); err == nil {
				rec.Mag = &v
			}
		}

		records = append(records, rec)
	}

	return records, nil
}

func directionAt(row []string, i int) *float64 {
	if i >= len(row) {
		return nil
	}
	if v, ok := ParseDirectionValue(row[i]); ok {
		return &v
	}
	return nil
}

// Match pairs one registration record with its closest Mosaiq record.
// Mosaiq is nil when nothing fell within tolerance.
type Match struct {
	RPS    *RPSRecord
	Mosaiq *MosaiqRecord
	Delta  time.Duration
}

// MatchRecords pairs each dated registration record with the Mosaiq
// record on the same calendar date closest in time, within tolerance.
// Undated registration records are dropped.
func MatchRecords(mosaiq []*MosaiqRecord, rps []*RPSRecord, tolerance time.Duration) []Match {
	var matches []Match
	for _, r := range rps {
		if !r.HasTime {
			continue
		}

		match := Match{RPS: r}
		for _, mq := range mosaiq {
			if !mq.HasShifts() {
				continue
			}
			y1, m1, d1 := mq.Time.Date()
			y2, m2, d2 := r.Time.Date()
			if y1 != y2 || m1 != m2 || d1 != d2 {
				continue
			}

			delta := mq.Time.Sub(r.Time)
			if delta < 0 {
				delta = -delta
			}
			if delta <= tolerance && (match.Mosaiq == nil || delta < match.Delta) {
				match.Mosaiq = mq
				match.Delta = delta
			}
		}
		matches = append(matches, match)
	}
	return matches
}
