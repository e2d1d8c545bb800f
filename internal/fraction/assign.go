package fraction

import (
	"fmt"
	"sort"

	"learn-transfer/internal/session"
)

// unknownDateKey sorts after every ISO date, so unmatched sessions
// always land in the last fraction.
const unknownDateKey = "unknown"

// Fraction is one treatment fraction: all sessions acquired on the
// same calendar date.
type Fraction struct {
	Label    string // FX0, FX1, ...
	DateKey  string // 2006-01-02, or "unknown"
	Sessions []*session.Session
}

// Assign groups sessions into fractions by calendar date and labels
// them FX0..FXn in chronological order. Sessions still undated after
// inference collect in a trailing fraction. Input order is not
// modified; sessions within a fraction come out sorted by timestamp.
func Assign(sessions []*session.Session) []Fraction {
	ordered := make([]*session.Session, len(sessions))
	copy(ordered, sessions)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.HasScanTime != b.HasScanTime {
			return a.HasScanTime
		}
		if a.HasScanTime {
			return a.ScanTime.Before(b.ScanTime)
		}
		return false
	})

	groups := make(map[string][]*session.Session)
	var keys []string
	for _, s := range ordered {
		key := unknownDateKey
		if s.HasScanTime {
			key = s.ScanTime.Format("2006-01-02")
		}
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], s)
	}
	sort.Strings(keys)

	fractions := make([]Fraction, 0, len(keys))
	for i, key := range keys {
		fractions = append(fractions, Fraction{
			Label:    fmt.Sprintf("FX%d", i),
			DateKey:  key,
			Sessions: groups[key],
		})
	}
	return fractions
}

// Split separates dated from undated sessions, preserving order.
func Split(sessions []*session.Session) (dated, undated []*session.Session) {
	for _, s := range sessions {
		if s.HasScanTime {
			dated = append(dated, s)
		} else {
			undated = append(undated, s)
		}
	}
	return dated, undated
}
