// Package fraction turns a flat list of imaging sessions into
// date-grouped treatment fractions, inferring timestamps for sessions
// that have none.
package fraction

import (
	"log/slog"
	"sort"

	"learn-transfer/internal/session"
)

// TimestampStrategy fills in timestamps for undated sessions using the
// dated ones as evidence.
type TimestampStrategy interface {
	Assign(dated, undated []*session.Session)
}

// LexicalProximity matches each undated session to the nearest dated
// session by directory sort position, preferring sessions that share a
// treatment ID. Session directory names are sequential UIDs, so
// lexical proximity correlates with temporal proximity.
type LexicalProximity struct {
	Logger *slog.Logger
}

// Assign copies timestamps onto undated sessions in place. Sessions
// that cannot be matched stay undated with a warning.
func (p LexicalProximity) Assign(dated, undated []*session.Session) {
	if len(dated) == 0 || len(undated) == 0 {
		if len(undated) > 0 && p.Logger != nil {
			p.Logger.Warn("no dated sessions available for timestamp inference",
				"undated", len(undated))
		}
		return
	}

	names := make([]string, 0, len(dated)+len(undated))
	for _, s := range dated {
		names = append(names, s.Name)
	}
	for _, s := range undated {
		names = append(names, s.Name)
	}
	sort.Strings(names)

	position := make(map[string]int, len(names))
	for i, name := range names {
		position[name] = i
	}

	byTreatment := make(map[string][]*session.Session)
	for _, s := range dated {
		if s.TreatmentID != "" {
			byTreatment[s.TreatmentID] = append(byTreatment[s.TreatmentID], s)
		}
	}

	for _, undatedSession := range undated {
		candidates := byTreatment[undatedSession.TreatmentID]
		if len(candidates) == 0 {
			candidates = dated
		}

		best := nearestByPosition(candidates, position, position[undatedSession.Name])
		undatedSession.SetScanTime(best.ScanTime)

		if p.Logger != nil {
			p.Logger.Info("matched undated session",
				"session", undatedSession.Name,
				"matched_to", best.Name,
				"treatment_id", best.TreatmentID,
				"date", best.ScanTime.Format("2006-01-02"))
		}
	}
}

// nearestByPosition picks the candidate closest to pos; ties keep the
// earliest candidate in slice order.
func nearestByPosition(candidates []*session.Session, position map[string]int, pos int) *session.Session {
	best := candidates[0]
	bestDist := absInt(position[best.Name] - pos)
	for _, c := range candidates[1:] {
		if d := absInt(position[c.Name] - pos); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
