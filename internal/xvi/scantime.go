package xvi

import (
	"regexp"
	"strconv"
	"time"
)

// Scan UIDs end in a packed wall-clock timestamp:
// ...2023-03-21165402768 is 2023-03-21 16:54:02.768.
var scanTimePattern = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})(\d{2})(\d{2})(\d{2})(\d{3})$`)

// ParseScanTime extracts the acquisition timestamp embedded at the end
// of an XVI scan UID. Returns ok=false when the suffix is missing or
// encodes an impossible calendar value.
func ParseScanTime(scanUID string) (time.Time, bool) {
	m := scanTimePattern.FindStringSubmatch(scanUID)
	if m == nil {
		return time.Time{}, false
	}

	parts := make([]int, 7)
	for i := range parts {
		parts[i], _ = strconv.Atoi(m[i+1])
	}

	t := time.Date(parts[0], time.Month(parts[1]), parts[2],
		parts[3], parts[4], parts[5], parts[6]*int(time.Millisecond), time.UTC)

	// time.Date normalizes out-of-range components (month 13 becomes
	// January of the next year); those UIDs are treated as undated.
	if t.Year() != parts[0] || int(t.Month()) != parts[1] || t.Day() != parts[2] ||
		t.Hour() != parts[3] || t.Minute() != parts[4] || t.Second() != parts[5] {
		return time.Time{}, false
	}

	return t, true
}
