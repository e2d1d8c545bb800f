package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learn-transfer/internal/xvi"
)

func TestUnwrapAngle(t *testing.T) {
	assert.InDelta(t, -0.2, UnwrapAngle(359.8), 1e-9)
	assert.InDelta(t, 10.0, UnwrapAngle(10.0), 1e-9)
	assert.InDelta(t, 180.0, UnwrapAngle(180.0), 1e-9)
	assert.InDelta(t, -179.9, UnwrapAngle(180.1), 1e-9)
	assert.InDelta(t, 0.0, UnwrapAngle(0.0), 1e-9)
}

func TestClipboxToMosaiq(t *testing.T) {
	shifts := ClipboxToMosaiq(&xvi.Alignment{
		Lateral:      0.1,
		Longitudinal: 0.2,
		Vertical:     0.3,
		Rotation:     359.5,
		Pitch:        1.5,
		Roll:         0.8,
	})

	assert.InDelta(t, 0.2, shifts.Sup, 1e-9)
	assert.InDelta(t, 0.1, shifts.Lat, 1e-9)
	assert.InDelta(t, 0.3, shifts.Ant, 1e-9)
	assert.InDelta(t, 0.8, shifts.Cor, 1e-9)
	assert.InDelta(t, -0.5, shifts.Sag, 1e-9)
	assert.InDelta(t, -1.5, shifts.Trans, 1e-9)
}

func TestClipboxToMosaiqNil(t *testing.T) {
	assert.Equal(t, MosaiqShifts{}, ClipboxToMosaiq(nil))
}

func TestParseDirectionValue(t *testing.T) {
	cases := []struct {
		text string
		want float64
		ok   bool
	}{
		{"Sup 0.5 cm", 0.5, true},
		{"Inf 0.5 cm", -0.5, true},
		{"Lft 1.2 cm", 1.2, true},
		{"Rht 1.2 cm", -1.2, true},
		{"Ant 0.3cm", 0.3, true},
		{"Pos 0.3 cm", -0.3, true},
		{"CW 0.4 deg.", 0.4, true},
		{"CCW 0.4 deg.", -0.4, true},
		{"CW 0.4", 0.4, true},
		{"  Sup 0.5 cm  ", 0.5, true},
		{"", 0, false},
		{"N/A", 0, false},
		{"shifted Sup 0.5 cm", 0, false},
	}

	for _, tc := range cases {
		v, ok := ParseDirectionValue(tc.text)
		assert.Equal(t, tc.ok, ok, "text %q", tc.text)
		if tc.ok {
			assert.InDelta(t, tc.want, v, 1e-9, "text %q", tc.text)
		}
	}
}

func mosaiqRow(fields ...string) string {
	return strings.Join(fields, "\t")
}

func TestParseMosaiqLog(t *testing.T) {
	header := mosaiqRow("ID", "Date", "A", "B", "Type", "C", "D", "E", "F", "G", "H",
		"Sup", "Lat", "Ant", "Mag", "Cor", "Sag", "Trans")
	good := mosaiqRow("1", "21/03/2023 4:54 PM", "", "", "CBCT", "", "", "", "", "", "",
		"Sup 0.50 cm", "Rht 0.20 cm", "Ant 0.10 cm", "0.55", "CW 0.3 deg.", "CCW 0.1 deg.", "CW 0.2 deg.")
	noTime := mosaiqRow("2", "", "", "", "CBCT", "", "", "", "", "", "",
		"Sup 0.50 cm", "", "", "", "", "", "")
	short := mosaiqRow("3", "22/03/2023 9:00 AM")

	path := filepath.Join(t.TempDir(), "mosaiq.txt")
	content := strings.Join([]string{header, good, noTime, short}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	records, err := ParseMosaiqLog(path)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, time.Date(2023, time.March, 21, 16, 54, 0, 0, time.UTC), rec.Time)
	assert.Equal(t, "CBCT", rec.Kind)
	assert.True(t, rec.HasShifts())

	require.NotNil(t, rec.Sup)
	assert.InDelta(t, 0.50, *rec.Sup, 1e-9)
	require.NotNil(t, rec.Lat)
	assert.InDelta(t, -0.20, *rec.Lat, 1e-9)
	require.NotNil(t, rec.Ant)
	assert.InDelta(t, 0.10, *rec.Ant, 1e-9)
	require.NotNil(t, rec.Mag)
	assert.InDelta(t, 0.55, *rec.Mag, 1e-9)
	require.NotNil(t, rec.CorB)
	assert.InDelta(t, 0.3, *rec.CorB, 1e-9)
	require.NotNil(t, rec.SagB)
	assert.InDelta(t, -0.1, *rec.SagB, 1e-9)
	require.NotNil(t, rec.TransB)
	assert.InDelta(t, 0.2, *rec.TransB, 1e-9)
}

func TestParseMosaiqLogMissing(t *testing.T) {
	_, err := ParseMosaiqLog(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func mosaiqAt(at time.Time) *MosaiqRecord {
	v := 0.5
	return &MosaiqRecord{Time: at, Sup: &v}
}

func TestMatchRecords(t *testing.T) {
	day := time.Date(2023, time.March, 21, 16, 54, 0, 0, time.UTC)

	rps := []*RPSRecord{
		{Path: "a", Time: day, HasTime: true},
		{Path: "b", Time: day.AddDate(0, 0, 1), HasTime: true},
		{Path: "undated"},
	}
	mosaiq := []*MosaiqRecord{
		mosaiqAt(day.Add(10 * time.Minute)),
		mosaiqAt(day.Add(3 * time.Minute)),
		// Right time of day, wrong date.
		mosaiqAt(day.AddDate(0, 0, 2)),
		// No shift data, never matched.
		{Time: day},
	}

	matches := MatchRecords(mosaiq, rps, 15*time.Minute)
	require.Len(t, matches, 2)

	// Closest same-date record wins.
	require.NotNil(t, matches[0].Mosaiq)
	assert.Equal(t, 3*time.Minute, matches[0].Delta)

	// Next day has a record two days out only.
	assert.Nil(t, matches[1].Mosaiq)
}

func TestMatchRecordsTolerance(t *testing.T) {
	day := time.Date(2023, time.March, 21, 12, 0, 0, 0, time.UTC)
	rps := []*RPSRecord{{Path: "a", Time: day, HasTime: true}}
	mosaiq := []*MosaiqRecord{mosaiqAt(day.Add(20 * time.Minute))}

	matches := MatchRecords(mosaiq, rps, 15*time.Minute)
	require.Len(t, matches, 1)
	assert.Nil(t, matches[0].Mosaiq)

	matches = MatchRecords(mosaiq, rps, 30*time.Minute)
	require.NotNil(t, matches[0].Mosaiq)
}

func TestRenderComparison(t *testing.T) {
	day := time.Date(2023, time.March, 21, 16, 54, 0, 0, time.UTC)

	sup, mag := 0.5, 0.62
	matched := Match{
		RPS: &RPSRecord{
			FX: "FX0", CBCT: "CBCT1", Time: day, HasTime: true,
			Record: &xvi.RegistrationRecord{
				Clipbox: &xvi.Alignment{Longitudinal: 0.5, Lateral: 0.1, Vertical: 0.3},
			},
		},
		Mosaiq: &MosaiqRecord{Time: day.Add(3 * time.Minute), Kind: "CBCT", Sup: &sup, Mag: &mag},
	}
	unmatched := Match{
		RPS: &RPSRecord{
			FX: "FX1", CBCT: "CBCT1", Time: day.AddDate(0, 0, 1), HasTime: true,
			Record: &xvi.RegistrationRecord{},
		},
	}

	var buf strings.Builder
	RenderComparison([]Match{matched, unmatched}, &buf)
	out := buf.String()

	assert.Contains(t, out, "Mag (cm)")
	assert.Contains(t, out, "Type")
	assert.Contains(t, out, "CBCT") // Mosaiq record kind
	assert.Contains(t, out, "0.62")
	assert.Contains(t, out, "no match")
	assert.Contains(t, out, "FX0")
	assert.Contains(t, out, "FX1")
}

func TestFindRPSFiles(t *testing.T) {
	base := t.TempDir()

	regDir := filepath.Join(base, "PAT01", "FX0", "CBCT", "CBCT1", "Registration file")
	require.NoError(t, os.MkdirAll(regDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(regDir, "reg(PAT01).dcm"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(regDir, "notes.txt"), []byte("x"), 0644))

	volDir := filepath.Join(base, "PAT01", "FX0", "CBCT", "CBCT1", "Reconstructed CBCT")
	require.NoError(t, os.MkdirAll(volDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(volDir, "other.dcm"), []byte("x"), 0644))

	paths, err := FindRPSFiles(base)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(regDir, "reg(PAT01).dcm"), paths[0])
}

func TestPathLabel(t *testing.T) {
	path := filepath.Join("site", "Patient Images", "PAT01", "FX2", "CBCT", "CBCT3", "Registration file", "a.dcm")
	assert.Equal(t, "FX2", pathLabel(path, "FX"))
	// The bare CBCT container directory is not a label.
	assert.Equal(t, "CBCT3", pathLabel(path, "CBCT"))

	assert.Equal(t, "?", pathLabel(filepath.Join("x", "y.dcm"), "FX"))
}
