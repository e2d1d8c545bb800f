package verify

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func newTestScanner() *Scanner {
	return NewScanner(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// writeDICOM writes a minimal DICOM file with the given string
// elements plus the required file meta group.
func writeDICOM(t *testing.T, path string, pairs map[tag.Tag]string) {
	t.Helper()

	version, err := dicom.NewElement(tag.FileMetaInformationVersion, []byte{0x00, 0x01})
	require.NoError(t, err)
	elements := []*dicom.Element{version}
	meta := map[tag.Tag]string{
		tag.MediaStorageSOPClassUID:    "1.2.840.10008.5.1.4.1.1.2",
		tag.MediaStorageSOPInstanceUID: "1.2.3.4.5",
		tag.TransferSyntaxUID:          "1.2.840.10008.1.2.1",
	}
	for _, set := range []map[tag.Tag]string{meta, pairs} {
		for dtag, value := range set {
			elem, err := dicom.NewElement(dtag, []string{value})
			require.NoError(t, err)
			elements = append(elements, elem)
		}
	}
	sort.Slice(elements, func(i, j int) bool {
		a, b := elements[i].Tag, elements[j].Tag
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	err = dicom.Write(f, dicom.Dataset{Elements: elements},
		dicom.SkipVRVerification(), dicom.SkipValueTypeVerification())
	require.NoError(t, err)
}

func TestScanClean(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "couchShifts.txt"), []byte("0.1 0.2 0.3\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "proj.his"), []byte("raw frame"), 0644))

	report, err := newTestScanner().Scan(root, []string{"12345678", "Smith"})
	require.NoError(t, err)

	assert.True(t, report.Clean())
	assert.Equal(t, 2, report.FilesScanned)
}

func TestScanFilenameFinding(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Centroid_12345678.txt"), []byte("clean body\n"), 0644))

	report, err := newTestScanner().Scan(root, []string{"12345678"})
	require.NoError(t, err)

	require.Len(t, report.Findings, 1)
	assert.Equal(t, "filename", report.Findings[0].Location)
	assert.Equal(t, "12345678", report.Findings[0].Matched)
}

func TestScanFilenameCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "SMITH_notes.txt"), []byte("clean\n"), 0644))

	report, err := newTestScanner().Scan(root, []string{"smith"})
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "filename", report.Findings[0].Location)
}

func TestScanTextFindings(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "log.txt"), []byte("patient Smith attended\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "frames.xml"), []byte("<ID>12345678</ID>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "raw.his"), []byte("12345678"), 0644))

	report, err := newTestScanner().Scan(root, []string{"12345678", "smith"})
	require.NoError(t, err)

	// The .his file body is not inspected, only its name.
	require.Len(t, report.Findings, 2)

	locations := map[string]string{}
	for _, f := range report.Findings {
		locations[f.Location] = f.Matched
	}
	assert.Equal(t, "smith", locations["text content"])
	assert.Equal(t, "12345678", locations["xml text"])
}

func TestScanDICOMFinding(t *testing.T) {
	root := t.TempDir()
	writeDICOM(t, filepath.Join(root, "plan.dcm"), map[tag.Tag]string{
		tag.PatientName: "SMITH^JOHN",
		tag.PatientID:   "PAT01",
	})

	report, err := newTestScanner().Scan(root, []string{"smith"})
	require.NoError(t, err)

	require.Len(t, report.Findings, 1)
	assert.Contains(t, report.Findings[0].Location, "(0010,0010)")
	assert.Equal(t, "smith", report.Findings[0].Matched)
}

func TestScanMissingRoot(t *testing.T) {
	_, err := newTestScanner().Scan(filepath.Join(t.TempDir(), "missing"), []string{"x"})
	assert.Error(t, err)
}
