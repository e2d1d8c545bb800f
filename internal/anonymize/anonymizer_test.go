package anonymize

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

	"learn-transfer/internal/config"
	"learn-transfer/internal/dicomfile"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type tagValue struct {
	tag   tag.Tag
	value string
}

// writeDICOM writes a minimal DICOM file with the given string
// elements plus the required file meta group.
func writeDICOM(t *testing.T, path string, pairs []tagValue) {
	t.Helper()

	meta := []tagValue{
		{tag.MediaStorageSOPClassUID, "1.2.840.10008.5.1.4.1.1.2"},
		{tag.MediaStorageSOPInstanceUID, "1.2.3.4.5"},
		{tag.TransferSyntaxUID, "1.2.840.10008.1.2.1"},
	}

	version, err := dicom.NewElement(tag.FileMetaInformationVersion, []byte{0x00, 0x01})
	require.NoError(t, err)
	elements := []*dicom.Element{version}
	for _, p := range append(meta, pairs...) {
		elem, err := dicom.NewElement(p.tag, []string{p.value})
		require.NoError(t, err)
		elements = append(elements, elem)
	}
	sort.Slice(elements, func(i, j int) bool {
		a, b := elements[i].Tag, elements[j].Tag
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	err = dicom.Write(f, dicom.Dataset{Elements: elements},
		dicom.SkipVRVerification(), dicom.SkipValueTypeVerification())
	require.NoError(t, err)
}

func newTestAnonymizer(t *testing.T) (*Anonymizer, string) {
	t.Helper()
	patientDir := filepath.Join(t.TempDir(), "patient_12345678")
	require.NoError(t, os.MkdirAll(patientDir, 0755))

	a, err := New(patientDir, "PAT01", "Prostate", discardLogger())
	require.NoError(t, err)
	return a, patientDir
}

func TestNewMissingPatientDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), "PAT01", "Prostate", discardLogger())
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestAnonymizeFile(t *testing.T) {
	a, patientDir := newTestAnonymizer(t)

	src := filepath.Join(patientDir, "DCMRT_Plan(SMITH JOHN).dcm")
	writeDICOM(t, src, []tagValue{
		{tag.SOPInstanceUID, "1.2.3.4.5"},
		{tag.Modality, "RTPLAN"},
		{tag.InstitutionName, "Royal Hospital"},
		{tag.StudyDescription, "Plan for 12345678"},
		{tag.PatientName, "SMITH^JOHN"},
		{tag.PatientID, "12345678"},
		{tag.PatientBirthDate, "19500101"},
		{tag.PatientSex, "M"},
		{tag.StudyInstanceUID, "1.2.840.99.1"},
		{tag.StudyID, "9876"},
	})

	outDir := t.TempDir()
	outPath, err := a.AnonymizeFile(src, patientDir, outDir)
	require.NoError(t, err)
	assert.Equal(t, "DCMRT_Plan(PAT01).dcm", filepath.Base(outPath))

	ds, err := dicomfile.Read(outPath)
	require.NoError(t, err)

	assert.Equal(t, "PAT01^Prostate", ds.GetString(tag.PatientName))
	assert.Equal(t, "PAT01", ds.GetString(tag.PatientID))
	assert.Equal(t, "PAT01", ds.GetString(tag.StudyID))

	// Cleared because present in the source.
	assert.Empty(t, ds.GetString(tag.PatientBirthDate))
	assert.Empty(t, ds.GetString(tag.InstitutionName))

	// Scrubbed, not cleared.
	assert.Equal(t, "Plan for PAT01", ds.GetString(tag.StudyDescription))

	// Preserved.
	assert.Equal(t, "M", ds.GetString(tag.PatientSex))
	assert.Equal(t, "1.2.3.4.5", ds.GetString(tag.SOPInstanceUID))
	assert.Equal(t, "1.2.840.99.1", ds.GetString(tag.StudyInstanceUID))
	assert.Equal(t, "RTPLAN", ds.GetString(tag.Modality))
}

func TestAnonymizeFileAbsentTagsStayAbsent(t *testing.T) {
	a, patientDir := newTestAnonymizer(t)

	src := filepath.Join(patientDir, "scan.dcm")
	writeDICOM(t, src, []tagValue{
		{tag.Modality, "CT"},
		{tag.PatientID, "12345678"},
	})

	outPath, err := a.AnonymizeFile(src, patientDir, t.TempDir())
	require.NoError(t, err)

	ds, err := dicomfile.Read(outPath)
	require.NoError(t, err)

	assert.False(t, ds.Has(tag.AccessionNumber))
	assert.False(t, ds.Has(tag.PatientBirthDate))
	assert.False(t, ds.Has(tag.PatientName))
}

func TestAnonymizeFileNoSiteName(t *testing.T) {
	patientDir := filepath.Join(t.TempDir(), "patient_1")
	require.NoError(t, os.MkdirAll(patientDir, 0755))
	a, err := New(patientDir, "PAT02", "", discardLogger())
	require.NoError(t, err)

	src := filepath.Join(patientDir, "scan.dcm")
	writeDICOM(t, src, []tagValue{
		{tag.PatientName, "SMITH^JOHN"},
		{tag.PatientID, "1"},
	})

	outPath, err := a.AnonymizeFile(src, patientDir, t.TempDir())
	require.NoError(t, err)

	ds, err := dicomfile.Read(outPath)
	require.NoError(t, err)
	assert.Equal(t, "PAT02", ds.GetString(tag.PatientName))
}

func TestScrubFilename(t *testing.T) {
	assert.Equal(t, "DCMRT_Plan(PAT01).dcm",
		ScrubFilename("DCMRT_Plan(SMITH JOHN).dcm", "PAT01"))
	assert.Equal(t, "scan.dcm", ScrubFilename("scan.dcm", "PAT01"))
	// Only the first group is rewritten.
	assert.Equal(t, "a(PAT01)b(second).dcm",
		ScrubFilename("a(x)b(second).dcm", "PAT01"))
	assert.Equal(t, "empty(PAT01).dcm", ScrubFilename("empty().dcm", "PAT01"))
}

const framesWithPatient = `<?xml version="1.0" encoding="utf-8"?>
<FrameData>
    <Patient>
        <FirstName>John</FirstName>
        <LastName>Smith</LastName>
        <ID>12345678</ID>
    </Patient>
    <Treatment><ID>Prostate</ID></Treatment>
    <Image>
        <AcquisitionPresetName>4ee Pelvis Soft</AcquisitionPresetName>
        <Description>Scan of 12345678</Description>
    </Image>
</FrameData>
`

func TestAnonymizeFramesXML(t *testing.T) {
	a, patientDir := newTestAnonymizer(t)

	src := filepath.Join(patientDir, "_Frames.xml")
	require.NoError(t, os.WriteFile(src, []byte(framesWithPatient), 0644))

	dst := filepath.Join(t.TempDir(), "out", "_Frames.xml")
	require.NoError(t, a.AnonymizeFramesXML(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	doc := string(data)

	assert.Contains(t, doc, "<FirstName></FirstName>")
	assert.Contains(t, doc, "<LastName>PAT01</LastName>")
	assert.Contains(t, doc, "<ID>PAT01</ID>")
	assert.NotContains(t, doc, "12345678")
	assert.NotContains(t, doc, "Smith")
	assert.NotContains(t, doc, "John")

	// Everything else survives untouched.
	assert.Contains(t, doc, "<AcquisitionPresetName>4ee Pelvis Soft</AcquisitionPresetName>")
	assert.Contains(t, doc, "<Treatment><ID>Prostate</ID></Treatment>")
}

func TestAnonymizeFramesXMLWithoutPatientBlock(t *testing.T) {
	a, patientDir := newTestAnonymizer(t)

	content := "<FrameData><Image><AcquisitionPresetName>CBCT</AcquisitionPresetName></Image></FrameData>"
	src := filepath.Join(patientDir, "_Frames.xml")
	require.NoError(t, os.WriteFile(src, []byte(content), 0644))

	dst := filepath.Join(t.TempDir(), "_Frames.xml")
	require.NoError(t, a.AnonymizeFramesXML(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestClassifyPlanFiles(t *testing.T) {
	a, _ := newTestAnonymizer(t)

	srcDir := t.TempDir()
	writeDICOM(t, filepath.Join(srcDir, "ct1.dcm"), []tagValue{{tag.Modality, "CT"}, {tag.PatientID, "1"}})
	writeDICOM(t, filepath.Join(srcDir, "sub", "plan.dcm"), []tagValue{{tag.Modality, "RTPLAN"}, {tag.PatientID, "1"}})
	writeDICOM(t, filepath.Join(srcDir, "us.dcm"), []tagValue{{tag.Modality, "US"}, {tag.PatientID, "1"}})

	buckets, err := a.ClassifyPlanFiles(srcDir)
	require.NoError(t, err)

	require.Len(t, buckets[CategoryCT], 1)
	require.Len(t, buckets[CategoryPlan], 1)
	assert.Empty(t, buckets[CategoryStructures])
	assert.Empty(t, buckets[CategoryDose])

	// The unknown modality is excluded entirely.
	total := 0
	for _, paths := range buckets {
		total += len(paths)
	}
	assert.Equal(t, 2, total)
}

func TestAnonymizePlanFiles(t *testing.T) {
	a, _ := newTestAnonymizer(t)

	srcDir := t.TempDir()
	writeDICOM(t, filepath.Join(srcDir, "ct(SMITH).dcm"), []tagValue{
		{tag.Modality, "CT"},
		{tag.PatientName, "SMITH^JOHN"},
		{tag.PatientID, "12345678"},
	})

	stagingDir := t.TempDir()
	dirs, err := a.AnonymizePlanFiles(srcDir, stagingDir)
	require.NoError(t, err)

	ctDir, ok := dirs[CategoryCT]
	require.True(t, ok)

	outPath := filepath.Join(ctDir, "ct(PAT01).dcm")
	ds, err := dicomfile.Read(outPath)
	require.NoError(t, err)
	assert.Equal(t, "PAT01", ds.GetString(tag.PatientID))
}
