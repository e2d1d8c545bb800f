package dicomfile

import (
	"fmt"
	"os"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Dataset wraps a parsed DICOM dataset for easier access.
type Dataset struct {
	Data     dicom.Dataset
	FilePath string
}

// Read parses a DICOM file including pixel data.
func Read(path string) (*Dataset, error) {
	return read(path)
}

// ReadMetadata parses a DICOM file skipping pixel data. Use this when
// only header elements are needed.
func ReadMetadata(path string) (*Dataset, error) {
	return read(path, dicom.SkipPixelData())
}

func read(path string, opts ...dicom.ParseOption) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat file: %w", err)
	}

	ds, err := dicom.Parse(file, info.Size(), nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not parse DICOM: %w", err)
	}

	return &Dataset{
		Data:     ds,
		FilePath: path,
	}, nil
}

// Has reports whether the dataset contains an element for the tag.
func (d *Dataset) Has(t tag.Tag) bool {
	_, err := d.Data.FindElementByTag(t)
	return err == nil
}

// GetString returns the first string value for a tag, or "" when the
// element is absent or empty.
func (d *Dataset) GetString(t tag.Tag) string {
	elem, err := d.Data.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return ""
	}

	value := elem.Value.GetValue()
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case []string:
		if len(v) > 0 {
			return v[0]
		}
		return ""
	case string:
		return v
	}

	return fmt.Sprintf("%v", value)
}

// GetBytes returns the raw byte payload of a tag.
func (d *Dataset) GetBytes(t tag.Tag) ([]byte, bool) {
	elem, err := d.Data.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return nil, false
	}

	if b, ok := elem.Value.GetValue().([]byte); ok {
		return b, true
	}
	return nil, false
}

// Modality returns the DICOM modality (e.g. "CT", "RTPLAN").
func (d *Dataset) Modality() string {
	return strings.ToUpper(strings.TrimSpace(d.GetString(tag.Modality)))
}

// StringElement is a string-valued element flattened for scanning.
type StringElement struct {
	Tag   tag.Tag
	Name  string
	Value string
}

// StringElements returns every string-valued element in the dataset
// with its values joined, including elements with no dictionary entry.
func (d *Dataset) StringElements() []StringElement {
	var out []StringElement
	for _, elem := range d.Data.Elements {
		if elem.Value == nil || elem.Value.ValueType() != dicom.Strings {
			continue
		}
		values, ok := elem.Value.GetValue().([]string)
		if !ok {
			continue
		}

		name := "unknown"
		if info, err := tag.Find(elem.Tag); err == nil {
			name = info.Name
		}

		out = append(out, StringElement{
			Tag:   elem.Tag,
			Name:  name,
			Value: strings.Join(values, "\\"),
		})
	}
	return out
}
