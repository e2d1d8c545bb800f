package xvi

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// FrameInfo holds the acquisition metadata from a session _Frames.xml.
// Every field is independently optional: empty strings and nil floats
// mean the descriptor did not carry the value.
type FrameInfo struct {
	TreatmentID       string
	AcquisitionPreset string
	DicomUID          string
	TubeKV            *float64
	TubeMA            *float64
}

type framesDoc struct {
	Treatment struct {
		ID string `xml:"ID"`
	} `xml:"Treatment"`
	Image struct {
		AcquisitionPresetName string `xml:"AcquisitionPresetName"`
		DicomUID              string `xml:"DicomUID"`
		KV                    string `xml:"kV"`
		MA                    string `xml:"mA"`
	} `xml:"Image"`
}

// ParseFrames reads a _Frames.xml descriptor. Unreadable or malformed
// XML is an error; individual missing fields are not.
func ParseFrames(path string, logger *slog.Logger) (FrameInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FrameInfo{}, fmt.Errorf("read frames descriptor: %w", err)
	}

	var doc framesDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return FrameInfo{}, fmt.Errorf("parse frames descriptor: %w", err)
	}

	info := FrameInfo{
		TreatmentID:       strings.TrimSpace(doc.Treatment.ID),
		AcquisitionPreset: strings.TrimSpace(doc.Image.AcquisitionPresetName),
		DicomUID:          strings.TrimSpace(doc.Image.DicomUID),
	}
	info.TubeKV = parseTubeValue(doc.Image.KV, "kV", path, logger)
	info.TubeMA = parseTubeValue(doc.Image.MA, "mA", path, logger)

	return info, nil
}

func parseTubeValue(raw, name, path string, logger *slog.Logger) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		if logger != nil {
			logger.Warn("non-numeric tube value in frames descriptor",
				"field", name, "value", raw, "path", path)
		}
		return nil
	}
	return &v
}
