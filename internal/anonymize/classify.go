package anonymize

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"learn-transfer/internal/dicomfile"
)

// Category names the plan file buckets in the archive.
type Category string

const (
	CategoryCT         Category = "ct"
	CategoryPlan       Category = "plan"
	CategoryStructures Category = "structures"
	CategoryDose       Category = "dose"
)

var modalityCategories = map[string]Category{
	"CT":       CategoryCT,
	"RTPLAN":   CategoryPlan,
	"RTSTRUCT": CategoryStructures,
	"RTDOSE":   CategoryDose,
}

// ClassifyPlanFiles walks sourceDir for DICOM files and buckets them
// by modality. Files with an unrecognized modality or an unreadable
// header are reported and excluded.
func (a *Anonymizer) ClassifyPlanFiles(sourceDir string) (map[Category][]string, error) {
	files, err := findDicomFiles(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", sourceDir, err)
	}

	buckets := make(map[Category][]string)
	for _, path := range files {
		ds, err := dicomfile.ReadMetadata(path)
		if err != nil {
			a.logger.Warn("unreadable DICOM file, excluded", "path", path, "error", err)
			continue
		}

		modality := ds.Modality()
		category, ok := modalityCategories[modality]
		if !ok {
			a.logger.Warn("unrecognized modality, excluded",
				"path", path, "modality", modality)
			continue
		}
		buckets[category] = append(buckets[category], path)
	}

	return buckets, nil
}

// findDicomFiles returns every .dcm file under root, deduplicated and
// in sorted order.
func findDicomFiles(root string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".dcm") {
			return nil
		}
		if !seen[path] {
			files = append(files, path)
			seen[path] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// AnonymizePlanFiles classifies sourceDir and anonymizes every bucket
// into its own subdirectory of stagingDir. Returns the per-category
// staging directories.
func (a *Anonymizer) AnonymizePlanFiles(sourceDir, stagingDir string) (map[Category]string, error) {
	buckets, err := a.ClassifyPlanFiles(sourceDir)
	if err != nil {
		return nil, err
	}

	dirs := make(map[Category]string)
	for category, paths := range buckets {
		outDir := filepath.Join(stagingDir, string(category))
		for _, path := range paths {
			if _, err := a.AnonymizeFile(path, filepath.Dir(path), outDir); err != nil {
				return nil, err
			}
		}
		dirs[category] = outDir
	}
	return dirs, nil
}
