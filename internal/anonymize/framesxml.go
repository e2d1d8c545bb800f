package anonymize

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// The Patient block of a _Frames.xml carries name and hospital ID in
// fixed child elements. Targeted text rewriting keeps the rest of the
// document byte-for-byte intact, which XML round-tripping would not.
var (
	patientBlockPattern = regexp.MustCompile(`(?s)<Patient>.*?</Patient>`)
	patientIDPattern    = regexp.MustCompile(`<ID>([^<]*)</ID>`)
	firstNamePattern    = regexp.MustCompile(`<FirstName>[^<]*</FirstName>`)
	lastNamePattern     = regexp.MustCompile(`<LastName>[^<]*</LastName>`)
)

// AnonymizeFramesXML rewrites a _Frames.xml descriptor into dstPath:
// the first name is cleared, the last name and patient ID become the
// anonymous ID, and any other occurrence of the original hospital ID
// is scrubbed from the document text.
func (a *Anonymizer) AnonymizeFramesXML(srcPath, dstPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", srcPath, err)
	}
	doc := string(data)

	var originalID string
	doc = patientBlockPattern.ReplaceAllStringFunc(doc, func(block string) string {
		if m := patientIDPattern.FindStringSubmatch(block); m != nil {
			originalID = strings.TrimSpace(m[1])
		}
		block = firstNamePattern.ReplaceAllString(block, "<FirstName></FirstName>")
		block = lastNamePattern.ReplaceAllString(block, "<LastName>"+a.AnonID+"</LastName>")
		block = patientIDPattern.ReplaceAllString(block, "<ID>"+a.AnonID+"</ID>")
		return block
	})

	if originalID != "" {
		doc = strings.ReplaceAll(doc, originalID, a.AnonID)
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dstPath), err)
	}
	if err := os.WriteFile(dstPath, []byte(doc), 0644); err != nil {
		return fmt.Errorf("write %s: %w", dstPath, err)
	}

	a.logger.Debug("anonymized frames descriptor", "source", srcPath, "output", dstPath)
	return nil
}
