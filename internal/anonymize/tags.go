package anonymize

import "github.com/suyashkumar/dicom/pkg/tag"

// ReplaceTags are rewritten with the anonymous identifier. PatientName
// carries the site label as the family-name component.
var ReplaceTags = []tag.Tag{
	tag.PatientName,
	tag.PatientID,
	tag.StudyID,
}

// ClearTags are blanked when present. Absent tags are never created;
// downstream tooling treats the appearance of a tag as meaningful.
var ClearTags = []tag.Tag{
	tag.PatientBirthDate,
	tag.OtherPatientIDs,
	tag.OtherPatientNames,
	tag.AccessionNumber,
	tag.InstitutionName,
	tag.InstitutionAddress,
	tag.ReferringPhysicianName,
	tag.PhysiciansOfRecord,
	tag.OperatorsName,
	// tag.PatientSex - KEPT for clinical relevance
	// tag.PatientAge - KEPT for clinical relevance
	// tag.StudyDescription - KEPT, scrubbed of the patient ID instead
}

// Every UID, date, time and geometry tag is left untouched. The scans
// must stay cross-referenced with the treatment plan after transfer.
