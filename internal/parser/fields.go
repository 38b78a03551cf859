// Package parser turns unstructured visit-note text into structured clinical
// fields. Every function in this package is pure and never fails: text that is
// not recognized yields empty lists or nil optional values.
package parser

import (
	"regexp"
	"sort"
	"strings"
)

// Field names a semantic field of a visit note.
type Field string

const (
	FieldComplaint      Field = "complaint"
	FieldInvestigations Field = "investigations"
	FieldDiagnosis      Field = "diagnosis"
	FieldPrescription   Field = "prescription"
	FieldFollowUp       Field = "follow_up"
	FieldNotes          Field = "notes"
)

// Fields lists every extracted field in report order.
var Fields = []Field{
	FieldComplaint,
	FieldInvestigations,
	FieldDiagnosis,
	FieldPrescription,
	FieldFollowUp,
	FieldNotes,
}

// fieldRule captures one value per match of pattern from the given group.
type fieldRule struct {
	pattern *regexp.Regexp
	group   int
}

// Labelled lines use [ \t] rather than \s so a label never swallows the next line.
var fieldRules = map[Field][]fieldRule{
	FieldComplaint: {
		{regexp.MustCompile(`(?im)^[ \t]*(?:chief[ \t]+complaints?|presenting[ \t]+complaints?|complaints?|c/o|cc|symptoms?)[ \t]*[:\-][ \t]*(.+)$`), 1},
		{regexp.MustCompile(`(?i)\b(?:complain(?:s|ing|ed)?[ \t]+of|present(?:s|ed|ing)?[ \t]+with)[ \t]+([^.\n]+)`), 1},
	},
	FieldInvestigations: {
		{regexp.MustCompile(`(?im)^[ \t]*(?:investigations?|tests?|labs?|lab[ \t]+results?|work[ \t\-]?up)[ \t]*[:\-][ \t]*(.+)$`), 1},
		{regexp.MustCompile(`(?i)\b(?:ordered|advised|done)[ \t]+((?:cbc|ecg|ekg|x-?ray|mri|ct[ \t]+scan|ultrasound|echo(?:cardiogram)?|hba1c|lipid[ \t]+profile|blood[ \t]+tests?|urine[ \t]+tests?)[^.\n]*)`), 1},
	},
	FieldDiagnosis: {
		{regexp.MustCompile(`(?im)^[ \t]*(?:diagnos[ie]s|dx|impression|assessment)[ \t]*[:\-][ \t]*(.+)$`), 1},
		{regexp.MustCompile(`(?i)\bdiagnosed[ \t]+with[ \t]+([^.\n]+)`), 1},
	},
	FieldPrescription: {
		{regexp.MustCompile(`(?im)^[ \t]*(?:rx|prescriptions?|medications?|meds|treatment)[ \t]*[:\-][ \t]*(.+)$`), 1},
		{regexp.MustCompile(`(?im)^[ \t]*(?:[-*•][ \t]*|\d+[.)][ \t]*)?([a-z][a-z\-]*(?:[ \t]+[a-z][a-z\-]*)*[ \t]+\d+(?:\.\d+)?[ \t]*(?:mg|mcg|µg|g|ml|iu|units?)(?:[^/a-z0-9].*)?)$`), 1},
	},
	FieldFollowUp: {
		{regexp.MustCompile(`(?im)^[ \t]*(?:follow[ \t\-]?up|next[ \t]+visit|revisit|review)[ \t]*[:\-][ \t]*(.+)$`), 1},
		{regexp.MustCompile(`(?i)\b(?:follow[ \t\-]?up|review|return|come[ \t]+back)[ \t]+(?:in|after)[ \t]+(\d+[ \t]*(?:days?|weeks?|months?))`), 1},
	},
	FieldNotes: {
		{regexp.MustCompile(`(?im)^[ \t]*(?:notes?|advice|remarks?|plan|comments?)[ \t]*[:\-][ \t]*(.+)$`), 1},
	},
}

// ExtractFields runs every rule of every field against text. Each field maps
// to all captured values in first-occurrence order with exact duplicates
// removed; a field with no match maps to an empty slice.
func ExtractFields(text string) map[Field][]string {
	out := make(map[Field][]string, len(Fields))
	for _, field := range Fields {
		out[field] = ExtractField(text, field)
	}
	return out
}

// ExtractField applies the rules of a single field.
func ExtractField(text string, field Field) []string {
	type hit struct {
		pos   int
		value string
	}

	var hits []hit
	for _, rule := range fieldRules[field] {
		for _, m := range rule.pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2*rule.group], m[2*rule.group+1]
			if start < 0 {
				continue
			}
			value := cleanValue(text[start:end])
			if value == "" {
				continue
			}
			hits = append(hits, hit{pos: start, value: value})
		}
	}

	// Rules run one after another, so restore source order before dedup.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	values := make([]string, 0, len(hits))
	seen := make(map[string]bool, len(hits))
	for _, h := range hits {
		if seen[h.value] {
			continue
		}
		seen[h.value] = true
		values = append(values, h.value)
	}
	return values
}

func cleanValue(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), " \t.,;")
}
