package parser

import (
	"strings"

	"github.com/health-keeper-mcp-server/internal/domain"
)

// Parser combines field, vitals and prescription extraction with urgency
// classification for one note at a time.
type Parser struct {
	prescriptions *PrescriptionParser
}

// New creates a Parser. Options are passed to the prescription parser.
func New(opts ...PrescriptionOption) *Parser {
	return &Parser{prescriptions: NewPrescriptionParser(opts...)}
}

// Parse builds a fresh ParsedMedicalData from text together with a report of
// what was dropped. Identical text yields identical output for a fixed clock.
func (p *Parser) Parse(text string) (*domain.ParsedMedicalData, *domain.ParseReport) {
	fields := ExtractFields(text)
	rx := p.prescriptions.Parse(fields[FieldPrescription])

	data := &domain.ParsedMedicalData{
		ChiefComplaints: fields[FieldComplaint],
		Investigations:  fields[FieldInvestigations],
		Diagnoses:       fields[FieldDiagnosis],
		Medications:     rx.Medications,
		Notes:           fields[FieldNotes],
		Vitals:          ExtractVitals(text),
	}
	if followUps := fields[FieldFollowUp]; len(followUps) > 0 {
		followUp := followUps[0]
		data.FollowUp = &followUp
	}
	data.Urgency = ClassifyUrgency(urgencyText(data))

	report := &domain.ParseReport{
		FieldMatches:     make(map[string]int, len(fields)),
		DroppedFragments: rx.Dropped,
	}
	for field, values := range fields {
		report.FieldMatches[string(field)] = len(values)
	}

	return data, report
}

// ParsePrescriptionText extracts prescription fragments from text and
// decomposes them. Each non-empty line contributes the values a prescription
// rule captures from it, or the whole line when no rule matches, so a line is
// either parsed or reported as dropped. Lines captured by another field, such
// as "Advice: rest", are skipped.
func (p *Parser) ParsePrescriptionText(text string) PrescriptionResult {
	var fragments []string
	for _, line := range nonEmptyLines(text) {
		if values := ExtractField(line, FieldPrescription); len(values) > 0 {
			fragments = append(fragments, values...)
			continue
		}
		if belongsToOtherField(line) {
			continue
		}
		fragments = append(fragments, line)
	}
	return p.prescriptions.Parse(fragments)
}

func belongsToOtherField(line string) bool {
	for _, field := range Fields {
		if field != FieldPrescription && len(ExtractField(line, field)) > 0 {
			return true
		}
	}
	return false
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = cleanValue(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
