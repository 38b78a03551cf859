package parser

import (
	"fmt"
	"strings"

	"github.com/health-keeper-mcp-server/internal/domain"
)

const noFollowUp = "No follow-up scheduled; return if symptoms persist or worsen"

// BuildOverview derives a read-only VisitOverview from parsed data and the
// visit record the text came from. It is recomputed on every call.
func BuildOverview(data *domain.ParsedMedicalData, record domain.MedicalRecord) *domain.VisitOverview {
	redFlags := DetectRedFlags(data)

	overview := &domain.VisitOverview{
		Summary:           overviewSummary(data, record),
		KeyFindings:       keyFindings(data),
		Recommendations:   recommendations(data, redFlags),
		MedicationChanges: make([]domain.MedicationChange, 0, len(data.Medications)),
		FollowUpPlan:      noFollowUp,
		Urgency:           data.Urgency,
		RedFlags:          redFlags,
	}

	if data.FollowUp != nil {
		overview.FollowUpPlan = *data.FollowUp
	}

	for _, med := range data.Medications {
		overview.MedicationChanges = append(overview.MedicationChanges, domain.MedicationChange{
			Medication: med,
			ChangeType: domain.ADDED,
			Reason:     "prescribed during visit",
			Source:     domain.SOURCE_PRESCRIPTION,
		})
	}

	return overview
}

func overviewSummary(data *domain.ParsedMedicalData, record domain.MedicalRecord) string {
	var b strings.Builder

	b.WriteString("Visit")
	if !record.Date.IsZero() {
		b.WriteString(" on " + record.Date.Format("2006-01-02"))
	}
	if record.Doctor != "" {
		b.WriteString(" with " + record.Doctor)
	}
	if len(data.ChiefComplaints) > 0 {
		b.WriteString(" for " + strings.Join(data.ChiefComplaints, ", "))
	}
	b.WriteString(".")

	if len(data.Diagnoses) > 0 {
		b.WriteString(" Diagnosis: " + strings.Join(data.Diagnoses, "; ") + ".")
	}

	switch n := len(data.Medications); n {
	case 0:
	case 1:
		b.WriteString(" 1 medication prescribed.")
	default:
		fmt.Fprintf(&b, " %d medications prescribed.", n)
	}

	fmt.Fprintf(&b, " Urgency: %s.", data.Urgency)
	return b.String()
}

func keyFindings(data *domain.ParsedMedicalData) []string {
	findings := []string{}
	for _, d := range data.Diagnoses {
		findings = append(findings, "Diagnosis: "+d)
	}

	if v := data.Vitals; v != nil {
		if v.BloodPressure != nil {
			findings = append(findings, "Blood pressure: "+v.BloodPressure.String()+" mmHg")
		}
		if v.HeartRate != nil {
			findings = append(findings, fmt.Sprintf("Heart rate: %d bpm", *v.HeartRate))
		}
		if v.Temperature != nil {
			findings = append(findings, "Temperature: "+v.Temperature.String())
		}
		if v.Weight != nil {
			findings = append(findings, "Weight: "+v.Weight.String())
		}
		if v.Height != nil {
			findings = append(findings, "Height: "+v.Height.String())
		}
	}

	for _, inv := range data.Investigations {
		findings = append(findings, "Investigation: "+inv)
	}
	return findings
}

func recommendations(data *domain.ParsedMedicalData, redFlags []string) []string {
	recs := []string{}

	if data.Urgency == domain.HIGH || len(redFlags) > 0 {
		recs = append(recs, "Review flagged findings with a clinician promptly")
	}
	if len(data.Medications) > 0 {
		recs = append(recs, "Take medications as prescribed and update the medication list")
	}
	if len(data.Investigations) > 0 {
		recs = append(recs, "Complete ordered investigations: "+strings.Join(data.Investigations, ", "))
	}
	if data.FollowUp != nil {
		recs = append(recs, "Attend follow-up: "+*data.FollowUp)
	}
	return recs
}
