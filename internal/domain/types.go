// Package domain contains the core entities shared by the clinical-text parser,
// the medication reconciliation engine and the service layer around them.
//
// Every entity here is transient: values are rebuilt on each call from the
// caller-supplied medication list and record set.
package domain

import (
	"fmt"
	"time"
)

// Urgency is the coarse priority label applied to a parsed visit.
type Urgency string

const (
	LOW    Urgency = "low"
	MEDIUM Urgency = "medium"
	HIGH   Urgency = "high"
)

// IsValid reports whether u is one of the known urgency levels.
func (u Urgency) IsValid() bool {
	switch u {
	case LOW, MEDIUM, HIGH:
		return true
	default:
		return false
	}
}

// String returns the string representation of Urgency
func (u Urgency) String() string {
	return string(u)
}

// ChangeType classifies how a medication changed between the current list
// and the latest records.
type ChangeType string

const (
	ADDED        ChangeType = "added"
	MODIFIED     ChangeType = "modified"
	DISCONTINUED ChangeType = "discontinued"
	CONTINUED    ChangeType = "continued"
)

// IsValid reports whether c is one of the four change types.
func (c ChangeType) IsValid() bool {
	switch c {
	case ADDED, MODIFIED, DISCONTINUED, CONTINUED:
		return true
	default:
		return false
	}
}

// String returns the string representation of ChangeType
func (c ChangeType) String() string {
	return string(c)
}

// ChangeSource tags where the evidence for a change came from.
type ChangeSource string

const (
	SOURCE_PRESCRIPTION ChangeSource = "prescription"
	SOURCE_RECORD       ChangeSource = "record"
	SOURCE_MANUAL       ChangeSource = "manual"
)

// IsValid reports whether s is a known change source.
func (s ChangeSource) IsValid() bool {
	switch s {
	case SOURCE_PRESCRIPTION, SOURCE_RECORD, SOURCE_MANUAL:
		return true
	default:
		return false
	}
}

// Medication is a single medication entry. Reconciliation identity is the
// normalized name, never ID or strength.
type Medication struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Strength  string     `json:"strength,omitempty"`
	Dosage    string     `json:"dosage"`
	Frequency string     `json:"frequency"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// MedicalRecord is a visit record as supplied by the storage layer.
type MedicalRecord struct {
	ID           string    `json:"id"`
	PatientID    string    `json:"patient_id,omitempty"`
	Date         time.Time `json:"date"`
	Doctor       string    `json:"doctor,omitempty"`
	VisitType    string    `json:"visit_type,omitempty"`
	Complaint    string    `json:"complaint,omitempty"`
	Diagnosis    string    `json:"diagnosis,omitempty"`
	Prescription string    `json:"prescription,omitempty"`
	Notes        string    `json:"notes,omitempty"`
}

// BloodPressure is a systolic/diastolic reading in mmHg.
type BloodPressure struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

// String formats the reading as "systolic/diastolic".
func (bp BloodPressure) String() string {
	return fmt.Sprintf("%d/%d", bp.Systolic, bp.Diastolic)
}

// Measurement is a numeric value with the unit it was written in.
type Measurement struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// String formats the measurement as "value unit".
func (m Measurement) String() string {
	return fmt.Sprintf("%g %s", m.Value, m.Unit)
}

// Vitals holds the numeric vitals found in a note. A nil field was not found.
type Vitals struct {
	BloodPressure *BloodPressure `json:"blood_pressure,omitempty"`
	HeartRate     *int           `json:"heart_rate,omitempty"`
	Temperature   *Measurement   `json:"temperature,omitempty"`
	Weight        *Measurement   `json:"weight,omitempty"`
	Height        *Measurement   `json:"height,omitempty"`
}

// ParsedMedicalData is the structured view of one note. It is built fresh per
// parse call and never mutated afterwards.
type ParsedMedicalData struct {
	ChiefComplaints []string     `json:"chief_complaints"`
	Investigations  []string     `json:"investigations"`
	Diagnoses       []string     `json:"diagnoses"`
	Medications     []Medication `json:"medications"`
	Notes           []string     `json:"notes"`
	Vitals          *Vitals      `json:"vitals,omitempty"`
	FollowUp        *string      `json:"follow_up,omitempty"`
	Urgency         Urgency      `json:"urgency"`
}

// ParseReport records what the parser could not use. An empty report means
// every prescription fragment was decomposed.
type ParseReport struct {
	FieldMatches     map[string]int `json:"field_matches"`
	DroppedFragments []string       `json:"dropped_fragments"`
}

// VisitOverview is a read-only summary derived from a ParsedMedicalData and
// the visit record it came from.
type VisitOverview struct {
	Summary           string             `json:"summary"`
	KeyFindings       []string           `json:"key_findings"`
	Recommendations   []string           `json:"recommendations"`
	MedicationChanges []MedicationChange `json:"medication_changes"`
	FollowUpPlan      string             `json:"follow_up_plan"`
	Urgency           Urgency            `json:"urgency"`
	RedFlags          []string           `json:"red_flags"`
}

// MedicationChange is one entry of a reconciliation. PreviousMedication is set
// only for MODIFIED changes.
type MedicationChange struct {
	Medication         Medication   `json:"medication"`
	ChangeType         ChangeType   `json:"change_type"`
	PreviousMedication *Medication  `json:"previous_medication,omitempty"`
	Reason             string       `json:"reason,omitempty"`
	Source             ChangeSource `json:"source"`
}

// ReconciliationSummary holds per-type counts. TotalChanges always equals
// the sum of the four counts.
type ReconciliationSummary struct {
	TotalChanges int `json:"total_changes"`
	Added        int `json:"added"`
	Modified     int `json:"modified"`
	Discontinued int `json:"discontinued"`
	Continued    int `json:"continued"`
}

// ReconciliationResult is the outcome of diffing current medications against
// the latest records.
type ReconciliationResult struct {
	Changes                 []MedicationChange    `json:"changes"`
	CurrentMedications      []Medication          `json:"current_medications"`
	DiscontinuedMedications []Medication          `json:"discontinued_medications"`
	RequiresAttention       []MedicationChange    `json:"requires_attention"`
	Summary                 ReconciliationSummary `json:"summary"`
	DroppedFragments        []string              `json:"dropped_fragments"`
}

// InteractionReport is advisory output of the interaction checker.
// Contraindications is reserved and currently always empty.
type InteractionReport struct {
	Interactions      []string `json:"interactions"`
	Warnings          []string `json:"warnings"`
	Contraindications []string `json:"contraindications"`
}

// HasFindings reports whether the report carries anything worth showing.
func (r InteractionReport) HasFindings() bool {
	return len(r.Interactions) > 0 || len(r.Warnings) > 0 || len(r.Contraindications) > 0
}
