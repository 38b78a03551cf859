package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-keeper-mcp-server/internal/domain"
)

var fixedNow = time.Date(2026, 10, 18, 15, 4, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

const cardiacNote = `Chief complaint: chest pain and sweating
BP: 190/125 mmHg, HR 102 bpm, Temp 99.1 F
Weight: 82 kg
Investigations: ECG, troponin
Diagnosis: suspected angina
Rx: Aspirin 75mg - once daily
- Atorvastatin 40mg at night
Follow-up: 1 week
Notes: patient stable after nitroglycerin`

func TestParse_FullNote(t *testing.T) {
	p := New(WithClock(fixedClock))

	data, report := p.Parse(cardiacNote)
	require.NotNil(t, data)
	require.NotNil(t, report)

	assert.Equal(t, []string{"chest pain and sweating"}, data.ChiefComplaints)
	assert.Equal(t, []string{"ECG, troponin"}, data.Investigations)
	assert.Equal(t, []string{"suspected angina"}, data.Diagnoses)
	assert.Equal(t, []string{"patient stable after nitroglycerin"}, data.Notes)

	require.NotNil(t, data.FollowUp)
	assert.Equal(t, "1 week", *data.FollowUp)

	require.Len(t, data.Medications, 2)
	assert.Equal(t, "Aspirin", data.Medications[0].Name)
	assert.Equal(t, "75mg", data.Medications[0].Strength)
	assert.Equal(t, "once daily", data.Medications[0].Frequency)
	assert.Equal(t, DefaultDosage, data.Medications[0].Dosage)
	assert.Equal(t, "Atorvastatin", data.Medications[1].Name)
	assert.Equal(t, "at night", data.Medications[1].Frequency)

	require.NotNil(t, data.Vitals)
	require.NotNil(t, data.Vitals.BloodPressure)
	assert.Equal(t, domain.BloodPressure{Systolic: 190, Diastolic: 125}, *data.Vitals.BloodPressure)
	require.NotNil(t, data.Vitals.HeartRate)
	assert.Equal(t, 102, *data.Vitals.HeartRate)
	require.NotNil(t, data.Vitals.Temperature)
	assert.Equal(t, domain.Measurement{Value: 99.1, Unit: "F"}, *data.Vitals.Temperature)
	require.NotNil(t, data.Vitals.Weight)
	assert.Equal(t, domain.Measurement{Value: 82, Unit: "kg"}, *data.Vitals.Weight)
	assert.Nil(t, data.Vitals.Height)

	// "chest pain" outranks "stable"
	assert.Equal(t, domain.HIGH, data.Urgency)

	assert.Empty(t, report.DroppedFragments)
	assert.Equal(t, 2, report.FieldMatches[string(FieldPrescription)])
	assert.Equal(t, 1, report.FieldMatches[string(FieldComplaint)])
}

func TestParse_Idempotent(t *testing.T) {
	p := New(WithClock(fixedClock))

	first, firstReport := p.Parse(cardiacNote)
	second, secondReport := p.Parse(cardiacNote)

	assert.Equal(t, first, second)
	assert.Equal(t, firstReport, secondReport)
}

func TestParse_EmptyText(t *testing.T) {
	p := New(WithClock(fixedClock))

	data, report := p.Parse("")

	assert.Empty(t, data.ChiefComplaints)
	assert.Empty(t, data.Investigations)
	assert.Empty(t, data.Diagnoses)
	assert.Empty(t, data.Medications)
	assert.Empty(t, data.Notes)
	assert.Nil(t, data.Vitals)
	assert.Nil(t, data.FollowUp)
	assert.Equal(t, domain.MEDIUM, data.Urgency)
	assert.Empty(t, report.DroppedFragments)
}

func TestParse_ReportsDroppedFragments(t *testing.T) {
	p := New(WithClock(fixedClock))

	data, report := p.Parse("Rx: Lisinopril 10mg daily; 500mg twice daily")

	require.Len(t, data.Medications, 1)
	assert.Equal(t, "Lisinopril", data.Medications[0].Name)
	assert.Equal(t, []string{"500mg twice daily"}, report.DroppedFragments)
}

func TestExtractField_OrderAndDedup(t *testing.T) {
	text := "Complaint: headache\nSymptoms: nausea\nC/O: headache\n"

	got := ExtractField(text, FieldComplaint)

	assert.Equal(t, []string{"headache", "nausea"}, got)
}

func TestExtractField_InlinePatterns(t *testing.T) {
	text := "Patient presents with fever and cough. Advised CBC and chest x-ray. Diagnosed with viral bronchitis. Review after 5 days."

	fields := ExtractFields(text)

	assert.Equal(t, []string{"fever and cough"}, fields[FieldComplaint])
	assert.Equal(t, []string{"CBC and chest x-ray"}, fields[FieldInvestigations])
	assert.Equal(t, []string{"viral bronchitis"}, fields[FieldDiagnosis])
	assert.Equal(t, []string{"5 days"}, fields[FieldFollowUp])
	assert.Empty(t, fields[FieldPrescription])
}

func TestExtractField_LabelDoesNotSpanLines(t *testing.T) {
	text := "Prescription:\n- Metformin 500mg twice daily\n- Glucose 140 mg/dl\n"

	got := ExtractField(text, FieldPrescription)

	assert.Equal(t, []string{"Metformin 500mg twice daily"}, got)
}

func TestExtractVitals(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		expect func(t *testing.T, v *domain.Vitals)
	}{
		{
			name: "no vitals yields nil",
			text: "Patient feels fine. Seen on 12/10 for cough.",
			expect: func(t *testing.T, v *domain.Vitals) {
				assert.Nil(t, v)
			},
		},
		{
			name: "blood pressure by unit",
			text: "Reading 130/85 mmHg today",
			expect: func(t *testing.T, v *domain.Vitals) {
				require.NotNil(t, v)
				require.NotNil(t, v.BloodPressure)
				assert.Equal(t, 130, v.BloodPressure.Systolic)
				assert.Equal(t, 85, v.BloodPressure.Diastolic)
				assert.Nil(t, v.HeartRate)
			},
		},
		{
			name: "heart rate only",
			text: "Pulse 72 bpm, regular",
			expect: func(t *testing.T, v *domain.Vitals) {
				require.NotNil(t, v)
				assert.Nil(t, v.BloodPressure)
				require.NotNil(t, v.HeartRate)
				assert.Equal(t, 72, *v.HeartRate)
			},
		},
		{
			name: "celsius and height",
			text: "Temperature 38.5 °C, height 172 cm",
			expect: func(t *testing.T, v *domain.Vitals) {
				require.NotNil(t, v)
				require.NotNil(t, v.Temperature)
				assert.Equal(t, domain.Measurement{Value: 38.5, Unit: "C"}, *v.Temperature)
				require.NotNil(t, v.Height)
				assert.Equal(t, domain.Measurement{Value: 172, Unit: "cm"}, *v.Height)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.expect(t, ExtractVitals(tt.text))
		})
	}
}

func TestPrescriptionParser_Decompose(t *testing.T) {
	tests := []struct {
		fragment string
		want     domain.Medication
	}{
		{
			fragment: "Lisinopril 10mg - once daily",
			want:     domain.Medication{Name: "Lisinopril", Strength: "10mg", Dosage: "1 tablet", Frequency: "once daily"},
		},
		{
			fragment: "Metformin 500 mg 2 tablets twice daily",
			want:     domain.Medication{Name: "Metformin", Strength: "500mg", Dosage: "2 tablets", Frequency: "twice daily"},
		},
		{
			fragment: "Amoxicillin three times daily",
			want:     domain.Medication{Name: "Amoxicillin", Dosage: "1 tablet", Frequency: "three times daily"},
		},
		{
			fragment: "1. Aspirin 75mg daily",
			want:     domain.Medication{Name: "Aspirin", Strength: "75mg", Dosage: "1 tablet", Frequency: "daily"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			got, ok := decompose(tt.fragment)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrescriptionParser_Parse(t *testing.T) {
	p := NewPrescriptionParser(WithClock(fixedClock))

	result := p.Parse([]string{"Aspirin 75mg; Clopidogrel 75mg", "500mg twice daily", "--"})

	require.Len(t, result.Medications, 2)
	assert.Equal(t, "Aspirin", result.Medications[0].Name)
	assert.Equal(t, "Clopidogrel", result.Medications[1].Name)
	assert.Equal(t, []string{"500mg twice daily", "--"}, result.Dropped)

	wantStart := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	for _, med := range result.Medications {
		assert.NotEmpty(t, med.ID)
		require.NotNil(t, med.StartDate)
		assert.True(t, wantStart.Equal(*med.StartDate))
	}
	assert.NotEqual(t, result.Medications[0].ID, result.Medications[1].ID)
}

func TestPrescriptionParser_RandomIDs(t *testing.T) {
	p := NewPrescriptionParser(WithClock(fixedClock), WithIDFunc(RandomID))

	first := p.Parse([]string{"Aspirin 75mg"})
	second := p.Parse([]string{"Aspirin 75mg"})

	require.Len(t, first.Medications, 1)
	require.Len(t, second.Medications, 1)
	assert.NotEqual(t, first.Medications[0].ID, second.Medications[0].ID)
}

func TestParsePrescriptionText_FallsBackToLines(t *testing.T) {
	p := New(WithClock(fixedClock))

	result := p.ParsePrescriptionText("Paracetamol as needed\nCetirizine at night")

	require.Len(t, result.Medications, 2)
	assert.Equal(t, "Paracetamol", result.Medications[0].Name)
	assert.Equal(t, "as needed", result.Medications[0].Frequency)
	assert.Equal(t, "Cetirizine", result.Medications[1].Name)
}

func TestParsePrescriptionText_MixedLines(t *testing.T) {
	p := New(WithClock(fixedClock))

	result := p.ParsePrescriptionText("Metformin 500mg - twice daily\nAmoxicillin three times daily\nAdvice: plenty of fluids\n500mg at night")

	require.Len(t, result.Medications, 2)
	assert.Equal(t, "Metformin", result.Medications[0].Name)
	assert.Equal(t, "Amoxicillin", result.Medications[1].Name)
	assert.Equal(t, "three times daily", result.Medications[1].Frequency)
	assert.Equal(t, []string{"500mg at night"}, result.Dropped)
}

func TestParse_PluralComplaintIsHighUrgencyAndRedFlag(t *testing.T) {
	p := New(WithClock(fixedClock))

	data, _ := p.Parse("Complaint: chest pains radiating to left arm")

	assert.Equal(t, domain.HIGH, data.Urgency)
	assert.Contains(t, DetectRedFlags(data), "emergency symptom reported: chest pain")
}
