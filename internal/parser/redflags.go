package parser

import (
	"fmt"
	"strings"

	"github.com/health-keeper-mcp-server/internal/domain"
)

// Red-flag thresholds.
const (
	CrisisSystolic    = 180
	CrisisDiastolic   = 120
	ElevatedSystolic  = 140
	ElevatedDiastolic = 90
	MaxNewMedications = 3
)

// EmergencyPhrases are complaint phrases that always raise a red flag.
var EmergencyPhrases = []string{"chest pain", "difficulty breathing", "severe"}

// DetectRedFlags returns advisory strings for human review, in order:
// emergency complaint phrases, blood pressure, then prescription count. It
// never blocks processing.
func DetectRedFlags(data *domain.ParsedMedicalData) []string {
	flags := []string{}

	complaints := strings.ToLower(strings.Join(data.ChiefComplaints, "\n"))
	for _, phrase := range EmergencyPhrases {
		if strings.Contains(complaints, phrase) {
			flags = append(flags, fmt.Sprintf("emergency symptom reported: %s", phrase))
		}
	}

	if data.Vitals != nil && data.Vitals.BloodPressure != nil {
		bp := *data.Vitals.BloodPressure
		switch {
		case bp.Systolic > CrisisSystolic || bp.Diastolic > CrisisDiastolic:
			flags = append(flags, fmt.Sprintf("hypertensive crisis: blood pressure %s", bp))
		case bp.Systolic > ElevatedSystolic || bp.Diastolic > ElevatedDiastolic:
			flags = append(flags, fmt.Sprintf("elevated blood pressure: %s", bp))
		}
	}

	if len(data.Medications) > MaxNewMedications {
		flags = append(flags, fmt.Sprintf("multiple new medications prescribed: %d", len(data.Medications)))
	}

	return flags
}
