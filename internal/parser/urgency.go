package parser

import (
	"strings"

	"github.com/health-keeper-mcp-server/internal/domain"
)

// Urgency keyword sets. The two sets are disjoint.
var (
	HighUrgencyKeywords = []string{
		"emergency", "urgent", "chest pain", "severe", "acute",
		"difficulty breathing", "shortness of breath", "unconscious",
		"stroke", "heart attack", "seizure", "bleeding",
	}

	LowUrgencyKeywords = []string{
		"routine", "stable", "resolved", "improving", "improved",
		"mild", "well controlled", "check-up", "checkup",
	}
)

// ClassifyUrgency labels text HIGH if any high keyword occurs in it,
// otherwise LOW if any low keyword occurs, otherwise MEDIUM. Matching is a
// case-insensitive substring test, so "chest pains" counts as "chest pain".
func ClassifyUrgency(text string) domain.Urgency {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, HighUrgencyKeywords):
		return domain.HIGH
	case containsAny(lower, LowUrgencyKeywords):
		return domain.LOW
	default:
		return domain.MEDIUM
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// urgencyText concatenates the fields the classifier looks at.
func urgencyText(data *domain.ParsedMedicalData) string {
	var parts []string
	parts = append(parts, data.ChiefComplaints...)
	parts = append(parts, data.Investigations...)
	parts = append(parts, data.Diagnoses...)
	parts = append(parts, data.Notes...)
	return strings.Join(parts, "\n")
}
