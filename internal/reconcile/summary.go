package reconcile

import (
	"fmt"
	"strings"

	"github.com/health-keeper-mcp-server/internal/domain"
)

// RequiresAttention selects the changes a human should review: every added,
// every discontinued, and every modified entry whose strength, dosage or
// frequency differs from its previous version. The engine only produces
// MODIFIED when such a difference exists, so today every modified entry is
// selected.
func RequiresAttention(changes []domain.MedicationChange) []domain.MedicationChange {
	selected := []domain.MedicationChange{}
	for _, c := range changes {
		switch c.ChangeType {
		case domain.ADDED, domain.DISCONTINUED:
			selected = append(selected, c)
		case domain.MODIFIED:
			if c.PreviousMedication == nil || differs(*c.PreviousMedication, c.Medication) {
				selected = append(selected, c)
			}
		}
	}
	return selected
}

type countPhrase struct {
	count            int
	singular, plural string
}

// GenerateSummary renders the result's counts as one sentence. Clauses appear
// only for non-zero counts, always in the order added, modified, discontinued,
// continued.
func GenerateSummary(result *domain.ReconciliationResult) string {
	s := result.Summary
	phrases := []countPhrase{
		{s.Added, "new medication", "new medications"},
		{s.Modified, "modified medication", "modified medications"},
		{s.Discontinued, "discontinued medication", "discontinued medications"},
		{s.Continued, "continued medication", "continued medications"},
	}

	var clauses []string
	for _, p := range phrases {
		if p.count == 0 {
			continue
		}
		clauses = append(clauses, pluralize(p.count, p.singular, p.plural))
	}

	if len(clauses) == 0 {
		return "No medication changes found."
	}

	sentence := "Medication reconciliation found " + joinClauses(clauses) + "."
	if n := len(result.RequiresAttention); n > 0 {
		if n == 1 {
			sentence += " 1 change requires attention."
		} else {
			sentence += fmt.Sprintf(" %d changes require attention.", n)
		}
	}
	return sentence
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}

func joinClauses(clauses []string) string {
	if len(clauses) == 1 {
		return clauses[0]
	}
	return strings.Join(clauses[:len(clauses)-1], ", ") + " and " + clauses[len(clauses)-1]
}
