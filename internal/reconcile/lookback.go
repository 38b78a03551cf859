package reconcile

import (
	"time"

	"github.com/health-keeper-mcp-server/internal/domain"
	"github.com/health-keeper-mcp-server/internal/parser"
)

// lookback decides whether a current medication that was not re-prescribed
// has stopped or is still being taken.
type lookback struct {
	// evaluable is false when no record falls inside the window.
	evaluable bool
	mentioned map[string]bool
	now       time.Time
}

func newLookback(p *parser.Parser, in Input, window time.Duration) *lookback {
	cutoff := in.Now.Add(-window)
	lb := &lookback{
		mentioned: make(map[string]bool),
		now:       in.Now,
	}

	scan := func(records []domain.MedicalRecord) {
		for _, rec := range records {
			date := rec.Date
			if date.IsZero() {
				date = in.Now
			}
			if date.Before(cutoff) || date.After(in.Now) {
				continue
			}
			lb.evaluable = true
			if rec.Prescription == "" {
				continue
			}
			for _, med := range p.ParsePrescriptionText(rec.Prescription).Medications {
				lb.mentioned[NormalizeName(med.Name)] = true
			}
		}
	}
	scan(in.Records)
	scan(in.History)

	return lb
}

func (lb *lookback) classify(key string, med domain.Medication) domain.MedicationChange {
	switch {
	case !lb.evaluable:
		return domain.MedicationChange{
			Medication: med,
			ChangeType: domain.CONTINUED,
			Reason:     ReasonNotEvaluated,
			Source:     domain.SOURCE_MANUAL,
		}
	case lb.mentioned[key]:
		return domain.MedicationChange{
			Medication: med,
			ChangeType: domain.CONTINUED,
			Reason:     ReasonMaintenance,
			Source:     domain.SOURCE_RECORD,
		}
	default:
		stopped := lb.now
		med.EndDate = &stopped
		return domain.MedicationChange{
			Medication: med,
			ChangeType: domain.DISCONTINUED,
			Reason:     ReasonDiscontinued,
			Source:     domain.SOURCE_RECORD,
		}
	}
}
