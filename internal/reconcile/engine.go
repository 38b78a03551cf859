// Package reconcile diffs a patient's current medication list against the
// medications prescribed in recent visit records and classifies every drug as
// added, modified, discontinued or continued.
package reconcile

import (
	"time"

	"github.com/health-keeper-mcp-server/internal/domain"
	"github.com/health-keeper-mcp-server/internal/parser"
)

// DefaultLookback is the window searched for a re-mention of a medication
// before it is declared discontinued.
const DefaultLookback = 90 * 24 * time.Hour

// Change reasons.
const (
	ReasonAdded        = "new prescription from recent visit"
	ReasonModified     = "dosage or frequency adjusted"
	ReasonContinued    = "medication continued as prescribed"
	ReasonMaintenance  = "maintenance medication"
	ReasonDiscontinued = "not mentioned in any record within the lookback window"
	ReasonNotEvaluated = "no recent records to evaluate"
)

// Input is everything a reconciliation looks at. Records is the latest record
// set and the only source of new prescriptions. History holds older records
// that are consulted by the lookback rule only. A record with a zero Date is
// treated as dated at Now.
type Input struct {
	Current []domain.Medication
	Records []domain.MedicalRecord
	History []domain.MedicalRecord
	Now     time.Time
}

// Engine reconciles medication lists. It holds configuration only and is safe
// for concurrent use.
type Engine struct {
	lookback time.Duration
}

// Option configures an Engine
type Option func(*Engine)

// WithLookback overrides the lookback window. Non-positive values are ignored.
func WithLookback(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lookback = d
		}
	}
}

// NewEngine creates a reconciliation engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{lookback: DefaultLookback}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Lookback returns the configured lookback window.
func (e *Engine) Lookback() time.Duration {
	return e.lookback
}

// keyedMeds is a map that remembers first-insertion order. A later entry with
// the same key replaces the value but keeps the original position.
type keyedMeds struct {
	order []string
	byKey map[string]domain.Medication
}

func newKeyedMeds(meds []domain.Medication) *keyedMeds {
	k := &keyedMeds{byKey: make(map[string]domain.Medication, len(meds))}
	for _, med := range meds {
		key := NormalizeName(med.Name)
		if _, ok := k.byKey[key]; !ok {
			k.order = append(k.order, key)
		}
		k.byKey[key] = med
	}
	return k
}

// Reconcile is a pure function of in: the same input always yields the same
// result and in is never modified.
func (e *Engine) Reconcile(in Input) *domain.ReconciliationResult {
	p := parser.New(parser.WithClock(func() time.Time { return in.Now }))

	var newMeds []domain.Medication
	dropped := []string{}
	for _, rec := range in.Records {
		if rec.Prescription == "" {
			continue
		}
		rx := p.ParsePrescriptionText(rec.Prescription)
		newMeds = append(newMeds, rx.Medications...)
		dropped = append(dropped, rx.Dropped...)
	}

	current := newKeyedMeds(in.Current)
	prescribed := newKeyedMeds(newMeds)

	changes := make([]domain.MedicationChange, 0, len(current.order)+len(prescribed.order))

	for _, key := range prescribed.order {
		med := prescribed.byKey[key]
		prev, ok := current.byKey[key]

		switch {
		case !ok:
			changes = append(changes, domain.MedicationChange{
				Medication: med,
				ChangeType: domain.ADDED,
				Reason:     ReasonAdded,
				Source:     domain.SOURCE_PRESCRIPTION,
			})
		case differs(prev, med):
			if prev.ID != "" {
				med.ID = prev.ID
			}
			previous := prev
			changes = append(changes, domain.MedicationChange{
				Medication:         med,
				ChangeType:         domain.MODIFIED,
				PreviousMedication: &previous,
				Reason:             ReasonModified,
				Source:             domain.SOURCE_PRESCRIPTION,
			})
		default:
			changes = append(changes, domain.MedicationChange{
				Medication: prev,
				ChangeType: domain.CONTINUED,
				Reason:     ReasonContinued,
				Source:     domain.SOURCE_PRESCRIPTION,
			})
		}
	}

	var lb *lookback
	for _, key := range current.order {
		if _, ok := prescribed.byKey[key]; ok {
			continue
		}
		if lb == nil {
			lb = newLookback(p, in, e.lookback)
		}
		changes = append(changes, lb.classify(key, current.byKey[key]))
	}

	return assemble(changes, dropped)
}

// assemble partitions changes and computes the derived lists and counts.
func assemble(changes []domain.MedicationChange, dropped []string) *domain.ReconciliationResult {
	result := &domain.ReconciliationResult{
		Changes:                 changes,
		CurrentMedications:      []domain.Medication{},
		DiscontinuedMedications: []domain.Medication{},
		RequiresAttention:       RequiresAttention(changes),
		Summary:                 Summarize(changes),
		DroppedFragments:        dropped,
	}

	for _, c := range changes {
		if c.ChangeType == domain.DISCONTINUED {
			result.DiscontinuedMedications = append(result.DiscontinuedMedications, c.Medication)
		} else {
			result.CurrentMedications = append(result.CurrentMedications, c.Medication)
		}
	}
	return result
}

// Summarize counts changes per type.
func Summarize(changes []domain.MedicationChange) domain.ReconciliationSummary {
	var s domain.ReconciliationSummary
	for _, c := range changes {
		switch c.ChangeType {
		case domain.ADDED:
			s.Added++
		case domain.MODIFIED:
			s.Modified++
		case domain.DISCONTINUED:
			s.Discontinued++
		case domain.CONTINUED:
			s.Continued++
		}
	}
	s.TotalChanges = s.Added + s.Modified + s.Discontinued + s.Continued
	return s
}

// differs reports whether strength, dosage or frequency changed.
func differs(a, b domain.Medication) bool {
	return normalizeField(a.Strength) != normalizeField(b.Strength) ||
		normalizeField(a.Dosage) != normalizeField(b.Dosage) ||
		normalizeField(a.Frequency) != normalizeField(b.Frequency)
}
