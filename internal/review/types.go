// Package review stores human decisions on medication changes that a
// reconciliation flagged for attention.
package review

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/health-keeper-mcp-server/internal/domain"
	"github.com/health-keeper-mcp-server/internal/reconcile"
)

// Status is the outcome of a review.
type Status string

const (
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPending  Status = "pending"
)

// IsValid checks if the status is one of the known values
func (s Status) IsValid() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusPending:
		return true
	}
	return false
}

// Decision is a reviewer's verdict on one flagged medication change.
type Decision struct {
	ID             int64             `json:"id,omitempty"`
	PatientID      string            `json:"patient_id"`
	MedicationName string            `json:"medication_name"`
	NormalizedName string            `json:"normalized_name"`
	ChangeType     domain.ChangeType `json:"change_type"`
	Status         Status            `json:"status"`
	Reviewer       string            `json:"reviewer,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Normalize fills NormalizedName from MedicationName and defaults an empty
// status to pending.
func (d *Decision) Normalize() {
	d.NormalizedName = reconcile.NormalizeName(d.MedicationName)
	if d.Status == "" {
		d.Status = StatusPending
	}
}

// Validate checks the fields required to store a decision
func (d *Decision) Validate() error {
	if d.PatientID == "" {
		return domain.NewValidationError("patient_id", "patient ID is required", d.PatientID)
	}
	if d.NormalizedName == "" {
		return domain.NewValidationError("medication_name", "medication name is required", d.MedicationName)
	}
	if !d.ChangeType.IsValid() {
		return domain.NewValidationError("change_type", "unknown change type", d.ChangeType)
	}
	if !d.Status.IsValid() {
		return domain.NewValidationError("status", fmt.Sprintf("must be %s, %s or %s", StatusApproved, StatusRejected, StatusPending), d.Status)
	}
	return nil
}

// Store defines the interface for review decision storage.
type Store interface {
	// Save stores or updates a decision. A decision for the same patient,
	// medication and change type is updated in place.
	Save(ctx context.Context, decision *Decision) error

	// Get returns the decision for a patient, medication and change type, or
	// nil when none exists.
	Get(ctx context.Context, patientID, normalizedName string, changeType domain.ChangeType) (*Decision, error)

	// GetByID returns a decision by ID or an error wrapping domain.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*Decision, error)

	// List returns decisions newest first. An empty patientID lists all patients.
	List(ctx context.Context, patientID string, limit, offset int) ([]*Decision, error)

	// Count returns the number of decisions. An empty patientID counts all
	// patients.
	Count(ctx context.Context, patientID string) (int64, error)

	// Delete removes a decision by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON writes all decisions to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON reads decisions from reader. Existing decisions are skipped.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	Close() error
}

// Export is the JSON export format.
type Export struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exported_at"`
	Count      int         `json:"count"`
	Decisions  []*Decision `json:"decisions"`
}

// Pending returns the changes that still lack an approved or rejected
// decision for patientID.
func Pending(ctx context.Context, store Store, patientID string, changes []domain.MedicationChange) ([]domain.MedicationChange, error) {
	out := []domain.MedicationChange{}
	for _, c := range changes {
		d, err := store.Get(ctx, patientID, reconcile.NormalizeName(c.Medication.Name), c.ChangeType)
		if err != nil {
			return nil, fmt.Errorf("failed to look up decision: %w", err)
		}
		if d == nil || d.Status == StatusPending {
			out = append(out, c)
		}
	}
	return out, nil
}
