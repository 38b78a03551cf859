package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/health-keeper-mcp-server/internal/domain"
)

// PatientRepository handles medication and visit record persistence
type PatientRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPatientRepository creates a new patient repository
func NewPatientRepository(db *pgxpool.Pool, logger *logrus.Logger) *PatientRepository {
	return &PatientRepository{
		db:  db,
		log: logger,
	}
}

// AddMedication inserts an active medication for a patient. An empty ID is
// replaced with a new UUID.
func (r *PatientRepository) AddMedication(ctx context.Context, patientID string, med *domain.Medication) error {
	if med.ID == "" {
		med.ID = uuid.New().String()
	}

	query := `
		INSERT INTO medications (
			id, patient_id, name, strength, dosage, frequency, start_date, end_date, notes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := r.db.Exec(ctx, query,
		med.ID,
		patientID,
		med.Name,
		med.Strength,
		med.Dosage,
		med.Frequency,
		med.StartDate,
		med.EndDate,
		med.Notes,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_id":    patientID,
			"medication_id": med.ID,
			"error":         err,
		}).Error("Failed to add medication")
		return fmt.Errorf("adding medication: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"patient_id":    patientID,
		"medication_id": med.ID,
		"name":          med.Name,
	}).Debug("Medication added")

	return nil
}

// StopMedication marks a medication inactive with the given end date.
func (r *PatientRepository) StopMedication(ctx context.Context, id string, endDate time.Time) error {
	query := `
		UPDATE medications
		SET active = FALSE, end_date = $2, updated_at = NOW()
		WHERE id = $1 AND active`

	tag, err := r.db.Exec(ctx, query, id, endDate)
	if err != nil {
		return fmt.Errorf("stopping medication: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("medication %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// AddRecord inserts a visit record. An empty ID is replaced with a new UUID.
func (r *PatientRepository) AddRecord(ctx context.Context, rec *domain.MedicalRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.PatientID == "" {
		return domain.NewValidationError("patient_id", "patient ID is required", rec.PatientID)
	}

	query := `
		INSERT INTO medical_records (
			id, patient_id, visit_date, doctor, visit_type, complaint, diagnosis, prescription, notes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.PatientID,
		rec.Date,
		rec.Doctor,
		rec.VisitType,
		rec.Complaint,
		rec.Diagnosis,
		rec.Prescription,
		rec.Notes,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_id": rec.PatientID,
			"record_id":  rec.ID,
			"error":      err,
		}).Error("Failed to add medical record")
		return fmt.Errorf("adding medical record: %w", err)
	}

	return nil
}

// GetRecord retrieves a visit record by ID
func (r *PatientRepository) GetRecord(ctx context.Context, id string) (*domain.MedicalRecord, error) {
	query := `
		SELECT id, patient_id, visit_date, doctor, visit_type, complaint, diagnosis, prescription, notes
		FROM medical_records
		WHERE id = $1`

	rec, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("medical record %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting medical record: %w", err)
	}
	return rec, nil
}

// CurrentMedications returns a patient's active medications in insertion order.
func (r *PatientRepository) CurrentMedications(ctx context.Context, patientID string) ([]domain.Medication, error) {
	query := `
		SELECT id, name, strength, dosage, frequency, start_date, end_date, notes
		FROM medications
		WHERE patient_id = $1 AND active
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("querying medications: %w", err)
	}
	defer rows.Close()

	meds := []domain.Medication{}
	for rows.Next() {
		var med domain.Medication
		if err := rows.Scan(
			&med.ID,
			&med.Name,
			&med.Strength,
			&med.Dosage,
			&med.Frequency,
			&med.StartDate,
			&med.EndDate,
			&med.Notes,
		); err != nil {
			return nil, fmt.Errorf("scanning medication: %w", err)
		}
		meds = append(meds, med)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating medications: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"patient_id":  patientID,
		"medications": len(meds),
	}).Debug("Loaded current medications")

	return meds, nil
}

// RecentRecords returns up to limit visit records, newest first.
func (r *PatientRepository) RecentRecords(ctx context.Context, patientID string, limit int) ([]domain.MedicalRecord, error) {
	query := `
		SELECT id, patient_id, visit_date, doctor, visit_type, complaint, diagnosis, prescription, notes
		FROM medical_records
		WHERE patient_id = $1
		ORDER BY visit_date DESC, id
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying medical records: %w", err)
	}
	defer rows.Close()

	records := []domain.MedicalRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning medical record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating medical records: %w", err)
	}

	return records, nil
}

func scanRecord(row pgx.Row) (*domain.MedicalRecord, error) {
	var rec domain.MedicalRecord
	err := row.Scan(
		&rec.ID,
		&rec.PatientID,
		&rec.Date,
		&rec.Doctor,
		&rec.VisitType,
		&rec.Complaint,
		&rec.Diagnosis,
		&rec.Prescription,
		&rec.Notes,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
