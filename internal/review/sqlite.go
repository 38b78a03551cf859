package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/health-keeper-mcp-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite review store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const selectColumns = `id, patient_id, medication_name, normalized_name, change_type,
	status, reviewer, notes, created_at, updated_at`

func scanDecision(s scanner) (*Decision, error) {
	d := &Decision{}
	var changeType, status string

	err := s.Scan(
		&d.ID, &d.PatientID, &d.MedicationName, &d.NormalizedName, &changeType,
		&status, &d.Reviewer, &d.Notes, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.ChangeType = domain.ChangeType(changeType)
	d.Status = Status(status)
	return d, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS review_decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id TEXT NOT NULL,
		medication_name TEXT NOT NULL,
		normalized_name TEXT NOT NULL,
		change_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		reviewer TEXT DEFAULT '',
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(patient_id, normalized_name, change_type)
	);

	CREATE INDEX IF NOT EXISTS idx_review_patient ON review_decisions(patient_id);
	CREATE INDEX IF NOT EXISTS idx_review_created_at ON review_decisions(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates a review decision.
func (s *SQLiteStore) Save(ctx context.Context, decision *Decision) error {
	decision.Normalize()
	if err := decision.Validate(); err != nil {
		return err
	}
	now := time.Now()

	var existingID int64
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT id, created_at FROM review_decisions WHERE patient_id = ? AND normalized_name = ? AND change_type = ?",
		decision.PatientID, decision.NormalizedName, string(decision.ChangeType),
	).Scan(&existingID, &createdAt)

	if err == nil {
		decision.ID = existingID
		decision.CreatedAt = createdAt
		decision.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE review_decisions SET
				medication_name = ?,
				status = ?,
				reviewer = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`,
			decision.MedicationName,
			string(decision.Status),
			decision.Reviewer,
			decision.Notes,
			now,
			existingID,
		)
		if err != nil {
			return fmt.Errorf("failed to update: %w", err)
		}
		return nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	decision.CreatedAt = now
	decision.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO review_decisions (
			patient_id, medication_name, normalized_name, change_type,
			status, reviewer, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		decision.PatientID,
		decision.MedicationName,
		decision.NormalizedName,
		string(decision.ChangeType),
		string(decision.Status),
		decision.Reviewer,
		decision.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	decision.ID = id

	return nil
}

// Get retrieves the decision for a patient, medication and change type.
func (s *SQLiteStore) Get(ctx context.Context, patientID, normalizedName string, changeType domain.ChangeType) (*Decision, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM review_decisions
		WHERE patient_id = ? AND normalized_name = ? AND change_type = ?
		LIMIT 1
	`, patientID, normalizedName, string(changeType))

	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return d, nil
}

// GetByID retrieves a decision by ID.
func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (*Decision, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM review_decisions WHERE id = ?", id)

	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("decision %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return d, nil
}

// List returns decisions newest first with pagination.
func (s *SQLiteStore) List(ctx context.Context, patientID string, limit, offset int) ([]*Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM review_decisions
		WHERE (? = '' OR patient_id = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, patientID, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// Count returns the number of decisions, optionally for one patient.
func (s *SQLiteStore) Count(ctx context.Context, patientID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM review_decisions WHERE (? = '' OR patient_id = ?)", patientID, patientID).Scan(&count)
	return count, err
}

// Delete removes a decision by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM review_decisions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("decision %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ExportJSON exports all decisions to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports decisions from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
