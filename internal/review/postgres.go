package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/health-keeper-mcp-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL review store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL review store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores or updates a review decision.
func (s *PostgresStore) Save(ctx context.Context, decision *Decision) error {
	decision.Normalize()
	if err := decision.Validate(); err != nil {
		return err
	}
	now := time.Now()

	query := `
		INSERT INTO review_decisions (
			patient_id, medication_name, normalized_name, change_type,
			status, reviewer, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (patient_id, normalized_name, change_type) DO UPDATE SET
			medication_name = EXCLUDED.medication_name,
			status = EXCLUDED.status,
			reviewer = EXCLUDED.reviewer,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		decision.PatientID,
		decision.MedicationName,
		decision.NormalizedName,
		string(decision.ChangeType),
		string(decision.Status),
		decision.Reviewer,
		decision.Notes,
		now,
		now,
	).Scan(&decision.ID, &decision.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save decision: %w", err)
	}

	decision.UpdatedAt = now
	return nil
}

// Get retrieves the decision for a patient, medication and change type.
func (s *PostgresStore) Get(ctx context.Context, patientID, normalizedName string, changeType domain.ChangeType) (*Decision, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM review_decisions
		WHERE patient_id = $1 AND normalized_name = $2 AND change_type = $3
		LIMIT 1
	`

	d, err := scanDecision(s.db.QueryRowContext(ctx, query, patientID, normalizedName, string(changeType)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}
	return d, nil
}

// GetByID retrieves a decision by ID.
func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*Decision, error) {
	d, err := scanDecision(s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM review_decisions WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("decision %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}
	return d, nil
}

// List returns decisions newest first with pagination.
func (s *PostgresStore) List(ctx context.Context, patientID string, limit, offset int) ([]*Decision, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM review_decisions
		WHERE ($1 = '' OR patient_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
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
func (s *PostgresStore) Count(ctx context.Context, patientID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM review_decisions WHERE ($1 = '' OR patient_id = $1)", patientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count decisions: %w", err)
	}
	return count, nil
}

// Delete removes a decision by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM review_decisions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete decision: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("decision %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ExportJSON exports all decisions to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports decisions from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
