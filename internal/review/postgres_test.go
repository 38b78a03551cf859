package review

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-keeper-mcp-server/internal/domain"
)

func setupMockDB(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, mock
}

var decisionColumns = []string{
	"id", "patient_id", "medication_name", "normalized_name", "change_type",
	"status", "reviewer", "notes", "created_at", "updated_at",
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_SaveUpsert(t *testing.T) {
	store, mock := setupMockDB(t)
	created := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO review_decisions (.+) ON CONFLICT \\(patient_id, normalized_name, change_type\\) DO UPDATE").
		WithArgs("p1", "Ibuprofen", "ibuprofen", "added", "approved", "dr.mehta", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, created))

	d := newDecision("p1", "Ibuprofen", domain.ADDED, StatusApproved)
	require.NoError(t, store.Save(context.Background(), d))

	assert.Equal(t, int64(7), d.ID)
	assert.Equal(t, created, d.CreatedAt)
	assert.False(t, d.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRejectsInvalid(t *testing.T) {
	store, mock := setupMockDB(t)

	err := store.Save(context.Background(), newDecision("", "Ibuprofen", domain.ADDED, StatusApproved))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := setupMockDB(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM review_decisions WHERE patient_id = \\$1").
		WithArgs("p1", "warfarin", "discontinued").
		WillReturnRows(sqlmock.NewRows(decisionColumns).
			AddRow(3, "p1", "Warfarin", "warfarin", "discontinued", "rejected", "dr.mehta", "keep taking", now, now))

	got, err := store.Get(context.Background(), "p1", "warfarin", domain.DISCONTINUED)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.DISCONTINUED, got.ChangeType)
	assert.Equal(t, StatusRejected, got.Status)
	assert.Equal(t, "keep taking", got.Notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectQuery("SELECT (.+) FROM review_decisions").
		WillReturnError(sql.ErrNoRows)

	got, err := store.Get(context.Background(), "p1", "warfarin", domain.DISCONTINUED)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgresStore_List(t *testing.T) {
	store, mock := setupMockDB(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM review_decisions WHERE \\(\\$1 = '' OR patient_id = \\$1\\)").
		WithArgs("p1", 20, 0).
		WillReturnRows(sqlmock.NewRows(decisionColumns).
			AddRow(2, "p1", "Ibuprofen", "ibuprofen", "added", "approved", "", "", now, now).
			AddRow(1, "p1", "Warfarin", "warfarin", "discontinued", "pending", "", "", now, now))

	got, err := store.List(context.Background(), "p1", 20, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Ibuprofen", got[0].MedicationName)
	assert.Equal(t, StatusPending, got[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteMissing(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectExec("DELETE FROM review_decisions WHERE id = \\$1").
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Delete(context.Background(), 99)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM review_decisions WHERE \\(\\$1 = '' OR patient_id = \\$1\\)").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	count, err := store.Count(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresStore_Integration runs against a live database.
// Skip test if TEST_DATABASE_URL is not set.
func TestPostgresStore_Integration(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS review_decisions (
			id BIGSERIAL PRIMARY KEY,
			patient_id TEXT NOT NULL,
			medication_name TEXT NOT NULL,
			normalized_name TEXT NOT NULL,
			change_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			reviewer TEXT DEFAULT '',
			notes TEXT DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			CONSTRAINT review_decisions_unique UNIQUE (patient_id, normalized_name, change_type)
		)
	`)
	require.NoError(t, err)
	_, err = db.Exec("DELETE FROM review_decisions")
	require.NoError(t, err)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	first := newDecision("p1", "Ibuprofen", domain.ADDED, StatusPending)
	require.NoError(t, store.Save(ctx, first))
	second := newDecision("p1", "ibuprofen", domain.ADDED, StatusApproved)
	require.NoError(t, store.Save(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	got, err := store.Get(ctx, "p1", "ibuprofen", domain.ADDED)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusApproved, got.Status)

	count, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
