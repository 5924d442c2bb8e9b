package history

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemed-priority-engine/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing()
	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	return store, mock
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	mock.ExpectQuery("INSERT INTO predictions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	rec := sampleRecord("corr-pg-1")
	require.NoError(t, store.Save(context.Background(), rec))
	assert.Equal(t, int64(7), rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "correlation_id", "age", "severity", "rural", "chronic",
		"waiting_time", "priority_score", "reason", "model_id", "created_at",
	}).
		AddRow(int64(2), "corr-b", 70, 9, true, true, 45.0, 92, "HIGH PRIORITY: High severity", "m-1", now).
		AddRow(int64(1), "corr-a", 25, 2, false, false, 5.0, 15, "LOW PRIORITY: Low severity", "m-1", now)

	mock.ExpectQuery("SELECT (.+) FROM predictions").
		WithArgs(10, 0).
		WillReturnRows(rows)

	records, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "corr-b", records[0].CorrelationID)
	assert.Equal(t, 92, records[0].PriorityScore)
	assert.True(t, records[0].Rural)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	mock.ExpectExec("DELETE FROM predictions").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.Delete(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// getTestDB returns a live database connection for integration testing.
// Skip test if TEST_DATABASE_URL is not set.
func getTestDB(t *testing.T) *sql.DB {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS predictions (
			id BIGSERIAL PRIMARY KEY,
			correlation_id TEXT NOT NULL DEFAULT '',
			age INTEGER NOT NULL,
			severity INTEGER NOT NULL,
			rural BOOLEAN NOT NULL DEFAULT FALSE,
			chronic BOOLEAN NOT NULL DEFAULT FALSE,
			waiting_time DOUBLE PRECISION NOT NULL DEFAULT 0,
			priority_score INTEGER NOT NULL,
			reason TEXT NOT NULL,
			model_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	require.NoError(t, err)

	return db
}

func TestPostgresStore_Integration(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	rec := sampleRecord("corr-integration")
	defer store.Delete(ctx, rec.ID)

	require.NoError(t, store.Save(ctx, rec))
	assert.NotZero(t, rec.ID)

	records, err := store.List(ctx, 1, 0)
	require.NoError(t, err)
	require.NotEmpty(t, records)

	found := false
	for _, r := range records {
		if r.CorrelationID == "corr-integration" {
			found = true
			assert.Equal(t, rec.PriorityScore, r.PriorityScore)

			fv := r.FeaturesOf()
			assert.Equal(t, domain.FeatureVector{Age: 70, Severity: 9, Rural: true, Chronic: true, WaitingTime: 45}, fv)
		}
	}
	assert.True(t, found)
}
