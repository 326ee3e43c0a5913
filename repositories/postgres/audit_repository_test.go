package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/ai-gateway/models"
	"go.uber.org/zap"
)

func newMockRepo(t *testing.T) (*AuditRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewAuditRepository(&DB{DB: db, logger: zap.NewNop()}, zap.NewNop())
	return repo.(*AuditRepository), mock
}

func sampleRecord() *models.AuditRecord {
	rec := models.NewAuditRecord("acme", "chat").
		WithRequest("req-1").
		WithDispatch("openai", "gpt-4o-mini").
		WithUsage(42, 2).
		Allow()
	return rec
}

func auditRows(rec *models.AuditRecord) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "request_id", "timestamp", "tenant_id", "route", "decision",
		"reason", "provider", "model", "units_consumed", "redaction_count",
		"upstream_status", "degraded", "latency_ms", "error_message",
	}).AddRow(
		rec.ID, rec.RequestID, rec.Timestamp, rec.TenantID, rec.Route,
		rec.Decision, rec.Reason, rec.Provider, rec.Model, rec.UnitsConsumed,
		rec.RedactionCount, rec.UpstreamStatus, rec.Degraded, rec.LatencyMs,
		rec.ErrorMessage,
	)
}

func TestAuditRepository_Insert(t *testing.T) {
	repo, mock := newMockRepo(t)
	rec := sampleRecord()

	mock.ExpectExec("INSERT INTO audit_records").
		WithArgs(
			rec.ID, rec.RequestID, rec.Timestamp, rec.TenantID, rec.Route,
			rec.Decision, rec.Reason, rec.Provider, rec.Model,
			rec.UnitsConsumed, rec.RedactionCount, rec.UpstreamStatus,
			rec.Degraded, rec.LatencyMs, rec.ErrorMessage,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_InsertError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO audit_records").
		WillReturnError(errors.New("connection reset"))

	err := repo.Insert(context.Background(), sampleRecord())
	assert.ErrorContains(t, err, "failed to insert audit record")
}

func TestAuditRepository_GetByTenant(t *testing.T) {
	repo, mock := newMockRepo(t)
	rec := sampleRecord()

	mock.ExpectQuery(`(?s)SELECT .+ FROM audit_records`).
		WithArgs("acme", 10, 0).
		WillReturnRows(auditRows(rec))

	records, err := repo.GetByTenant(context.Background(), "acme", 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.ID, records[0].ID)
	assert.Equal(t, models.DecisionAllowed, records[0].Decision)
	assert.EqualValues(t, 42, records[0].UnitsConsumed)
	require.NotNil(t, records[0].Provider)
	assert.Equal(t, "openai", *records[0].Provider)
}

func TestAuditRepository_GetByTenantEmpty(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM audit_records`).
		WithArgs("nobody", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	records, err := repo.GetByTenant(context.Background(), "nobody", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAuditRepository_GetByDateRange(t *testing.T) {
	repo, mock := newMockRepo(t)
	rec := sampleRecord()
	start := time.Now().Add(-time.Hour)
	end := time.Now()

	mock.ExpectQuery(`(?s)SELECT .+ FROM audit_records`).
		WithArgs("acme", start, end, 10, 0).
		WillReturnRows(auditRows(rec))

	records, err := repo.GetByDateRange(context.Background(), "acme", start, end, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "req-1", records[0].RequestID)
}

func TestAuditRepository_QueryError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM audit_records`).
		WillReturnError(sql.ErrConnDone)

	_, err := repo.GetByTenant(context.Background(), "acme", 10, 0)
	assert.ErrorContains(t, err, "failed to query audit records")
}
