package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/ai-gateway/models"
	"github.com/upb/ai-gateway/repositories"
	"go.uber.org/zap"
)

const auditColumns = `id, request_id, timestamp, tenant_id, route, decision, reason,
	provider, model, units_consumed, redaction_count, upstream_status,
	degraded, latency_ms, error_message`

// AuditRepository implements repositories.AuditRepository on PostgreSQL.
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert appends a new audit record
func (r *AuditRepository) Insert(ctx context.Context, record *models.AuditRecord) error {
	query := `
		INSERT INTO audit_records (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.RequestID,
		record.Timestamp,
		record.TenantID,
		record.Route,
		record.Decision,
		record.Reason,
		record.Provider,
		record.Model,
		record.UnitsConsumed,
		record.RedactionCount,
		record.UpstreamStatus,
		record.Degraded,
		record.LatencyMs,
		record.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	r.logger.Debug("audit record inserted",
		zap.String("id", record.ID.String()),
		zap.String("tenant_id", record.TenantID),
		zap.String("decision", string(record.Decision)))
	return nil
}

// GetByTenant retrieves a tenant's audit records with pagination
func (r *AuditRepository) GetByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*models.AuditRecord, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_records
		WHERE tenant_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`

	return r.queryRecords(ctx, query, tenantID, limit, offset)
}

// GetByDateRange retrieves audit records within a date range
func (r *AuditRepository) GetByDateRange(ctx context.Context, tenantID string, start, end time.Time, limit, offset int) ([]*models.AuditRecord, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_records
		WHERE tenant_id = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp DESC
		LIMIT $4 OFFSET $5
	`

	return r.queryRecords(ctx, query, tenantID, start, end, limit, offset)
}

// queryRecords is a helper method to query multiple audit records
func (r *AuditRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*models.AuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []*models.AuditRecord
	for rows.Next() {
		record := &models.AuditRecord{}
		err := rows.Scan(
			&record.ID,
			&record.RequestID,
			&record.Timestamp,
			&record.TenantID,
			&record.Route,
			&record.Decision,
			&record.Reason,
			&record.Provider,
			&record.Model,
			&record.UnitsConsumed,
			&record.RedactionCount,
			&record.UpstreamStatus,
			&record.Degraded,
			&record.LatencyMs,
			&record.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit record rows: %w", err)
	}

	return records, nil
}
