// Package repositories defines the persistence contracts the gateway
// core depends on. The audit trail is the only durable state the core
// owns; limit counters live in the shared counter store.
package repositories

import (
	"context"
	"time"

	"github.com/upb/ai-gateway/models"
)

// AuditRepository is the durable, append-only sink for audit records.
type AuditRepository interface {
	// Insert appends one record. Called once per request by the audit
	// workers; must be safe for concurrent use.
	Insert(ctx context.Context, record *models.AuditRecord) error

	// GetByTenant returns a tenant's records, newest first.
	GetByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*models.AuditRecord, error)

	// GetByDateRange returns a tenant's records within [start, end].
	GetByDateRange(ctx context.Context, tenantID string, start, end time.Time, limit, offset int) ([]*models.AuditRecord, error)
}
