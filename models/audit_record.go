package models

import (
	"time"

	"github.com/google/uuid"
)

// Decision is the admission outcome recorded for a request.
type Decision string

const (
	DecisionAllowed Decision = "allowed"
	DecisionDenied  Decision = "denied"
)

// AuditRecord is the append-only trail entry written exactly once per
// request that reached enforcement, whether it was dispatched, denied, or
// failed at the upstream.
type AuditRecord struct {
	ID             uuid.UUID `json:"id" db:"id"`
	RequestID      string    `json:"request_id" db:"request_id"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
	TenantID       string    `json:"tenant_id" db:"tenant_id"`
	Route          string    `json:"route" db:"route"`
	Decision       Decision  `json:"decision" db:"decision"`
	Reason         string    `json:"reason,omitempty" db:"reason"`
	Provider       *string   `json:"provider,omitempty" db:"provider"`
	Model          *string   `json:"model,omitempty" db:"model"`
	UnitsConsumed  int64     `json:"units_consumed" db:"units_consumed"`
	RedactionCount int       `json:"redaction_count" db:"redaction_count"`
	UpstreamStatus *int      `json:"upstream_status,omitempty" db:"upstream_status"`
	Degraded       bool      `json:"degraded" db:"degraded"`
	LatencyMs      int       `json:"latency_ms" db:"latency_ms"`
	ErrorMessage   *string   `json:"error_message,omitempty" db:"error_message"`
}

// TableName returns the table name for the AuditRecord model.
func (AuditRecord) TableName() string {
	return "audit_records"
}

// NewAuditRecord creates a record for a tenant/route pair.
func NewAuditRecord(tenantID, route string) *AuditRecord {
	return &AuditRecord{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		TenantID:  tenantID,
		Route:     route,
	}
}

// Allow marks the record as allowed.
func (a *AuditRecord) Allow() *AuditRecord {
	a.Decision = DecisionAllowed
	return a
}

// Deny marks the record as denied with a machine-readable reason.
func (a *AuditRecord) Deny(reason string) *AuditRecord {
	a.Decision = DecisionDenied
	a.Reason = reason
	return a
}

// WithRequest attaches the request ID.
func (a *AuditRecord) WithRequest(requestID string) *AuditRecord {
	a.RequestID = requestID
	return a
}

// WithDispatch attaches provider and model metadata for AI routes.
func (a *AuditRecord) WithDispatch(provider, model string) *AuditRecord {
	a.Provider = &provider
	a.Model = &model
	return a
}

// WithUsage records consumed units and how many redactions were applied.
func (a *AuditRecord) WithUsage(units int64, redactions int) *AuditRecord {
	a.UnitsConsumed = units
	a.RedactionCount = redactions
	return a
}

// WithUpstreamStatus records the status returned by a proxied upstream.
func (a *AuditRecord) WithUpstreamStatus(status int) *AuditRecord {
	a.UpstreamStatus = &status
	return a
}

// WithError records a dispatch-stage failure message.
func (a *AuditRecord) WithError(msg string) *AuditRecord {
	a.ErrorMessage = &msg
	return a
}

// MarkDegraded flags that the counter store was unreachable and the
// decision came from the configured fail-open/fail-closed policy.
func (a *AuditRecord) MarkDegraded() *AuditRecord {
	a.Degraded = true
	return a
}
