package middleware

import (
	"net/http"

	"github.com/upb/ai-gateway/models"
	"github.com/upb/ai-gateway/policy"
	"github.com/upb/ai-gateway/services/audit"
	"github.com/upb/ai-gateway/utils"
	"go.uber.org/zap"
)

// TenantAuth resolves the Authorization credential to a tenant before
// any enforcement runs. It resolves against one policy snapshot taken
// at entry, so a concurrent reload cannot change which tenant the
// request is served as. Unresolvable credentials are denied and
// audited like every other enforcement outcome.
type TenantAuth struct {
	store    *policy.Store
	resolver *policy.Resolver
	audit    *audit.Service
	logger   *zap.Logger
}

// NewTenantAuth creates the tenant resolution middleware.
func NewTenantAuth(store *policy.Store, resolver *policy.Resolver, auditSvc *audit.Service, logger *zap.Logger) *TenantAuth {
	return &TenantAuth{
		store:    store,
		resolver: resolver,
		audit:    auditSvc,
		logger:   logger,
	}
}

// Require rejects requests whose credential does not resolve to a
// tenant in the current policy snapshot.
func (m *TenantAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		snap := m.store.Snapshot()
		tenant, err := m.resolver.Resolve(snap, r.Header.Get("Authorization"))
		if err != nil {
			m.logger.Warn("tenant resolution failed",
				zap.String("request_id", requestID),
				zap.Error(err))

			// The credential resolved to no tenant, so the record
			// carries an empty tenant id and the requested path.
			rec := models.NewAuditRecord("", r.URL.Path).
				WithRequest(requestID).
				Deny("unauthorized")
			if recErr := m.audit.Record(rec); recErr != nil {
				m.logger.Error("failed to queue audit record",
					zap.String("request_id", requestID),
					zap.Error(recErr))
			}

			_ = utils.WriteUnauthorized(w, "Missing or invalid credential")
			return
		}

		m.logger.Debug("tenant resolved",
			zap.String("request_id", requestID),
			zap.String("tenant_id", tenant.ID))

		next.ServeHTTP(w, r.WithContext(WithTenant(ctx, tenant)))
	})
}
