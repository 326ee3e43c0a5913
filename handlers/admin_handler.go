package handlers

import (
	"io"
	"net/http"

	"github.com/upb/ai-gateway/policy"
	"github.com/upb/ai-gateway/utils"
	"go.uber.org/zap"
)

// maxPolicyBody caps uploaded policy documents at 1 MiB.
const maxPolicyBody = 1 << 20

// AdminHandler manages the policy snapshot: reload from disk and direct
// document replacement. It sits behind the deployment's admin network
// boundary; the gateway itself does not authenticate admin calls.
type AdminHandler struct {
	store      *policy.Store
	policyFile string
	logger     *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(store *policy.Store, policyFile string, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{store: store, policyFile: policyFile, logger: logger}
}

// ReloadPolicies handles POST /admin/policies/reload, re-reading the
// policy file and swapping the snapshot. A failed load leaves the
// previous snapshot serving.
func (h *AdminHandler) ReloadPolicies(w http.ResponseWriter, r *http.Request) {
	if err := h.store.LoadFile(h.policyFile); err != nil {
		h.logger.Error("policy reload failed",
			zap.String("file", h.policyFile),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Policy reload failed: "+err.Error(), nil)
		return
	}

	snap := h.store.Snapshot()
	h.logger.Info("policy reloaded",
		zap.String("file", h.policyFile),
		zap.Int("tenants", snap.TenantCount()))

	_ = utils.WriteOK(w, map[string]interface{}{
		"tenants":   snap.TenantCount(),
		"loaded_at": snap.LoadedAt(),
	})
}

// UpdatePolicies handles PUT /admin/policies, replacing the whole
// tenant table with the YAML document in the request body.
func (h *AdminHandler) UpdatePolicies(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxPolicyBody))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Failed to read policy document", nil)
		return
	}

	if err := h.store.Load(data); err != nil {
		h.logger.Warn("policy update rejected", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Policy update rejected: "+err.Error(), nil)
		return
	}

	snap := h.store.Snapshot()
	h.logger.Info("policy updated", zap.Int("tenants", snap.TenantCount()))

	_ = utils.WriteOK(w, map[string]interface{}{
		"tenants":   snap.TenantCount(),
		"loaded_at": snap.LoadedAt(),
	})
}
