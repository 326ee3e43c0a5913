package handlers

import (
	"net/http"
	"time"

	"github.com/upb/ai-gateway/policy"
	"github.com/upb/ai-gateway/utils"
)

// HealthResponse is the body for GET /healthz.
type HealthResponse struct {
	Status   string    `json:"status"`
	Tenants  int       `json:"tenants"`
	PolicyAt time.Time `json:"policy_loaded_at"`
}

// HealthHandler reports liveness and the current policy snapshot age.
type HealthHandler struct {
	store *policy.Store
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(store *policy.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// Health handles GET /healthz
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	_ = utils.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Tenants:  snap.TenantCount(),
		PolicyAt: snap.LoadedAt(),
	})
}
