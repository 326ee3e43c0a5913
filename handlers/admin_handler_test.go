package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/ai-gateway/policy"
	"go.uber.org/zap"
)

const adminPolicyDoc = `
tenants:
  acme:
    name: Acme Corp
    tokens:
      - tok-acme-1
    routes:
      chat:
        kind: ai
        provider: openai
        model: gpt-4o-mini
`

const adminPolicyDocTwoTenants = adminPolicyDoc + `
  globex:
    name: Globex
    tokens:
      - tok-globex-1
    routes:
      chat:
        kind: ai
        provider: openai
        model: gpt-4o-mini
`

func newAdminHandler(t *testing.T) (*AdminHandler, *policy.Store, string) {
	t.Helper()
	file := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(file, []byte(adminPolicyDoc), 0o600))

	store := policy.NewStore(zap.NewNop())
	require.NoError(t, store.LoadFile(file))

	return NewAdminHandler(store, file, zap.NewNop()), store, file
}

func TestAdminHandler_Reload(t *testing.T) {
	h, store, file := newAdminHandler(t)

	require.NoError(t, os.WriteFile(file, []byte(adminPolicyDocTwoTenants), 0o600))

	w := httptest.NewRecorder()
	h.ReloadPolicies(w, httptest.NewRequest(http.MethodPost, "/admin/policies/reload", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, store.Snapshot().TenantCount())
}

func TestAdminHandler_ReloadBadFileKeepsSnapshot(t *testing.T) {
	h, store, file := newAdminHandler(t)

	require.NoError(t, os.WriteFile(file, []byte("tenants: ["), 0o600))

	w := httptest.NewRecorder()
	h.ReloadPolicies(w, httptest.NewRequest(http.MethodPost, "/admin/policies/reload", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	// Previous snapshot keeps serving.
	assert.Equal(t, 1, store.Snapshot().TenantCount())
	acme, ok := store.Snapshot().Tenant("acme")
	require.True(t, ok)
	assert.NotNil(t, acme)
}

func TestAdminHandler_Update(t *testing.T) {
	h, store, _ := newAdminHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/admin/policies",
		strings.NewReader(adminPolicyDocTwoTenants))
	w := httptest.NewRecorder()
	h.UpdatePolicies(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, store.Snapshot().TenantCount())
	globex, ok := store.Snapshot().Tenant("globex")
	require.True(t, ok)
	assert.NotNil(t, globex)
}

func TestAdminHandler_UpdateRejectsInvalidDocument(t *testing.T) {
	h, store, _ := newAdminHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/admin/policies",
		strings.NewReader("tenants: {}"))
	w := httptest.NewRecorder()
	h.UpdatePolicies(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, store.Snapshot().TenantCount())
}

func TestHealthHandler(t *testing.T) {
	_, store, _ := newAdminHandler(t)
	h := NewHealthHandler(store)

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"tenants":1`)
}
