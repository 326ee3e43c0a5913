package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/ai-gateway/middleware"
	"github.com/upb/ai-gateway/models"
	"go.uber.org/zap"
)

func proxyTenant(upstream string) *models.Tenant {
	return &models.Tenant{
		ID:        "acme",
		Name:      "Acme Corp",
		RateLimit: models.RateLimitConfig{Requests: 100, Window: time.Hour},
		Quota:     models.QuotaConfig{Units: 100000, Period: models.PeriodMonthly},
		Routes: map[string]*models.RouteDefinition{
			"billing": {
				Name:           "billing",
				Kind:           models.RouteKindProxy,
				Upstream:       upstream,
				AllowedMethods: []string{"GET", "POST"},
			},
			"chat": {
				Name:           "chat",
				Kind:           models.RouteKindAI,
				Provider:       "echo",
				Model:          "test-model",
				AllowedMethods: []string{"POST"},
			},
		},
	}
}

func newProxyRouter(t *testing.T, tenant *models.Tenant) http.Handler {
	t.Helper()
	h := NewProxyHandler(newTestGateway(t), zap.NewNop())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if tenant != nil {
				req = req.WithContext(middleware.WithTenant(req.Context(), tenant))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.HandleFunc("/v1/route/{name}", h.Forward)
	r.HandleFunc("/v1/route/{name}/*", h.Forward)
	r.Post("/v1/proxy", h.Raw)
	return r
}

func TestProxyHandler_Forward(t *testing.T) {
	var gotPath, gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"queued":true}`))
	}))
	defer upstream.Close()

	router := newProxyRouter(t, proxyTenant(upstream.URL))

	req := httptest.NewRequest(http.MethodPost, "/v1/route/billing/invoices/42?dry=1", strings.NewReader(`{"amount":10}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, `{"queued":true}`, w.Body.String())
	assert.Equal(t, "/invoices/42", gotPath)
	assert.Equal(t, `{"amount":10}`, gotBody)
}

func TestProxyHandler_UpstreamErrorPassesThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	defer upstream.Close()

	router := newProxyRouter(t, proxyTenant(upstream.URL))

	req := httptest.NewRequest(http.MethodGet, "/v1/route/billing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestProxyHandler_MethodNotAllowed(t *testing.T) {
	router := newProxyRouter(t, proxyTenant("http://unused.invalid"))

	req := httptest.NewRequest(http.MethodDelete, "/v1/route/billing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestProxyHandler_UnknownRoute(t *testing.T) {
	router := newProxyRouter(t, proxyTenant("http://unused.invalid"))

	req := httptest.NewRequest(http.MethodGet, "/v1/route/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProxyHandler_MissingTenant(t *testing.T) {
	router := newProxyRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/route/billing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProxyHandler_AIRouteGeneratesOnNamedURL(t *testing.T) {
	router := newProxyRouter(t, proxyTenant("http://unused.invalid"))

	req := httptest.NewRequest(http.MethodPost, "/v1/route/chat", strings.NewReader(`{"prompt":"hi there"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"echo: hi there"`)
	assert.Contains(t, w.Body.String(), `"provider":"echo"`)
}

func TestProxyHandler_AIRouteRejectsBadJSON(t *testing.T) {
	router := newProxyRouter(t, proxyTenant("http://unused.invalid"))

	req := httptest.NewRequest(http.MethodPost, "/v1/route/chat", strings.NewReader(`not json`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProxyHandler_AIRouteMethodNotAllowed(t *testing.T) {
	router := newProxyRouter(t, proxyTenant("http://unused.invalid"))

	req := httptest.NewRequest(http.MethodGet, "/v1/route/chat", strings.NewReader(`{"prompt":"hi"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestProxyHandler_RawProxyForwards(t *testing.T) {
	var gotAuth, gotCustom string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCustom = r.Header.Get("X-Custom")
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`created`))
	}))
	defer upstream.Close()

	router := newProxyRouter(t, proxyTenant("http://unused.invalid"))

	body := `{"method":"POST","url":"` + upstream.URL + `/hooks",` +
		`"headers":{"Authorization":"Bearer tok-1","X-Custom":"kept"},"body":"ping"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/proxy", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status_code":201`)
	assert.Contains(t, w.Body.String(), `"body":"created"`)
	assert.Contains(t, w.Body.String(), `"X-Upstream":"yes"`)

	// The tenant credential never reaches the target.
	assert.Empty(t, gotAuth)
	assert.Equal(t, "kept", gotCustom)
}

func TestProxyHandler_RawProxyRequiresURL(t *testing.T) {
	router := newProxyRouter(t, proxyTenant("http://unused.invalid"))

	req := httptest.NewRequest(http.MethodPost, "/v1/proxy", strings.NewReader(`{"method":"GET"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProxyHandler_UnreachableUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close()

	router := newProxyRouter(t, proxyTenant(upstream.URL))

	req := httptest.NewRequest(http.MethodGet, "/v1/route/billing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}
