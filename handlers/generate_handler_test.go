package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/ai-gateway/middleware"
	"github.com/upb/ai-gateway/models"
	"github.com/upb/ai-gateway/repositories/jsonl"
	"github.com/upb/ai-gateway/services/audit"
	"github.com/upb/ai-gateway/services/counter"
	"github.com/upb/ai-gateway/services/gateway"
	"github.com/upb/ai-gateway/services/guard"
	"github.com/upb/ai-gateway/services/providers"
	"github.com/upb/ai-gateway/services/proxy"
	"github.com/upb/ai-gateway/services/quota"
	"github.com/upb/ai-gateway/services/ratelimit"
	"github.com/upb/ai-gateway/services/redact"
	"github.com/upb/ai-gateway/services/tokenizer"
	"go.uber.org/zap"
)

type echoProvider struct{}

func (echoProvider) Name() string { return "echo" }

func (echoProvider) Generate(_ context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	return &providers.GenerateResponse{Text: "echo: " + req.Prompt, UsageUnits: 7}, nil
}

func newTestGateway(t *testing.T) *gateway.Service {
	t.Helper()
	logger := zap.NewNop()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := counter.NewRedisStore(client)

	repo, err := jsonl.NewAuditRepository(t.TempDir() + "/audit.jsonl")
	require.NoError(t, err)
	auditSvc := audit.NewService(repo, logger, audit.Config{BufferSize: 100, WorkerCount: 1})
	require.NoError(t, auditSvc.Start())
	t.Cleanup(func() { _ = auditSvc.Stop(5 * time.Second) })

	registry := providers.NewRegistry()
	registry.Register(echoProvider{})

	return gateway.NewService(
		ratelimit.NewService(store, ratelimit.FailClosed, logger),
		quota.NewService(store, ratelimit.FailClosed, logger),
		redact.NewService(),
		guard.NewService(guard.DefaultThreshold),
		tokenizer.NewHeuristicEstimator(),
		registry,
		proxy.NewService(5*time.Second, logger),
		auditSvc,
		logger,
	)
}

func handlerTenant() *models.Tenant {
	return &models.Tenant{
		ID:        "acme",
		Name:      "Acme Corp",
		RateLimit: models.RateLimitConfig{Requests: 100, Window: time.Hour},
		Quota:     models.QuotaConfig{Units: 100000, Period: models.PeriodMonthly},
		Routes: map[string]*models.RouteDefinition{
			"chat": {
				Name:     "chat",
				Kind:     models.RouteKindAI,
				Provider: "echo",
				Model:    "test-model",
			},
		},
	}
}

func postGenerate(t *testing.T, h *GenerateHandler, tenant *models.Tenant, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(body))
	if tenant != nil {
		req = req.WithContext(middleware.WithTenant(req.Context(), tenant))
	}
	w := httptest.NewRecorder()
	h.Generate(w, req)
	return w
}

func TestGenerateHandler_Success(t *testing.T) {
	h := NewGenerateHandler(newTestGateway(t), zap.NewNop())

	w := postGenerate(t, h, handlerTenant(), `{"route":"chat","prompt":"hello there"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data gateway.GenerateOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "echo", resp.Data.Provider)
	assert.Equal(t, "test-model", resp.Data.Model)
	assert.Equal(t, "echo: hello there", resp.Data.Text)
	assert.EqualValues(t, 7, resp.Data.UsageUnits)
}

func TestGenerateHandler_MissingTenant(t *testing.T) {
	h := NewGenerateHandler(newTestGateway(t), zap.NewNop())

	w := postGenerate(t, h, nil, `{"route":"chat","prompt":"hello"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGenerateHandler_InvalidJSON(t *testing.T) {
	h := NewGenerateHandler(newTestGateway(t), zap.NewNop())

	w := postGenerate(t, h, handlerTenant(), `{"route":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateHandler_MissingFields(t *testing.T) {
	h := NewGenerateHandler(newTestGateway(t), zap.NewNop())

	w := postGenerate(t, h, handlerTenant(), `{"route":"chat"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Prompt")
}

func TestGenerateHandler_UnknownRoute(t *testing.T) {
	h := NewGenerateHandler(newTestGateway(t), zap.NewNop())

	w := postGenerate(t, h, handlerTenant(), `{"route":"nope","prompt":"hello"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerateHandler_TemperatureOutOfRange(t *testing.T) {
	h := NewGenerateHandler(newTestGateway(t), zap.NewNop())

	body, _ := json.Marshal(map[string]interface{}{
		"route":       "chat",
		"prompt":      "hello",
		"temperature": 5.0,
	})
	w := postGenerate(t, h, handlerTenant(), string(body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
