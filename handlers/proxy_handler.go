package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/ai-gateway/middleware"
	"github.com/upb/ai-gateway/models"
	"github.com/upb/ai-gateway/services/gateway"
	"github.com/upb/ai-gateway/utils"
	"go.uber.org/zap"
)

// maxProxyBody caps buffered request bodies at 10 MiB.
const maxProxyBody = 10 << 20

// ProxyHandler serves named-route requests and raw-target passthrough.
// For proxy routes the route name comes from the URL and everything
// after it is forwarded to the route's upstream; AI routes on the same
// URL scheme go through the generation pipeline.
type ProxyHandler struct {
	gateway *gateway.Service
	logger  *zap.Logger
}

// NewProxyHandler creates a new ProxyHandler
func NewProxyHandler(gw *gateway.Service, logger *zap.Logger) *ProxyHandler {
	return &ProxyHandler{gateway: gw, logger: logger}
}

// aiRouteRequest is the body AI-kind routes expect on /v1/route/{name}.
type aiRouteRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// Forward handles /v1/route/{name} and /v1/route/{name}/* for any
// method. AI-kind routes dispatch through the generation pipeline;
// everything else forwards to the route's upstream.
func (h *ProxyHandler) Forward(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := middleware.GetTenantFromContext(ctx)
	if tenant == nil {
		_ = utils.WriteUnauthorized(w, "Tenant not resolved")
		return
	}

	routeName := chi.URLParam(r, "name")
	rest := chi.URLParam(r, "*")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Failed to read request body", nil)
		return
	}

	if route := tenant.Route(routeName); route != nil && route.Kind == models.RouteKindAI {
		h.generate(w, r, tenant, routeName, body)
		return
	}

	out, err := h.gateway.Proxy(ctx, tenant, &gateway.ProxyInput{
		RequestID: middleware.GetRequestIDFromContext(ctx),
		RouteName: routeName,
		Method:    r.Method,
		Path:      rest,
		Query:     r.URL.RawQuery,
		Header:    r.Header,
		Body:      body,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	// Relay the upstream response verbatim.
	for k, vs := range out.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(out.StatusCode)
	if _, err := w.Write(out.Body); err != nil {
		h.logger.Warn("failed to relay upstream body",
			zap.String("route", routeName),
			zap.Error(err))
	}
}

// generate dispatches an AI-kind named route through the generation
// pipeline, so tenants can use the same URL scheme for both kinds.
func (h *ProxyHandler) generate(w http.ResponseWriter, r *http.Request, tenant *models.Tenant, routeName string, body []byte) {
	ctx := r.Context()

	var req aiRouteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		_ = utils.WriteBadRequest(w, "AI routes expect a JSON body with a prompt field", nil)
		return
	}

	out, err := h.gateway.Generate(ctx, tenant, &gateway.GenerateInput{
		RequestID:   middleware.GetRequestIDFromContext(ctx),
		RouteName:   routeName,
		Method:      r.Method,
		Prompt:      req.Prompt,
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, out)
}

// RawProxyRequest is the body for POST /v1/proxy.
type RawProxyRequest struct {
	Method  string            `json:"method" validate:"required"`
	URL     string            `json:"url" validate:"required,url"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// RawProxyResponse wraps the upstream reply for the raw proxy endpoint.
type RawProxyResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	Degraded   bool              `json:"degraded,omitempty"`
}

// Raw handles POST /v1/proxy: forward a request described in the body
// to an explicit target URL, with the tenant's own limits applied.
func (h *ProxyHandler) Raw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := middleware.GetTenantFromContext(ctx)
	if tenant == nil {
		_ = utils.WriteUnauthorized(w, "Tenant not resolved")
		return
	}

	var req RawProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	header := make(http.Header, len(req.Headers))
	for k, v := range req.Headers {
		header.Set(k, v)
	}

	out, err := h.gateway.RawProxy(ctx, tenant, &gateway.RawProxyInput{
		RequestID: middleware.GetRequestIDFromContext(ctx),
		Method:    req.Method,
		Target:    req.URL,
		Header:    header,
		Body:      []byte(req.Body),
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	headers := make(map[string]string, len(out.Header))
	for k := range out.Header {
		headers[k] = out.Header.Get(k)
	}
	_ = utils.WriteOK(w, RawProxyResponse{
		StatusCode: out.StatusCode,
		Headers:    headers,
		Body:       string(out.Body),
		Degraded:   out.Degraded,
	})
}
