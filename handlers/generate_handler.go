package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/upb/ai-gateway/middleware"
	"github.com/upb/ai-gateway/services/gateway"
	"github.com/upb/ai-gateway/utils"
	"go.uber.org/zap"
)

// GenerateRequest is the body for POST /v1/generate.
type GenerateRequest struct {
	Route       string  `json:"route" validate:"required"`
	Prompt      string  `json:"prompt" validate:"required"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens" validate:"gte=0"`
	Temperature float64 `json:"temperature" validate:"gte=0,lte=2"`
}

// GenerateHandler serves generation requests against AI routes.
type GenerateHandler struct {
	gateway *gateway.Service
	logger  *zap.Logger
}

// NewGenerateHandler creates a new GenerateHandler
func NewGenerateHandler(gw *gateway.Service, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{gateway: gw, logger: logger}
}

// Generate handles POST /v1/generate
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := middleware.GetTenantFromContext(ctx)
	if tenant == nil {
		_ = utils.WriteUnauthorized(w, "Tenant not resolved")
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	out, err := h.gateway.Generate(ctx, tenant, &gateway.GenerateInput{
		RequestID:   middleware.GetRequestIDFromContext(ctx),
		RouteName:   req.Route,
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
