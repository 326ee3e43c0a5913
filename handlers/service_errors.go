package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/upb/ai-gateway/services"
	"github.com/upb/ai-gateway/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. Handlers stay
// thin: the pipeline returns a typed error and this is the single place
// deciding status codes.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	switch {
	case services.IsUnauthorizedError(err):
		if werr := utils.WriteUnauthorized(w, err.Error()); werr != nil {
			logger.Error("failed to write unauthorized response", zap.Error(werr))
		}

	case services.IsRoutingError(err):
		if isMethodNotAllowed(err) {
			if werr := utils.WriteMethodNotAllowed(w, err.Error()); werr != nil {
				logger.Error("failed to write method not allowed response", zap.Error(werr))
			}
			return
		}
		if werr := utils.WriteNotFound(w, err.Error()); werr != nil {
			logger.Error("failed to write not found response", zap.Error(werr))
		}

	case services.IsValidationError(err):
		if werr := utils.WriteBadRequest(w, err.Error(), details); werr != nil {
			logger.Error("failed to write bad request response", zap.Error(werr))
		}

	case services.IsRateLimitError(err):
		setRetryAfter(w, details)
		if werr := utils.WriteTooManyRequests(w, err.Error(), details); werr != nil {
			logger.Error("failed to write rate limit response", zap.Error(werr))
		}

	case services.IsQuotaError(err):
		if werr := utils.WritePaymentRequired(w, err.Error(), details); werr != nil {
			logger.Error("failed to write quota response", zap.Error(werr))
		}

	case services.IsStoreUnavailableError(err):
		if werr := utils.WriteServiceUnavailable(w, "Enforcement temporarily unavailable"); werr != nil {
			logger.Error("failed to write service unavailable response", zap.Error(werr))
		}

	case services.IsUpstreamError(err), services.IsProviderError(err):
		if werr := utils.WriteBadGateway(w, err.Error(), details); werr != nil {
			logger.Error("failed to write bad gateway response", zap.Error(werr))
		}

	default:
		// Log internal errors but return a generic message
		logger.Error("internal server error", zap.Error(err))
		if werr := utils.WriteInternalServerError(w, "An internal error occurred"); werr != nil {
			logger.Error("failed to write internal error response", zap.Error(werr))
		}
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if werr := utils.WriteBadRequest(w, "Validation failed", details); werr != nil {
			logger.Error("failed to write validation error response", zap.Error(werr))
		}
		return
	}

	if werr := utils.WriteBadRequest(w, err.Error(), nil); werr != nil {
		logger.Error("failed to write validation error response", zap.Error(werr))
	}
}

func isMethodNotAllowed(err error) bool {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message == services.ErrMethodNotAllowed.Message
	}
	return false
}

func setRetryAfter(w http.ResponseWriter, details map[string]interface{}) {
	if details == nil {
		return
	}
	if secs, ok := details["retry_after_seconds"].(int); ok && secs > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	}
}
