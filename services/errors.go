package services

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeUnauthorized     ErrorType = "unauthorized"
	ErrorTypeRouting          ErrorType = "routing"
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeRateLimit        ErrorType = "rate_limit"
	ErrorTypeQuota            ErrorType = "quota"
	ErrorTypeStoreUnavailable ErrorType = "store_unavailable"
	ErrorTypeUpstream         ErrorType = "upstream"
	ErrorTypeProvider         ErrorType = "provider"
	ErrorTypeInternal         ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Authorization
	ErrUnauthorized      = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidCredential = NewDomainError(ErrorTypeUnauthorized, "credential does not resolve to a tenant", nil)

	// Routing
	ErrRouteNotFound         = NewDomainError(ErrorTypeRouting, "route not found", nil)
	ErrProviderNotConfigured = NewDomainError(ErrorTypeRouting, "no provider registered for route", nil)
	ErrMethodNotAllowed      = NewDomainError(ErrorTypeRouting, "method not allowed for this route", nil)

	// Validation
	ErrInvalidInput   = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyPrompt    = NewDomainError(ErrorTypeValidation, "prompt cannot be empty", nil)
	ErrPromptRejected = NewDomainError(ErrorTypeValidation, "prompt rejected by injection guard", nil)

	// Enforcement
	ErrRateLimited      = NewDomainError(ErrorTypeRateLimit, "rate limit exceeded", nil)
	ErrQuotaExceeded    = NewDomainError(ErrorTypeQuota, "quota exceeded", nil)
	ErrStoreUnavailable = NewDomainError(ErrorTypeStoreUnavailable, "counter store unreachable", nil)

	// Dispatch
	ErrUpstreamUnreachable = NewDomainError(ErrorTypeUpstream, "upstream unreachable", nil)
	ErrProviderFailure     = NewDomainError(ErrorTypeProvider, "provider request failed", nil)

	// Internal
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// RateLimited builds a rate-limit denial carrying the retry-after hint.
func RateLimited(retryAfter time.Duration) *DomainError {
	return NewDomainError(ErrorTypeRateLimit, "rate limit exceeded", nil).
		WithDetail("retry_after_seconds", int(retryAfter.Seconds()))
}

// QuotaExceeded builds a quota denial carrying the deficit (how many
// units the request was short by).
func QuotaExceeded(deficit int64) *DomainError {
	return NewDomainError(ErrorTypeQuota, "quota exceeded", nil).
		WithDetail("deficit", deficit)
}

// PromptRejected builds a validation denial for prompts the injection
// guard scored above the configured risk threshold.
func PromptRejected(score float64, categories []string) *DomainError {
	return NewDomainError(ErrorTypeValidation, "prompt rejected by injection guard", nil).
		WithDetail("risk_score", score).
		WithDetail("categories", categories)
}

// Error type checking helper functions

// IsUnauthorizedError checks if an error is an authorization error
func IsUnauthorizedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthorized
}

// IsRoutingError checks if an error is a routing error
func IsRoutingError(err error) bool {
	return GetErrorType(err) == ErrorTypeRouting
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsRateLimitError checks if an error is a rate limit denial
func IsRateLimitError(err error) bool {
	return GetErrorType(err) == ErrorTypeRateLimit
}

// IsQuotaError checks if an error is a quota denial
func IsQuotaError(err error) bool {
	return GetErrorType(err) == ErrorTypeQuota
}

// IsStoreUnavailableError checks if an error means the counter store
// could not be reached. Callers resolve it via the configured
// fail-open/fail-closed policy; it is never conflated with a denial.
func IsStoreUnavailableError(err error) bool {
	return GetErrorType(err) == ErrorTypeStoreUnavailable
}

// IsUpstreamError checks if an error is an upstream dispatch failure
func IsUpstreamError(err error) bool {
	return GetErrorType(err) == ErrorTypeUpstream
}

// IsProviderError checks if an error is an AI provider failure
func IsProviderError(err error) bool {
	return GetErrorType(err) == ErrorTypeProvider
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapStoreUnavailable wraps a store connectivity failure
func WrapStoreUnavailable(message string, err error) error {
	return NewDomainError(ErrorTypeStoreUnavailable, message, err)
}
