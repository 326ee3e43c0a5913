package providers

import (
	"context"
	"fmt"
	"time"
)

// Provider is the uniform capability every AI backend implements. Usage
// is reported in the same unit system the quota ledger debits (tokens),
// measured from the actual response rather than estimated.
type Provider interface {
	// Name returns the provider id routes refer to (e.g. "openai").
	Name() string

	// Generate produces a completion for the prompt.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is a unified generation request.
type GenerateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// GenerateResponse is a unified generation response.
type GenerateResponse struct {
	Text string `json:"text"`
	// UsageUnits is the token count reported by the backend for the whole
	// exchange (prompt plus completion).
	UsageUnits int64         `json:"usage_units"`
	Latency    time.Duration `json:"-"`
}

// Config holds the settings shared by the HTTP-backed adapters.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// Azure-specific deployment routing.
	Deployment string
	APIVersion string
}

// ProviderError is a structured dispatch failure with enough detail to
// distinguish transient (retryable) from permanent failures. The gateway
// itself never retries; the flag is for callers and the audit trail.
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Err        error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %s (status=%d retryable=%t)",
		e.Provider, e.Code, e.Message, e.StatusCode, e.Retryable)
}

// Unwrap implements errors.Unwrap.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a structured provider error.
func NewProviderError(provider, code, message string, statusCode int, retryable bool, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Err:        err,
	}
}
