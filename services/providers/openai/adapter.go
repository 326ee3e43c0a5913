// Package openai implements the provider capability against the OpenAI
// chat completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/upb/ai-gateway/services/providers"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Adapter implements providers.Provider for OpenAI.
type Adapter struct {
	config     providers.Config
	httpClient *http.Client
}

// New creates an OpenAI adapter.
func New(config providers.Config) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &Adapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Name returns the provider id.
func (a *Adapter) Name() string {
	return "openai"
}

// Generate performs a chat completion request.
func (a *Adapter) Generate(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	startTime := time.Now()

	body, err := json.Marshal(a.buildRequest(req))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "REQUEST_ERROR", "failed to create request", 0, false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "HTTP_ERROR", "request failed", 0, true, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "READ_ERROR", "failed to read response", httpResp.StatusCode, false, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(a.Name(), httpResp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "failed to unmarshal response", httpResp.StatusCode, false, err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, providers.NewProviderError(a.Name(), "EMPTY_RESPONSE", "response contained no choices", httpResp.StatusCode, false, nil)
	}

	return &providers.GenerateResponse{
		Text:       chatResp.Choices[0].Message.Content,
		UsageUnits: int64(chatResp.Usage.TotalTokens),
		Latency:    time.Since(startTime),
	}, nil
}

func (a *Adapter) buildRequest(req *providers.GenerateRequest) *chatRequest {
	out := &chatRequest{
		Model:    req.Model,
		Messages: []chatMessage{{Role: "user", Content: req.Prompt}},
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = &req.MaxTokens
	}
	if req.Temperature > 0 {
		out.Temperature = &req.Temperature
	}
	return out
}

// handleErrorResponse maps an error payload to a ProviderError. 429 and
// 5xx responses are transient; everything else is permanent.
func handleErrorResponse(provider string, statusCode int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return providers.NewProviderError(provider, "UNKNOWN_ERROR", string(body), statusCode, statusCode >= 500, err)
	}

	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests

	return providers.NewProviderError(
		provider,
		errResp.Error.Type,
		errResp.Error.Message,
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

// OpenAI wire types

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
