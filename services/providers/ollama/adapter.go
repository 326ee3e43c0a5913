// Package ollama implements the provider capability against a locally
// hosted Ollama inference runtime.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/upb/ai-gateway/services/providers"
)

const defaultBaseURL = "http://localhost:11434"

// Adapter implements providers.Provider for a local Ollama runtime.
type Adapter struct {
	config     providers.Config
	httpClient *http.Client
}

// New creates an Ollama adapter.
func New(config providers.Config) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		// Local models can be slow to first token.
		config.Timeout = 120 * time.Second
	}
	return &Adapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Name returns the provider id.
func (a *Adapter) Name() string {
	return "ollama"
}

// Generate performs a non-streaming completion against /api/generate.
func (a *Adapter) Generate(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	startTime := time.Now()

	body, err := json.Marshal(generateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Stream: false,
	})
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "REQUEST_ERROR", "failed to create request", 0, false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
		return nil, providers.NewProviderError(a.Name(), "API_ERROR", string(respBody), httpResp.StatusCode, httpResp.StatusCode >= 500, nil)
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "failed to unmarshal response", httpResp.StatusCode, false, err)
	}

	return &providers.GenerateResponse{
		Text:       genResp.Response,
		UsageUnits: int64(genResp.PromptEvalCount + genResp.EvalCount),
		Latency:    time.Since(startTime),
	}, nil
}

// Ollama wire types

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}
