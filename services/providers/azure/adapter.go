// Package azure implements the provider capability against Azure OpenAI,
// which routes by deployment rather than by model name and authenticates
// with an api-key header.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/upb/ai-gateway/services/providers"
)

const defaultAPIVersion = "2024-02-01"

// Adapter implements providers.Provider for Azure OpenAI deployments.
type Adapter struct {
	config     providers.Config
	httpClient *http.Client
}

// New creates an Azure OpenAI adapter. Config.BaseURL is the resource
// endpoint and Config.Deployment the deployment name.
func New(config providers.Config) *Adapter {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.APIVersion == "" {
		config.APIVersion = defaultAPIVersion
	}
	return &Adapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Name returns the provider id.
func (a *Adapter) Name() string {
	return "azure"
}

// Generate performs a deployment-scoped chat completion request.
func (a *Adapter) Generate(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	startTime := time.Now()

	payload := azureRequest{
		Messages: []azureMessage{{Role: "user", Content: req.Prompt}},
	}
	if req.MaxTokens > 0 {
		payload.MaxTokens = &req.MaxTokens
	}
	if req.Temperature > 0 {
		payload.Temperature = &req.Temperature
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		a.config.BaseURL, a.config.Deployment, a.config.APIVersion)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "REQUEST_ERROR", "failed to create request", 0, false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", a.config.APIKey)

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
		retryable := httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests
		return nil, providers.NewProviderError(a.Name(), "API_ERROR", string(respBody), httpResp.StatusCode, retryable, nil)
	}

	var azResp azureResponse
	if err := json.Unmarshal(respBody, &azResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "failed to unmarshal response", httpResp.StatusCode, false, err)
	}
	if len(azResp.Choices) == 0 {
		return nil, providers.NewProviderError(a.Name(), "EMPTY_RESPONSE", "response contained no choices", httpResp.StatusCode, false, nil)
	}

	return &providers.GenerateResponse{
		Text:       azResp.Choices[0].Message.Content,
		UsageUnits: int64(azResp.Usage.TotalTokens),
		Latency:    time.Since(startTime),
	}, nil
}

// Azure OpenAI wire types

type azureRequest struct {
	Messages    []azureMessage `json:"messages"`
	MaxTokens   *int           `json:"max_tokens,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
}

type azureMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type azureResponse struct {
	Choices []struct {
		Message      azureMessage `json:"message"`
		FinishReason string       `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
