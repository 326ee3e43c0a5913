package gateway

import (
	"net/http"
	"time"
)

// GenerateInput is a generation request against an AI route, after tenant
// resolution and before any enforcement.
type GenerateInput struct {
	RequestID string
	RouteName string

	// Method is set when the request arrived on a named-route URL, where
	// the route's allow-list applies. The dedicated generate endpoint
	// leaves it empty.
	Method string

	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// GenerateOutput is the pipeline result for an admitted and dispatched
// generation request.
type GenerateOutput struct {
	RequestID string `json:"request_id"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Text      string `json:"text"`

	UsageUnits     int64 `json:"usage_units"`
	RedactionCount int   `json:"redaction_count"`
	LatencyMs      int   `json:"latency_ms"`
	Degraded       bool  `json:"degraded,omitempty"`
}

// ProxyInput is a request against a proxy route.
type ProxyInput struct {
	RequestID string
	RouteName string

	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// ProxyOutput carries the upstream response through untouched.
type ProxyOutput struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	RedactionCount int
	Degraded       bool
}

// RawProxyInput is a passthrough request against an explicit upstream
// target instead of a named route. The tenant's own rate and quota
// limits apply; there is no route-level override to consult.
type RawProxyInput struct {
	RequestID string

	Method string
	Target string
	Header http.Header
	Body   []byte
}

// RawProxyOutput is the upstream's reply to a raw-target request.
type RawProxyOutput struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	Degraded bool
}

// latencyMs measures elapsed wall time in whole milliseconds.
func latencyMs(start time.Time) int {
	return int(time.Since(start).Milliseconds())
}
