// Package proxy forwards requests on proxy-kind routes to the configured
// upstream, preserving method, remaining path, query string and body. A
// non-2xx upstream response is not an error of the gateway; only failures
// to reach the upstream at all are.
package proxy

import (
	"bytes"
	"context"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/upb/ai-gateway/services"
	"go.uber.org/zap"
)

// hopHeaders are stripped before forwarding, along with Host and the
// gateway's own Authorization credential.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Authorization",
	"Content-Length",
}

// Request carries the parts of the inbound request that get forwarded.
type Request struct {
	Method string
	// Path is the remainder after the route prefix, forwarded as-is.
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// Response is the upstream's reply, passed through unmodified.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Service dispatches proxy-kind routes.
type Service struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewService creates a proxy dispatcher. timeout bounds the whole
// upstream round trip.
func NewService(timeout time.Duration, logger *zap.Logger) *Service {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Forward sends the request to upstream + path and returns the upstream's
// response verbatim. Connection failures and timeouts surface as an
// upstream-unreachable domain error.
func (s *Service) Forward(ctx context.Context, upstream string, req *Request) (*Response, error) {
	url := buildURL(upstream, req.Path, req.Query)

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Method), url, bytes.NewReader(req.Body))
	if err != nil {
		return nil, services.WrapInternal("build upstream request", err)
	}
	copyForwardHeaders(httpReq.Header, req.Header)

	httpResp, err := s.httpClient.Do(httpReq)
	if err != nil {
		s.logger.Warn("upstream unreachable",
			zap.String("upstream", upstream),
			zap.String("method", req.Method),
			zap.Error(err))
		return nil, services.WrapError(services.ErrorTypeUpstream, "upstream unreachable", err)
	}
	defer httpResp.Body.Close()

	body, err := readAll(httpResp)
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeUpstream, "read upstream response", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       body,
	}, nil
}

func buildURL(upstream, path, query string) string {
	url := strings.TrimRight(upstream, "/")
	if path != "" {
		url += "/" + strings.TrimLeft(path, "/")
	}
	if query != "" {
		url += "?" + query
	}
	return url
}

func copyForwardHeaders(dst, src http.Header) {
	skip := make(map[string]struct{}, len(hopHeaders)+1)
	for _, h := range hopHeaders {
		skip[textproto.CanonicalMIMEHeaderKey(h)] = struct{}{}
	}
	skip["Host"] = struct{}{}

	for k, vs := range src {
		if _, drop := skip[textproto.CanonicalMIMEHeaderKey(k)]; drop {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func readAll(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
