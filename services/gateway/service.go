// Package gateway orchestrates the admission pipeline every request goes
// through: route resolution, redaction, rate limiting, quota consumption,
// dispatch and the audit trail. Enforcement decisions short-circuit the
// pipeline; each request that reaches it produces exactly one audit
// record, denials and dispatch failures included.
package gateway

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/upb/ai-gateway/models"
	"github.com/upb/ai-gateway/services"
	"github.com/upb/ai-gateway/services/audit"
	"github.com/upb/ai-gateway/services/guard"
	"github.com/upb/ai-gateway/services/providers"
	"github.com/upb/ai-gateway/services/proxy"
	"github.com/upb/ai-gateway/services/quota"
	"github.com/upb/ai-gateway/services/ratelimit"
	"github.com/upb/ai-gateway/services/redact"
	"github.com/upb/ai-gateway/services/tokenizer"
	"go.uber.org/zap"
)

// Service orchestrates the complete admission and dispatch pipeline.
type Service struct {
	rateLimit *ratelimit.Service
	quota     *quota.Service
	redactor  *redact.Service
	guard     *guard.Service
	estimator tokenizer.Estimator
	registry  *providers.Registry
	proxy     *proxy.Service
	audit     *audit.Service
	logger    *zap.Logger
}

// NewService creates a gateway service with all pipeline dependencies.
func NewService(
	rateLimitService *ratelimit.Service,
	quotaService *quota.Service,
	redactService *redact.Service,
	guardService *guard.Service,
	estimator tokenizer.Estimator,
	registry *providers.Registry,
	proxyService *proxy.Service,
	auditService *audit.Service,
	logger *zap.Logger,
) *Service {
	return &Service{
		rateLimit: rateLimitService,
		quota:     quotaService,
		redactor:  redactService,
		guard:     guardService,
		estimator: estimator,
		registry:  registry,
		proxy:     proxyService,
		audit:     auditService,
		logger:    logger,
	}
}

// Generate runs a generation request through the full pipeline for an
// AI route: redact the prompt, consume one rate-limit slot, debit the
// estimated token usage, dispatch to the provider, then reconcile the
// ledger with the provider-reported usage.
func (s *Service) Generate(ctx context.Context, tenant *models.Tenant, in *GenerateInput) (*GenerateOutput, error) {
	start := time.Now()
	rec := models.NewAuditRecord(tenant.ID, in.RouteName).WithRequest(in.RequestID)

	route := tenant.Route(in.RouteName)
	if route == nil {
		return nil, s.deny(rec, start, "route_not_found", services.ErrRouteNotFound)
	}
	if route.Kind != models.RouteKindAI {
		return nil, s.deny(rec, start, "wrong_route_kind",
			services.NewDomainError(services.ErrorTypeValidation, "route does not accept generation requests", nil))
	}
	if in.Method != "" && !route.MethodAllowed(in.Method) {
		return nil, s.deny(rec, start, "method_not_allowed", services.ErrMethodNotAllowed)
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, s.deny(rec, start, "empty_prompt", services.ErrEmptyPrompt)
	}

	providerID := route.Provider
	if providerID == "" {
		providerID = tenant.DefaultProvider
	}
	provider, err := s.registry.Get(providerID)
	if err != nil {
		return nil, s.deny(rec, start, "provider_not_configured", services.ErrProviderNotConfigured)
	}

	model := route.Model
	if model == "" {
		model = in.Model
	}
	rec.WithDispatch(providerID, model)

	// Redaction runs before enforcement counters are touched, so the
	// provider only ever sees the redacted prompt.
	prompt := in.Prompt
	redactions := 0
	if route.Redact {
		prompt, redactions = s.redactor.Apply(prompt, "prompt", tenant.RedactionRules)
	}

	// The guard sees the redacted prompt, same as the provider would.
	if route.Guard {
		if err := s.guard.Check(prompt); err != nil {
			return nil, s.deny(rec, start, "prompt_rejected", err)
		}
	}

	scope := limitScope(route, tenant)
	degraded := false

	rate := s.rateLimit.Allow(ctx, tenant.ID, scope.rate, route.EffectiveRateLimit(tenant))
	degraded = degraded || rate.Degraded
	if !rate.Allowed {
		if rate.Degraded {
			rec.MarkDegraded()
			return nil, s.deny(rec, start, "store_unavailable", services.ErrStoreUnavailable)
		}
		return nil, s.deny(rec, start, "rate_limited", services.RateLimited(rate.RetryAfter))
	}

	estimate := s.estimator.Estimate(prompt, model)
	quotaCfg := route.EffectiveQuota(tenant)
	qr := s.quota.Consume(ctx, tenant.ID, scope.quota, estimate, quotaCfg)
	degraded = degraded || qr.Degraded
	if !qr.Consumed {
		if qr.Degraded {
			rec.MarkDegraded()
			return nil, s.deny(rec, start, "store_unavailable", services.ErrStoreUnavailable)
		}
		return nil, s.deny(rec, start, "quota_exceeded", services.QuotaExceeded(qr.Deficit))
	}

	resp, err := provider.Generate(ctx, &providers.GenerateRequest{
		Model:       model,
		Prompt:      prompt,
		MaxTokens:   in.MaxTokens,
		Temperature: in.Temperature,
	})
	if err != nil {
		// The estimated units stay committed; the provider may well have
		// done the work before failing to answer.
		if degraded {
			rec.MarkDegraded()
		}
		s.record(rec.Allow().WithUsage(estimate, redactions).WithError(err.Error()), start)
		return nil, providerFailure(providerID, err)
	}

	// Reconcile the ledger with what the provider actually reported.
	actual := resp.UsageUnits
	if actual <= 0 {
		actual = estimate
	}
	if delta := actual - estimate; delta != 0 {
		s.quota.Adjust(ctx, tenant.ID, scope.quota, delta, quotaCfg)
	}

	text := resp.Text
	if route.Redact {
		var n int
		text, n = s.redactor.Apply(text, "response", tenant.RedactionRules)
		redactions += n
	}

	if degraded {
		rec.MarkDegraded()
	}
	s.record(rec.Allow().WithUsage(actual, redactions), start)

	s.logger.Info("generation dispatched",
		zap.String("request_id", in.RequestID),
		zap.String("tenant_id", tenant.ID),
		zap.String("route", in.RouteName),
		zap.String("provider", providerID),
		zap.Int64("usage_units", actual),
		zap.Int("redactions", redactions))

	return &GenerateOutput{
		RequestID:      in.RequestID,
		Provider:       providerID,
		Model:          model,
		Text:           text,
		UsageUnits:     actual,
		RedactionCount: redactions,
		LatencyMs:      latencyMs(start),
		Degraded:       degraded,
	}, nil
}

// Proxy runs a request through the pipeline for a proxy route and
// forwards it to the configured upstream. Quota is debited one unit per
// request; the upstream response passes through unchanged, non-2xx
// statuses included.
func (s *Service) Proxy(ctx context.Context, tenant *models.Tenant, in *ProxyInput) (*ProxyOutput, error) {
	start := time.Now()
	rec := models.NewAuditRecord(tenant.ID, in.RouteName).WithRequest(in.RequestID)

	route := tenant.Route(in.RouteName)
	if route == nil {
		return nil, s.deny(rec, start, "route_not_found", services.ErrRouteNotFound)
	}
	if route.Kind != models.RouteKindProxy {
		return nil, s.deny(rec, start, "wrong_route_kind",
			services.NewDomainError(services.ErrorTypeValidation, "route is not a proxy route", nil))
	}
	if !route.MethodAllowed(in.Method) {
		return nil, s.deny(rec, start, "method_not_allowed", services.ErrMethodNotAllowed)
	}

	body := in.Body
	redactions := 0
	if route.Redact && len(body) > 0 {
		redacted, n := s.redactor.Apply(string(body), "body", tenant.RedactionRules)
		body, redactions = []byte(redacted), n
	}

	scope := limitScope(route, tenant)
	degraded := false

	rate := s.rateLimit.Allow(ctx, tenant.ID, scope.rate, route.EffectiveRateLimit(tenant))
	degraded = degraded || rate.Degraded
	if !rate.Allowed {
		if rate.Degraded {
			rec.MarkDegraded()
			return nil, s.deny(rec, start, "store_unavailable", services.ErrStoreUnavailable)
		}
		return nil, s.deny(rec, start, "rate_limited", services.RateLimited(rate.RetryAfter))
	}

	quotaCfg := route.EffectiveQuota(tenant)
	qr := s.quota.Consume(ctx, tenant.ID, scope.quota, 1, quotaCfg)
	degraded = degraded || qr.Degraded
	if !qr.Consumed {
		if qr.Degraded {
			rec.MarkDegraded()
			return nil, s.deny(rec, start, "store_unavailable", services.ErrStoreUnavailable)
		}
		return nil, s.deny(rec, start, "quota_exceeded", services.QuotaExceeded(qr.Deficit))
	}

	resp, err := s.proxy.Forward(ctx, route.Upstream, &proxy.Request{
		Method: in.Method,
		Path:   in.Path,
		Query:  in.Query,
		Header: in.Header,
		Body:   body,
	})
	if err != nil {
		if degraded {
			rec.MarkDegraded()
		}
		s.record(rec.Allow().WithUsage(1, redactions).WithError(err.Error()), start)
		return nil, err
	}

	if degraded {
		rec.MarkDegraded()
	}
	s.record(rec.Allow().WithUsage(1, redactions).WithUpstreamStatus(resp.StatusCode), start)

	s.logger.Info("proxy dispatched",
		zap.String("request_id", in.RequestID),
		zap.String("tenant_id", tenant.ID),
		zap.String("route", in.RouteName),
		zap.Int("upstream_status", resp.StatusCode))

	return &ProxyOutput{
		StatusCode:     resp.StatusCode,
		Header:         resp.Header,
		Body:           resp.Body,
		RedactionCount: redactions,
		Degraded:       degraded,
	}, nil
}

// rawProxyRoute names the audit route for raw-target proxy requests,
// which have no policy route of their own.
const rawProxyRoute = "proxy"

// RawProxy forwards a request to an explicit target URL under the
// tenant's default rate limit and a one-unit quota debit. The caller
// supplies the full upstream URL; only absolute http(s) targets are
// accepted.
func (s *Service) RawProxy(ctx context.Context, tenant *models.Tenant, in *RawProxyInput) (*RawProxyOutput, error) {
	start := time.Now()
	rec := models.NewAuditRecord(tenant.ID, rawProxyRoute).WithRequest(in.RequestID)

	target, err := url.Parse(in.Target)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, s.deny(rec, start, "invalid_target",
			services.NewDomainError(services.ErrorTypeValidation, "proxy target must be an absolute http(s) URL", nil))
	}

	degraded := false

	rate := s.rateLimit.Allow(ctx, tenant.ID, models.ScopeTenant, tenant.RateLimit)
	degraded = degraded || rate.Degraded
	if !rate.Allowed {
		if rate.Degraded {
			rec.MarkDegraded()
			return nil, s.deny(rec, start, "store_unavailable", services.ErrStoreUnavailable)
		}
		return nil, s.deny(rec, start, "rate_limited", services.RateLimited(rate.RetryAfter))
	}

	qr := s.quota.Consume(ctx, tenant.ID, models.ScopeTenant, 1, tenant.Quota)
	degraded = degraded || qr.Degraded
	if !qr.Consumed {
		if qr.Degraded {
			rec.MarkDegraded()
			return nil, s.deny(rec, start, "store_unavailable", services.ErrStoreUnavailable)
		}
		return nil, s.deny(rec, start, "quota_exceeded", services.QuotaExceeded(qr.Deficit))
	}

	resp, err := s.proxy.Forward(ctx, in.Target, &proxy.Request{
		Method: in.Method,
		Header: in.Header,
		Body:   in.Body,
	})
	if err != nil {
		if degraded {
			rec.MarkDegraded()
		}
		s.record(rec.Allow().WithUsage(1, 0).WithError(err.Error()), start)
		return nil, err
	}

	if degraded {
		rec.MarkDegraded()
	}
	s.record(rec.Allow().WithUsage(1, 0).WithUpstreamStatus(resp.StatusCode), start)

	s.logger.Info("raw proxy dispatched",
		zap.String("request_id", in.RequestID),
		zap.String("tenant_id", tenant.ID),
		zap.String("target_host", target.Host),
		zap.Int("upstream_status", resp.StatusCode))

	return &RawProxyOutput{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
		Degraded:   degraded,
	}, nil
}

// scopePair holds the counter scopes that apply to a request. A route
// with its own override gets its own counter under the route name so it
// never shares a window or period bucket with the tenant default.
type scopePair struct {
	rate  string
	quota string
}

func limitScope(route *models.RouteDefinition, tenant *models.Tenant) scopePair {
	sp := scopePair{rate: models.ScopeTenant, quota: models.ScopeTenant}
	if route.RateLimit != nil {
		sp.rate = route.Name
	}
	if route.Quota != nil {
		sp.quota = route.Name
	}
	return sp
}

// deny writes the single denial audit record and returns the domain
// error the transport layer maps to a status code.
func (s *Service) deny(rec *models.AuditRecord, start time.Time, reason string, err error) error {
	s.record(rec.Deny(reason), start)
	return err
}

func (s *Service) record(rec *models.AuditRecord, start time.Time) {
	rec.LatencyMs = latencyMs(start)
	if err := s.audit.Record(rec); err != nil {
		s.logger.Error("failed to queue audit record",
			zap.String("request_id", rec.RequestID),
			zap.String("tenant_id", rec.TenantID),
			zap.Error(err))
	}
}

// providerFailure maps an adapter error to the domain taxonomy, keeping
// the retryable flag visible in the error details.
func providerFailure(providerID string, err error) error {
	var perr *providers.ProviderError
	if errors.As(err, &perr) {
		return services.NewDomainError(services.ErrorTypeProvider, "provider request failed", err).
			WithDetail("provider", providerID).
			WithDetail("retryable", perr.Retryable)
	}
	return services.WrapError(services.ErrorTypeProvider, "provider request failed", err)
}
