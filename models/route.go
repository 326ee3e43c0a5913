package models

import "strings"

// RouteKind distinguishes the two dispatch targets a route can point at.
type RouteKind string

const (
	// RouteKindProxy forwards the request to an upstream REST service.
	RouteKindProxy RouteKind = "proxy"
	// RouteKindAI dispatches the request to a generative-AI provider.
	RouteKindAI RouteKind = "ai"
)

// RouteDefinition is a named, policy-configured dispatch target exposed to
// a tenant. Immutable per policy version.
type RouteDefinition struct {
	Name string
	Kind RouteKind

	// Proxy routes.
	Upstream       string
	AllowedMethods []string

	// AI routes.
	Provider string
	Model    string
	Redact   bool
	// Guard runs the prompt injection heuristics before enforcement.
	Guard bool

	// Optional per-route overrides; nil falls back to the tenant default.
	RateLimit *RateLimitConfig
	Quota     *QuotaConfig
}

// MethodAllowed reports whether the HTTP method may be used on this route.
// Routes without an explicit allow-list accept any method.
func (r *RouteDefinition) MethodAllowed(method string) bool {
	if len(r.AllowedMethods) == 0 {
		return true
	}
	method = strings.ToUpper(method)
	for _, m := range r.AllowedMethods {
		if strings.ToUpper(m) == method {
			return true
		}
	}
	return false
}

// EffectiveRateLimit resolves the rate limit that applies to this route
// for the given tenant: the route override when present, else the tenant
// default.
func (r *RouteDefinition) EffectiveRateLimit(t *Tenant) RateLimitConfig {
	if r.RateLimit != nil {
		return *r.RateLimit
	}
	return t.RateLimit
}

// EffectiveQuota resolves the quota that applies to this route for the
// given tenant.
func (r *RouteDefinition) EffectiveQuota(t *Tenant) QuotaConfig {
	if r.Quota != nil {
		return *r.Quota
	}
	return t.Quota
}
