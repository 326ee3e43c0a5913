package models

import (
	"regexp"
	"strings"
	"time"
)

// Tenant represents a customer organization with its own policy, limits
// and routes. A Tenant is immutable once compiled into a policy snapshot;
// policy reload replaces the whole tenant table, never individual fields.
type Tenant struct {
	ID              string
	Name            string
	RedactionRules  []RedactionRule
	Routes          map[string]*RouteDefinition
	RateLimit       RateLimitConfig
	Quota           QuotaConfig
	DefaultProvider string
}

// Route returns the named route definition, or nil when the tenant does
// not expose a route under that name.
func (t *Tenant) Route(name string) *RouteDefinition {
	if t.Routes == nil {
		return nil
	}
	return t.Routes[name]
}

// RateLimitConfig represents a fixed-window request ceiling.
type RateLimitConfig struct {
	Requests int           `json:"requests"`
	Window   time.Duration `json:"window"`
}

// Enabled reports whether the limit is active. A zero ceiling disables
// rate limiting for the scope it is attached to.
func (c RateLimitConfig) Enabled() bool {
	return c.Requests > 0 && c.Window > 0
}

// QuotaPeriod identifies the accounting interval for usage quotas.
type QuotaPeriod string

const (
	PeriodDaily   QuotaPeriod = "daily"
	PeriodMonthly QuotaPeriod = "monthly"
)

// QuotaConfig represents a usage ceiling over a billing period. Units are
// tokens for AI routes and request counts for proxy routes.
type QuotaConfig struct {
	Units  int64       `json:"units"`
	Period QuotaPeriod `json:"period"`
}

// Enabled reports whether the quota is active.
func (c QuotaConfig) Enabled() bool {
	return c.Units > 0
}

// PeriodKey returns the accounting bucket for the given time, e.g.
// "2026-09" for a monthly quota. Counters for different periods never
// share a key, so a new period starts from zero.
func (c QuotaConfig) PeriodKey(now time.Time) string {
	switch c.Period {
	case PeriodDaily:
		return now.UTC().Format("2006-01-02")
	default:
		return now.UTC().Format("2006-01")
	}
}

// PeriodTTL returns how long a counter created at now should live in the
// store: the remainder of the period plus a cushion so stragglers from
// clock skew still find the key.
func (c QuotaConfig) PeriodTTL(now time.Time) time.Duration {
	now = now.UTC()
	var end time.Time
	switch c.Period {
	case PeriodDaily:
		end = time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	default:
		end = time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	}
	return end.Sub(now) + 24*time.Hour
}

// RedactionRule is one pattern -> replacement entry of a tenant's ordered
// redaction list. Rules are applied strictly in declaration order over the
// designated free-text fields; a later rule sees the output of earlier
// rules. Patterns are matched case-insensitively. A pattern that does not
// compile as a regular expression is treated as a literal substring.
type RedactionRule struct {
	Pattern     string
	Replacement string
	Fields      []string

	re *regexp.Regexp
}

// Compile prepares the rule for application. Invalid patterns are not an
// error: the rule falls back to case-insensitive literal substring
// replacement, matching how policy authors expect plain strings to behave.
func (r *RedactionRule) Compile() {
	re, err := regexp.Compile("(?i)" + r.Pattern)
	if err != nil {
		r.re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(r.Pattern))
		return
	}
	r.re = re
}

// Regexp returns the compiled pattern, nil when Compile has not run.
func (r *RedactionRule) Regexp() *regexp.Regexp {
	return r.re
}

// Apply performs a single global find-and-replace pass over text.
func (r *RedactionRule) Apply(text string) string {
	if r.re != nil {
		return r.re.ReplaceAllString(text, r.Replacement)
	}
	return strings.ReplaceAll(text, r.Pattern, r.Replacement)
}

// AppliesTo reports whether the rule is scoped to the given payload field.
// An empty scope means the rule applies to every free-text field.
func (r *RedactionRule) AppliesTo(field string) bool {
	if len(r.Fields) == 0 {
		return true
	}
	for _, f := range r.Fields {
		if f == field {
			return true
		}
	}
	return false
}
