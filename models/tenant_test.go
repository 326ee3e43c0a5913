package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitConfig_Enabled(t *testing.T) {
	assert.True(t, RateLimitConfig{Requests: 10, Window: time.Minute}.Enabled())
	assert.False(t, RateLimitConfig{Requests: 0, Window: time.Minute}.Enabled())
	assert.False(t, RateLimitConfig{Requests: 10, Window: 0}.Enabled())
	assert.False(t, RateLimitConfig{}.Enabled())
}

func TestQuotaConfig_PeriodKey(t *testing.T) {
	at := time.Date(2026, time.September, 15, 10, 30, 0, 0, time.UTC)

	monthly := QuotaConfig{Units: 100, Period: PeriodMonthly}
	assert.Equal(t, "2026-09", monthly.PeriodKey(at))

	daily := QuotaConfig{Units: 100, Period: PeriodDaily}
	assert.Equal(t, "2026-09-15", daily.PeriodKey(at))

	// Unset period defaults to monthly buckets.
	assert.Equal(t, "2026-09", QuotaConfig{Units: 100}.PeriodKey(at))
}

func TestQuotaConfig_PeriodTTL(t *testing.T) {
	at := time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC)

	daily := QuotaConfig{Units: 100, Period: PeriodDaily}
	assert.Equal(t, 48*time.Hour, daily.PeriodTTL(at))

	monthly := QuotaConfig{Units: 100, Period: PeriodMonthly}
	// 15 days left in September plus the cushion.
	assert.Equal(t, 16*24*time.Hour, monthly.PeriodTTL(at))
}

func TestRedactionRule_Apply(t *testing.T) {
	rule := RedactionRule{Pattern: `\d{3}-\d{4}`, Replacement: "[PHONE]"}
	rule.Compile()
	require.NotNil(t, rule.Regexp())

	assert.Equal(t, "call [PHONE] or [PHONE]", rule.Apply("call 555-1234 or 555-9876"))
}

func TestRedactionRule_CaseInsensitive(t *testing.T) {
	rule := RedactionRule{Pattern: "secret", Replacement: "[X]"}
	rule.Compile()

	assert.Equal(t, "[X] and [X] and [X]", rule.Apply("Secret and SECRET and secret"))
}

func TestRedactionRule_InvalidPatternFallsBackToLiteral(t *testing.T) {
	rule := RedactionRule{Pattern: "foo[bar", Replacement: "[X]"}
	rule.Compile()

	// The broken bracket expression is matched literally, still
	// case-insensitively.
	assert.Equal(t, "say [X] twice: [X]", rule.Apply("say foo[bar twice: FOO[BAR"))
}

func TestRedactionRule_AppliesTo(t *testing.T) {
	unscoped := RedactionRule{Pattern: "x"}
	assert.True(t, unscoped.AppliesTo("prompt"))
	assert.True(t, unscoped.AppliesTo("body"))

	scoped := RedactionRule{Pattern: "x", Fields: []string{"prompt", "response"}}
	assert.True(t, scoped.AppliesTo("prompt"))
	assert.True(t, scoped.AppliesTo("response"))
	assert.False(t, scoped.AppliesTo("body"))
}

func TestTenant_Route(t *testing.T) {
	tenant := &Tenant{
		ID: "acme",
		Routes: map[string]*RouteDefinition{
			"chat": {Name: "chat", Kind: RouteKindAI},
		},
	}

	require.NotNil(t, tenant.Route("chat"))
	assert.Nil(t, tenant.Route("nope"))
	assert.Nil(t, (&Tenant{}).Route("chat"))
}
