package policy

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/upb/ai-gateway/models"
	"gopkg.in/yaml.v3"
)

// defaultReplacement is substituted for matches of rules that do not
// declare their own replacement template.
const defaultReplacement = "[REDACTED]"

// Document is the on-disk tenant policy format. One document holds the
// full tenant table; a reload always replaces everything.
type Document struct {
	Tenants map[string]TenantDoc `yaml:"tenants" validate:"required,min=1,dive"`
}

// TenantDoc declares one tenant's credentials, limits, redaction rules
// and named routes.
type TenantDoc struct {
	Name            string              `yaml:"name"`
	Tokens          []string            `yaml:"tokens" validate:"dive,min=1"`
	RedactionRules  []RuleDoc           `yaml:"redaction_rules" validate:"dive"`
	RateLimit       RateLimitDoc        `yaml:"rate_limit"`
	Quota           QuotaDoc            `yaml:"quota"`
	DefaultProvider string              `yaml:"default_provider"`
	Routes          map[string]RouteDoc `yaml:"routes" validate:"dive"`
}

// RuleDoc is one ordered redaction rule.
type RuleDoc struct {
	Pattern     string   `yaml:"pattern" validate:"required"`
	Replacement string   `yaml:"replacement"`
	Fields      []string `yaml:"fields"`
}

// RateLimitDoc configures a fixed-window request ceiling.
type RateLimitDoc struct {
	Requests   int `yaml:"requests" validate:"min=0"`
	PerSeconds int `yaml:"per_seconds" validate:"min=0"`
}

// QuotaDoc configures a usage ceiling per billing period.
type QuotaDoc struct {
	Units  int64  `yaml:"units" validate:"min=0"`
	Period string `yaml:"period" validate:"omitempty,oneof=daily monthly"`
}

// RouteDoc declares a named dispatch target.
type RouteDoc struct {
	Kind         string        `yaml:"kind" validate:"required,oneof=proxy ai"`
	Upstream     string        `yaml:"upstream" validate:"omitempty,url"`
	AllowMethods []string      `yaml:"allow_methods"`
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model"`
	Redact       bool          `yaml:"redact"`
	Guard        bool          `yaml:"guard"`
	RateLimit    *RateLimitDoc `yaml:"rate_limit"`
	Quota        *QuotaDoc     `yaml:"quota"`
}

var validate = validator.New()

// Parse unmarshals and validates a YAML policy document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("policy: parse document: %w", err)
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("policy: validate document: %w", err)
	}
	for id, t := range doc.Tenants {
		for name, r := range t.Routes {
			if r.Kind == string(models.RouteKindProxy) && r.Upstream == "" {
				return nil, fmt.Errorf("policy: tenant %q route %q: proxy routes require an upstream", id, name)
			}
		}
	}
	return &doc, nil
}

// Compile turns a validated document into an immutable snapshot ready to
// be swapped into the store.
func (d *Document) Compile() *Snapshot {
	tenants := make(map[string]*models.Tenant, len(d.Tenants))
	tokens := make(map[string]string)

	for id, td := range d.Tenants {
		tenant := &models.Tenant{
			ID:              id,
			Name:            td.Name,
			RateLimit:       td.RateLimit.toModel(),
			Quota:           td.Quota.toModel(),
			DefaultProvider: td.DefaultProvider,
			Routes:          make(map[string]*models.RouteDefinition, len(td.Routes)),
		}

		tenant.RedactionRules = make([]models.RedactionRule, 0, len(td.RedactionRules))
		for _, rd := range td.RedactionRules {
			rule := models.RedactionRule{
				Pattern:     rd.Pattern,
				Replacement: rd.Replacement,
				Fields:      rd.Fields,
			}
			if rule.Replacement == "" {
				rule.Replacement = defaultReplacement
			}
			rule.Compile()
			tenant.RedactionRules = append(tenant.RedactionRules, rule)
		}

		for name, rd := range td.Routes {
			tenant.Routes[name] = rd.toModel(name)
		}

		for _, tok := range td.Tokens {
			tokens[tok] = id
		}
		tenants[id] = tenant
	}

	return &Snapshot{
		tenants:  tenants,
		tokens:   tokens,
		loadedAt: time.Now().UTC(),
	}
}

func (d RateLimitDoc) toModel() models.RateLimitConfig {
	return models.RateLimitConfig{
		Requests: d.Requests,
		Window:   time.Duration(d.PerSeconds) * time.Second,
	}
}

func (d QuotaDoc) toModel() models.QuotaConfig {
	period := models.PeriodMonthly
	if d.Period == string(models.PeriodDaily) {
		period = models.PeriodDaily
	}
	return models.QuotaConfig{Units: d.Units, Period: period}
}

func (d RouteDoc) toModel(name string) *models.RouteDefinition {
	route := &models.RouteDefinition{
		Name:           name,
		Kind:           models.RouteKind(d.Kind),
		Upstream:       d.Upstream,
		AllowedMethods: d.AllowMethods,
		Provider:       d.Provider,
		Model:          d.Model,
		Redact:         d.Redact,
		Guard:          d.Guard,
	}
	if d.RateLimit != nil {
		rl := d.RateLimit.toModel()
		route.RateLimit = &rl
	}
	if d.Quota != nil {
		q := d.Quota.toModel()
		route.Quota = &q
	}
	return route
}
