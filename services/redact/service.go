// Package redact applies a tenant's ordered data-protection rules to the
// free-text fields of a payload before it leaves the gateway. Structural
// fields used for enforcement decisions (route name, method, headers) are
// never redacted, so redaction cannot change which limits apply.
package redact

import (
	"strings"

	"github.com/upb/ai-gateway/models"
)

// Service applies redaction rules.
type Service struct{}

// NewService creates a redaction service.
func NewService() *Service {
	return &Service{}
}

// Apply runs the tenant's rules over text for the named payload field.
// Rules run strictly in declaration order, each as one global
// find-and-replace pass, so a later rule can match text introduced by an
// earlier rule's replacement. Returns the redacted text and the number of
// replacements made.
func (s *Service) Apply(text, field string, rules []models.RedactionRule) (string, int) {
	applied := 0
	for i := range rules {
		rule := &rules[i]
		if !rule.AppliesTo(field) {
			continue
		}
		applied += countMatches(text, rule)
		text = rule.Apply(text)
	}
	return text, applied
}

func countMatches(text string, rule *models.RedactionRule) int {
	if re := rule.Regexp(); re != nil {
		return len(re.FindAllStringIndex(text, -1))
	}
	return strings.Count(text, rule.Pattern)
}
