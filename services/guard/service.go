// Package guard scores prompts for injection attempts before they reach
// a provider. Detection is heuristic: ordered pattern categories, each
// carrying a confidence and a weight, combined into a single risk score
// that routes with guarding enabled compare against a threshold.
package guard

import (
	"regexp"
	"sort"

	"github.com/upb/ai-gateway/services"
)

// Category labels one class of injection technique.
type Category string

const (
	CategoryPromptLeak   Category = "prompt_leak"
	CategoryRoleHijack   Category = "role_hijack"
	CategoryOverride     Category = "instruction_override"
	CategoryExfiltration Category = "exfiltration"
	CategoryJailbreak    Category = "jailbreak"
	CategoryDelimiter    Category = "delimiter_smuggling"
	CategoryEncoded      Category = "encoded_payload"
)

// Finding is one pattern match inside a prompt.
type Finding struct {
	Category   Category
	Confidence float64
	Start      int
	End        int
}

// ruleSet groups the patterns of one category with the confidence every
// match carries and the weight the category contributes to the score.
type ruleSet struct {
	category   Category
	confidence float64
	weight     float64
	patterns   []*regexp.Regexp
}

var ruleSets = []ruleSet{
	{
		category:   CategoryPromptLeak,
		confidence: 0.9,
		weight:     1.5,
		patterns: compile(
			`(?i)ignore\s+(previous|all|above|prior)\s+(instructions?|prompts?|commands?)`,
			`(?i)(show|reveal|print|repeat)\s+(me\s+)?(your|the)\s+(system|original|initial|hidden|secret)\s+(prompt|instructions?)`,
			`(?i)what\s+(is|are|was|were)\s+(your|the)\s+(system|original|initial)\s+(prompt|instructions?)`,
		),
	},
	{
		category:   CategoryRoleHijack,
		confidence: 0.85,
		weight:     1.0,
		patterns: compile(
			`(?i)(you|your)\s+(are|role|identity)\s+(now|is|changed)`,
			`(?i)assume\s+(the\s+)?(role|identity)\s+of`,
			`(?i)pretend\s+(to\s+)?be\s+(a|an)`,
			`(?i)act\s+as\s+(if\s+)?(you|you're|you\s+are)`,
			`(?i)from\s+now\s+on[,]?\s+(you|your)\s+(are|will)`,
		),
	},
	{
		category:   CategoryOverride,
		confidence: 0.9,
		weight:     1.5,
		patterns: compile(
			`(?i)(disregard|override|cancel)\s+(all|any|previous|above|system)\s+(instructions?|rules|commands?|settings?)`,
			`(?i)forget\s+(everything|all\s+previous|what\s+you\s+learned)`,
			`(?i)start\s+over\s+with\s+new\s+instructions?`,
		),
	},
	{
		category:   CategoryExfiltration,
		confidence: 0.95,
		weight:     2.0,
		patterns: compile(
			`(?i)(execute|run)\s+(this|the\s+following)\s+(code|script|command)`,
			`(?i)(eval|exec|system)\s*\(`,
			`(?i)import\s+(os|sys|subprocess|socket)`,
			`(?i)send\s+(data|information|content)\s+to\s+https?://`,
		),
	},
	{
		category:   CategoryJailbreak,
		confidence: 0.95,
		weight:     2.0,
		patterns: compile(
			`(?i)\b(DAN|developer|unrestricted|god)\s+mode\b`,
			`(?i)jailbreak`,
			`(?i)without\s+(any|ethical|moral)\s+(restrictions?|limitations?|guidelines?)`,
		),
	},
	{
		category:   CategoryDelimiter,
		confidence: 0.8,
		weight:     1.0,
		patterns: compile(
			`\[/?(SYSTEM|USER|ASSISTANT)\]`,
			`<\|(system|user|assistant|end)\|>`,
			`###\s*(SYSTEM|USER|ASSISTANT|INSTRUCTION)`,
		),
	},
	{
		category:   CategoryEncoded,
		confidence: 0.7,
		weight:     1.0,
		patterns: compile(
			`(?i)base64\s*[:\s=]\s*[A-Za-z0-9+/]{20,}={0,2}`,
			`(?i)hex\s*[:\s=]\s*[0-9a-fA-F]{20,}`,
			`(?:\\x[0-9a-fA-F]{2}){10,}`,
		),
	},
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// DefaultThreshold is the risk score at which prompts are rejected.
const DefaultThreshold = 0.8

// Service evaluates prompts against the injection heuristics.
type Service struct {
	threshold float64
}

// NewService creates a guard with the given rejection threshold. Values
// outside (0, 1] fall back to DefaultThreshold.
func NewService(threshold float64) *Service {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Service{threshold: threshold}
}

// Inspect returns every pattern match in the text, ordered by position.
func (s *Service) Inspect(text string) []Finding {
	var findings []Finding
	for _, rs := range ruleSets {
		for _, p := range rs.patterns {
			for _, m := range p.FindAllStringIndex(text, -1) {
				findings = append(findings, Finding{
					Category:   rs.category,
					Confidence: rs.confidence,
					Start:      m[0],
					End:        m[1],
				})
			}
		}
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].Start < findings[j].Start })
	return findings
}

// Score computes the weighted risk score in [0, 1] for the text. A text
// with no findings scores zero.
func (s *Service) Score(text string) float64 {
	return scoreFindings(s.Inspect(text))
}

// Check returns a validation denial when the text scores at or above the
// threshold, nil otherwise.
func (s *Service) Check(text string) error {
	findings := s.Inspect(text)
	if len(findings) == 0 {
		return nil
	}
	score := scoreFindings(findings)
	if score < s.threshold {
		return nil
	}
	return services.PromptRejected(score, categories(findings))
}

func scoreFindings(findings []Finding) float64 {
	if len(findings) == 0 {
		return 0
	}
	var sum, weights float64
	for _, f := range findings {
		w := weightOf(f.Category)
		sum += f.Confidence * w
		weights += w
	}
	score := sum / weights
	if score > 1 {
		score = 1
	}
	return score
}

func weightOf(c Category) float64 {
	for _, rs := range ruleSets {
		if rs.category == c {
			return rs.weight
		}
	}
	return 1
}

// categories returns the distinct categories present, first-seen order.
func categories(findings []Finding) []string {
	seen := make(map[Category]bool, len(findings))
	var out []string
	for _, f := range findings {
		if !seen[f.Category] {
			seen[f.Category] = true
			out = append(out, string(f.Category))
		}
	}
	return out
}
