// -----------------------------------------------------------------------
// Rule - typed matching conditions for the categorization engine
// -----------------------------------------------------------------------

package models

import (
	"fmt"
)

// RuleType enumerates the recognized rule variants. Configuration bags with
// any other type fail parsing - silent false-matching hides config mistakes.
type RuleType string

const (
	RuleTypeKeyword         RuleType = "keyword"
	RuleTypeDomain          RuleType = "domain"
	RuleTypeLabel           RuleType = "label"
	RuleTypeNoReply         RuleType = "noReply"
	RuleTypeLargeAttachment RuleType = "largeAttachment"
)

// Rule is a typed matcher producing match + score. Evaluation is a pure
// function of an EmailContext: no side effects, deterministic.
type Rule struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     RuleType `json:"type"`
	Priority int      `json:"priority"` // Ordering tie-breaker, high first
	Weight   float64  `json:"weight"`   // Score contribution; may be negative

	// Type-specific fields
	Keywords []string `json:"keywords,omitempty"`
	Domains  []string `json:"domains,omitempty"`
	Labels   []string `json:"labels,omitempty"`
	MinSize  int64    `json:"min_size,omitempty"`
}

// RuleResult is the outcome of evaluating one rule against one email.
type RuleResult struct {
	Matched bool    `json:"matched"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason,omitempty"`
}

// ParseRule converts one untyped config bag into a typed Rule.
// Unknown rule types are rejected outright.
func ParseRule(bag map[string]interface{}) (*Rule, error) {
	typeStr, _ := bag["type"].(string)
	if typeStr == "" {
		return nil, fmt.Errorf("rule config missing 'type' field")
	}

	ruleType := RuleType(typeStr)
	switch ruleType {
	case RuleTypeKeyword, RuleTypeDomain, RuleTypeLabel, RuleTypeNoReply, RuleTypeLargeAttachment:
	default:
		return nil, fmt.Errorf("unknown rule type %q - must be one of: keyword, domain, label, noReply, largeAttachment", typeStr)
	}

	rule := &Rule{
		Type:     ruleType,
		ID:       bagString(bag, "id"),
		Name:     bagString(bag, "name"),
		Priority: bagInt(bag, "priority"),
		Weight:   bagFloat(bag, "weight"),
		Keywords: bagStringSlice(bag, "keywords"),
		Domains:  bagStringSlice(bag, "domains"),
		Labels:   bagStringSlice(bag, "labels"),
		MinSize:  int64(bagInt(bag, "min_size")),
	}

	if rule.Name == "" {
		return nil, fmt.Errorf("rule config missing 'name' field")
	}
	if rule.ID == "" {
		rule.ID = rule.Name
	}

	switch ruleType {
	case RuleTypeKeyword:
		if len(rule.Keywords) == 0 {
			return nil, fmt.Errorf("keyword rule %q has no keywords", rule.Name)
		}
	case RuleTypeDomain:
		if len(rule.Domains) == 0 {
			return nil, fmt.Errorf("domain rule %q has no domains", rule.Name)
		}
	case RuleTypeLabel:
		if len(rule.Labels) == 0 {
			return nil, fmt.Errorf("label rule %q has no labels", rule.Name)
		}
	case RuleTypeLargeAttachment:
		if rule.MinSize <= 0 {
			return nil, fmt.Errorf("largeAttachment rule %q requires min_size > 0", rule.Name)
		}
	}

	return rule, nil
}

// ParseRules converts a list of untyped bags, preserving order so that
// equal-priority rules tie-break by insertion order.
func ParseRules(bags []map[string]interface{}) ([]Rule, error) {
	rules := make([]Rule, 0, len(bags))
	for i, bag := range bags {
		rule, err := ParseRule(bag)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, *rule)
	}
	return rules, nil
}

// DefaultRules is the built-in rule set used when configuration supplies
// neither rule bags nor legacy keyword lists. Weights line up with the
// default thresholds: one urgent keyword reaches HIGH, one promotional
// keyword reaches LOW.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:       "urgent-keywords",
			Name:     "urgent-keywords",
			Type:     RuleTypeKeyword,
			Priority: 100,
			Weight:   10,
			Keywords: []string{"urgent", "asap", "critical", "important", "action required", "alert", "deadline"},
		},
		{
			ID:       "promotional-keywords",
			Name:     "promotional-keywords",
			Type:     RuleTypeKeyword,
			Priority: 60,
			Weight:   -5,
			Keywords: []string{"newsletter", "sale", "discount", "promotion", "unsubscribe", "special offer"},
		},
		{
			ID:       "no-reply-sender",
			Name:     "no-reply-sender",
			Type:     RuleTypeNoReply,
			Priority: 40,
			Weight:   -2,
		},
	}
}

// RulesFromLegacyKeywords translates the legacy keyword-list config format
// into keyword rules so old configs keep working.
func RulesFromLegacyKeywords(highKeywords, lowKeywords []string) []Rule {
	var rules []Rule
	if len(highKeywords) > 0 {
		rules = append(rules, Rule{
			ID:       "legacy-high-keywords",
			Name:     "legacy-high-keywords",
			Type:     RuleTypeKeyword,
			Priority: 50,
			Weight:   10,
			Keywords: highKeywords,
		})
	}
	if len(lowKeywords) > 0 {
		rules = append(rules, Rule{
			ID:       "legacy-low-keywords",
			Name:     "legacy-low-keywords",
			Type:     RuleTypeKeyword,
			Priority: 50,
			Weight:   -5,
			Keywords: lowKeywords,
		})
	}
	return rules
}

func bagString(bag map[string]interface{}, key string) string {
	s, _ := bag[key].(string)
	return s
}

func bagInt(bag map[string]interface{}, key string) int {
	// TOML and JSON decoders produce different numeric types
	switch v := bag[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func bagFloat(bag map[string]interface{}, key string) float64 {
	switch v := bag[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func bagStringSlice(bag map[string]interface{}, key string) []string {
	switch v := bag[key].(type) {
	case []string:
		return v
	case []interface{}:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}
