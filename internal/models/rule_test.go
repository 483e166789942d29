package models

import (
	"testing"
)

func TestParseRuleUnknownType(t *testing.T) {
	_, err := ParseRule(map[string]interface{}{
		"type": "bayesian",
		"name": "spam",
	})
	if err == nil {
		t.Fatal("Expected unknown rule type to be rejected")
	}
}

func TestParseRuleMissingFields(t *testing.T) {
	cases := []map[string]interface{}{
		{"name": "no-type"},
		{"type": "keyword"},                       // no name
		{"type": "keyword", "name": "kw"},         // no keywords
		{"type": "domain", "name": "dom"},         // no domains
		{"type": "label", "name": "lbl"},          // no labels
		{"type": "largeAttachment", "name": "la"}, // no min_size
	}
	for i, bag := range cases {
		if _, err := ParseRule(bag); err == nil {
			t.Fatalf("Case %d: expected parse failure for %v", i, bag)
		}
	}
}

func TestParseRuleNumericCoercion(t *testing.T) {
	// JSON decoders hand back float64, TOML int64.
	rule, err := ParseRule(map[string]interface{}{
		"type":     "largeAttachment",
		"name":     "big",
		"priority": float64(30),
		"weight":   int64(2),
		"min_size": int64(5000000),
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if rule.Priority != 30 || rule.Weight != 2 || rule.MinSize != 5000000 {
		t.Fatalf("Numeric fields not coerced: %+v", rule)
	}
}

func TestParseRuleDefaultsIDToName(t *testing.T) {
	rule, err := ParseRule(map[string]interface{}{
		"type":     "keyword",
		"name":     "urgent-words",
		"keywords": []interface{}{"urgent", "asap"},
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if rule.ID != "urgent-words" {
		t.Fatalf("Expected ID defaulted to name, got %q", rule.ID)
	}
	if len(rule.Keywords) != 2 {
		t.Fatalf("Expected 2 keywords, got %d", len(rule.Keywords))
	}
}

func TestParseRulesFailFast(t *testing.T) {
	bags := []map[string]interface{}{
		{"type": "keyword", "name": "ok", "keywords": []interface{}{"x"}},
		{"type": "broken"},
	}
	if _, err := ParseRules(bags); err == nil {
		t.Fatal("Expected parse to fail on the broken rule")
	}
}

func TestRulesFromLegacyKeywords(t *testing.T) {
	rules := RulesFromLegacyKeywords([]string{"urgent"}, []string{"sale"})
	if len(rules) != 2 {
		t.Fatalf("Expected 2 legacy rules, got %d", len(rules))
	}
	if rules[0].Weight <= 0 {
		t.Fatal("High-keyword rule should carry positive weight")
	}
	if rules[1].Weight >= 0 {
		t.Fatal("Low-keyword rule should carry negative weight")
	}

	if got := RulesFromLegacyKeywords(nil, nil); len(got) != 0 {
		t.Fatalf("Expected no rules from empty config, got %d", len(got))
	}
}
