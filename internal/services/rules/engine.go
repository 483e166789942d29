// -----------------------------------------------------------------------
// Rule Engine - deterministic rule evaluation for categorization
// -----------------------------------------------------------------------

package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/models"
)

// Engine evaluates a fixed rule set against email contexts. The set is
// ordered once at construction: descending priority, insertion order breaking
// ties. Evaluation is pure; the engine is safe for concurrent use.
type Engine struct {
	rules  []models.Rule
	logger arbor.ILogger

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// NewEngine creates an engine over the given rules.
func NewEngine(logger arbor.ILogger, rules []models.Rule) *Engine {
	ordered := make([]models.Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	return &Engine{
		rules:    ordered,
		logger:   logger,
		patterns: make(map[string]*regexp.Regexp),
	}
}

// Rules returns the evaluation order.
func (e *Engine) Rules() []models.Rule {
	return e.rules
}

// Evaluation pairs a rule with its result for one email.
type Evaluation struct {
	Rule   *models.Rule
	Result models.RuleResult
}

// EvaluateAll runs every rule against the context. All rules are always
// evaluated; score aggregation needs the full set, so there is no
// short-circuit on match.
func (e *Engine) EvaluateAll(ctx *models.EmailContext) []Evaluation {
	evaluations := make([]Evaluation, 0, len(e.rules))
	for i := range e.rules {
		rule := &e.rules[i]
		evaluations = append(evaluations, Evaluation{
			Rule:   rule,
			Result: e.Evaluate(rule, ctx),
		})
	}
	return evaluations
}

// Evaluate runs one rule against the context.
func (e *Engine) Evaluate(rule *models.Rule, ctx *models.EmailContext) models.RuleResult {
	switch rule.Type {
	case models.RuleTypeKeyword:
		return e.evaluateKeyword(rule, ctx)
	case models.RuleTypeDomain:
		return e.evaluateDomain(rule, ctx)
	case models.RuleTypeLabel:
		return e.evaluateLabel(rule, ctx)
	case models.RuleTypeNoReply:
		return e.evaluateNoReply(rule, ctx)
	case models.RuleTypeLargeAttachment:
		return e.evaluateLargeAttachment(rule, ctx)
	default:
		e.logger.Warn().Str("rule", rule.Name).Str("type", string(rule.Type)).Msg("Unknown rule type - treating as no match")
		return models.RuleResult{}
	}
}

// evaluateKeyword matches keywords on word boundaries in subject + snippet,
// case-insensitive. Score scales with the number of distinct keywords hit.
func (e *Engine) evaluateKeyword(rule *models.Rule, ctx *models.EmailContext) models.RuleResult {
	text := ctx.Subject + " " + ctx.Snippet

	var matched []string
	for _, keyword := range rule.Keywords {
		pattern, err := e.wordPattern(keyword)
		if err != nil {
			e.logger.Warn().Err(err).Str("rule", rule.Name).Str("keyword", keyword).Msg("Invalid keyword - skipping")
			continue
		}
		if pattern.MatchString(text) {
			matched = append(matched, keyword)
		}
	}

	if len(matched) == 0 {
		return models.RuleResult{}
	}
	return models.RuleResult{
		Matched: true,
		Score:   float64(len(matched)) * rule.Weight,
		Reason:  fmt.Sprintf("keywords matched: %s", strings.Join(matched, ", ")),
	}
}

func (e *Engine) evaluateDomain(rule *models.Rule, ctx *models.EmailContext) models.RuleResult {
	sender := strings.ToLower(ctx.Sender)
	for _, domain := range rule.Domains {
		if strings.Contains(sender, strings.ToLower(domain)) {
			return models.RuleResult{
				Matched: true,
				Score:   rule.Weight,
				Reason:  fmt.Sprintf("sender matches domain %s", domain),
			}
		}
	}
	return models.RuleResult{}
}

func (e *Engine) evaluateLabel(rule *models.Rule, ctx *models.EmailContext) models.RuleResult {
	matchedCount := 0
	for _, want := range rule.Labels {
		if models.HasLabel(ctx.Labels, want) {
			matchedCount++
		}
	}
	if matchedCount == 0 {
		return models.RuleResult{}
	}
	return models.RuleResult{
		Matched: true,
		Score:   float64(matchedCount) * rule.Weight,
		Reason:  fmt.Sprintf("%d label(s) matched", matchedCount),
	}
}

func (e *Engine) evaluateNoReply(rule *models.Rule, ctx *models.EmailContext) models.RuleResult {
	sender := strings.ToLower(ctx.Sender)
	if strings.Contains(sender, "no-reply") || strings.Contains(sender, "noreply") {
		return models.RuleResult{
			Matched: true,
			Score:   rule.Weight,
			Reason:  "sender is a no-reply address",
		}
	}
	return models.RuleResult{}
}

func (e *Engine) evaluateLargeAttachment(rule *models.Rule, ctx *models.EmailContext) models.RuleResult {
	if ctx.HasAttachments && ctx.SizeBytes > rule.MinSize {
		return models.RuleResult{
			Matched: true,
			Score:   rule.Weight,
			Reason:  fmt.Sprintf("attachment-bearing email over %d bytes", rule.MinSize),
		}
	}
	return models.RuleResult{}
}

// wordPattern compiles and memoizes the word-boundary matcher for a keyword.
func (e *Engine) wordPattern(keyword string) (*regexp.Regexp, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pattern, ok := e.patterns[keyword]; ok {
		return pattern, nil
	}
	pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(strings.ToLower(keyword)) + `\b`)
	if err != nil {
		return nil, err
	}
	e.patterns[keyword] = pattern
	return pattern, nil
}
