// -----------------------------------------------------------------------
// Importance Analyzer - rule-driven scoring with fingerprint caching
// -----------------------------------------------------------------------

package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/common"
	"github.com/ternarybob/curator/internal/interfaces"
	"github.com/ternarybob/curator/internal/models"
	"github.com/ternarybob/curator/internal/services/cache"
	"github.com/ternarybob/curator/internal/services/rules"
)

const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

// ImportanceAnalyzer scores an email against the rule set and maps the score
// to a level via configured thresholds. Results are cached per context
// fingerprint; cache failures degrade to a recompute, never an error.
type ImportanceAnalyzer struct {
	engine *rules.Engine
	cache  interfaces.CacheService
	config *common.AnalysisConfig
	logger arbor.ILogger
}

// importanceResult is the cached payload.
type importanceResult struct {
	Level        string   `json:"level"`
	Score        float64  `json:"score"`
	MatchedRules []string `json:"matched_rules"`
	Confidence   float64  `json:"confidence"`
}

func NewImportanceAnalyzer(logger arbor.ILogger, engine *rules.Engine, cacheService interfaces.CacheService, config *common.AnalysisConfig) *ImportanceAnalyzer {
	return &ImportanceAnalyzer{
		engine: engine,
		cache:  cacheService,
		config: config,
		logger: logger,
	}
}

func (a *ImportanceAnalyzer) Name() string {
	return "importance"
}

func (a *ImportanceAnalyzer) Analyze(ctx context.Context, email *models.EmailContext) (*Verdict, error) {
	fingerprint, err := a.Fingerprint(email)
	if err != nil {
		// Fingerprint failure only disables caching for this email.
		a.logger.Warn().Err(err).Str("email_id", email.EmailID).Msg("Fingerprint failed - analyzing uncached")
		fingerprint = ""
	}

	if a.config.CacheEnabled && fingerprint != "" {
		if cached, ok := a.cache.Get(cache.ImportanceKey(email.UserID, fingerprint)); ok {
			if result, ok := cached.(*importanceResult); ok {
				return a.verdict(result, true), nil
			}
		}
	}

	result := a.evaluate(email)

	if a.config.CacheEnabled && fingerprint != "" {
		a.cache.Set(cache.ImportanceKey(email.UserID, fingerprint), result, a.config.CacheTTLDuration())
	}
	return a.verdict(result, false), nil
}

func (a *ImportanceAnalyzer) evaluate(email *models.EmailContext) *importanceResult {
	evaluations := a.engine.EvaluateAll(email)

	score := 0.0
	prioritySum := 0
	var matchedRules []string
	for _, ev := range evaluations {
		if !ev.Result.Matched {
			continue
		}
		score += ev.Result.Score
		prioritySum += ev.Rule.Priority
		matchedRules = append(matchedRules, ev.Rule.Name)
	}

	level := LevelMedium
	switch {
	case score >= a.config.HighThreshold:
		level = LevelHigh
	case score <= a.config.LowThreshold:
		level = LevelLow
	}

	confidence := 0.0
	if len(evaluations) > 0 {
		confidence = float64(len(matchedRules)) / float64(len(evaluations))
	}
	confidence += float64(prioritySum) / 100
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	return &importanceResult{
		Level:        level,
		Score:        score,
		MatchedRules: matchedRules,
		Confidence:   confidence,
	}
}

func (a *ImportanceAnalyzer) verdict(r *importanceResult, cacheHit bool) *Verdict {
	return &Verdict{
		ImportanceLevel:        r.Level,
		ImportanceScore:        r.Score,
		ImportanceMatchedRules: r.MatchedRules,
		Confidence:             r.Confidence,
		CacheHit:               cacheHit,
	}
}

// Fingerprint derives the cache key discriminator for one context.
// "partial" hashes identity plus subject/sender; "full" hashes the canonical
// JSON of the whole context with labels sorted for stability.
func (a *ImportanceAnalyzer) Fingerprint(email *models.EmailContext) (string, error) {
	var payload interface{}
	switch a.config.FingerprintStrategy {
	case "full":
		stable := *email
		stable.Labels = make([]string, len(email.Labels))
		copy(stable.Labels, email.Labels)
		sort.Strings(stable.Labels)
		payload = &stable
	default:
		payload = map[string]string{
			"user":     email.UserID,
			"email_id": email.EmailID,
			"subject":  email.Subject,
			"sender":   email.Sender,
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
