package analyzer

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/common"
	"github.com/ternarybob/curator/internal/interfaces"
	"github.com/ternarybob/curator/internal/models"
	"github.com/ternarybob/curator/internal/services/rules"
)

// Build constructs the three analyzers from configuration. Rule bags are
// parsed here so a bad config fails at startup, not mid-batch; legacy
// keyword lists are translated into keyword rules first.
func Build(logger arbor.ILogger, config *common.Config, cacheService interfaces.CacheService) ([]Analyzer, *rules.Engine, error) {
	ruleSet := models.RulesFromLegacyKeywords(
		config.Analysis.LegacyHighKeywords,
		config.Analysis.LegacyLowKeywords,
	)

	parsed, err := models.ParseRules(config.Rules)
	if err != nil {
		return nil, nil, err
	}
	ruleSet = append(ruleSet, parsed...)

	// A rule-less engine would leave every email MEDIUM; an unconfigured
	// install gets the built-in set instead.
	if len(ruleSet) == 0 {
		ruleSet = models.DefaultRules()
		logger.Info().Int("rules", len(ruleSet)).Msg("No rules configured - using built-in defaults")
	}

	engine := rules.NewEngine(logger, ruleSet)

	analyzers := []Analyzer{
		NewImportanceAnalyzer(logger, engine, cacheService, &config.Analysis),
		NewDateSizeAnalyzer(logger, &config.Analysis),
		NewLabelAnalyzer(logger),
	}
	return analyzers, engine, nil
}
