// -----------------------------------------------------------------------
// Categorization Orchestrator - analyzer fan-out and verdict combination
// -----------------------------------------------------------------------

package categorize

import (
	"context"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/curator/internal/common"
	"github.com/ternarybob/curator/internal/interfaces"
	"github.com/ternarybob/curator/internal/models"
	"github.com/ternarybob/curator/internal/services/analyzer"
	"github.com/ternarybob/curator/internal/services/cache"
	"github.com/ternarybob/curator/internal/storage"
)

// Options selects the candidate set for one run.
type Options struct {
	ForceRefresh bool
	Year         int
}

// EmailError records one email that could not be categorized. The batch
// continues past it.
type EmailError struct {
	EmailID string `json:"email_id"`
	Error   string `json:"error"`
}

// AnalyzerInsights is the aggregate metrics block of a run.
type AnalyzerInsights struct {
	TopImportanceRules []string               `json:"top_importance_rules"`
	SpamDetectionRate  float64                `json:"spam_detection_rate"`
	AvgConfidence      float64                `json:"avg_confidence"`
	AgeDistribution    map[string]int         `json:"age_distribution"`
	SizeDistribution   map[string]int         `json:"size_distribution"`
	CacheStats         *interfaces.CacheStats `json:"cache_stats,omitempty"`
}

// Summary is the result payload of one categorization run.
type Summary struct {
	Processed  int              `json:"processed"`
	Categories map[string]int   `json:"categories"`
	EmailIDs   []string         `json:"email_ids"`
	Errors     []EmailError     `json:"errors,omitempty"`
	Insights   AnalyzerInsights `json:"analyzer_insights"`
}

// Orchestrator drives analyzers over a candidate batch and combines their
// facets into final categories.
type Orchestrator struct {
	analyzers []analyzer.Analyzer
	cache     interfaces.CacheService
	config    *common.AnalysisConfig
	logger    arbor.ILogger
}

func NewOrchestrator(logger arbor.ILogger, analyzers []analyzer.Analyzer, cacheService interfaces.CacheService, config *common.AnalysisConfig) *Orchestrator {
	return &Orchestrator{
		analyzers: analyzers,
		cache:     cacheService,
		config:    config,
		logger:    logger,
	}
}

// Run categorizes the user's candidate emails. With ForceRefresh every email
// is re-evaluated; otherwise only uncategorized ones. Re-running without
// force on unchanged inputs is a no-op for already-categorized emails.
func (o *Orchestrator) Run(ctx context.Context, db *storage.UserDB, opts Options) (*Summary, error) {
	candidates, err := o.loadCandidates(db, opts)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Categories: map[string]int{"high": 0, "medium": 0, "low": 0},
		Insights: AnalyzerInsights{
			AgeDistribution:  make(map[string]int),
			SizeDistribution: make(map[string]int),
		},
	}
	if len(candidates) == 0 {
		return summary, nil
	}

	ruleHits := make(map[string]int)
	spamCount := 0
	confidenceSum := 0.0

	for _, email := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		verdict, err := o.analyzeOne(ctx, email)
		if err != nil {
			summary.Errors = append(summary.Errors, EmailError{EmailID: email.ID, Error: err.Error()})
			o.logger.Warn().Err(err).Str("email_id", email.ID).Msg("Email categorization failed - continuing batch")
			continue
		}

		category := o.combine(verdict, email)
		if err := o.persist(db, email, verdict, category); err != nil {
			summary.Errors = append(summary.Errors, EmailError{EmailID: email.ID, Error: err.Error()})
			o.logger.Error().Err(err).Str("email_id", email.ID).Msg("Failed to persist verdict - continuing batch")
			continue
		}

		summary.Processed++
		switch category {
		case models.CategoryHigh:
			summary.Categories["high"]++
		case models.CategoryLow:
			summary.Categories["low"]++
		default:
			summary.Categories["medium"]++
		}
		summary.EmailIDs = append(summary.EmailIDs, email.ID)

		for _, rule := range verdict.ImportanceMatchedRules {
			ruleHits[rule]++
		}
		if verdict.SpamScore >= o.config.SpamThreshold {
			spamCount++
		}
		confidenceSum += verdict.Confidence
		if verdict.AgeCategory != "" {
			summary.Insights.AgeDistribution[verdict.AgeCategory]++
		}
		if verdict.SizeCategory != "" {
			summary.Insights.SizeDistribution[verdict.SizeCategory]++
		}
	}

	if summary.Processed > 0 {
		summary.Insights.SpamDetectionRate = float64(spamCount) / float64(summary.Processed)
		summary.Insights.AvgConfidence = confidenceSum / float64(summary.Processed)
		// Index-derived reads are stale once any verdict changed.
		userID := candidates[0].UserID
		o.cache.DeletePrefix(cache.StatsPrefix(userID))
		o.cache.DeletePrefix(cache.EmailListPrefix(userID))
		o.cache.DeletePrefix(cache.EmailPrefix(userID))
	}
	summary.Insights.TopImportanceRules = topRules(ruleHits, 5)
	stats := o.cache.Stats()
	summary.Insights.CacheStats = &stats

	return summary, nil
}

func (o *Orchestrator) loadCandidates(db *storage.UserDB, opts Options) ([]*models.EmailIndex, error) {
	if !opts.ForceRefresh {
		return db.UncategorizedEmails(opts.Year)
	}

	criteria := &models.EmailCriteria{}
	if opts.Year > 0 {
		criteria.Year = opts.Year
	}
	emails, _, err := db.QueryEmails(criteria)
	return emails, err
}

// analyzeOne runs every analyzer over one email and merges their facets.
func (o *Orchestrator) analyzeOne(ctx context.Context, email *models.EmailIndex) (*analyzer.Verdict, error) {
	emailCtx, err := models.NewEmailContext(email)
	if err != nil {
		return nil, err
	}

	merged := &analyzer.Verdict{}
	if o.config.Parallel {
		verdicts := make([]*analyzer.Verdict, len(o.analyzers))
		g, groupCtx := errgroup.WithContext(ctx)
		for i, a := range o.analyzers {
			g.Go(func() error {
				verdicts[i] = o.runWithTimeout(groupCtx, a, emailCtx)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, v := range verdicts {
			analyzer.Merge(merged, v)
		}
		return merged, nil
	}

	for _, a := range o.analyzers {
		verdict, err := a.Analyze(ctx, emailCtx)
		if err != nil {
			o.logger.Warn().Err(err).Str("analyzer", a.Name()).Str("email_id", email.ID).Msg("Analyzer failed - contributing neutral verdict")
			continue
		}
		analyzer.Merge(merged, verdict)
	}
	return merged, nil
}

// runWithTimeout bounds one analyzer call. A timeout contributes a neutral
// verdict; the remaining analyzers still combine.
func (o *Orchestrator) runWithTimeout(ctx context.Context, a analyzer.Analyzer, emailCtx *models.EmailContext) *analyzer.Verdict {
	timeoutCtx, cancel := context.WithTimeout(ctx, o.config.AnalyzerTimeoutDuration())
	defer cancel()

	type outcome struct {
		verdict *analyzer.Verdict
		err     error
	}
	done := make(chan outcome, 1)
	common.SafeGo(o.logger, "analyzer-"+a.Name(), func() {
		verdict, err := a.Analyze(timeoutCtx, emailCtx)
		done <- outcome{verdict, err}
	})

	select {
	case out := <-done:
		if out.err != nil {
			o.logger.Warn().Err(out.err).Str("analyzer", a.Name()).Str("email_id", emailCtx.EmailID).Msg("Analyzer failed - contributing neutral verdict")
			return analyzer.Neutral()
		}
		return out.verdict
	case <-timeoutCtx.Done():
		o.logger.Warn().Str("analyzer", a.Name()).Str("email_id", emailCtx.EmailID).Msg("Analyzer timed out - contributing neutral verdict")
		return analyzer.Neutral()
	}
}

// combine maps merged facets to the final category. Importance sets the
// base; explicit important/starred labels on recent mail upgrade, spam and
// promotional signals downgrade.
func (o *Orchestrator) combine(verdict *analyzer.Verdict, email *models.EmailIndex) models.Category {
	category := models.CategoryMedium
	switch verdict.ImportanceLevel {
	case analyzer.LevelHigh:
		category = models.CategoryHigh
	case analyzer.LevelLow:
		category = models.CategoryLow
	}

	explicitImportant := models.HasLabel(email.Labels, models.LabelImportant) ||
		models.HasLabel(email.Labels, models.LabelStarred)
	if explicitImportant && verdict.AgeCategory == analyzer.AgeRecent {
		category = models.CategoryHigh
	}

	if verdict.SpamScore > o.config.SpamThreshold || verdict.PromotionalScore > o.config.PromoThreshold {
		category = models.CategoryLow
	}
	return category
}

func (o *Orchestrator) persist(db *storage.UserDB, email *models.EmailIndex, verdict *analyzer.Verdict, category models.Category) error {
	now := time.Now().UTC()
	email.Category = category
	email.ImportanceLevel = verdict.ImportanceLevel
	email.ImportanceScore = verdict.ImportanceScore
	email.ImportanceMatchedRules = verdict.ImportanceMatchedRules
	email.AgeCategory = verdict.AgeCategory
	email.SizeCategory = verdict.SizeCategory
	email.GmailCategory = verdict.GmailCategory
	email.SpamScore = verdict.SpamScore
	email.PromotionalScore = verdict.PromotionalScore
	email.SocialScore = verdict.SocialScore
	email.AnalysisTimestamp = &now
	email.AnalysisVersion = models.AnalysisVersion

	return db.SaveEmail(email)
}

func topRules(hits map[string]int, n int) []string {
	type ruleHit struct {
		name  string
		count int
	}
	ranked := make([]ruleHit, 0, len(hits))
	for name, count := range hits {
		ranked = append(ranked, ruleHit{name, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].name < ranked[j].name
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	names := make([]string, len(ranked))
	for i, r := range ranked {
		names[i] = r.name
	}
	return names
}
