// -----------------------------------------------------------------------
// DateSize Analyzer - age and size bucketing
// -----------------------------------------------------------------------

package analyzer

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/common"
	"github.com/ternarybob/curator/internal/models"
)

const (
	AgeRecent   = "recent"
	AgeModerate = "moderate"
	AgeOld      = "old"

	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
)

// DateSizeAnalyzer buckets an email by age and size and emits a weighted
// score. A value exactly on a threshold falls into the lower bucket.
type DateSizeAnalyzer struct {
	config *common.AnalysisConfig
	logger arbor.ILogger

	// now is swappable for tests.
	now func() time.Time
}

func NewDateSizeAnalyzer(logger arbor.ILogger, config *common.AnalysisConfig) *DateSizeAnalyzer {
	return &DateSizeAnalyzer{
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

func (a *DateSizeAnalyzer) Name() string {
	return "datesize"
}

func (a *DateSizeAnalyzer) Analyze(ctx context.Context, email *models.EmailContext) (*Verdict, error) {
	ageDays := int(a.now().Sub(email.Date).Hours() / 24)
	ageCategory := a.ageCategory(ageDays)
	sizeCategory := a.sizeCategory(email.SizeBytes)

	// Recent and small both score 1; old and large score 0.
	recencyScore := map[string]float64{AgeRecent: 1, AgeModerate: 0.5, AgeOld: 0}[ageCategory]
	sizeScore := map[string]float64{SizeSmall: 1, SizeMedium: 0.5, SizeLarge: 0}[sizeCategory]

	return &Verdict{
		AgeCategory:   ageCategory,
		SizeCategory:  sizeCategory,
		DateSizeScore: recencyScore*a.config.RecencyWeight + sizeScore*a.config.SizeWeight,
	}, nil
}

func (a *DateSizeAnalyzer) ageCategory(ageDays int) string {
	switch {
	case ageDays <= a.config.RecentDays:
		return AgeRecent
	case ageDays <= a.config.ModerateDays:
		return AgeModerate
	default:
		return AgeOld
	}
}

func (a *DateSizeAnalyzer) sizeCategory(sizeBytes int64) string {
	switch {
	case sizeBytes <= a.config.SmallMaxBytes:
		return SizeSmall
	case sizeBytes <= a.config.MediumMaxBytes:
		return SizeMedium
	default:
		return SizeLarge
	}
}
