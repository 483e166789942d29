// -----------------------------------------------------------------------
// Label Classifier - semantic bucketing of vendor labels
// -----------------------------------------------------------------------

package analyzer

import (
	"context"
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/models"
)

// LabelAnalyzer maps vendor labels to semantic buckets and accumulates
// per-bucket scores. Classification is order-independent; labels are sorted
// up front so downstream fingerprints stay stable.
type LabelAnalyzer struct {
	logger arbor.ILogger
}

func NewLabelAnalyzer(logger arbor.ILogger) *LabelAnalyzer {
	return &LabelAnalyzer{logger: logger}
}

func (a *LabelAnalyzer) Name() string {
	return "label"
}

func (a *LabelAnalyzer) Analyze(ctx context.Context, email *models.EmailContext) (*Verdict, error) {
	labels := make([]string, len(email.Labels))
	copy(labels, email.Labels)
	sort.Strings(labels)

	scores := make(map[models.GmailCategory]float64)
	for _, label := range labels {
		bucket, ok := models.ClassifyLabel(label)
		if !ok {
			continue
		}
		scores[bucket.Category] += bucket.Weight
	}
	for category, score := range scores {
		if score > 1 {
			scores[category] = 1
		}
	}

	return &Verdict{
		GmailCategory:    string(a.dominantCategory(scores)),
		SpamScore:        scores[models.GmailCategorySpam],
		PromotionalScore: scores[models.GmailCategoryPromotions],
		SocialScore:      scores[models.GmailCategorySocial],
	}, nil
}

// dominantCategory picks the highest-scoring bucket, defaulting to primary.
// Ties resolve alphabetically so classification stays deterministic.
func (a *LabelAnalyzer) dominantCategory(scores map[models.GmailCategory]float64) models.GmailCategory {
	best := models.GmailCategoryPrimary
	bestScore := 0.0
	categories := make([]models.GmailCategory, 0, len(scores))
	for category := range scores {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	for _, category := range categories {
		if scores[category] > bestScore {
			best = category
			bestScore = scores[category]
		}
	}
	return best
}
