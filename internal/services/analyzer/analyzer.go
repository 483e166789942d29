// Package analyzer holds the three categorization analyzers. Each produces
// one facet of the final verdict; the orchestrator combines them.
package analyzer

import (
	"context"

	"github.com/ternarybob/curator/internal/models"
)

// Verdict is one analyzer's partial contribution. Analyzers fill only their
// own fields; the orchestrator merges facets across analyzers.
type Verdict struct {
	// Importance facet
	ImportanceLevel        string   `json:"importance_level,omitempty"`
	ImportanceScore        float64  `json:"importance_score,omitempty"`
	ImportanceMatchedRules []string `json:"importance_matched_rules,omitempty"`
	Confidence             float64  `json:"confidence,omitempty"`
	CacheHit               bool     `json:"cache_hit,omitempty"`

	// Date/size facet
	AgeCategory   string  `json:"age_category,omitempty"`
	SizeCategory  string  `json:"size_category,omitempty"`
	DateSizeScore float64 `json:"datesize_score,omitempty"`

	// Label facet
	GmailCategory    string  `json:"gmail_category,omitempty"`
	SpamScore        float64 `json:"spam_score,omitempty"`
	PromotionalScore float64 `json:"promotional_score,omitempty"`
	SocialScore      float64 `json:"social_score,omitempty"`
}

// Analyzer produces one facet of an email's verdict. Implementations must be
// deterministic for a fixed (config, context) pair and safe for concurrent
// use.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, email *models.EmailContext) (*Verdict, error)
}

// Neutral is the verdict an analyzer contributes when it times out in
// parallel mode. It changes nothing during combination.
func Neutral() *Verdict {
	return &Verdict{}
}

// Merge folds src's facets into dst. Zero values in src leave dst untouched.
func Merge(dst, src *Verdict) {
	if src == nil {
		return
	}
	if src.ImportanceLevel != "" {
		dst.ImportanceLevel = src.ImportanceLevel
		dst.ImportanceScore = src.ImportanceScore
		dst.ImportanceMatchedRules = src.ImportanceMatchedRules
		dst.Confidence = src.Confidence
		dst.CacheHit = src.CacheHit
	}
	if src.AgeCategory != "" {
		dst.AgeCategory = src.AgeCategory
		dst.SizeCategory = src.SizeCategory
		dst.DateSizeScore = src.DateSizeScore
	}
	if src.GmailCategory != "" {
		dst.GmailCategory = src.GmailCategory
		dst.SpamScore = src.SpamScore
		dst.PromotionalScore = src.PromotionalScore
		dst.SocialScore = src.SocialScore
	}
}
