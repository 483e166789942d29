package models

import "strings"

// Gmail system labels recognized throughout the rule engine and analyzers.
const (
	LabelInbox              = "INBOX"
	LabelSent               = "SENT"
	LabelSpam               = "SPAM"
	LabelTrash              = "TRASH"
	LabelStarred            = "STARRED"
	LabelImportant          = "IMPORTANT"
	LabelUnread             = "UNREAD"
	LabelDraft              = "DRAFT"
	LabelCategoryPromotions = "CATEGORY_PROMOTIONS"
	LabelCategorySocial     = "CATEGORY_SOCIAL"
	LabelCategoryUpdates    = "CATEGORY_UPDATES"
	LabelCategoryForums     = "CATEGORY_FORUMS"
	LabelCategoryPersonal   = "CATEGORY_PERSONAL"
)

// GmailCategory is the semantic bucket assigned by the label classifier.
type GmailCategory string

const (
	GmailCategoryImportant  GmailCategory = "important"
	GmailCategorySpam       GmailCategory = "spam"
	GmailCategoryPromotions GmailCategory = "promotions"
	GmailCategorySocial     GmailCategory = "social"
	GmailCategoryUpdates    GmailCategory = "updates"
	GmailCategoryForums     GmailCategory = "forums"
	GmailCategoryPrimary    GmailCategory = "primary"
)

// LabelBucket maps one label to a semantic bucket with a contribution weight.
// Explicit system labels contribute more than fuzzy name matches.
type LabelBucket struct {
	Category GmailCategory
	Weight   float64
}

// explicitLabelBuckets covers exact (case-insensitive) label matches.
var explicitLabelBuckets = map[string]LabelBucket{
	LabelSpam:               {GmailCategorySpam, 0.9},
	LabelImportant:          {GmailCategoryImportant, 0.8},
	LabelStarred:            {GmailCategoryImportant, 0.6},
	LabelCategoryPromotions: {GmailCategoryPromotions, 0.8},
	LabelCategorySocial:     {GmailCategorySocial, 0.8},
	LabelCategoryUpdates:    {GmailCategoryUpdates, 0.7},
	LabelCategoryForums:     {GmailCategoryForums, 0.7},
	LabelCategoryPersonal:   {GmailCategoryPrimary, 0.5},
	LabelInbox:              {GmailCategoryPrimary, 0.2},
}

// fuzzyLabelBuckets covers substring matches against user label names.
// These carry less weight than explicit system labels.
var fuzzyLabelBuckets = map[string]LabelBucket{
	"suspicious": {GmailCategorySpam, 0.4},
	"junk":       {GmailCategorySpam, 0.4},
	"newsletter": {GmailCategoryPromotions, 0.4},
	"promo":      {GmailCategoryPromotions, 0.3},
	"deal":       {GmailCategoryPromotions, 0.3},
	"social":     {GmailCategorySocial, 0.3},
	"notification": {
		GmailCategoryUpdates, 0.3,
	},
	"priority": {GmailCategoryImportant, 0.3},
	"urgent":   {GmailCategoryImportant, 0.4},
}

// ClassifyLabel resolves a single label to its bucket, if any.
// Explicit matches win over fuzzy ones.
func ClassifyLabel(label string) (LabelBucket, bool) {
	upper := strings.ToUpper(strings.TrimSpace(label))
	if b, ok := explicitLabelBuckets[upper]; ok {
		return b, true
	}
	lower := strings.ToLower(label)
	for needle, b := range fuzzyLabelBuckets {
		if strings.Contains(lower, needle) {
			return b, true
		}
	}
	return LabelBucket{}, false
}

// HasLabel reports whether labels contains label, case-insensitively.
func HasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}
