// -----------------------------------------------------------------------
// Email Index - per-user persisted record of a single email
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// Category is the final per-email priority verdict.
type Category string

const (
	CategoryHigh   Category = "HIGH"
	CategoryMedium Category = "MEDIUM"
	CategoryLow    Category = "LOW"
)

// AnalysisVersion is stamped onto every enriched email so stale verdicts can
// be detected after an engine upgrade.
const AnalysisVersion = "2"

// EmailIndex is the central per-user entity: identity and content facets from
// the vendor API plus derived categorization and enrichment fields.
//
// Subject, Sender and Snippet are pointers because the vendor payload can
// legitimately omit them; categorization of such an email fails with a typed
// error rather than silently defaulting.
type EmailIndex struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id" badgerhold:"index"`

	Sender     *string  `json:"sender"`
	Recipients []string `json:"recipients"`

	Subject        *string  `json:"subject"`
	Snippet        *string  `json:"snippet"`
	Labels         []string `json:"labels"`
	HasAttachments bool     `json:"has_attachments"`

	Date      time.Time `json:"date"`
	Year      int       `json:"year" badgerhold:"index"`
	SizeBytes int64     `json:"size_bytes"`

	// Derived
	Category        Category   `json:"category,omitempty" badgerhold:"index"`
	Archived        bool       `json:"archived" badgerhold:"index"`
	Deleted         bool       `json:"deleted"`
	ArchiveDate     *time.Time `json:"archive_date,omitempty"`
	ArchiveLocation string     `json:"archive_location,omitempty"`

	// Enrichment (populated by analysis)
	ImportanceLevel        string     `json:"importance_level,omitempty"`
	ImportanceScore        float64    `json:"importance_score,omitempty"`
	ImportanceMatchedRules []string   `json:"importance_matched_rules,omitempty"`
	AgeCategory            string     `json:"age_category,omitempty"`
	SizeCategory           string     `json:"size_category,omitempty"`
	GmailCategory          string     `json:"gmail_category,omitempty"`
	SpamScore              float64    `json:"spam_score,omitempty"`
	PromotionalScore       float64    `json:"promotional_score,omitempty"`
	SocialScore            float64    `json:"social_score,omitempty"`
	AnalysisTimestamp      *time.Time `json:"analysis_timestamp,omitempty"`
	AnalysisVersion        string     `json:"analysis_version,omitempty"`
}

// IsCategorized reports whether the email already carries a verdict.
func (e *EmailIndex) IsCategorized() bool {
	return e.Category != ""
}

// EmailContext is the immutable input to rule evaluation for one email.
// Construction validates the required content facets.
type EmailContext struct {
	UserID         string    `json:"user"`
	EmailID        string    `json:"email_id"`
	Subject        string    `json:"subject"`
	Sender         string    `json:"sender"`
	Snippet        string    `json:"snippet"`
	Labels         []string  `json:"labels"`
	SizeBytes      int64     `json:"size"`
	HasAttachments bool      `json:"has_attachments"`
	Date           time.Time `json:"date"`
}

// NewEmailContext builds the analysis input for one email.
// A missing subject, sender or snippet is a data-integrity failure for that
// email - categorization must not silently default these fields.
func NewEmailContext(e *EmailIndex) (*EmailContext, error) {
	if e.Subject == nil {
		return nil, NewDataIntegrity("email %s has no subject", e.ID)
	}
	if e.Sender == nil {
		return nil, NewDataIntegrity("email %s has no sender", e.ID)
	}
	if e.Snippet == nil {
		return nil, NewDataIntegrity("email %s has no snippet", e.ID)
	}

	labels := make([]string, len(e.Labels))
	copy(labels, e.Labels)

	return &EmailContext{
		UserID:         e.UserID,
		EmailID:        e.ID,
		Subject:        *e.Subject,
		Sender:         *e.Sender,
		Snippet:        *e.Snippet,
		Labels:         labels,
		SizeBytes:      e.SizeBytes,
		HasAttachments: e.HasAttachments,
		Date:           e.Date,
	}, nil
}

// String returns a pointer to s. Convenience for building EmailIndex records.
func String(s string) *string {
	return &s
}
