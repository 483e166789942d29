// -----------------------------------------------------------------------
// Cleanup Policy - user-defined retention configuration
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// CleanupAction is what a policy does with matching emails.
type CleanupAction string

const (
	CleanupActionArchive CleanupAction = "archive"
	CleanupActionDelete  CleanupAction = "delete"
)

// CleanupMethod is how an archive/delete is carried out.
type CleanupMethod string

const (
	CleanupMethodGmail  CleanupMethod = "gmail"
	CleanupMethodExport CleanupMethod = "export"
)

// PolicyCriteria selects candidate emails. Zero values mean "not applied".
type PolicyCriteria struct {
	MinAgeDays          int     `json:"min_age_days" validate:"gte=0"`
	MaxImportanceLevel  string  `json:"max_importance_level,omitempty" validate:"omitempty,oneof=high medium low"`
	MinSizeBytes        int64   `json:"min_size_bytes" validate:"gte=0"`
	MinSpamScore        float64 `json:"min_spam_score" validate:"gte=0,lte=1"`
	MinPromotionalScore float64 `json:"min_promotional_score" validate:"gte=0,lte=1"`
	MaxAccessScore      float64 `json:"max_access_score" validate:"gte=0,lte=1"`
	DaysWithoutAccess   int     `json:"days_without_access" validate:"gte=0"`
	ExcludeArchived     bool    `json:"exclude_archived"`
}

// PolicySafety is the mandatory safety block of every policy.
type PolicySafety struct {
	MaxEmailsPerRun     int  `json:"max_emails_per_run" validate:"required,gt=0"`
	RequireConfirmation bool `json:"require_confirmation"`
	DryRunFirst         bool `json:"dry_run_first"`
	PreserveImportant   bool `json:"preserve_important"`
}

// CleanupPolicy is a user-defined set of criteria + action for retention.
// Policies with RequireConfirmation cannot execute without an explicit
// confirm/force flag.
type CleanupPolicy struct {
	ID       string `json:"id"`
	Name     string `json:"name" validate:"required"`
	Enabled  bool   `json:"enabled"`
	Priority int    `json:"priority" validate:"gte=0,lte=100"`

	Criteria PolicyCriteria `json:"criteria"`

	Action       CleanupAction `json:"action" validate:"required,oneof=archive delete"`
	Method       CleanupMethod `json:"method" validate:"required,oneof=gmail export"`
	ExportFormat string        `json:"export_format,omitempty" validate:"omitempty,oneof=mbox json"`

	Safety PolicySafety `json:"safety" validate:"required"`

	ScheduleID string `json:"schedule_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScheduleKind enumerates schedule expression formats.
type ScheduleKind string

const (
	ScheduleKindDaily    ScheduleKind = "daily"    // "HH:MM"
	ScheduleKindWeekly   ScheduleKind = "weekly"   // "day:HH:MM"
	ScheduleKindMonthly  ScheduleKind = "monthly"  // "DD:HH:MM"
	ScheduleKindInterval ScheduleKind = "interval" // milliseconds
	ScheduleKindCron     ScheduleKind = "cron"     // 5-field cron
)

// CleanupSchedule fires a policy on a wall-clock basis. Missed ticks during
// downtime are not replayed.
type CleanupSchedule struct {
	ID         string       `json:"id"`
	PolicyID   string       `json:"policy_id" validate:"required"`
	Kind       ScheduleKind `json:"type" validate:"required,oneof=daily weekly monthly interval cron"`
	Expression string       `json:"expression" validate:"required"`
	Enabled    bool         `json:"enabled"`
	CreatedAt  time.Time    `json:"created_at"`
	LastFired  *time.Time   `json:"last_fired,omitempty"`
}

// SavedSearch is a user-named query; execution applies its stored criteria.
type SavedSearch struct {
	ID        string        `json:"id"`
	Name      string        `json:"name" validate:"required"`
	Criteria  EmailCriteria `json:"criteria"`
	CreatedAt time.Time     `json:"created_at"`
}

// ArchiveRule is a persisted default criteria set for archive operations.
type ArchiveRule struct {
	ID        string        `json:"id"`
	Name      string        `json:"name" validate:"required"`
	Criteria  EmailCriteria `json:"criteria"`
	Method    CleanupMethod `json:"method" validate:"required,oneof=gmail export"`
	Enabled   bool          `json:"enabled"`
	CreatedAt time.Time     `json:"created_at"`
}

// ArchiveRecord documents one archive run for audit and restore.
type ArchiveRecord struct {
	ID         string        `json:"id"`
	EmailIDs   []string      `json:"email_ids"`
	Method     CleanupMethod `json:"method"`
	Location   string        `json:"location,omitempty"`
	ArchivedAt time.Time     `json:"archived_at"`
}
