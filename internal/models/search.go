package models

import "time"

// EmailCriteria is the criteria bag accepted by all email queries.
// Every query runs against a user-bound database handle - the criteria never
// carries a user id.
type EmailCriteria struct {
	Query           string     `json:"query,omitempty"` // Substring over subject + snippet
	Category        string     `json:"category,omitempty"`
	Year            int        `json:"year,omitempty"`
	YearFrom        int        `json:"year_from,omitempty"`
	YearTo          int        `json:"year_to,omitempty"`
	Archived        *bool      `json:"archived,omitempty"`
	SizeMin         int64      `json:"size_min,omitempty"`
	SizeMax         int64      `json:"size_max,omitempty"`
	DateFrom        *time.Time `json:"date_from,omitempty"`
	DateTo          *time.Time `json:"date_to,omitempty"`
	Labels          []string   `json:"labels,omitempty"`
	Sender          string     `json:"sender,omitempty"` // Substring match
	HasAttachments  *bool      `json:"has_attachments,omitempty"`
	ImportanceLevel string     `json:"importance_level,omitempty"`
	Limit           int        `json:"limit,omitempty"`
	Offset          int        `json:"offset,omitempty"`
}

// JobFilter selects jobs in listings.
type JobFilter struct {
	JobType JobType   `json:"job_type,omitempty"`
	Status  JobStatus `json:"status,omitempty"`
	Limit   int       `json:"limit,omitempty"`
	Offset  int       `json:"offset,omitempty"`
}
