// -----------------------------------------------------------------------
// Job - persistent record of an asynchronous unit of work
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus represents the state of an asynchronous job
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// JobType identifies the executor a job is routed to
type JobType string

const (
	JobTypeCategorization JobType = "categorization"
	JobTypeCleanup        JobType = "cleanup"
)

// Job is the durable record of one submitted unit of async work.
// Status transitions are one-way; terminal jobs are immutable.
type Job struct {
	JobID   string    `json:"job_id"`
	UserID  string    `json:"user_id" badgerhold:"index"`
	JobType JobType   `json:"job_type" badgerhold:"index"`
	Status  JobStatus `json:"status" badgerhold:"index"`

	RequestParams json.RawMessage `json:"request_params,omitempty"`
	Progress      int             `json:"progress"` // 0-100, only increases
	Results       json.RawMessage `json:"results,omitempty"`
	ErrorDetails  string          `json:"error_details,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the job has reached a final state
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// validTransitions encodes the one-way lifecycle:
// PENDING -> IN_PROGRESS -> COMPLETED | FAILED.
// PENDING -> FAILED is allowed for the restart reaper.
var validTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusInProgress, JobStatusFailed},
	JobStatusInProgress: {JobStatusCompleted, JobStatusFailed},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to JobStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// JobUpdate carries the fields merged into a job by Update.
// Nil fields are left untouched.
type JobUpdate struct {
	Status       *JobStatus
	Progress     *int
	Results      json.RawMessage
	ErrorDetails *string
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// UserContext identifies the calling user on every tool invocation.
type UserContext struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// CategorizeParams is the request payload of a categorization job.
type CategorizeParams struct {
	UserContext  UserContext `json:"user_context"`
	ForceRefresh bool        `json:"force_refresh"`
	Year         int         `json:"year,omitempty"`
}

// CleanupParams is the request payload of a cleanup job.
type CleanupParams struct {
	UserContext UserContext `json:"user_context"`
	PolicyID    string      `json:"policy_id"`
	DryRun      bool        `json:"dry_run"`
	MaxEmails   int         `json:"max_emails,omitempty"`
	Force       bool        `json:"force"`
}

// DecodeParams unmarshals a job's request params into out.
func (j *Job) DecodeParams(out interface{}) error {
	if len(j.RequestParams) == 0 {
		return fmt.Errorf("job %s has no request params", j.JobID)
	}
	if err := json.Unmarshal(j.RequestParams, out); err != nil {
		return fmt.Errorf("failed to decode params for job %s: %w", j.JobID, err)
	}
	return nil
}
