// -----------------------------------------------------------------------
// Job Store - process-wide durable job status tracking
// -----------------------------------------------------------------------

package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/curator/internal/models"
)

var (
	jobStoreMu   sync.Mutex
	jobStoreLive bool
)

// JobStore tracks every job submitted across the process lifetime. Jobs live
// in the owning user's database; the store routes through the factory so a
// read can never cross user boundaries.
//
// Exactly one JobStore may exist per process. Status updates go through a
// single mutex so concurrent claim attempts serialize.
type JobStore struct {
	factory *Factory
	logger  arbor.ILogger
	mu      sync.Mutex
}

// NewJobStore creates the process singleton. A second live instance is a
// data-integrity failure: split stores would disagree about job state.
func NewJobStore(factory *Factory, logger arbor.ILogger) (*JobStore, error) {
	jobStoreMu.Lock()
	defer jobStoreMu.Unlock()

	if jobStoreLive {
		return nil, models.NewDataIntegrity("job store already initialized in this process")
	}
	jobStoreLive = true

	return &JobStore{
		factory: factory,
		logger:  logger,
	}, nil
}

// Close releases the singleton slot. Databases are owned by the factory and
// closed there.
func (s *JobStore) Close() {
	jobStoreMu.Lock()
	defer jobStoreMu.Unlock()
	jobStoreLive = false
}

// Create persists a new PENDING job for the given user.
func (s *JobStore) Create(job *models.Job) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if job.UserID == "" {
		return fmt.Errorf("job user ID is required")
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if job.Status != models.JobStatusPending {
		return fmt.Errorf("new job %s must be PENDING, got %s", job.JobID, job.Status)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	db, err := s.factory.DatabaseFor(job.UserID)
	if err != nil {
		return err
	}
	if err := db.db.Store().Insert(job.JobID, job); err != nil {
		if err == badgerhold.ErrKeyExists {
			return fmt.Errorf("job %s already exists", job.JobID)
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.JobID).
		Str("job_type", string(job.JobType)).
		Str("user_id", job.UserID).
		Msg("Job created")
	return nil
}

// Get returns the job only when it belongs to userID. A job owned by another
// user reads as not found - existence is never leaked across users.
func (s *JobStore) Get(jobID, userID string) (*models.Job, error) {
	db, err := s.factory.DatabaseFor(userID)
	if err != nil {
		return nil, err
	}

	var job models.Job
	if err := db.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.NewNotFound("job not found: %s", jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job.UserID != userID {
		return nil, models.NewNotFound("job not found: %s", jobID)
	}
	return &job, nil
}

// Update applies a partial update to a job, enforcing the one-way lifecycle.
// Updates against terminal jobs are rejected, and progress never decreases.
func (s *JobStore) Update(jobID, userID string, update *models.JobUpdate) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.Get(jobID, userID)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return nil, models.NewInvalidParams("job %s is %s and cannot be updated", jobID, job.Status)
	}

	if update.Status != nil && *update.Status != job.Status {
		if !models.CanTransition(job.Status, *update.Status) {
			return nil, models.NewInvalidParams("illegal job transition %s -> %s", job.Status, *update.Status)
		}
		job.Status = *update.Status
	}
	if update.Progress != nil && *update.Progress > job.Progress {
		job.Progress = *update.Progress
	}
	if update.Results != nil {
		job.Results = update.Results
	}
	if update.ErrorDetails != nil {
		job.ErrorDetails = *update.ErrorDetails
	}
	if update.StartedAt != nil {
		job.StartedAt = update.StartedAt
	}
	if update.CompletedAt != nil {
		job.CompletedAt = update.CompletedAt
	}

	if err := s.save(job); err != nil {
		return nil, err
	}
	return job, nil
}

// Claim attempts to move a PENDING job to IN_PROGRESS. It returns false when
// the job is no longer claimable - another worker got there first, or the
// reaper failed it.
func (s *JobStore) Claim(jobID, userID string) (*models.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.Get(jobID, userID)
	if err != nil {
		if models.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if job.Status != models.JobStatusPending {
		return nil, false, nil
	}

	now := time.Now().UTC()
	job.Status = models.JobStatusInProgress
	job.StartedAt = &now
	if err := s.save(job); err != nil {
		return nil, false, err
	}
	return job, true, nil
}

// Complete marks a job COMPLETED with its results payload.
func (s *JobStore) Complete(jobID, userID string, results []byte) error {
	now := time.Now().UTC()
	status := models.JobStatusCompleted
	progress := 100
	_, err := s.Update(jobID, userID, &models.JobUpdate{
		Status:      &status,
		Progress:    &progress,
		Results:     results,
		CompletedAt: &now,
	})
	return err
}

// Fail marks a job FAILED with error details.
func (s *JobStore) Fail(jobID, userID string, details string) error {
	now := time.Now().UTC()
	status := models.JobStatusFailed
	_, err := s.Update(jobID, userID, &models.JobUpdate{
		Status:       &status,
		ErrorDetails: &details,
		CompletedAt:  &now,
	})
	return err
}

// List returns the user's jobs matching the filter, newest first, plus the
// total before pagination.
func (s *JobStore) List(userID string, filter *models.JobFilter) ([]*models.Job, int, error) {
	db, err := s.factory.DatabaseFor(userID)
	if err != nil {
		return nil, 0, err
	}

	query := badgerhold.Where("UserID").Eq(userID)
	if filter != nil {
		if filter.JobType != "" {
			query = query.And("JobType").Eq(filter.JobType)
		}
		if filter.Status != "" {
			query = query.And("Status").Eq(filter.Status)
		}
	}
	query = query.SortBy("CreatedAt").Reverse()

	var jobs []models.Job
	if err := db.db.Store().Find(&jobs, query); err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}

	total := len(jobs)
	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(jobs) {
				jobs = nil
			} else {
				jobs = jobs[filter.Offset:]
			}
		}
		if filter.Limit > 0 && len(jobs) > filter.Limit {
			jobs = jobs[:filter.Limit]
		}
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, total, nil
}

// PendingJobs returns the user's PENDING jobs oldest first, for queue
// recovery after a restart.
func (s *JobStore) PendingJobs(userID string) ([]*models.Job, error) {
	db, err := s.factory.DatabaseFor(userID)
	if err != nil {
		return nil, err
	}

	var jobs []models.Job
	query := badgerhold.Where("UserID").Eq(userID).
		And("Status").Eq(models.JobStatusPending).
		SortBy("CreatedAt")
	if err := db.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// ReapOrphans fails every IN_PROGRESS job across all known users. Called once
// at startup: an in-progress job from a previous process can never finish.
func (s *JobStore) ReapOrphans() (int, error) {
	users, err := s.factory.KnownUsers()
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, userID := range users {
		db, err := s.factory.DatabaseFor(userID)
		if err != nil {
			return reaped, err
		}

		var orphans []models.Job
		query := badgerhold.Where("UserID").Eq(userID).And("Status").Eq(models.JobStatusInProgress)
		if err := db.db.Store().Find(&orphans, query); err != nil {
			return reaped, fmt.Errorf("failed to find orphaned jobs: %w", err)
		}

		for i := range orphans {
			job := &orphans[i]
			now := time.Now().UTC()
			job.Status = models.JobStatusFailed
			job.ErrorDetails = "orphaned by restart"
			job.CompletedAt = &now
			if err := s.save(job); err != nil {
				return reaped, err
			}
			reaped++
			s.logger.Warn().Str("job_id", job.JobID).Str("user_id", userID).Msg("Reaped orphaned job")
		}
	}
	return reaped, nil
}

// DeleteOlderThan removes terminal jobs for one user completed before the
// cutoff. Returns the number removed.
func (s *JobStore) DeleteOlderThan(userID string, cutoff time.Time) (int, error) {
	db, err := s.factory.DatabaseFor(userID)
	if err != nil {
		return 0, err
	}

	var jobs []models.Job
	if err := db.db.Store().Find(&jobs, badgerhold.Where("UserID").Eq(userID)); err != nil {
		return 0, fmt.Errorf("failed to list jobs for sweep: %w", err)
	}

	deleted := 0
	for i := range jobs {
		job := &jobs[i]
		if !job.IsTerminal() || job.CompletedAt == nil || !job.CompletedAt.Before(cutoff) {
			continue
		}
		if err := db.db.Store().Delete(job.JobID, &models.Job{}); err != nil {
			return deleted, fmt.Errorf("failed to delete job %s: %w", job.JobID, err)
		}
		deleted++
	}
	return deleted, nil
}

func (s *JobStore) save(job *models.Job) error {
	db, err := s.factory.DatabaseFor(job.UserID)
	if err != nil {
		return err
	}
	if err := db.db.Store().Upsert(job.JobID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}
