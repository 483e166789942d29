// -----------------------------------------------------------------------
// Worker Pool - drains the job queue and drives jobs to terminal state
// -----------------------------------------------------------------------

package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/interfaces"
	"github.com/ternarybob/curator/internal/models"
	"github.com/ternarybob/curator/internal/queue"
	"github.com/ternarybob/curator/internal/storage"
)

// Pool runs N workers over the shared queue. Each worker dequeues, claims
// the job via the store's atomic PENDING to IN_PROGRESS transition, routes
// it to the registered executor, and writes the terminal state back.
type Pool struct {
	queue        *queue.Queue
	jobs         *storage.JobStore
	executors    map[models.JobType]interfaces.JobExecutor
	logger       arbor.ILogger
	numWorkers   int
	pollInterval time.Duration
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewPool(jobQueue *queue.Queue, jobs *storage.JobStore, logger arbor.ILogger, numWorkers int, pollInterval time.Duration) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	if numWorkers < 1 {
		numWorkers = 1
	}
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}

	return &Pool{
		queue:        jobQueue,
		jobs:         jobs,
		executors:    make(map[models.JobType]interfaces.JobExecutor),
		logger:       logger,
		numWorkers:   numWorkers,
		pollInterval: pollInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// RegisterExecutor registers an executor for its job type.
func (p *Pool) RegisterExecutor(executor interfaces.JobExecutor) {
	p.executors[executor.JobType()] = executor
	p.logger.Info().Str("job_type", string(executor.JobType())).Msg("Executor registered")
}

// Start launches the worker loops.
func (p *Pool) Start() {
	p.logger.Info().Int("num_workers", p.numWorkers).Msg("Starting worker pool")
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop stops the pool and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.logger.Info().Msg("Stopping worker pool...")
	p.cancel()
	p.wg.Wait()
	p.logger.Info().Msg("Worker pool stopped")
}

// RecoverPending re-enqueues PENDING jobs from storage for every known user,
// oldest first. Called once at startup before Start.
func (p *Pool) RecoverPending(factory *storage.Factory) (int, error) {
	users, err := factory.KnownUsers()
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, userID := range users {
		pending, err := p.jobs.PendingJobs(userID)
		if err != nil {
			return recovered, err
		}
		for _, job := range pending {
			p.queue.Enqueue(queue.JobRef{JobID: job.JobID, UserID: job.UserID})
			recovered++
		}
	}

	if recovered > 0 {
		p.logger.Info().Int("recovered", recovered).Msg("Re-enqueued pending jobs from storage")
	}
	return recovered, nil
}

func (p *Pool) worker(workerID int) {
	defer p.wg.Done()
	p.logger.Debug().Int("worker_id", workerID).Msg("Worker started")

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug().Int("worker_id", workerID).Msg("Worker stopping")
			return
		default:
			if !p.processNext(workerID) {
				select {
				case <-p.ctx.Done():
				case <-time.After(p.pollInterval):
				}
			}
		}
	}
}

// processNext handles one queue entry. Returns false when the queue was
// empty and the worker should sleep.
func (p *Pool) processNext(workerID int) bool {
	ref, ok := p.queue.Dequeue()
	if !ok {
		return false
	}

	// The claim is the exclusivity point: only one worker wins the
	// PENDING -> IN_PROGRESS transition.
	job, claimed, err := p.jobs.Claim(ref.JobID, ref.UserID)
	if err != nil {
		p.logger.Error().Err(err).Str("job_id", ref.JobID).Msg("Failed to claim job")
		return true
	}
	if !claimed {
		p.logger.Debug().Str("job_id", ref.JobID).Msg("Job no longer claimable - dropping")
		return true
	}

	p.logger.Info().
		Int("worker_id", workerID).
		Str("job_id", job.JobID).
		Str("job_type", string(job.JobType)).
		Msg("Processing job")

	executor, ok := p.executors[job.JobType]
	if !ok {
		details := fmt.Sprintf("no executor registered for job type %s", job.JobType)
		p.logger.Error().Str("job_id", job.JobID).Str("job_type", string(job.JobType)).Msg(details)
		if err := p.jobs.Fail(job.JobID, job.UserID, details); err != nil {
			p.logger.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to fail job")
		}
		return true
	}

	results, err := executor.Execute(p.ctx, job)
	if err != nil {
		p.logger.Error().Err(err).Str("job_id", job.JobID).Msg("Job failed")
		if failErr := p.jobs.Fail(job.JobID, job.UserID, err.Error()); failErr != nil {
			p.logger.Error().Err(failErr).Str("job_id", job.JobID).Msg("Failed to record job failure")
		}
		return true
	}

	if err := p.jobs.Complete(job.JobID, job.UserID, results); err != nil {
		p.logger.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to record job completion")
		return true
	}
	p.logger.Info().Str("job_id", job.JobID).Msg("Job completed successfully")
	return true
}
