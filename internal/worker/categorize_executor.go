package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/models"
	"github.com/ternarybob/curator/internal/services/categorize"
	"github.com/ternarybob/curator/internal/storage"
)

// CategorizeExecutor runs categorization jobs through the orchestrator.
type CategorizeExecutor struct {
	factory      *storage.Factory
	orchestrator *categorize.Orchestrator
	jobs         *storage.JobStore
	logger       arbor.ILogger
}

func NewCategorizeExecutor(logger arbor.ILogger, factory *storage.Factory, orchestrator *categorize.Orchestrator, jobs *storage.JobStore) *CategorizeExecutor {
	return &CategorizeExecutor{
		factory:      factory,
		orchestrator: orchestrator,
		jobs:         jobs,
		logger:       logger,
	}
}

func (e *CategorizeExecutor) JobType() models.JobType {
	return models.JobTypeCategorization
}

func (e *CategorizeExecutor) Execute(ctx context.Context, job *models.Job) ([]byte, error) {
	var params models.CategorizeParams
	if err := job.DecodeParams(&params); err != nil {
		return nil, err
	}
	if params.UserContext.UserID != job.UserID {
		return nil, models.NewDataIntegrity("job %s params reference user %s, job owner is %s",
			job.JobID, params.UserContext.UserID, job.UserID)
	}

	db, err := e.factory.DatabaseFor(job.UserID)
	if err != nil {
		return nil, err
	}

	progress := 10
	if _, err := e.jobs.Update(job.JobID, job.UserID, &models.JobUpdate{Progress: &progress}); err != nil {
		e.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to record progress")
	}

	summary, err := e.orchestrator.Run(ctx, db, categorize.Options{
		ForceRefresh: params.ForceRefresh,
		Year:         params.Year,
	})
	if err != nil {
		return nil, err
	}

	results, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("failed to encode categorization results: %w", err)
	}
	return results, nil
}
