package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/common"
	"github.com/ternarybob/curator/internal/interfaces"
	"github.com/ternarybob/curator/internal/models"
	"github.com/ternarybob/curator/internal/services/cleanup"
	"github.com/ternarybob/curator/internal/storage"
)

// CleanupExecutor runs cleanup jobs: evaluate the policy, act on the
// candidates through the vendor API or an export file, and record the run.
type CleanupExecutor struct {
	factory    *storage.Factory
	service    *cleanup.Service
	gmail      interfaces.GmailProvider
	exportRoot string
	logger     arbor.ILogger
}

func NewCleanupExecutor(logger arbor.ILogger, factory *storage.Factory, service *cleanup.Service, gmail interfaces.GmailProvider, exportRoot string) *CleanupExecutor {
	return &CleanupExecutor{
		factory:    factory,
		service:    service,
		gmail:      gmail,
		exportRoot: exportRoot,
		logger:     logger,
	}
}

func (e *CleanupExecutor) JobType() models.JobType {
	return models.JobTypeCleanup
}

// ExecutionResult is the results payload of a completed cleanup job.
type ExecutionResult struct {
	PolicyID string   `json:"policy_id"`
	Action   string   `json:"action"`
	Method   string   `json:"method"`
	Affected int      `json:"affected"`
	EmailIDs []string `json:"email_ids"`
	Skipped  []string `json:"skipped,omitempty"`
	Location string   `json:"location,omitempty"`
}

func (e *CleanupExecutor) Execute(ctx context.Context, job *models.Job) ([]byte, error) {
	var params models.CleanupParams
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
	policy, err := db.GetPolicy(params.PolicyID)
	if err != nil {
		return nil, err
	}

	candidates, err := e.service.Evaluate(db, policy, params.MaxEmails)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(candidates))
	for i, email := range candidates {
		ids[i] = email.ID
	}

	result := &ExecutionResult{
		PolicyID: policy.ID,
		Action:   string(policy.Action),
		Method:   string(policy.Method),
		EmailIDs: ids,
	}
	if len(ids) == 0 {
		return json.Marshal(result)
	}

	switch policy.Action {
	case models.CleanupActionArchive:
		if err := e.archive(ctx, db, job.UserID, policy, candidates, ids, result); err != nil {
			return nil, err
		}
	case models.CleanupActionDelete:
		if err := e.delete(ctx, db, job.UserID, ids, result); err != nil {
			return nil, err
		}
	default:
		return nil, models.NewInvalidParams("unknown cleanup action %q", policy.Action)
	}

	result.Affected = len(ids) - len(result.Skipped)
	return json.Marshal(result)
}

func (e *CleanupExecutor) archive(ctx context.Context, db *storage.UserDB, userID string, policy *models.CleanupPolicy, candidates []*models.EmailIndex, ids []string, result *ExecutionResult) error {
	now := time.Now().UTC()
	location := "gmail"

	switch policy.Method {
	case models.CleanupMethodGmail:
		svc, err := e.gmail.GmailFor(ctx, userID)
		if err != nil {
			return err
		}
		if err := svc.Archive(ctx, ids); err != nil {
			return err
		}
	case models.CleanupMethodExport:
		path, err := e.writeExport(userID, candidates)
		if err != nil {
			return err
		}
		location = path
	default:
		return models.NewInvalidParams("unknown cleanup method %q", policy.Method)
	}

	skipped, err := db.MarkArchived(ids, location, now)
	if err != nil {
		return err
	}
	result.Skipped = skipped
	result.Location = location

	record := &models.ArchiveRecord{
		ID:         common.NewArchiveRecordID(),
		EmailIDs:   ids,
		Method:     policy.Method,
		Location:   location,
		ArchivedAt: now,
	}
	return db.SaveArchiveRecord(record)
}

func (e *CleanupExecutor) delete(ctx context.Context, db *storage.UserDB, userID string, ids []string, result *ExecutionResult) error {
	svc, err := e.gmail.GmailFor(ctx, userID)
	if err != nil {
		return err
	}
	if err := svc.Trash(ctx, ids); err != nil {
		return err
	}

	skipped, err := db.MarkDeleted(ids)
	if err != nil {
		return err
	}
	result.Skipped = skipped
	return nil
}

// writeExport serializes the candidates to a JSON export file under the
// user's export directory and returns its path.
func (e *CleanupExecutor) writeExport(userID string, candidates []*models.EmailIndex) (string, error) {
	dir := filepath.Join(e.exportRoot, userID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("archive_%d.json", time.Now().UnixMilli()))
	data, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	e.logger.Info().Str("user_id", userID).Str("path", path).Int("emails", len(candidates)).Msg("Export archive written")
	return path, nil
}
