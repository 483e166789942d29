package interfaces

import (
	"context"

	"github.com/ternarybob/curator/internal/models"
)

// GmailService wraps the vendor mail API for one authenticated user.
// Implementations handle rate limiting, timeouts and retry; callers treat
// any returned error as already classified (transient vs internal).
type GmailService interface {
	// ListMessageIDs returns message ids matching the vendor query string,
	// up to max. A zero max uses the configured batch size.
	ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error)

	// FetchMessages resolves ids to index records using metadata-only
	// fetches. Ids that no longer exist upstream are skipped and returned
	// in the second slice.
	FetchMessages(ctx context.Context, ids []string) ([]*models.EmailIndex, []string, error)

	// Archive removes the inbox label from the given messages.
	Archive(ctx context.Context, ids []string) error

	// Trash moves the given messages to the vendor trash.
	Trash(ctx context.Context, ids []string) error
}

// GmailProvider resolves the authenticated Gmail service for one user.
// Resolution fails when the user has no stored credentials.
type GmailProvider interface {
	GmailFor(ctx context.Context, userID string) (GmailService, error)
}

// JobExecutor is implemented by every async job handler. The worker pool
// routes claimed jobs to the executor registered for their type.
type JobExecutor interface {
	// Execute runs the job to completion. The returned payload is stored
	// as the job's results; a returned error fails the job.
	Execute(ctx context.Context, job *models.Job) ([]byte, error)

	// JobType returns the job type this executor handles.
	JobType() models.JobType
}
