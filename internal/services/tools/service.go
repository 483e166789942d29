// -----------------------------------------------------------------------
// Tools Service - session-validated operations behind the MCP surface
// -----------------------------------------------------------------------

package tools

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
	"github.com/ternarybob/curator/internal/queue"
	"github.com/ternarybob/curator/internal/services/auth"
	"github.com/ternarybob/curator/internal/services/cache"
	"github.com/ternarybob/curator/internal/services/cleanup"
	"github.com/ternarybob/curator/internal/services/scheduler"
	"github.com/ternarybob/curator/internal/storage"
)

// Service implements every tool operation. Each entry point validates the
// caller's session before touching data; the user-bound database handle it
// resolves is the only path to stored state.
type Service struct {
	factory   *storage.Factory
	jobs      *storage.JobStore
	queue     *queue.Queue
	cache     interfaces.CacheService
	auth      *auth.Service
	cleanup   *cleanup.Service
	scheduler *scheduler.Service
	gmail     interfaces.GmailProvider
	config    *common.Config
	logger    arbor.ILogger
}

type Deps struct {
	Factory   *storage.Factory
	Jobs      *storage.JobStore
	Queue     *queue.Queue
	Cache     interfaces.CacheService
	Auth      *auth.Service
	Cleanup   *cleanup.Service
	Scheduler *scheduler.Service
	Gmail     interfaces.GmailProvider
	Config    *common.Config
}

func NewService(logger arbor.ILogger, deps Deps) *Service {
	return &Service{
		factory:   deps.Factory,
		jobs:      deps.Jobs,
		queue:     deps.Queue,
		cache:     deps.Cache,
		auth:      deps.Auth,
		cleanup:   deps.Cleanup,
		scheduler: deps.Scheduler,
		gmail:     deps.Gmail,
		config:    deps.Config,
		logger:    logger,
	}
}

// requireUser validates the session and resolves the caller's database
// handle. Every tool except authenticate goes through here.
func (s *Service) requireUser(userCtx models.UserContext) (*storage.UserDB, error) {
	if err := s.auth.Validate(userCtx); err != nil {
		return nil, err
	}
	db, err := s.factory.DatabaseFor(userCtx.UserID)
	if err != nil {
		return nil, models.NewInvalidRequest("invalid user id")
	}
	return db, nil
}

// Authenticate establishes a session and reports whether the user already
// has stored Gmail credentials.
func (s *Service) Authenticate(ctx context.Context, userID string) (map[string]interface{}, error) {
	session, err := s.auth.Authenticate(userID)
	if err != nil {
		return nil, err
	}

	hasCredentials := true
	if _, err := s.gmail.GmailFor(ctx, session.UserID); err != nil {
		hasCredentials = false
	}

	return map[string]interface{}{
		"session_id":      session.SessionID,
		"user_id":         session.UserID,
		"expires_at":      session.ExpiresAt,
		"has_credentials": hasCredentials,
	}, nil
}

// EmailPage is the payload of list/search results.
type EmailPage struct {
	Emails []*models.EmailIndex `json:"emails"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit,omitempty"`
	Offset int                  `json:"offset,omitempty"`
}

// ListEmails returns a filtered page of the caller's index. Pages are cached
// per canonical criteria; every mutation path flushes them.
func (s *Service) ListEmails(userCtx models.UserContext, criteria *models.EmailCriteria) (*EmailPage, error) {
	db, err := s.requireUser(userCtx)
	if err != nil {
		return nil, err
	}

	key := cache.EmailListKey(userCtx.UserID, criteria)
	if cached, ok := s.cache.Get(key); ok {
		if page, ok := cached.(*EmailPage); ok {
			return page, nil
		}
	}

	emails, total, err := db.QueryEmails(criteria)
	if err != nil {
		return nil, err
	}
	page := &EmailPage{Emails: emails, Total: total, Limit: criteria.Limit, Offset: criteria.Offset}
	s.cache.Set(key, page, time.Minute)
	return page, nil
}

// GetEmail returns one of the caller's indexed emails.
func (s *Service) GetEmail(userCtx models.UserContext, emailID string) (*models.EmailIndex, error) {
	db, err := s.requireUser(userCtx)
	if err != nil {
		return nil, err
	}
	if emailID == "" {
		return nil, models.NewInvalidParams("email id is required")
	}

	key := cache.EmailKey(userCtx.UserID, emailID)
	if cached, ok := s.cache.Get(key); ok {
		if email, ok := cached.(*models.EmailIndex); ok {
			return email, nil
		}
	}

	email, err := db.GetEmail(emailID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, email, time.Minute)
	return email, nil
}

// invalidateIndexCaches drops every cached read derived from the email
// index: list pages, single records and aggregate stats.
func (s *Service) invalidateIndexCaches(userID string) {
	s.cache.DeletePrefix(cache.EmailListPrefix(userID))
	s.cache.DeletePrefix(cache.EmailPrefix(userID))
	s.cache.DeletePrefix(cache.StatsPrefix(userID))
}

// SearchEmails is ListEmails with full criteria including text query.
// Kept separate so the tool surfaces stay independent.
func (s *Service) SearchEmails(userCtx models.UserContext, criteria *models.EmailCriteria) (*EmailPage, error) {
	return s.ListEmails(userCtx, criteria)
}

// GetEmailStats aggregates the caller's index with a short-lived cache in
// front.
func (s *Service) GetEmailStats(userCtx models.UserContext, groupBy string) (*models.EmailStats, error) {
	db, err := s.requireUser(userCtx)
	if err != nil {
		return nil, err
	}

	key := cache.StatsKey(userCtx.UserID, groupBy)
	if cached, ok := s.cache.Get(key); ok {
		if stats, ok := cached.(*models.EmailStats); ok {
			return stats, nil
		}
	}

	stats, err := db.EmailStats(groupBy)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, stats, 5*time.Minute)
	return stats, nil
}

// SyncEmails pulls message metadata from Gmail into the caller's index.
func (s *Service) SyncEmails(ctx context.Context, userCtx models.UserContext, query string, max int64) (map[string]interface{}, error) {
	db, err := s.requireUser(userCtx)
	if err != nil {
		return nil, err
	}

	svc, err := s.gmail.GmailFor(ctx, userCtx.UserID)
	if err != nil {
		return nil, err
	}

	ids, err := svc.ListMessageIDs(ctx, query, max)
	if err != nil {
		return nil, err
	}
	emails, missing, err := svc.FetchMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	if err := db.SaveEmails(emails); err != nil {
		return nil, err
	}

	s.invalidateIndexCaches(userCtx.UserID)
	return map[string]interface{}{
		"synced":  len(emails),
		"missing": len(missing),
	}, nil
}

// CategorizeEmails submits an async categorization job and returns its id.
func (s *Service) CategorizeEmails(userCtx models.UserContext, forceRefresh bool, year int) (map[string]string, error) {
	if _, err := s.requireUser(userCtx); err != nil {
		return nil, err
	}

	params := models.CategorizeParams{
		UserContext:  userCtx,
		ForceRefresh: forceRefresh,
		Year:         year,
	}
	requestParams, err := json.Marshal(&params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode categorize params: %w", err)
	}

	job := &models.Job{
		JobID:         common.NewJobID(),
		UserID:        userCtx.UserID,
		JobType:       models.JobTypeCategorization,
		Status:        models.JobStatusPending,
		RequestParams: requestParams,
	}
	if err := s.jobs.Create(job); err != nil {
		return nil, err
	}
	s.queue.Enqueue(queue.JobRef{JobID: job.JobID, UserID: job.UserID})

	return map[string]string{"job_id": job.JobID, "status": string(models.JobStatusPending)}, nil
}

// GetJobStatus returns one of the caller's jobs.
func (s *Service) GetJobStatus(userCtx models.UserContext, jobID string) (*models.Job, error) {
	if _, err := s.requireUser(userCtx); err != nil {
		return nil, err
	}
	return s.jobs.Get(jobID, userCtx.UserID)
}

// ListJobs returns the caller's job history.
func (s *Service) ListJobs(userCtx models.UserContext, filter *models.JobFilter) ([]*models.Job, int, error) {
	if _, err := s.requireUser(userCtx); err != nil {
		return nil, 0, err
	}
	return s.jobs.List(userCtx.UserID, filter)
}

// ArchiveResult is the payload of archive_emails.
type ArchiveResult struct {
	DryRun   bool     `json:"dry_run"`
	Matched  int      `json:"matched"`
	Archived int      `json:"archived"`
	EmailIDs []string `json:"email_ids"`
	Location string   `json:"location,omitempty"`
}

// ArchiveEmails archives emails matching the criteria, through Gmail or an
// export file. Dry runs preview without modifying anything.
func (s *Service) ArchiveEmails(ctx context.Context, userCtx models.UserContext, criteria *models.EmailCriteria, method models.CleanupMethod, dryRun bool) (*ArchiveResult, error) {
	db, err := s.requireUser(userCtx)
	if err != nil {
		return nil, err
	}

	notArchived := false
	criteria.Archived = &notArchived
	emails, _, err := db.QueryEmails(criteria)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(emails))
	for i, email := range emails {
		ids[i] = email.ID
	}
	result := &ArchiveResult{DryRun: dryRun, Matched: len(ids), EmailIDs: ids}
	if dryRun || len(ids) == 0 {
		return result, nil
	}

	now := time.Now().UTC()
	location := "gmail"
	switch method {
	case models.CleanupMethodGmail:
		svc, err := s.gmail.GmailFor(ctx, userCtx.UserID)
		if err != nil {
			return nil, err
		}
		if err := svc.Archive(ctx, ids); err != nil {
			return nil, err
		}
	case models.CleanupMethodExport:
		location, err = s.writeExport(userCtx.UserID, emails)
		if err != nil {
			return nil, err
		}
	default:
		return nil, models.NewInvalidParams("method must be gmail or export, got %q", method)
	}

	skipped, err := db.MarkArchived(ids, location, now)
	if err != nil {
		return nil, err
	}
	record := &models.ArchiveRecord{
		ID:         common.NewArchiveRecordID(),
		EmailIDs:   ids,
		Method:     method,
		Location:   location,
		ArchivedAt: now,
	}
	if err := db.SaveArchiveRecord(record); err != nil {
		return nil, err
	}

	result.Archived = len(ids) - len(skipped)
	result.Location = location
	s.invalidateIndexCaches(userCtx.UserID)
	return result, nil
}

// DeleteResult is the payload of delete_emails.
type DeleteResult struct {
	DryRun   bool     `json:"dry_run"`
	Matched  int      `json:"matched"`
	Deleted  int      `json:"deleted"`
	EmailIDs []string `json:"email_ids"`
}

// DeleteEmails trashes emails matching the criteria. The destructive path
// requires confirm=true; dry_run=true previews instead. Neither set is an
// invalid_params rejection.
func (s *Service) DeleteEmails(ctx context.Context, userCtx models.UserContext, criteria *models.EmailCriteria, confirm, dryRun bool) (*DeleteResult, error) {
	if !confirm && !dryRun {
		return nil, models.NewInvalidParams("delete_emails requires confirm=true or dry_run=true")
	}

	db, err := s.requireUser(userCtx)
	if err != nil {
		return nil, err
	}
	emails, _, err := db.QueryEmails(criteria)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(emails))
	for i, email := range emails {
		ids[i] = email.ID
	}
	result := &DeleteResult{DryRun: dryRun, Matched: len(ids), EmailIDs: ids}
	if dryRun || len(ids) == 0 {
		return result, nil
	}

	svc, err := s.gmail.GmailFor(ctx, userCtx.UserID)
	if err != nil {
		return nil, err
	}
	if err := svc.Trash(ctx, ids); err != nil {
		return nil, err
	}
	skipped, err := db.MarkDeleted(ids)
	if err != nil {
		return nil, err
	}

	result.Deleted = len(ids) - len(skipped)
	s.invalidateIndexCaches(userCtx.UserID)
	return result, nil
}

// SaveSearch persists a named criteria set.
func (s *Service) SaveSearch(userCtx models.UserContext, name string, criteria *models.EmailCriteria) (*models.SavedSearch, error) {
	db, err := s.requireUser(userCtx)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, models.NewInvalidParams("search name is required")
	}

	search := &models.SavedSearch{
		ID:        common.NewSearchID(),
		Name:      name,
		Criteria:  *criteria,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.SaveSearch(search); err != nil {
		return nil, err
	}
	return search, nil
}

// ListSavedSearches returns the caller's saved searches.
func (s *Service) ListSavedSearches(userCtx models.UserContext) ([]*models.SavedSearch, error) {
	db, err := s.requireUser(userCtx)
	if err != nil {
		return nil, err
	}
	return db.ListSavedSearches()
}

// SaveArchiveRule persists a reusable archive criteria set. Enabled rules
// are picked up by archive_emails callers through list_archive_rules.
func (s *Service) SaveArchiveRule(userCtx models.UserContext, rule *models.ArchiveRule) (*models.ArchiveRule, error) {
	db, err := s.requireUser(userCtx)
	if err != nil {
		return nil, err
	}
	if rule.Name == "" {
		return nil, models.NewInvalidParams("archive rule name is required")
	}
	if rule.Method != models.CleanupMethodGmail && rule.Method != models.CleanupMethodExport {
		return nil, models.NewInvalidParams("method must be gmail or export, got %q", rule.Method)
	}

	if rule.ID == "" {
		rule.ID = common.NewArchiveRuleID()
	}
	rule.CreatedAt = time.Now().UTC()
	if err := db.SaveArchiveRule(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// ListArchiveRules returns the caller's archive rules.
func (s *Service) ListArchiveRules(userCtx models.UserContext) ([]*models.ArchiveRule, error) {
	db, err := s.requireUser(userCtx)
	if err != nil {
		return nil, err
	}
	return db.ListArchiveRules()
}

// CreateCleanupPolicy validates and persists a policy.
func (s *Service) CreateCleanupPolicy(userCtx models.UserContext, policy *models.CleanupPolicy) (*models.CleanupPolicy, error) {
	db, err := s.requireUser(userCtx)
	if err != nil {
		return nil, err
	}
	return s.cleanup.CreatePolicy(db, policy)
}

// UpdateCleanupPolicy merges a patch into an existing policy.
func (s *Service) UpdateCleanupPolicy(userCtx models.UserContext, policyID string, patch json.RawMessage) (*models.CleanupPolicy, error) {
	db, err := s.requireUser(userCtx)
	if err != nil {
		return nil, err
	}
	return s.cleanup.UpdatePolicy(db, policyID, patch)
}

// ListCleanupPolicies returns the caller's policies.
func (s *Service) ListCleanupPolicies(userCtx models.UserContext) ([]*models.CleanupPolicy, error) {
	db, err := s.requireUser(userCtx)
	if err != nil {
		return nil, err
	}
	return s.cleanup.ListPolicies(db)
}

// DeleteCleanupPolicy removes a policy and its schedules.
func (s *Service) DeleteCleanupPolicy(userCtx models.UserContext, policyID string) error {
	db, err := s.requireUser(userCtx)
	if err != nil {
		return err
	}
	return s.cleanup.DeletePolicy(db, policyID)
}

// TriggerCleanup previews (dry run) or submits a cleanup execution.
func (s *Service) TriggerCleanup(userCtx models.UserContext, params *models.CleanupParams) (interface{}, error) {
	db, err := s.requireUser(userCtx)
	if err != nil {
		return nil, err
	}
	return s.cleanup.Trigger(db, userCtx, params)
}

// GetCleanupRecommendations proposes policy templates from the caller's
// email distribution.
func (s *Service) GetCleanupRecommendations(userCtx models.UserContext) ([]cleanup.Recommendation, error) {
	db, err := s.requireUser(userCtx)
	if err != nil {
		return nil, err
	}
	return s.cleanup.GenerateRecommendations(db)
}

// CreateCleanupSchedule persists and registers a schedule for a policy.
func (s *Service) CreateCleanupSchedule(userCtx models.UserContext, schedule *models.CleanupSchedule) (*models.CleanupSchedule, error) {
	db, err := s.requireUser(userCtx)
	if err != nil {
		return nil, err
	}
	return s.scheduler.CreateSchedule(db, schedule)
}

// ListArchiveRecords returns the caller's archive history.
func (s *Service) ListArchiveRecords(userCtx models.UserContext, limit int) ([]*models.ArchiveRecord, error) {
	db, err := s.requireUser(userCtx)
	if err != nil {
		return nil, err
	}
	return db.ListArchiveRecords(limit)
}

func (s *Service) writeExport(userID string, emails []*models.EmailIndex) (string, error) {
	dir := filepath.Join(s.config.Storage.Path, "exports", userID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("archive_%d.json", time.Now().UnixMilli()))
	data, err := json.MarshalIndent(emails, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}
