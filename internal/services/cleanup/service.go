// -----------------------------------------------------------------------
// Cleanup Service - retention policy CRUD, evaluation and triggering
// -----------------------------------------------------------------------

package cleanup

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/common"
	"github.com/ternarybob/curator/internal/models"
	"github.com/ternarybob/curator/internal/queue"
	"github.com/ternarybob/curator/internal/storage"
)

// Service manages cleanup policies and their execution lifecycle. Real
// executions always go through the async job substrate; only dry runs are
// serviced inline.
type Service struct {
	jobs     *storage.JobStore
	queue    *queue.Queue
	validate *validator.Validate
	logger   arbor.ILogger

	now func() time.Time
}

func NewService(logger arbor.ILogger, jobs *storage.JobStore, jobQueue *queue.Queue) *Service {
	return &Service{
		jobs:     jobs,
		queue:    jobQueue,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// CreatePolicy validates and persists a new policy.
func (s *Service) CreatePolicy(db *storage.UserDB, policy *models.CleanupPolicy) (*models.CleanupPolicy, error) {
	if policy.ID == "" {
		policy.ID = common.NewPolicyID()
	}
	now := s.now().UTC()
	policy.CreatedAt = now
	policy.UpdatedAt = now

	if err := s.validate.Struct(policy); err != nil {
		return nil, models.NewInvalidParams("invalid policy: %v", err)
	}
	if err := db.SavePolicy(policy); err != nil {
		return nil, err
	}

	s.logger.Info().Str("policy_id", policy.ID).Str("user_id", db.UserID()).Msg("Cleanup policy created")
	return policy, nil
}

// UpdatePolicy merges a partial update into an existing policy.
func (s *Service) UpdatePolicy(db *storage.UserDB, policyID string, patch json.RawMessage) (*models.CleanupPolicy, error) {
	policy, err := db.GetPolicy(policyID)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(patch, policy); err != nil {
		return nil, models.NewInvalidParams("invalid policy update: %v", err)
	}
	policy.ID = policyID // The id is not patchable
	policy.UpdatedAt = s.now().UTC()

	if err := s.validate.Struct(policy); err != nil {
		return nil, models.NewInvalidParams("invalid policy: %v", err)
	}
	if err := db.SavePolicy(policy); err != nil {
		return nil, err
	}
	return policy, nil
}

// ListPolicies returns the user's policies ordered by priority.
func (s *Service) ListPolicies(db *storage.UserDB) ([]*models.CleanupPolicy, error) {
	return db.ListPolicies()
}

// DeletePolicy removes a policy and its schedules.
func (s *Service) DeletePolicy(db *storage.UserDB, policyID string) error {
	return db.DeletePolicy(policyID)
}

// Evaluate applies a policy's criteria to the user's index and returns the
// candidate set, capped at the policy's per-run safety limit.
func (s *Service) Evaluate(db *storage.UserDB, policy *models.CleanupPolicy, maxEmails int) ([]*models.EmailIndex, error) {
	criteria := &models.EmailCriteria{}
	if policy.Criteria.ExcludeArchived {
		archived := false
		criteria.Archived = &archived
	}
	if policy.Criteria.MinSizeBytes > 0 {
		criteria.SizeMin = policy.Criteria.MinSizeBytes
	}
	if policy.Criteria.MinAgeDays > 0 {
		cutoff := s.now().UTC().AddDate(0, 0, -policy.Criteria.MinAgeDays)
		criteria.DateTo = &cutoff
	}

	emails, _, err := db.QueryEmails(criteria)
	if err != nil {
		return nil, err
	}

	limit := policy.Safety.MaxEmailsPerRun
	if maxEmails > 0 && maxEmails < limit {
		limit = maxEmails
	}

	candidates := make([]*models.EmailIndex, 0, len(emails))
	for _, email := range emails {
		if !s.matchesScores(email, &policy.Criteria) {
			continue
		}
		if policy.Safety.PreserveImportant && isImportant(email) {
			continue
		}
		candidates = append(candidates, email)
		if len(candidates) >= limit {
			break
		}
	}
	return candidates, nil
}

func (s *Service) matchesScores(email *models.EmailIndex, criteria *models.PolicyCriteria) bool {
	if criteria.MaxImportanceLevel != "" {
		if rankImportance(email.ImportanceLevel) > rankImportance(criteria.MaxImportanceLevel) {
			return false
		}
	}
	if criteria.MinSpamScore > 0 && email.SpamScore < criteria.MinSpamScore {
		return false
	}
	if criteria.MinPromotionalScore > 0 && email.PromotionalScore < criteria.MinPromotionalScore {
		return false
	}
	return true
}

// rankImportance orders levels low < medium < high; unscored emails rank
// lowest so a max-importance criterion still matches them.
func rankImportance(level string) int {
	switch level {
	case "high":
		return 2
	case "medium":
		return 1
	default:
		return 0
	}
}

func isImportant(email *models.EmailIndex) bool {
	return email.Category == models.CategoryHigh ||
		email.ImportanceLevel == "high" ||
		models.HasLabel(email.Labels, models.LabelImportant) ||
		models.HasLabel(email.Labels, models.LabelStarred)
}

// DryRunResult previews what a trigger would affect without modifying state.
type DryRunResult struct {
	PolicyID   string   `json:"policy_id"`
	DryRun     bool     `json:"dry_run"`
	WouldMatch int      `json:"would_match"`
	EmailIDs   []string `json:"email_ids"`
	Action     string   `json:"action"`
}

// Trigger submits a cleanup execution. Dry runs evaluate inline and never
// modify state; real runs require the policy's confirmation gate to pass and
// go through the job queue.
func (s *Service) Trigger(db *storage.UserDB, userCtx models.UserContext, params *models.CleanupParams) (interface{}, error) {
	policy, err := db.GetPolicy(params.PolicyID)
	if err != nil {
		return nil, err
	}

	if params.DryRun {
		candidates, err := s.Evaluate(db, policy, params.MaxEmails)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(candidates))
		for i, email := range candidates {
			ids[i] = email.ID
		}
		return &DryRunResult{
			PolicyID:   policy.ID,
			DryRun:     true,
			WouldMatch: len(candidates),
			EmailIDs:   ids,
			Action:     string(policy.Action),
		}, nil
	}

	if policy.Safety.RequireConfirmation && !params.Force {
		return nil, models.NewInvalidParams("policy %s requires confirmation - pass force=true", policy.ID)
	}
	if !policy.Enabled {
		return nil, models.NewInvalidParams("policy %s is disabled", policy.ID)
	}

	params.UserContext = userCtx
	requestParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cleanup params: %w", err)
	}

	job := &models.Job{
		JobID:         common.NewJobID(),
		UserID:        userCtx.UserID,
		JobType:       models.JobTypeCleanup,
		Status:        models.JobStatusPending,
		RequestParams: requestParams,
	}
	if err := s.jobs.Create(job); err != nil {
		return nil, err
	}
	s.queue.Enqueue(queue.JobRef{JobID: job.JobID, UserID: job.UserID})

	return map[string]string{"job_id": job.JobID}, nil
}

// Recommendation is one proposed policy template.
type Recommendation struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Policy      *models.CleanupPolicy `json:"policy"`
	Matching    int                   `json:"matching_emails"`
}

// GenerateRecommendations inspects the user's email distribution and
// proposes policy templates worth enabling.
func (s *Service) GenerateRecommendations(db *storage.UserDB) ([]Recommendation, error) {
	stats, err := db.EmailStats("category")
	if err != nil {
		return nil, err
	}

	var recommendations []Recommendation

	if low := stats.Buckets["LOW"]; low.Count >= 50 {
		recommendations = append(recommendations, Recommendation{
			Name:        "archive-old-low-priority",
			Description: fmt.Sprintf("Archive %d low-priority emails older than 90 days", low.Count),
			Matching:    low.Count,
			Policy: &models.CleanupPolicy{
				Name:     "archive-old-low-priority",
				Enabled:  false,
				Priority: 40,
				Criteria: models.PolicyCriteria{
					MinAgeDays:         90,
					MaxImportanceLevel: "low",
					ExcludeArchived:    true,
				},
				Action: models.CleanupActionArchive,
				Method: models.CleanupMethodGmail,
				Safety: models.PolicySafety{
					MaxEmailsPerRun:   500,
					DryRunFirst:       true,
					PreserveImportant: true,
				},
			},
		})
	}

	spamHeavy, err := db.CountEmails(&models.EmailCriteria{})
	if err != nil {
		return nil, err
	}
	if spamHeavy > 0 && stats.TotalSizeBytes > 512*1024*1024 {
		recommendations = append(recommendations, Recommendation{
			Name:        "delete-large-old-promotions",
			Description: "Delete promotional emails over 1 MB and older than a year",
			Policy: &models.CleanupPolicy{
				Name:     "delete-large-old-promotions",
				Enabled:  false,
				Priority: 30,
				Criteria: models.PolicyCriteria{
					MinAgeDays:          365,
					MinSizeBytes:        1024 * 1024,
					MinPromotionalScore: 0.6,
					ExcludeArchived:     false,
				},
				Action: models.CleanupActionDelete,
				Method: models.CleanupMethodGmail,
				Safety: models.PolicySafety{
					MaxEmailsPerRun:     200,
					RequireConfirmation: true,
					DryRunFirst:         true,
					PreserveImportant:   true,
				},
			},
		})
	}

	return recommendations, nil
}
