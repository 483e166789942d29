package cleanup

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/common"
	"github.com/ternarybob/curator/internal/models"
	"github.com/ternarybob/curator/internal/queue"
	"github.com/ternarybob/curator/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.UserDB, *queue.Queue) {
	t.Helper()
	logger := arbor.NewLogger()
	factory, err := storage.NewFactory(logger, &common.StorageConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to create factory: %v", err)
	}
	t.Cleanup(func() { factory.Close() })

	jobs, err := storage.NewJobStore(factory, logger)
	if err != nil {
		t.Fatalf("Failed to create job store: %v", err)
	}
	t.Cleanup(jobs.Close)

	db, err := factory.DatabaseFor("user-a")
	if err != nil {
		t.Fatal(err)
	}

	jobQueue := queue.New()
	return NewService(logger, jobs, jobQueue), db, jobQueue
}

func validPolicy() *models.CleanupPolicy {
	return &models.CleanupPolicy{
		Name:     "archive-old",
		Enabled:  true,
		Priority: 50,
		Criteria: models.PolicyCriteria{
			MinAgeDays:      90,
			ExcludeArchived: true,
		},
		Action: models.CleanupActionArchive,
		Method: models.CleanupMethodGmail,
		Safety: models.PolicySafety{
			MaxEmailsPerRun:   100,
			PreserveImportant: true,
		},
	}
}

func seedOldEmail(t *testing.T, db *storage.UserDB, id string, ageDays int, labels ...string) {
	t.Helper()
	date := time.Now().UTC().AddDate(0, 0, -ageDays)
	email := &models.EmailIndex{
		ID:      id,
		Subject: models.String("subject " + id),
		Sender:  models.String("sender@example.com"),
		Snippet: models.String("snippet"),
		Date:    date,
		Year:    date.Year(),
		Labels:  labels,
	}
	if err := db.SaveEmail(email); err != nil {
		t.Fatal(err)
	}
}

func TestCreatePolicyRequiresSafetyBlock(t *testing.T) {
	service, db, _ := newTestService(t)

	policy := validPolicy()
	policy.Safety = models.PolicySafety{} // no max_emails_per_run
	if _, err := service.CreatePolicy(db, policy); err == nil {
		t.Fatal("Expected policy without safety limit to be rejected")
	}

	policy = validPolicy()
	policy.Action = "purge"
	if _, err := service.CreatePolicy(db, policy); err == nil {
		t.Fatal("Expected unknown action to be rejected")
	}
}

func TestCreateAndListPolicies(t *testing.T) {
	service, db, _ := newTestService(t)

	created, err := service.CreatePolicy(db, validPolicy())
	if err != nil {
		t.Fatalf("CreatePolicy failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Expected generated policy id")
	}

	second := validPolicy()
	second.Name = "low-priority"
	second.Priority = 10
	if _, err := service.CreatePolicy(db, second); err != nil {
		t.Fatal(err)
	}

	policies, err := service.ListPolicies(db)
	if err != nil {
		t.Fatal(err)
	}
	if len(policies) != 2 {
		t.Fatalf("Expected 2 policies, got %d", len(policies))
	}
	// Highest priority first.
	if policies[0].Priority < policies[1].Priority {
		t.Fatal("Policies not ordered by priority")
	}
}

func TestUpdatePolicyMerges(t *testing.T) {
	service, db, _ := newTestService(t)

	created, err := service.CreatePolicy(db, validPolicy())
	if err != nil {
		t.Fatal(err)
	}

	updated, err := service.UpdatePolicy(db, created.ID, json.RawMessage(`{"enabled":false,"id":"tampered"}`))
	if err != nil {
		t.Fatalf("UpdatePolicy failed: %v", err)
	}
	if updated.Enabled {
		t.Fatal("Enabled flag not patched")
	}
	if updated.ID != created.ID {
		t.Fatal("Policy id was patched")
	}
	if updated.Name != created.Name {
		t.Fatal("Unpatched field lost in merge")
	}

	// A patch that breaks validation is rejected.
	if _, err := service.UpdatePolicy(db, created.ID, json.RawMessage(`{"action":"purge"}`)); err == nil {
		t.Fatal("Expected invalid patch to be rejected")
	}
}

func TestEvaluateRespectsCriteriaAndSafety(t *testing.T) {
	service, db, _ := newTestService(t)

	seedOldEmail(t, db, "old-1", 120)
	seedOldEmail(t, db, "old-2", 100)
	seedOldEmail(t, db, "fresh", 5)
	seedOldEmail(t, db, "starred", 200, models.LabelStarred)

	policy := validPolicy()
	candidates, err := service.Evaluate(db, policy, 0)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	// Fresh is under the age floor; starred is preserved.
	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(candidates))
	}
	for _, email := range candidates {
		if email.ID == "fresh" || email.ID == "starred" {
			t.Fatalf("Candidate %s should have been excluded", email.ID)
		}
	}

	// The per-run safety cap applies.
	policy.Safety.MaxEmailsPerRun = 1
	candidates, err = service.Evaluate(db, policy, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 {
		t.Fatalf("Expected safety cap of 1, got %d", len(candidates))
	}

	// A caller-provided cap can only tighten.
	policy.Safety.MaxEmailsPerRun = 100
	candidates, err = service.Evaluate(db, policy, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 {
		t.Fatalf("Expected caller cap of 1, got %d", len(candidates))
	}
}

func TestTriggerDryRunDoesNotModifyState(t *testing.T) {
	service, db, jobQueue := newTestService(t)

	seedOldEmail(t, db, "old-1", 120)
	policy, err := service.CreatePolicy(db, validPolicy())
	if err != nil {
		t.Fatal(err)
	}

	userCtx := models.UserContext{UserID: "user-a", SessionID: "sess"}
	result, err := service.Trigger(db, userCtx, &models.CleanupParams{PolicyID: policy.ID, DryRun: true})
	if err != nil {
		t.Fatalf("Dry run failed: %v", err)
	}
	dryRun, ok := result.(*DryRunResult)
	if !ok {
		t.Fatalf("Expected DryRunResult, got %T", result)
	}
	if dryRun.WouldMatch != 1 {
		t.Fatalf("Expected 1 match, got %d", dryRun.WouldMatch)
	}
	if jobQueue.Length() != 0 {
		t.Fatal("Dry run enqueued a job")
	}

	// Identical state gives an identical candidate set.
	again, err := service.Trigger(db, userCtx, &models.CleanupParams{PolicyID: policy.ID, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if again.(*DryRunResult).WouldMatch != 1 {
		t.Fatal("Dry run is not idempotent")
	}
}

func TestTriggerConfirmationGate(t *testing.T) {
	service, db, jobQueue := newTestService(t)

	policy := validPolicy()
	policy.Safety.RequireConfirmation = true
	created, err := service.CreatePolicy(db, policy)
	if err != nil {
		t.Fatal(err)
	}

	userCtx := models.UserContext{UserID: "user-a", SessionID: "sess"}
	if _, err := service.Trigger(db, userCtx, &models.CleanupParams{PolicyID: created.ID}); err == nil {
		t.Fatal("Expected unconfirmed trigger to be rejected")
	}
	if jobQueue.Length() != 0 {
		t.Fatal("Rejected trigger enqueued a job")
	}

	result, err := service.Trigger(db, userCtx, &models.CleanupParams{PolicyID: created.ID, Force: true})
	if err != nil {
		t.Fatalf("Forced trigger failed: %v", err)
	}
	payload, ok := result.(map[string]string)
	if !ok || payload["job_id"] == "" {
		t.Fatalf("Expected job id, got %v", result)
	}
	if jobQueue.Length() != 1 {
		t.Fatal("Forced trigger did not enqueue the job")
	}
}

func TestTriggerDisabledPolicyRejected(t *testing.T) {
	service, db, _ := newTestService(t)

	policy := validPolicy()
	policy.Enabled = false
	created, err := service.CreatePolicy(db, policy)
	if err != nil {
		t.Fatal(err)
	}

	userCtx := models.UserContext{UserID: "user-a", SessionID: "sess"}
	if _, err := service.Trigger(db, userCtx, &models.CleanupParams{PolicyID: created.ID}); err == nil {
		t.Fatal("Expected disabled policy to be rejected")
	}
}

func TestTriggerUnknownPolicy(t *testing.T) {
	service, db, _ := newTestService(t)

	userCtx := models.UserContext{UserID: "user-a", SessionID: "sess"}
	if _, err := service.Trigger(db, userCtx, &models.CleanupParams{PolicyID: "pol_missing"}); !models.IsNotFound(err) {
		t.Fatalf("Expected not_found, got %v", err)
	}
}
