package storage

import (
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/common"
	"github.com/ternarybob/curator/internal/models"
)

func newTestFactory(t *testing.T) *Factory {
	t.Helper()
	factory, err := NewFactory(arbor.NewLogger(), &common.StorageConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to create factory: %v", err)
	}
	t.Cleanup(func() { factory.Close() })
	return factory
}

func newTestJobStore(t *testing.T) (*JobStore, *Factory) {
	t.Helper()
	factory := newTestFactory(t)
	store, err := NewJobStore(factory, arbor.NewLogger())
	if err != nil {
		t.Fatalf("Failed to create job store: %v", err)
	}
	t.Cleanup(store.Close)
	return store, factory
}

func pendingJob(userID string) *models.Job {
	return &models.Job{
		JobID:   common.NewJobID(),
		UserID:  userID,
		JobType: models.JobTypeCategorization,
		Status:  models.JobStatusPending,
	}
}

func TestJobLifecycle(t *testing.T) {
	store, _ := newTestJobStore(t)

	job := pendingJob("user-a")
	if err := store.Create(job); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	claimed, ok, err := store.Claim(job.JobID, "user-a")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected claim to succeed")
	}
	if claimed.Status != models.JobStatusInProgress {
		t.Fatalf("Expected IN_PROGRESS after claim, got %s", claimed.Status)
	}
	if claimed.StartedAt == nil {
		t.Fatal("Expected started_at to be set")
	}

	// A second claim must lose.
	if _, ok, _ := store.Claim(job.JobID, "user-a"); ok {
		t.Fatal("Job claimed twice")
	}

	if err := store.Complete(job.JobID, "user-a", []byte(`{"processed":1}`)); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	final, err := store.Get(job.JobID, "user-a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if final.Status != models.JobStatusCompleted {
		t.Fatalf("Expected COMPLETED, got %s", final.Status)
	}
	if final.Progress != 100 {
		t.Fatalf("Expected progress 100, got %d", final.Progress)
	}
	if final.CompletedAt == nil || final.StartedAt == nil {
		t.Fatal("Expected both timestamps set")
	}
	if final.CompletedAt.Before(*final.StartedAt) {
		t.Fatal("completed_at precedes started_at")
	}
}

func TestTerminalJobsAreImmutable(t *testing.T) {
	store, _ := newTestJobStore(t)

	job := pendingJob("user-a")
	if err := store.Create(job); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.Claim(job.JobID, "user-a"); err != nil {
		t.Fatal(err)
	}
	if err := store.Fail(job.JobID, "user-a", "boom"); err != nil {
		t.Fatal(err)
	}

	status := models.JobStatusCompleted
	if _, err := store.Update(job.JobID, "user-a", &models.JobUpdate{Status: &status}); err == nil {
		t.Fatal("Expected update of terminal job to be rejected")
	}
}

func TestIllegalTransitionRejected(t *testing.T) {
	store, _ := newTestJobStore(t)

	job := pendingJob("user-a")
	if err := store.Create(job); err != nil {
		t.Fatal(err)
	}

	// PENDING -> COMPLETED skips the claim.
	status := models.JobStatusCompleted
	if _, err := store.Update(job.JobID, "user-a", &models.JobUpdate{Status: &status}); err == nil {
		t.Fatal("Expected PENDING -> COMPLETED to be rejected")
	}
}

func TestProgressOnlyIncreases(t *testing.T) {
	store, _ := newTestJobStore(t)

	job := pendingJob("user-a")
	if err := store.Create(job); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.Claim(job.JobID, "user-a"); err != nil {
		t.Fatal(err)
	}

	fifty := 50
	if _, err := store.Update(job.JobID, "user-a", &models.JobUpdate{Progress: &fifty}); err != nil {
		t.Fatal(err)
	}
	ten := 10
	updated, err := store.Update(job.JobID, "user-a", &models.JobUpdate{Progress: &ten})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Progress != 50 {
		t.Fatalf("Progress regressed to %d", updated.Progress)
	}
}

func TestJobUserIsolation(t *testing.T) {
	store, _ := newTestJobStore(t)

	job := pendingJob("user-a")
	if err := store.Create(job); err != nil {
		t.Fatal(err)
	}

	// Another user's read must look identical to a missing job.
	if _, err := store.Get(job.JobID, "user-b"); !models.IsNotFound(err) {
		t.Fatalf("Expected not_found for foreign user, got %v", err)
	}
}

func TestReapOrphans(t *testing.T) {
	store, _ := newTestJobStore(t)

	job := pendingJob("user-a")
	if err := store.Create(job); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.Claim(job.JobID, "user-a"); err != nil {
		t.Fatal(err)
	}

	reaped, err := store.ReapOrphans()
	if err != nil {
		t.Fatalf("ReapOrphans failed: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("Expected 1 reaped job, got %d", reaped)
	}

	failed, err := store.Get(job.JobID, "user-a")
	if err != nil {
		t.Fatal(err)
	}
	if failed.Status != models.JobStatusFailed {
		t.Fatalf("Expected FAILED after reap, got %s", failed.Status)
	}
	if failed.ErrorDetails != "orphaned by restart" {
		t.Fatalf("Unexpected error details: %q", failed.ErrorDetails)
	}
}

func TestPendingJobsOldestFirst(t *testing.T) {
	store, _ := newTestJobStore(t)

	first := pendingJob("user-a")
	first.CreatedAt = time.Now().UTC().Add(-2 * time.Minute)
	second := pendingJob("user-a")
	second.CreatedAt = time.Now().UTC().Add(-1 * time.Minute)

	if err := store.Create(second); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(first); err != nil {
		t.Fatal(err)
	}

	pending, err := store.PendingJobs("user-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("Expected 2 pending jobs, got %d", len(pending))
	}
	if pending[0].JobID != first.JobID {
		t.Fatal("Pending jobs not ordered oldest first")
	}
}

func TestDeleteOlderThan(t *testing.T) {
	store, _ := newTestJobStore(t)

	job := pendingJob("user-a")
	if err := store.Create(job); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.Claim(job.JobID, "user-a"); err != nil {
		t.Fatal(err)
	}
	if err := store.Complete(job.JobID, "user-a", nil); err != nil {
		t.Fatal(err)
	}

	// Cutoff in the past keeps the fresh job.
	deleted, err := store.DeleteOlderThan("user-a", time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 0 {
		t.Fatalf("Expected no deletions, got %d", deleted)
	}

	deleted, err = store.DeleteOlderThan("user-a", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Fatalf("Expected 1 deletion, got %d", deleted)
	}
	if _, err := store.Get(job.JobID, "user-a"); !models.IsNotFound(err) {
		t.Fatalf("Expected job gone, got %v", err)
	}
}

func TestJobStoreSingleton(t *testing.T) {
	_, factory := newTestJobStore(t)

	if _, err := NewJobStore(factory, arbor.NewLogger()); err == nil {
		t.Fatal("Expected second job store to be rejected")
	}
}
