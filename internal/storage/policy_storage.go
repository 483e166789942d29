// -----------------------------------------------------------------------
// Policy Storage - user-bound persistence for cleanup configuration
// -----------------------------------------------------------------------

package storage

import (
	"fmt"

	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/curator/internal/models"
)

// SavePolicy persists one cleanup policy.
func (u *UserDB) SavePolicy(policy *models.CleanupPolicy) error {
	if policy.ID == "" {
		return fmt.Errorf("policy ID is required")
	}
	if err := u.db.Store().Upsert(policy.ID, policy); err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}
	return nil
}

// GetPolicy fetches one policy by id.
func (u *UserDB) GetPolicy(policyID string) (*models.CleanupPolicy, error) {
	var policy models.CleanupPolicy
	if err := u.db.Store().Get(policyID, &policy); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.NewNotFound("policy not found: %s", policyID)
		}
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}
	return &policy, nil
}

// ListPolicies returns all policies ordered by priority, highest first.
func (u *UserDB) ListPolicies() ([]*models.CleanupPolicy, error) {
	var policies []models.CleanupPolicy
	query := badgerhold.Where("ID").Ne("").SortBy("Priority").Reverse()
	if err := u.db.Store().Find(&policies, query); err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}

	result := make([]*models.CleanupPolicy, len(policies))
	for i := range policies {
		result[i] = &policies[i]
	}
	return result, nil
}

// DeletePolicy removes a policy and any schedules pointing at it.
func (u *UserDB) DeletePolicy(policyID string) error {
	if err := u.db.Store().Delete(policyID, &models.CleanupPolicy{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return models.NewNotFound("policy not found: %s", policyID)
		}
		return fmt.Errorf("failed to delete policy: %w", err)
	}

	schedules, err := u.SchedulesForPolicy(policyID)
	if err != nil {
		return err
	}
	for _, schedule := range schedules {
		if err := u.DeleteSchedule(schedule.ID); err != nil && !models.IsNotFound(err) {
			return err
		}
	}
	return nil
}

// SaveSchedule persists one cleanup schedule.
func (u *UserDB) SaveSchedule(schedule *models.CleanupSchedule) error {
	if schedule.ID == "" {
		return fmt.Errorf("schedule ID is required")
	}
	if err := u.db.Store().Upsert(schedule.ID, schedule); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

// GetSchedule fetches one schedule by id.
func (u *UserDB) GetSchedule(scheduleID string) (*models.CleanupSchedule, error) {
	var schedule models.CleanupSchedule
	if err := u.db.Store().Get(scheduleID, &schedule); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.NewNotFound("schedule not found: %s", scheduleID)
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return &schedule, nil
}

// ListSchedules returns all schedules for this user.
func (u *UserDB) ListSchedules() ([]*models.CleanupSchedule, error) {
	var schedules []models.CleanupSchedule
	if err := u.db.Store().Find(&schedules, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	result := make([]*models.CleanupSchedule, len(schedules))
	for i := range schedules {
		result[i] = &schedules[i]
	}
	return result, nil
}

// SchedulesForPolicy returns the schedules bound to one policy.
func (u *UserDB) SchedulesForPolicy(policyID string) ([]*models.CleanupSchedule, error) {
	var schedules []models.CleanupSchedule
	if err := u.db.Store().Find(&schedules, badgerhold.Where("PolicyID").Eq(policyID)); err != nil {
		return nil, fmt.Errorf("failed to list schedules for policy: %w", err)
	}

	result := make([]*models.CleanupSchedule, len(schedules))
	for i := range schedules {
		result[i] = &schedules[i]
	}
	return result, nil
}

// DeleteSchedule removes a schedule.
func (u *UserDB) DeleteSchedule(scheduleID string) error {
	if err := u.db.Store().Delete(scheduleID, &models.CleanupSchedule{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return models.NewNotFound("schedule not found: %s", scheduleID)
		}
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return nil
}

// SaveSearch persists a named search.
func (u *UserDB) SaveSearch(search *models.SavedSearch) error {
	if search.ID == "" {
		return fmt.Errorf("search ID is required")
	}
	if err := u.db.Store().Upsert(search.ID, search); err != nil {
		return fmt.Errorf("failed to save search: %w", err)
	}
	return nil
}

// GetSavedSearch fetches one saved search by id.
func (u *UserDB) GetSavedSearch(searchID string) (*models.SavedSearch, error) {
	var search models.SavedSearch
	if err := u.db.Store().Get(searchID, &search); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.NewNotFound("saved search not found: %s", searchID)
		}
		return nil, fmt.Errorf("failed to get saved search: %w", err)
	}
	return &search, nil
}

// ListSavedSearches returns all saved searches, newest first.
func (u *UserDB) ListSavedSearches() ([]*models.SavedSearch, error) {
	var searches []models.SavedSearch
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if err := u.db.Store().Find(&searches, query); err != nil {
		return nil, fmt.Errorf("failed to list saved searches: %w", err)
	}

	result := make([]*models.SavedSearch, len(searches))
	for i := range searches {
		result[i] = &searches[i]
	}
	return result, nil
}

// SaveArchiveRule persists a reusable archive criteria set.
func (u *UserDB) SaveArchiveRule(rule *models.ArchiveRule) error {
	if rule.ID == "" {
		return fmt.Errorf("archive rule ID is required")
	}
	if err := u.db.Store().Upsert(rule.ID, rule); err != nil {
		return fmt.Errorf("failed to save archive rule: %w", err)
	}
	return nil
}

// ListArchiveRules returns all archive rules.
func (u *UserDB) ListArchiveRules() ([]*models.ArchiveRule, error) {
	var rules []models.ArchiveRule
	if err := u.db.Store().Find(&rules, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list archive rules: %w", err)
	}

	result := make([]*models.ArchiveRule, len(rules))
	for i := range rules {
		result[i] = &rules[i]
	}
	return result, nil
}

// SaveArchiveRecord persists an audit record of one archive run.
func (u *UserDB) SaveArchiveRecord(record *models.ArchiveRecord) error {
	if record.ID == "" {
		return fmt.Errorf("archive record ID is required")
	}
	if err := u.db.Store().Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to save archive record: %w", err)
	}
	return nil
}

// ListArchiveRecords returns archive history, newest first.
func (u *UserDB) ListArchiveRecords(limit int) ([]*models.ArchiveRecord, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("ArchivedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.ArchiveRecord
	if err := u.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list archive records: %w", err)
	}

	result := make([]*models.ArchiveRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}
