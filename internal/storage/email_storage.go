// -----------------------------------------------------------------------
// Email Storage - user-bound persistence for the email index
// -----------------------------------------------------------------------

package storage

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/curator/internal/models"
)

// SaveEmail persists one email record. The record is stamped with the
// handle's user id; a record already bound to another user is rejected.
func (u *UserDB) SaveEmail(email *models.EmailIndex) error {
	if email.ID == "" {
		return fmt.Errorf("email ID is required")
	}
	if email.UserID != "" && email.UserID != u.userID {
		return models.NewDataIntegrity("email %s belongs to another user", email.ID)
	}
	email.UserID = u.userID

	if err := u.db.Store().Upsert(email.ID, email); err != nil {
		return fmt.Errorf("failed to save email: %w", err)
	}
	return nil
}

// SaveEmails persists a batch, stopping at the first failure.
func (u *UserDB) SaveEmails(emails []*models.EmailIndex) error {
	for _, email := range emails {
		if err := u.SaveEmail(email); err != nil {
			return err
		}
	}
	return nil
}

// GetEmail fetches one email by id.
func (u *UserDB) GetEmail(emailID string) (*models.EmailIndex, error) {
	var email models.EmailIndex
	if err := u.db.Store().Get(emailID, &email); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.NewNotFound("email not found: %s", emailID)
		}
		return nil, fmt.Errorf("failed to get email: %w", err)
	}
	return &email, nil
}

// QueryEmails returns the page of emails matching the criteria plus the total
// match count before pagination. Results are ordered newest first.
func (u *UserDB) QueryEmails(criteria *models.EmailCriteria) ([]*models.EmailIndex, int, error) {
	query := badgerhold.Where("UserID").Eq(u.userID)

	if criteria != nil {
		if criteria.Category != "" {
			// Stored categories are upper-case; accept any casing from callers.
			query = query.And("Category").Eq(models.Category(strings.ToUpper(criteria.Category)))
		}
		if criteria.Year > 0 {
			query = query.And("Year").Eq(criteria.Year)
		}
		if criteria.YearFrom > 0 {
			query = query.And("Year").Ge(criteria.YearFrom)
		}
		if criteria.YearTo > 0 {
			query = query.And("Year").Le(criteria.YearTo)
		}
		if criteria.Archived != nil {
			query = query.And("Archived").Eq(*criteria.Archived)
		}
	}

	var all []models.EmailIndex
	if err := u.db.Store().Find(&all, query); err != nil {
		return nil, 0, fmt.Errorf("failed to query emails: %w", err)
	}

	// Substring and range filters are applied in memory; badgerhold has no
	// operators for them over pointer fields.
	matched := make([]*models.EmailIndex, 0, len(all))
	for i := range all {
		if emailMatches(&all[i], criteria) {
			matched = append(matched, &all[i])
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Date.After(matched[j].Date)
	})

	total := len(matched)
	if criteria != nil {
		if criteria.Offset > 0 {
			if criteria.Offset >= len(matched) {
				matched = nil
			} else {
				matched = matched[criteria.Offset:]
			}
		}
		if criteria.Limit > 0 && len(matched) > criteria.Limit {
			matched = matched[:criteria.Limit]
		}
	}
	return matched, total, nil
}

func emailMatches(e *models.EmailIndex, c *models.EmailCriteria) bool {
	if e.Deleted {
		return false
	}
	if c == nil {
		return true
	}
	if c.Query != "" {
		q := strings.ToLower(c.Query)
		subject := ""
		if e.Subject != nil {
			subject = strings.ToLower(*e.Subject)
		}
		snippet := ""
		if e.Snippet != nil {
			snippet = strings.ToLower(*e.Snippet)
		}
		if !strings.Contains(subject, q) && !strings.Contains(snippet, q) {
			return false
		}
	}
	if c.Sender != "" {
		if e.Sender == nil || !strings.Contains(strings.ToLower(*e.Sender), strings.ToLower(c.Sender)) {
			return false
		}
	}
	if c.SizeMin > 0 && e.SizeBytes < c.SizeMin {
		return false
	}
	if c.SizeMax > 0 && e.SizeBytes > c.SizeMax {
		return false
	}
	if c.DateFrom != nil && e.Date.Before(*c.DateFrom) {
		return false
	}
	if c.DateTo != nil && e.Date.After(*c.DateTo) {
		return false
	}
	if c.HasAttachments != nil && e.HasAttachments != *c.HasAttachments {
		return false
	}
	if c.ImportanceLevel != "" && !strings.EqualFold(e.ImportanceLevel, c.ImportanceLevel) {
		return false
	}
	for _, want := range c.Labels {
		if !models.HasLabel(e.Labels, want) {
			return false
		}
	}
	return true
}

// UncategorizedEmails returns emails still awaiting a verdict, optionally
// restricted to one year. Zero year means all years.
func (u *UserDB) UncategorizedEmails(year int) ([]*models.EmailIndex, error) {
	query := badgerhold.Where("UserID").Eq(u.userID).And("Category").Eq(models.Category(""))
	if year > 0 {
		query = query.And("Year").Eq(year)
	}

	var emails []models.EmailIndex
	if err := u.db.Store().Find(&emails, query); err != nil {
		return nil, fmt.Errorf("failed to query uncategorized emails: %w", err)
	}

	result := make([]*models.EmailIndex, 0, len(emails))
	for i := range emails {
		if !emails[i].Deleted {
			result = append(result, &emails[i])
		}
	}
	return result, nil
}

// CountEmails returns the number of emails matching the criteria.
func (u *UserDB) CountEmails(criteria *models.EmailCriteria) (int, error) {
	_, total, err := u.QueryEmails(criteria)
	return total, err
}

// MarkArchived flags the given emails as archived at the given location.
// Unknown ids are skipped and reported back.
func (u *UserDB) MarkArchived(emailIDs []string, location string, archivedAt time.Time) ([]string, error) {
	var missing []string
	for _, id := range emailIDs {
		email, err := u.GetEmail(id)
		if err != nil {
			if models.IsNotFound(err) {
				missing = append(missing, id)
				continue
			}
			return missing, err
		}
		email.Archived = true
		date := archivedAt
		email.ArchiveDate = &date
		email.ArchiveLocation = location
		if err := u.SaveEmail(email); err != nil {
			return missing, err
		}
	}
	return missing, nil
}

// MarkDeleted flags the given emails as deleted. Unknown ids are skipped and
// reported back.
func (u *UserDB) MarkDeleted(emailIDs []string) ([]string, error) {
	var missing []string
	for _, id := range emailIDs {
		email, err := u.GetEmail(id)
		if err != nil {
			if models.IsNotFound(err) {
				missing = append(missing, id)
				continue
			}
			return missing, err
		}
		email.Deleted = true
		if err := u.SaveEmail(email); err != nil {
			return missing, err
		}
	}
	return missing, nil
}

// EmailStats aggregates the user's index. groupBy may be "year", "category",
// "size", "archived", "sender", "importance", or "all"/empty for totals only.
func (u *UserDB) EmailStats(groupBy string) (*models.EmailStats, error) {
	var all []models.EmailIndex
	if err := u.db.Store().Find(&all, badgerhold.Where("UserID").Eq(u.userID)); err != nil {
		return nil, fmt.Errorf("failed to load emails for stats: %w", err)
	}

	if groupBy == "all" {
		groupBy = ""
	}
	stats := &models.EmailStats{GroupBy: groupBy}
	if groupBy != "" {
		stats.Buckets = make(map[string]models.BucketStats)
	}

	for i := range all {
		e := &all[i]
		if e.Deleted {
			continue
		}
		stats.TotalEmails++
		stats.TotalSizeBytes += e.SizeBytes
		if e.IsCategorized() {
			stats.Categorized++
		}
		if e.Archived {
			stats.Archived++
		}

		if stats.Buckets == nil {
			continue
		}
		key, err := statsKey(e, groupBy)
		if err != nil {
			return nil, err
		}
		bucket := stats.Buckets[key]
		bucket.Count++
		bucket.SizeBytes += e.SizeBytes
		stats.Buckets[key] = bucket
	}
	return stats, nil
}

func statsKey(e *models.EmailIndex, groupBy string) (string, error) {
	switch groupBy {
	case "year":
		return strconv.Itoa(e.Year), nil
	case "category":
		if e.Category == "" {
			return "uncategorized", nil
		}
		return string(e.Category), nil
	case "size":
		if e.SizeCategory == "" {
			return "unsized", nil
		}
		return e.SizeCategory, nil
	case "archived":
		if e.Archived {
			return "archived", nil
		}
		return "active", nil
	case "sender":
		if e.Sender == nil {
			return "unknown", nil
		}
		return strings.ToLower(*e.Sender), nil
	case "importance":
		if e.ImportanceLevel == "" {
			return "unscored", nil
		}
		return e.ImportanceLevel, nil
	default:
		return "", models.NewInvalidParams("unsupported group_by %q", groupBy)
	}
}
