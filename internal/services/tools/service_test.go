package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
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

// fakeGmail satisfies GmailService/GmailProvider without touching the vendor
// API, recording which destructive calls it received.
type fakeGmail struct {
	archived []string
	trashed  []string
}

func (f *fakeGmail) ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error) {
	return nil, nil
}

func (f *fakeGmail) FetchMessages(ctx context.Context, ids []string) ([]*models.EmailIndex, []string, error) {
	return nil, nil, nil
}

func (f *fakeGmail) Archive(ctx context.Context, ids []string) error {
	f.archived = append(f.archived, ids...)
	return nil
}

func (f *fakeGmail) Trash(ctx context.Context, ids []string) error {
	f.trashed = append(f.trashed, ids...)
	return nil
}

func (f *fakeGmail) GmailFor(ctx context.Context, userID string) (interfaces.GmailService, error) {
	return f, nil
}

type fixture struct {
	service *Service
	gmail   *fakeGmail
	cache   *cache.Service
	userCtx models.UserContext
	db      *storage.UserDB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := arbor.NewLogger()
	config := common.DefaultConfig()
	config.Storage.Path = t.TempDir()

	factory, err := storage.NewFactory(logger, &config.Storage)
	require.NoError(t, err)
	t.Cleanup(func() { factory.Close() })

	systemDB, err := storage.NewBadgerDB(logger, config.Storage.Path+"/system", false)
	require.NoError(t, err)
	t.Cleanup(func() { systemDB.Close() })

	jobs, err := storage.NewJobStore(factory, logger)
	require.NoError(t, err)
	t.Cleanup(jobs.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	jobQueue := queue.New()
	authService := auth.NewService(logger, storage.NewSessionStore(systemDB, logger), &config.Auth)
	gmailFake := &fakeGmail{}
	cacheService := cache.NewService(ctx, logger, time.Hour, time.Hour)

	service := NewService(logger, Deps{
		Factory:   factory,
		Jobs:      jobs,
		Queue:     jobQueue,
		Cache:     cacheService,
		Auth:      authService,
		Cleanup:   cleanup.NewService(logger, jobs, jobQueue),
		Scheduler: scheduler.NewService(logger, factory, jobs, jobQueue),
		Gmail:     gmailFake,
		Config:    config,
	})

	session, err := authService.Authenticate("")
	require.NoError(t, err)
	userCtx := models.UserContext{UserID: session.UserID, SessionID: session.SessionID}

	db, err := factory.DatabaseFor(session.UserID)
	require.NoError(t, err)

	return &fixture{service: service, gmail: gmailFake, cache: cacheService, userCtx: userCtx, db: db}
}

func (f *fixture) seed(t *testing.T, id string, year int) {
	t.Helper()
	date := time.Date(year, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.db.SaveEmail(&models.EmailIndex{
		ID:      id,
		Subject: models.String("subject " + id),
		Sender:  models.String("sender@example.com"),
		Snippet: models.String("snippet"),
		Date:    date,
		Year:    year,
	}))
}

func TestToolsRejectInvalidSession(t *testing.T) {
	f := newFixture(t)

	bogus := models.UserContext{UserID: f.userCtx.UserID, SessionID: "sess_forged"}
	_, err := f.service.ListEmails(bogus, &models.EmailCriteria{})
	require.Error(t, err)
	pe, ok := models.AsProtocolError(err)
	require.True(t, ok)
	require.Equal(t, models.ErrCodeInvalidRequest, pe.Code)
}

func TestListEmailsPaging(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "m1", 2023)
	f.seed(t, "m2", 2024)
	f.seed(t, "m3", 2024)

	page, err := f.service.ListEmails(f.userCtx, &models.EmailCriteria{Year: 2024, Limit: 1})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Len(t, page.Emails, 1)
}

func TestCategorizeEmailsSubmitsJob(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.CategorizeEmails(f.userCtx, false, 0)
	require.NoError(t, err)
	require.NotEmpty(t, result["job_id"])
	require.Equal(t, string(models.JobStatusPending), result["status"])

	job, err := f.service.GetJobStatus(f.userCtx, result["job_id"])
	require.NoError(t, err)
	require.Equal(t, models.JobStatusPending, job.Status)
}

func TestDeleteEmailsRequiresConfirmOrDryRun(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "m1", 2024)

	_, err := f.service.DeleteEmails(context.Background(), f.userCtx, &models.EmailCriteria{}, false, false)
	require.Error(t, err)
	pe, ok := models.AsProtocolError(err)
	require.True(t, ok)
	require.Equal(t, models.ErrCodeInvalidParams, pe.Code)
	require.Empty(t, f.gmail.trashed)

	// Dry run previews without deleting.
	result, err := f.service.DeleteEmails(context.Background(), f.userCtx, &models.EmailCriteria{}, false, true)
	require.NoError(t, err)
	require.True(t, result.DryRun)
	require.Equal(t, 1, result.Matched)
	require.Zero(t, result.Deleted)
	require.Empty(t, f.gmail.trashed)

	// Confirmed delete trashes and flags the record.
	result, err = f.service.DeleteEmails(context.Background(), f.userCtx, &models.EmailCriteria{}, true, false)
	require.NoError(t, err)
	require.Equal(t, 1, result.Deleted)
	require.Equal(t, []string{"m1"}, f.gmail.trashed)
}

func TestArchiveEmailsGmailMethod(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "m1", 2020)
	f.seed(t, "m2", 2020)

	result, err := f.service.ArchiveEmails(context.Background(), f.userCtx, &models.EmailCriteria{Year: 2020}, models.CleanupMethodGmail, false)
	require.NoError(t, err)
	require.Equal(t, 2, result.Archived)
	require.Len(t, f.gmail.archived, 2)

	// Archived emails drop out of the default (unarchived) scope.
	again, err := f.service.ArchiveEmails(context.Background(), f.userCtx, &models.EmailCriteria{Year: 2020}, models.CleanupMethodGmail, false)
	require.NoError(t, err)
	require.Zero(t, again.Matched)

	records, err := f.service.ListArchiveRecords(f.userCtx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, models.CleanupMethodGmail, records[0].Method)
}

func TestArchiveEmailsExportMethod(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "m1", 2019)

	result, err := f.service.ArchiveEmails(context.Background(), f.userCtx, &models.EmailCriteria{Year: 2019}, models.CleanupMethodExport, false)
	require.NoError(t, err)
	require.Equal(t, 1, result.Archived)
	require.FileExists(t, result.Location)
	require.Empty(t, f.gmail.archived)
}

func TestGetEmailStatsCaches(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "m1", 2024)

	stats, err := f.service.GetEmailStats(f.userCtx, "year")
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalEmails)

	// A second read inside the TTL serves the cached aggregate even though
	// the index changed underneath.
	f.seed(t, "m2", 2024)
	cached, err := f.service.GetEmailStats(f.userCtx, "year")
	require.NoError(t, err)
	require.Equal(t, 1, cached.TotalEmails)
}

func TestGetEmailStatsRefreshAfterDelete(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "m1", 2023)
	f.seed(t, "m2", 2024)

	stats, err := f.service.GetEmailStats(f.userCtx, "year")
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalEmails)
	require.Equal(t, 1, stats.Buckets["2023"].Count)

	_, err = f.service.DeleteEmails(context.Background(), f.userCtx, &models.EmailCriteria{}, true, false)
	require.NoError(t, err)

	// The grouped aggregate is flushed along with the totals.
	after, err := f.service.GetEmailStats(f.userCtx, "year")
	require.NoError(t, err)
	require.Zero(t, after.TotalEmails)
	require.Empty(t, after.Buckets)
}

func TestListEmailsCachedUntilMutation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "m1", 2024)

	page, err := f.service.ListEmails(f.userCtx, &models.EmailCriteria{Year: 2024})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)

	// Identical criteria inside the TTL serve the cached page even though
	// the index changed underneath.
	f.seed(t, "m2", 2024)
	cached, err := f.service.ListEmails(f.userCtx, &models.EmailCriteria{Year: 2024})
	require.NoError(t, err)
	require.Equal(t, 1, cached.Total)

	// A confirmed delete drops every cached page; the next read is fresh.
	_, err = f.service.DeleteEmails(context.Background(), f.userCtx, &models.EmailCriteria{Query: "subject m1"}, true, false)
	require.NoError(t, err)

	fresh, err := f.service.ListEmails(f.userCtx, &models.EmailCriteria{Year: 2024})
	require.NoError(t, err)
	require.Equal(t, 1, fresh.Total)
	require.Equal(t, "m2", fresh.Emails[0].ID)
}

func TestGetEmailCachesRecord(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "m1", 2024)

	_, err := f.service.GetEmail(f.userCtx, "")
	require.Error(t, err)

	email, err := f.service.GetEmail(f.userCtx, "m1")
	require.NoError(t, err)
	require.Equal(t, "m1", email.ID)
	_, ok := f.cache.Get(cache.EmailKey(f.userCtx.UserID, "m1"))
	require.True(t, ok)

	_, err = f.service.GetEmail(f.userCtx, "missing")
	require.Error(t, err)
	require.True(t, models.IsNotFound(err))

	// Archiving through the service flushes the cached record.
	_, err = f.service.ArchiveEmails(context.Background(), f.userCtx, &models.EmailCriteria{Year: 2024}, models.CleanupMethodGmail, false)
	require.NoError(t, err)
	_, ok = f.cache.Get(cache.EmailKey(f.userCtx.UserID, "m1"))
	require.False(t, ok)

	archived, err := f.service.GetEmail(f.userCtx, "m1")
	require.NoError(t, err)
	require.True(t, archived.Archived)
}

func TestSaveAndListArchiveRules(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.SaveArchiveRule(f.userCtx, &models.ArchiveRule{Method: models.CleanupMethodGmail})
	require.Error(t, err)

	_, err = f.service.SaveArchiveRule(f.userCtx, &models.ArchiveRule{Name: "old-promos", Method: "shred"})
	require.Error(t, err)
	pe, ok := models.AsProtocolError(err)
	require.True(t, ok)
	require.Equal(t, models.ErrCodeInvalidParams, pe.Code)

	saved, err := f.service.SaveArchiveRule(f.userCtx, &models.ArchiveRule{
		Name:     "old-promos",
		Criteria: models.EmailCriteria{YearTo: 2020, Category: "LOW"},
		Method:   models.CleanupMethodExport,
		Enabled:  true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	require.False(t, saved.CreatedAt.IsZero())

	rules, err := f.service.ListArchiveRules(f.userCtx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Equal(t, "old-promos", rules[0].Name)
	require.Equal(t, 2020, rules[0].Criteria.YearTo)
}

func TestSaveAndListSearches(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.SaveSearch(f.userCtx, "", &models.EmailCriteria{})
	require.Error(t, err)

	saved, err := f.service.SaveSearch(f.userCtx, "big-promos", &models.EmailCriteria{SizeMin: 1024, Query: "sale"})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	searches, err := f.service.ListSavedSearches(f.userCtx)
	require.NoError(t, err)
	require.Len(t, searches, 1)
	require.Equal(t, "big-promos", searches[0].Name)
}
