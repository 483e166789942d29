// -----------------------------------------------------------------------
// Cleanup Scheduler - wall-clock firing of cleanup policies
// -----------------------------------------------------------------------

package scheduler

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curator/internal/common"
	"github.com/ternarybob/curator/internal/models"
	"github.com/ternarybob/curator/internal/queue"
	"github.com/ternarybob/curator/internal/storage"
)

// Service fires cleanup schedules on wall-clock time. Missed ticks during
// downtime are not replayed; only the next upcoming fire runs.
type Service struct {
	cron    *cron.Cron
	factory *storage.Factory
	jobs    *storage.JobStore
	queue   *queue.Queue
	logger  arbor.ILogger

	mu      sync.Mutex
	entries map[string]cron.EntryID // schedule id -> cron entry
}

func NewService(logger arbor.ILogger, factory *storage.Factory, jobs *storage.JobStore, jobQueue *queue.Queue) *Service {
	return &Service{
		cron:    cron.New(),
		factory: factory,
		jobs:    jobs,
		queue:   jobQueue,
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// Start loads every enabled schedule from storage and begins firing.
func (s *Service) Start() error {
	users, err := s.factory.KnownUsers()
	if err != nil {
		return err
	}

	loaded := 0
	for _, userID := range users {
		db, err := s.factory.DatabaseFor(userID)
		if err != nil {
			return err
		}
		schedules, err := db.ListSchedules()
		if err != nil {
			return err
		}
		for _, schedule := range schedules {
			if !schedule.Enabled {
				continue
			}
			if err := s.Register(userID, schedule); err != nil {
				s.logger.Warn().Err(err).Str("schedule_id", schedule.ID).Msg("Skipping unregisterable schedule")
				continue
			}
			loaded++
		}
	}

	s.cron.Start()
	s.logger.Info().Int("schedules", loaded).Msg("Scheduler started")
	return nil
}

// Stop halts firing. Jobs already enqueued keep running.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// CreateSchedule validates, persists and registers a new schedule.
func (s *Service) CreateSchedule(db *storage.UserDB, schedule *models.CleanupSchedule) (*models.CleanupSchedule, error) {
	if schedule.ID == "" {
		schedule.ID = common.NewScheduleID()
	}
	schedule.CreatedAt = time.Now().UTC()

	if _, err := db.GetPolicy(schedule.PolicyID); err != nil {
		return nil, err
	}
	if _, err := CronSpec(schedule.Kind, schedule.Expression); err != nil {
		return nil, models.NewInvalidParams("invalid schedule expression: %v", err)
	}

	if err := db.SaveSchedule(schedule); err != nil {
		return nil, err
	}
	if schedule.Enabled {
		if err := s.Register(db.UserID(), schedule); err != nil {
			return nil, err
		}
	}
	return schedule, nil
}

// Register adds one schedule to the cron runner.
func (s *Service) Register(userID string, schedule *models.CleanupSchedule) error {
	spec, err := CronSpec(schedule.Kind, schedule.Expression)
	if err != nil {
		return err
	}

	scheduleID := schedule.ID
	policyID := schedule.PolicyID
	entryID, err := s.cron.AddFunc(spec, func() {
		s.fire(userID, scheduleID, policyID)
	})
	if err != nil {
		return fmt.Errorf("failed to register schedule %s: %w", schedule.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[schedule.ID]; ok {
		s.cron.Remove(old)
	}
	s.entries[schedule.ID] = entryID
	return nil
}

// Unregister removes one schedule from the runner.
func (s *Service) Unregister(scheduleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[scheduleID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, scheduleID)
	}
}

// fire enqueues one cleanup job for the schedule's policy. Scheduled runs
// bypass the confirmation gate; that gate guards interactive triggers.
func (s *Service) fire(userID, scheduleID, policyID string) {
	params := &models.CleanupParams{
		UserContext: models.UserContext{UserID: userID},
		PolicyID:    policyID,
	}
	requestParams, err := json.Marshal(params)
	if err != nil {
		s.logger.Error().Err(err).Str("schedule_id", scheduleID).Msg("Failed to encode scheduled cleanup params")
		return
	}

	job := &models.Job{
		JobID:         common.NewJobID(),
		UserID:        userID,
		JobType:       models.JobTypeCleanup,
		Status:        models.JobStatusPending,
		RequestParams: requestParams,
	}
	if err := s.jobs.Create(job); err != nil {
		s.logger.Error().Err(err).Str("schedule_id", scheduleID).Msg("Failed to create scheduled cleanup job")
		return
	}
	s.queue.Enqueue(queue.JobRef{JobID: job.JobID, UserID: userID})

	if db, err := s.factory.DatabaseFor(userID); err == nil {
		if schedule, err := db.GetSchedule(scheduleID); err == nil {
			now := time.Now().UTC()
			schedule.LastFired = &now
			if err := db.SaveSchedule(schedule); err != nil {
				s.logger.Warn().Err(err).Str("schedule_id", scheduleID).Msg("Failed to record last fire")
			}
		}
	}

	s.logger.Info().
		Str("schedule_id", scheduleID).
		Str("policy_id", policyID).
		Str("job_id", job.JobID).
		Msg("Schedule fired")
}

var weekdays = map[string]int{
	"sunday": 0, "sun": 0,
	"monday": 1, "mon": 1,
	"tuesday": 2, "tue": 2,
	"wednesday": 3, "wed": 3,
	"thursday": 4, "thu": 4,
	"friday": 5, "fri": 5,
	"saturday": 6, "sat": 6,
}

// CronSpec translates a schedule expression into a cron spec understood by
// the runner. Formats: daily "HH:MM", weekly "day:HH:MM", monthly
// "DD:HH:MM", interval in milliseconds, or a raw 5-field cron line.
func CronSpec(kind models.ScheduleKind, expression string) (string, error) {
	expression = strings.TrimSpace(expression)

	switch kind {
	case models.ScheduleKindDaily:
		hour, minute, err := parseClock(expression)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d * * *", minute, hour), nil

	case models.ScheduleKindWeekly:
		parts := strings.SplitN(expression, ":", 2)
		if len(parts) != 2 {
			return "", fmt.Errorf("weekly expression must be day:HH:MM, got %q", expression)
		}
		dow, ok := weekdays[strings.ToLower(parts[0])]
		if !ok {
			return "", fmt.Errorf("unknown weekday %q", parts[0])
		}
		hour, minute, err := parseClock(parts[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d * * %d", minute, hour, dow), nil

	case models.ScheduleKindMonthly:
		parts := strings.SplitN(expression, ":", 2)
		if len(parts) != 2 {
			return "", fmt.Errorf("monthly expression must be DD:HH:MM, got %q", expression)
		}
		day, err := strconv.Atoi(parts[0])
		if err != nil || day < 1 || day > 31 {
			return "", fmt.Errorf("invalid day of month %q", parts[0])
		}
		hour, minute, err := parseClock(parts[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d %d * *", minute, hour, day), nil

	case models.ScheduleKindInterval:
		ms, err := strconv.ParseInt(expression, 10, 64)
		if err != nil || ms <= 0 {
			return "", fmt.Errorf("interval expression must be positive milliseconds, got %q", expression)
		}
		// Cron granularity is one second.
		d := time.Duration(ms) * time.Millisecond
		if d < time.Second {
			d = time.Second
		}
		return "@every " + d.String(), nil

	case models.ScheduleKindCron:
		if len(strings.Fields(expression)) != 5 {
			return "", fmt.Errorf("cron expression must have 5 fields, got %q", expression)
		}
		return expression, nil

	default:
		return "", fmt.Errorf("unknown schedule kind %q", kind)
	}
}

func parseClock(clock string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(clock), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("clock must be HH:MM, got %q", clock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour %q", parts[0])
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute %q", parts[1])
	}
	return hour, minute, nil
}
