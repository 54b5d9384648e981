package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
	appErrors "github.com/evlin-hq/evlin-scheduler-api/pkg/errors"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/export"
)

type sessionHistoryLister interface {
	ListByStudentUpTo(ctx context.Context, studentID string, upTo time.Time) ([]models.SessionInstance, error)
	ListByStudentDate(ctx context.Context, studentID string, date time.Time) ([]models.SessionDetail, error)
}

type checkinLogLister interface {
	ListByStudent(ctx context.Context, studentID string, limit int) ([]models.CheckinLogEntry, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// StatsService computes check-in statistics, the weekly progress strip and
// the audit log exports. Stats are optionally cached in Redis and invalidated
// by the session lifecycle service on every transition.
type StatsService struct {
	sessions sessionHistoryLister
	log      checkinLogLister
	cache    statsCache
	exporter *export.CSVExporter
	logger   *zap.Logger
	now      func() time.Time

	streakLookbackDays int
	cacheEnabled       bool
	cacheTTL           time.Duration
}

// NewStatsService builds the service. Pass a nil cache to disable caching.
func NewStatsService(sessions sessionHistoryLister, log checkinLogLister, cache statsCache, streakLookbackDays int, cacheEnabled bool, cacheTTL time.Duration, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if streakLookbackDays <= 0 {
		streakLookbackDays = 30
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &StatsService{
		sessions:           sessions,
		log:                log,
		cache:              cache,
		exporter:           export.NewCSVExporter(),
		logger:             logger,
		now:                time.Now,
		streakLookbackDays: streakLookbackDays,
		cacheEnabled:       cacheEnabled && cache != nil,
		cacheTTL:           cacheTTL,
	}
}

func statsCacheKey(studentID string) string {
	return fmt.Sprintf("checkin:stats:%s", studentID)
}

// Invalidate drops the cached stats for a student. Safe to call when caching
// is disabled.
func (s *StatsService) Invalidate(ctx context.Context, studentID string) {
	if !s.cacheEnabled {
		return
	}
	if err := s.cache.Delete(ctx, statsCacheKey(studentID)); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.String("student_id", studentID), zap.Error(err))
	}
}

// GetCheckinStats aggregates a student's session history up to today.
// Cancelled sessions are excluded entirely: a deliberately skipped session
// neither helps nor hurts the completion rate.
func (s *StatsService) GetCheckinStats(ctx context.Context, studentID string) (*models.CheckinStats, error) {
	key := statsCacheKey(studentID)
	if s.cacheEnabled {
		var cached models.CheckinStats
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("stats cache read failed", zap.String("student_id", studentID), zap.Error(err))
		}
	}

	today := dateOnly(s.now())
	sessions, err := s.sessions.ListByStudentUpTo(ctx, studentID, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session history")
	}

	stats := s.aggregate(sessions, today)

	if s.cacheEnabled {
		if err := s.cache.Set(ctx, key, stats, s.cacheTTL); err != nil {
			s.logger.Warn("stats cache write failed", zap.String("student_id", studentID), zap.Error(err))
		}
	}
	return stats, nil
}

func (s *StatsService) aggregate(sessions []models.SessionInstance, today time.Time) *models.CheckinStats {
	stats := &models.CheckinStats{}
	weekStart := mondayOnOrBefore(today)

	byDate := make(map[string][]models.SessionInstance)
	for _, session := range sessions {
		if session.Status == models.SessionStatusCancelled {
			continue
		}
		stats.Total++
		switch session.Status {
		case models.SessionStatusCompleted:
			stats.Completed++
		case models.SessionStatusMissed:
			stats.Missed++
		case models.SessionStatusRescheduled:
			stats.Rescheduled++
		case models.SessionStatusPending:
			stats.Pending++
		}

		date := dateOnly(session.SessionDate)
		if !date.Before(weekStart) {
			stats.WeekTotal++
			if session.Status == models.SessionStatusCompleted {
				stats.WeekCompleted++
			}
		}
		key := date.Format("2006-01-02")
		byDate[key] = append(byDate[key], session)
	}

	if resolved := stats.Total - stats.Pending; resolved > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(resolved)
	}
	stats.Streak = computeStreak(byDate, today, s.streakLookbackDays)

	return stats
}

// computeStreak counts consecutive fully-completed session days walking
// backwards starting yesterday. Today is never consulted, so sessions still
// pending today cannot break an intact run. Days without sessions are
// skipped; the first day holding any non-completed session stops the walk.
func computeStreak(byDate map[string][]models.SessionInstance, today time.Time, lookbackDays int) int {
	allCompleted := func(sessions []models.SessionInstance) bool {
		for _, session := range sessions {
			if session.Status != models.SessionStatusCompleted {
				return false
			}
		}
		return true
	}

	streak := 0
	for i := 1; i <= lookbackDays; i++ {
		day := today.AddDate(0, 0, -i)
		sessions, ok := byDate[day.Format("2006-01-02")]
		if !ok || len(sessions) == 0 {
			continue
		}
		if !allCompleted(sessions) {
			break
		}
		streak++
	}
	return streak
}

// WeekProgress returns the per-day progress strip for the week containing
// the given date, Monday through Sunday.
func (s *StatsService) WeekProgress(ctx context.Context, studentID string, weekOf time.Time) ([]models.DayProgress, error) {
	weekStart := mondayOnOrBefore(dateOnly(weekOf))

	progress := make([]models.DayProgress, 0, 7)
	for day := 0; day < 7; day++ {
		date := weekStart.AddDate(0, 0, day)
		sessions, err := s.sessions.ListByStudentDate(ctx, studentID, date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions for week progress")
		}

		cell := models.DayProgress{Date: date, DayName: models.DayName(day)}
		for _, session := range sessions {
			if session.Status == models.SessionStatusCancelled || session.Status == models.SessionStatusRescheduled {
				continue
			}
			cell.Total++
			switch session.Status {
			case models.SessionStatusCompleted:
				cell.Completed++
			case models.SessionStatusMissed:
				cell.Missed++
			case models.SessionStatusPending:
				cell.Pending++
			}
		}
		cell.AllCompleted = cell.Total > 0 && cell.Completed == cell.Total
		progress = append(progress, cell)
	}
	return progress, nil
}

// ListCheckinLog returns a student's audit trail, newest first.
func (s *StatsService) ListCheckinLog(ctx context.Context, studentID string, limit int) ([]models.CheckinLogEntry, error) {
	entries, err := s.log.ListByStudent(ctx, studentID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list checkin log")
	}
	return entries, nil
}

// ExportCheckinHistory renders a student's audit trail as CSV.
func (s *StatsService) ExportCheckinHistory(ctx context.Context, studentID string, limit int) ([]byte, error) {
	entries, err := s.log.ListByStudent(ctx, studentID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list checkin log")
	}

	headers := []string{"timestamp", "session_instance_id", "action", "performed_by", "detail"}
	rows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, map[string]string{
			"timestamp":           entry.CreatedAt.UTC().Format(time.RFC3339),
			"session_instance_id": entry.SessionInstanceID,
			"action":              string(entry.Action),
			"performed_by":        string(entry.PerformedBy),
			"detail":              string(entry.Detail),
		})
	}

	payload, err := s.exporter.Render(export.Dataset{Headers: headers, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
	}
	return payload, nil
}
