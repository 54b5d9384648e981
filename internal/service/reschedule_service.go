package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
	appErrors "github.com/evlin-hq/evlin-scheduler-api/pkg/errors"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/timeslot"
)

type sessionFinder interface {
	FindByID(ctx context.Context, id string) (*models.SessionInstance, error)
	ListBookedInRange(ctx context.Context, studentID string, from, to time.Time) ([]models.SessionInstance, error)
}

type studentAvailabilityLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.AvailabilityWindow, error)
}

// RescheduleService searches the next days of a student's availability for
// conflict-free windows that can absorb a missed session. Pure query; the
// session lifecycle service performs the actual reschedule.
type RescheduleService struct {
	sessions     sessionFinder
	availability studentAvailabilityLister
	logger       *zap.Logger
	now          func() time.Time

	daysAhead     int
	maxCandidates int
}

// NewRescheduleService builds the finder.
func NewRescheduleService(sessions sessionFinder, availability studentAvailabilityLister, daysAhead, maxCandidates int, logger *zap.Logger) *RescheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if daysAhead <= 0 {
		daysAhead = 7
	}
	if maxCandidates <= 0 {
		maxCandidates = 5
	}
	return &RescheduleService{
		sessions:      sessions,
		availability:  availability,
		logger:        logger,
		now:           time.Now,
		daysAhead:     daysAhead,
		maxCandidates: maxCandidates,
	}
}

// FindSlots proposes replacement slots for a missed session, ranked by
// availability preference then by soonest date. Each window is tried only at
// its start time (earliest-fit); wider windows are not sub-divided. An empty
// result is a valid answer, not an error.
func (s *RescheduleService) FindSlots(ctx context.Context, studentID, missedSessionID string) ([]models.RescheduleCandidate, error) {
	missed, err := s.sessions.FindByID(ctx, missedSessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found: "+missedSessionID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load missed session")
	}

	duration := missed.DurationMinutes()

	windows, err := s.availability.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	windowsByDay := make(map[int][]models.AvailabilityWindow, 7)
	for _, w := range windows {
		windowsByDay[w.DayOfWeek] = append(windowsByDay[w.DayOfWeek], w)
	}

	today := dateOnly(s.now())
	from := today.AddDate(0, 0, 1)
	to := today.AddDate(0, 0, s.daysAhead)

	// Snapshot existing bookings once, then test candidates in memory.
	booked, err := s.sessions.ListBookedInRange(ctx, studentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booked sessions")
	}
	bookedByDate := make(map[string][]models.SessionInstance)
	for _, b := range booked {
		key := b.SessionDate.Format("2006-01-02")
		bookedByDate[key] = append(bookedByDate[key], b)
	}

	var candidates []models.RescheduleCandidate
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		day := models.WeekdayIndex(date.Weekday())
		dayWindows, ok := windowsByDay[day]
		if !ok {
			continue
		}

		dateKey := date.Format("2006-01-02")
		for _, w := range dayWindows {
			if w.EndTime.Minutes()-w.StartTime.Minutes() < duration {
				continue
			}
			start := w.StartTime
			end := start.Add(duration)

			clash := false
			for _, b := range bookedByDate[dateKey] {
				if timeslot.Overlaps(start, end, b.StartTime, b.EndTime) {
					clash = true
					break
				}
			}
			if clash {
				continue
			}

			preference := w.Preference
			if !preference.Valid() {
				preference = models.PreferenceAvailable
			}
			candidates = append(candidates, models.RescheduleCandidate{
				Date:       date,
				DayName:    models.DayName(day),
				StartTime:  start,
				EndTime:    end,
				Preference: preference,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Preference.Rank() != candidates[j].Preference.Rank() {
			return candidates[i].Preference.Rank() < candidates[j].Preference.Rank()
		}
		return candidates[i].Date.Before(candidates[j].Date)
	})

	if len(candidates) > s.maxCandidates {
		candidates = candidates[:s.maxCandidates]
	}
	return candidates, nil
}
