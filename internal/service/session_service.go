package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
	appErrors "github.com/evlin-hq/evlin-scheduler-api/pkg/errors"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/timeslot"
)

type sessionLifecycleRepo interface {
	FindByID(ctx context.Context, id string) (*models.SessionInstance, error)
	Create(ctx context.Context, instance *models.SessionInstance) error
	ListByStudentDate(ctx context.Context, studentID string, date time.Time) ([]models.SessionDetail, error)
	ListOverduePending(ctx context.Context, studentID string, before time.Time) ([]models.SessionInstance, error)
	ListUnresolvedMissed(ctx context.Context, studentID string) ([]models.SessionDetail, error)
	MarkCompleted(ctx context.Context, id string, checkedInAt time.Time) (bool, error)
	MarkMissed(ctx context.Context, id string) (bool, error)
	MarkCancelled(ctx context.Context, id string) (bool, error)
	MarkRescheduled(ctx context.Context, id, replacementID string) (bool, error)
}

type checkinLogAppender interface {
	Append(ctx context.Context, entry *models.CheckinLogEntry) error
}

type rescheduleFinder interface {
	FindSlots(ctx context.Context, studentID, missedSessionID string) ([]models.RescheduleCandidate, error)
}

type scheduleResolver interface {
	FindByID(ctx context.Context, id string) (*models.ScheduleDetail, error)
}

type statsInvalidator interface {
	Invalidate(ctx context.Context, studentID string)
}

// RescheduleRequest moves a missed session to a new concrete slot.
type RescheduleRequest struct {
	NewDate  string `json:"new_date" validate:"required"`
	NewStart string `json:"new_start" validate:"required"`
	NewEnd   string `json:"new_end" validate:"required"`
}

// SessionService drives session instances through their lifecycle:
// check-in, the auto-miss sweep, manual reschedules and cancellation.
// Every transition appends an audit log entry; transitions are
// compare-and-swap guarded so concurrent sweeps cannot double-apply.
type SessionService struct {
	sessions  sessionLifecycleRepo
	schedules scheduleResolver
	log       checkinLogAppender
	finder    rescheduleFinder
	stats     statsInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionService builds the lifecycle manager. The stats invalidator is
// optional; pass nil when stats caching is disabled.
func NewSessionService(sessions sessionLifecycleRepo, schedules scheduleResolver, log checkinLogAppender, finder rescheduleFinder, stats statsInvalidator, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessions:  sessions,
		schedules: schedules,
		log:       log,
		finder:    finder,
		stats:     stats,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// ListByDate returns a student's sessions on one date for the check-in page.
func (s *SessionService) ListByDate(ctx context.Context, studentID string, date time.Time) ([]models.SessionDetail, error) {
	sessions, err := s.sessions.ListByStudentDate(ctx, studentID, dateOnly(date))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// ListUnresolvedMissed returns missed sessions still awaiting a reschedule or skip.
func (s *SessionService) ListUnresolvedMissed(ctx context.Context, studentID string) ([]models.SessionDetail, error) {
	sessions, err := s.sessions.ListUnresolvedMissed(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list missed sessions")
	}
	return sessions, nil
}

// CheckIn marks a pending session as completed and records the timestamp.
// Non-pending sessions are rejected with INVALID_STATE rather than silently
// re-transitioned.
func (s *SessionService) CheckIn(ctx context.Context, sessionID, notes string) (*models.SessionInstance, error) {
	instance, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := ensurePending(instance); err != nil {
		return nil, err
	}

	checkedInAt := s.now().UTC()
	applied, err := s.sessions.MarkCompleted(ctx, sessionID, checkedInAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check in session")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "session is no longer pending")
	}

	instance.Status = models.SessionStatusCompleted
	instance.CheckedInAt = &checkedInAt

	s.appendLog(ctx, sessionID, models.CheckinActionCheckIn, models.CheckinActorParent, map[string]interface{}{
		"notes":         notes,
		"checked_in_at": checkedInAt.Format(time.RFC3339),
	})
	s.invalidateStats(ctx, instance.ScheduleID)

	return instance, nil
}

// Cancel skips a pending or missed session without creating a replacement.
func (s *SessionService) Cancel(ctx context.Context, sessionID string) (*models.SessionInstance, error) {
	instance, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	applied, err := s.sessions.MarkCancelled(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel session")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("session cannot be cancelled from status %s", instance.Status))
	}
	instance.Status = models.SessionStatusCancelled

	s.appendLog(ctx, sessionID, models.CheckinActionCancel, models.CheckinActorParent, nil)
	s.invalidateStats(ctx, instance.ScheduleID)

	return instance, nil
}

// Reschedule moves a missed session to a new slot: a fresh pending instance
// is created carrying rescheduled_from, and the source row is flipped to
// rescheduled pointing forward at it. History is preserved on both sides.
func (s *SessionService) Reschedule(ctx context.Context, sessionID string, req RescheduleRequest) (*models.SessionInstance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	newDate, err := time.Parse("2006-01-02", req.NewDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, "malformed date, expected YYYY-MM-DD")
	}
	newStart, err := timeslot.Parse(req.NewStart)
	if err != nil {
		return nil, err
	}
	newEnd, err := timeslot.Parse(req.NewEnd)
	if err != nil {
		return nil, err
	}

	missed, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if missed.Status != models.SessionStatusMissed {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("session is %s, expected missed", missed.Status))
	}

	replacement, err := s.applyReschedule(ctx, missed, dateOnly(newDate), newStart, newEnd, models.CheckinActorParent, false)
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx, missed.ScheduleID)
	return replacement, nil
}

// Sweep marks every overdue pending session as missed and, when
// autoReschedule is set, immediately moves each one into the best available
// slot. A failure on one instance never aborts the rest: that session simply
// stays missed and unresolved.
func (s *SessionService) Sweep(ctx context.Context, studentID string, autoReschedule bool) (*models.SweepResult, error) {
	today := dateOnly(s.now())
	overdue, err := s.sessions.ListOverduePending(ctx, studentID, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overdue sessions")
	}

	result := &models.SweepResult{
		Missed:      []models.SessionInstance{},
		Rescheduled: []models.ReschedulePair{},
	}

	for i := range overdue {
		instance := overdue[i]

		applied, err := s.sessions.MarkMissed(ctx, instance.ID)
		if err != nil {
			s.logger.Warn("sweep: failed to mark session missed",
				zap.String("session_id", instance.ID), zap.Error(err))
			continue
		}
		if !applied {
			// Claimed by a concurrent sweep.
			continue
		}
		instance.Status = models.SessionStatusMissed
		result.Missed = append(result.Missed, instance)

		s.appendLog(ctx, instance.ID, models.CheckinActionAutoMiss, models.CheckinActorSystem, map[string]interface{}{
			"session_date": instance.SessionDate.Format("2006-01-02"),
		})

		if !autoReschedule {
			continue
		}

		owner := studentID
		if owner == "" {
			schedule, err := s.schedules.FindByID(ctx, instance.ScheduleID)
			if err != nil {
				s.logger.Warn("sweep: failed to resolve schedule owner",
					zap.String("session_id", instance.ID), zap.Error(err))
				continue
			}
			owner = schedule.StudentID
		}

		candidates, err := s.finder.FindSlots(ctx, owner, instance.ID)
		if err != nil {
			s.logger.Warn("sweep: reschedule lookup failed, session stays missed",
				zap.String("session_id", instance.ID), zap.Error(err))
			continue
		}
		if len(candidates) == 0 {
			continue
		}

		best := candidates[0]
		replacement, err := s.applyReschedule(ctx, &instance, best.Date, best.StartTime, best.EndTime, models.CheckinActorSystem, true)
		if err != nil {
			s.logger.Warn("sweep: auto-reschedule failed, session stays missed",
				zap.String("session_id", instance.ID), zap.Error(err))
			continue
		}

		result.Rescheduled = append(result.Rescheduled, models.ReschedulePair{
			MissedSession: instance,
			NewSessionID:  replacement.ID,
			NewDate:       replacement.SessionDate,
			NewStart:      replacement.StartTime,
			NewEnd:        replacement.EndTime,
		})
	}

	if studentID != "" && (len(result.Missed) > 0 || len(result.Rescheduled) > 0) {
		if s.stats != nil {
			s.stats.Invalidate(ctx, studentID)
		}
	}

	s.logger.Info("auto-miss sweep finished",
		zap.String("student_id", studentID),
		zap.Int("missed", len(result.Missed)),
		zap.Int("rescheduled", len(result.Rescheduled)),
	)

	return result, nil
}

// applyReschedule flips the source row and installs a replacement instance.
// The replacement id is assigned up front so the source can be claimed under
// the missed-status guard before anything is inserted: a lost guard means a
// concurrent transition won the row, and no orphan replacement is created.
// The replacement is always freshly created, so reschedule chains cannot
// cycle back onto an existing instance.
func (s *SessionService) applyReschedule(ctx context.Context, missed *models.SessionInstance, date time.Time, start, end timeslot.TimeOfDay, actor models.CheckinActor, auto bool) (*models.SessionInstance, error) {
	sourceID := missed.ID
	replacement := &models.SessionInstance{
		ID:              uuid.NewString(),
		ScheduleID:      missed.ScheduleID,
		ScheduleSlotID:  missed.ScheduleSlotID,
		SessionDate:     date,
		StartTime:       start,
		EndTime:         end,
		Status:          models.SessionStatusPending,
		RescheduledFrom: &sourceID,
	}
	applied, err := s.sessions.MarkRescheduled(ctx, sourceID, replacement.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark session rescheduled")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "session is no longer missed")
	}
	if err := s.sessions.Create(ctx, replacement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create replacement session")
	}

	s.appendLog(ctx, sourceID, models.CheckinActionReschedule, actor, map[string]interface{}{
		"auto":           auto,
		"from_date":      missed.SessionDate.Format("2006-01-02"),
		"new_date":       date.Format("2006-01-02"),
		"new_start":      start.String(),
		"new_end":        end.String(),
		"new_session_id": replacement.ID,
	})

	return replacement, nil
}

func (s *SessionService) loadSession(ctx context.Context, id string) (*models.SessionInstance, error) {
	instance, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found: "+id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return instance, nil
}

// ensurePending is the single seam guarding lifecycle entry states. Loosen
// here to restore the permissive legacy behaviour.
func ensurePending(instance *models.SessionInstance) error {
	if instance.Status != models.SessionStatusPending {
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("session is %s, expected pending", instance.Status))
	}
	return nil
}

// appendLog writes an audit entry. The trail is best-effort: a log failure is
// reported but never rolls back the transition it describes.
func (s *SessionService) appendLog(ctx context.Context, sessionID string, action models.CheckinAction, actor models.CheckinActor, detail map[string]interface{}) {
	var payload types.JSONText
	if detail != nil {
		raw, err := json.Marshal(detail)
		if err != nil {
			s.logger.Warn("checkin log: marshal detail failed", zap.Error(err))
		} else {
			payload = types.JSONText(raw)
		}
	}
	entry := &models.CheckinLogEntry{
		SessionInstanceID: sessionID,
		Action:            action,
		PerformedBy:       actor,
		Detail:            payload,
	}
	if err := s.log.Append(ctx, entry); err != nil {
		s.logger.Warn("checkin log: append failed",
			zap.String("session_id", sessionID), zap.String("action", string(action)), zap.Error(err))
	}
}

// invalidateStats drops the cached stats for the student owning the schedule.
func (s *SessionService) invalidateStats(ctx context.Context, scheduleID string) {
	if s.stats == nil {
		return
	}
	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		s.logger.Warn("stats invalidation: failed to resolve schedule", zap.String("schedule_id", scheduleID), zap.Error(err))
		return
	}
	s.stats.Invalidate(ctx, schedule.StudentID)
}
