package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
	appErrors "github.com/evlin-hq/evlin-scheduler-api/pkg/errors"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/timeslot"
)

type courseCatalog interface {
	FindByCode(ctx context.Context, code string) (*models.Course, error)
}

type scheduleRepository interface {
	FindByID(ctx context.Context, id string) (*models.ScheduleDetail, error)
	ListByStudent(ctx context.Context, studentID string, status models.ScheduleStatus) ([]models.ScheduleDetail, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Activate(ctx context.Context, id string) (bool, error)
	CreateSlot(ctx context.Context, slot *models.ScheduleSlot) error
	ListSlots(ctx context.Context, scheduleID string) ([]models.ScheduleSlot, error)
}

type sessionUpserter interface {
	Upsert(ctx context.Context, instance *models.SessionInstance) (*models.SessionInstance, error)
}

// SlotInput is one weekly meeting in a schedule proposal.
type SlotInput struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Location  string `json:"location"`
}

// ProposeScheduleRequest captures a parent's schedule proposal.
type ProposeScheduleRequest struct {
	StudentID     string      `json:"student_id" validate:"required"`
	CourseCode    string      `json:"course_code" validate:"required"`
	DurationWeeks int         `json:"duration_weeks" validate:"min=0"`
	Slots         []SlotInput `json:"slots" validate:"required,min=1,dive"`
}

// ConfirmResult reports a confirmed schedule and how many dated sessions
// were materialized for check-in tracking.
type ConfirmResult struct {
	Schedule        *models.ScheduleDetail `json:"schedule"`
	SessionsCreated int                    `json:"sessions_created"`
}

// ScheduleService handles schedule proposal, confirmation and the expansion
// of weekly slots into dated session instances.
type ScheduleService struct {
	courses   courseCatalog
	schedules scheduleRepository
	sessions  sessionUpserter
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time

	defaultDurationWeeks int
}

// NewScheduleService builds the service.
func NewScheduleService(courses courseCatalog, schedules scheduleRepository, sessions sessionUpserter, defaultDurationWeeks int, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultDurationWeeks <= 0 {
		defaultDurationWeeks = 12
	}
	return &ScheduleService{
		courses:              courses,
		schedules:            schedules,
		sessions:             sessions,
		validator:            validate,
		logger:               logger,
		now:                  time.Now,
		defaultDurationWeeks: defaultDurationWeeks,
	}
}

// Get returns a schedule with its slots.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found: "+id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	slots, err := s.schedules.ListSlots(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule slots")
	}
	schedule.Slots = slots
	return schedule, nil
}

// ListByStudent returns a student's schedules, optionally filtered by status.
func (s *ScheduleService) ListByStudent(ctx context.Context, studentID string, status models.ScheduleStatus) ([]models.ScheduleDetail, error) {
	if status != "" && !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown schedule status: "+string(status))
	}
	schedules, err := s.schedules.ListByStudent(ctx, studentID, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	return schedules, nil
}

// Propose validates the course code and creates a proposed schedule with its
// weekly slot template. The start date is normalized to the next Monday; a
// proposal made on a Monday starts that same day.
func (s *ScheduleService) Propose(ctx context.Context, req ProposeScheduleRequest) (*models.ScheduleDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule proposal")
	}

	course, err := s.courses.FindByCode(ctx, req.CourseCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found: "+req.CourseCode)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up course")
	}

	weeks := req.DurationWeeks
	if weeks == 0 {
		weeks = s.defaultDurationWeeks
	}

	today := dateOnly(s.now())
	start := nextMonday(today)
	// An inclusive [start, end] expansion yields exactly `weeks` occurrences
	// of each weekday when the range ends the day before the following Monday.
	end := start.AddDate(0, 0, weeks*7-1)

	schedule := &models.Schedule{
		StudentID: req.StudentID,
		CourseID:  course.ID,
		Status:    models.ScheduleStatusProposed,
		StartDate: start,
		EndDate:   end,
	}
	if err := s.schedules.Create(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}

	slots := make([]models.ScheduleSlot, 0, len(req.Slots))
	for _, input := range req.Slots {
		startTime, err := timeslot.Parse(input.StartTime)
		if err != nil {
			return nil, err
		}
		endTime, err := timeslot.Parse(input.EndTime)
		if err != nil {
			return nil, err
		}
		location := input.Location
		if location == "" {
			location = "Home"
		}
		slot := models.ScheduleSlot{
			ScheduleID: schedule.ID,
			DayOfWeek:  input.DayOfWeek,
			StartTime:  startTime,
			EndTime:    endTime,
			Location:   location,
		}
		if err := s.schedules.CreateSlot(ctx, &slot); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule slot")
		}
		slots = append(slots, slot)
	}

	return &models.ScheduleDetail{
		Schedule:    *schedule,
		CourseCode:  course.Code,
		CourseTitle: course.Title,
		Subject:     course.Subject,
		Slots:       slots,
	}, nil
}

// Confirm flips a proposed schedule to active and materializes its dated
// session instances for check-in tracking. Only proposed schedules can be
// confirmed: the status guard keeps a cancelled or completed schedule from
// quietly springing back to life with a fresh batch of sessions.
func (s *ScheduleService) Confirm(ctx context.Context, scheduleID string) (*ConfirmResult, error) {
	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found: "+scheduleID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	applied, err := s.schedules.Activate(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate schedule")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("schedule is %s, expected proposed", schedule.Status))
	}
	schedule.Status = models.ScheduleStatusActive

	instances, err := s.GenerateSessionInstances(ctx, scheduleID, schedule.StartDate, schedule.EndDate)
	if err != nil {
		return nil, err
	}

	s.logger.Info("schedule confirmed",
		zap.String("schedule_id", scheduleID),
		zap.Int("sessions_created", len(instances)),
	)

	return &ConfirmResult{Schedule: schedule, SessionsCreated: len(instances)}, nil
}

// GenerateSessionInstances expands each weekly slot into dated occurrences
// within [startDate, endDate] inclusive. The upsert key (slot, date) makes
// re-running for an overlapping range idempotent: existing instances are
// returned untouched, never duplicated or reset. A schedule with zero slots
// yields an empty result.
func (s *ScheduleService) GenerateSessionInstances(ctx context.Context, scheduleID string, startDate, endDate time.Time) ([]models.SessionInstance, error) {
	slots, err := s.schedules.ListSlots(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule slots")
	}

	startDate = dateOnly(startDate)
	endDate = dateOnly(endDate)

	var instances []models.SessionInstance
	for _, slot := range slots {
		// Anchor on the Monday of the start week, then step forward weekly.
		weekStart := mondayOnOrBefore(startDate)
		for date := weekStart.AddDate(0, 0, slot.DayOfWeek); !date.After(endDate); date = date.AddDate(0, 0, 7) {
			if date.Before(startDate) {
				continue
			}
			stored, err := s.sessions.Upsert(ctx, &models.SessionInstance{
				ScheduleID:     scheduleID,
				ScheduleSlotID: slot.ID,
				SessionDate:    date,
				StartTime:      slot.StartTime,
				EndTime:        slot.EndTime,
				Status:         models.SessionStatusPending,
			})
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert session instance")
			}
			instances = append(instances, *stored)
		}
	}
	return instances, nil
}

// dateOnly truncates to a UTC calendar date.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// mondayOnOrBefore returns the Monday of the week containing the date.
func mondayOnOrBefore(date time.Time) time.Time {
	return date.AddDate(0, 0, -models.WeekdayIndex(date.Weekday()))
}

// nextMonday returns the date itself when it falls on a Monday, otherwise
// the Monday of the following week.
func nextMonday(date time.Time) time.Time {
	offset := models.WeekdayIndex(date.Weekday())
	if offset == 0 {
		return date
	}
	return date.AddDate(0, 0, 7-offset)
}
