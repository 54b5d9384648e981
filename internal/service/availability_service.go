package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
	appErrors "github.com/evlin-hq/evlin-scheduler-api/pkg/errors"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/timeslot"
)

type availabilityRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.AvailabilityWindow, error)
	Create(ctx context.Context, window *models.AvailabilityWindow) error
}

// AddAvailabilityRequest declares one weekly availability window.
type AddAvailabilityRequest struct {
	DayOfWeek  int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime  string `json:"start_time" validate:"required"`
	EndTime    string `json:"end_time" validate:"required"`
	Preference string `json:"preference"`
}

// DayAvailability groups a day's windows for display.
type DayAvailability struct {
	DayOfWeek int                         `json:"day_of_week"`
	DayName   string                      `json:"day_name"`
	Windows   []models.AvailabilityWindow `json:"windows"`
}

// AvailabilityService manages weekly availability declarations.
type AvailabilityService struct {
	availability availabilityRepository
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewAvailabilityService builds the service.
func NewAvailabilityService(availability availabilityRepository, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{availability: availability, validator: validate, logger: logger}
}

// ListByStudent returns a student's windows grouped by day, Monday first.
// Days without windows are omitted.
func (s *AvailabilityService) ListByStudent(ctx context.Context, studentID string) ([]DayAvailability, error) {
	windows, err := s.availability.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}

	byDay := make(map[int][]models.AvailabilityWindow, 7)
	for _, w := range windows {
		byDay[w.DayOfWeek] = append(byDay[w.DayOfWeek], w)
	}

	grouped := make([]DayAvailability, 0, 7)
	for day := 0; day < 7; day++ {
		dayWindows, ok := byDay[day]
		if !ok {
			continue
		}
		grouped = append(grouped, DayAvailability{
			DayOfWeek: day,
			DayName:   models.DayName(day),
			Windows:   dayWindows,
		})
	}
	return grouped, nil
}

// Add declares a new availability window for a student. An omitted preference
// defaults to plain available.
func (s *AvailabilityService) Add(ctx context.Context, studentID string, req AddAvailabilityRequest) (*models.AvailabilityWindow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}

	start, err := timeslot.Parse(req.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := timeslot.Parse(req.EndTime)
	if err != nil {
		return nil, err
	}
	if end.Minutes() <= start.Minutes() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}

	preference := models.Preference(req.Preference)
	if req.Preference == "" {
		preference = models.PreferenceAvailable
	}
	if !preference.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown preference: "+req.Preference)
	}

	window := &models.AvailabilityWindow{
		StudentID:  studentID,
		DayOfWeek:  req.DayOfWeek,
		StartTime:  start,
		EndTime:    end,
		Preference: preference,
	}
	if err := s.availability.Create(ctx, window); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create availability window")
	}
	return window, nil
}
