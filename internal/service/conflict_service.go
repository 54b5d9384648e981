package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
	appErrors "github.com/evlin-hq/evlin-scheduler-api/pkg/errors"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/timeslot"
)

// Verdict is the tri-state outcome of a conflict check.
type Verdict string

const (
	VerdictYes   Verdict = "YES"
	VerdictNo    Verdict = "NO"
	VerdictMaybe Verdict = "MAYBE"
)

type committedSlotLister interface {
	ListActiveSlotsByStudent(ctx context.Context, studentID string) ([]models.StudentSlot, error)
}

type availabilityLister interface {
	ListByStudentDay(ctx context.Context, studentID string, dayOfWeek int) ([]models.AvailabilityWindow, error)
}

// CheckConflictRequest describes a proposed weekly slot.
type CheckConflictRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// SlotConflict names one committed booking the proposal collides with.
type SlotConflict struct {
	Course string `json:"course"`
	Time   string `json:"time"`
}

// ConflictReport carries the verdict together with its full justification so
// a caller can render either a terse answer or the complete reasoning.
type ConflictReport struct {
	Verdict            Verdict            `json:"verdict"`
	Reason             string             `json:"reason"`
	ProposedDay        string             `json:"proposed_day"`
	ProposedStart      timeslot.TimeOfDay `json:"proposed_start"`
	ProposedEnd        timeslot.TimeOfDay `json:"proposed_end"`
	Conflicts          []SlotConflict     `json:"conflicts"`
	WithinAvailability bool               `json:"within_availability"`
	Preference         models.Preference  `json:"preference,omitempty"`
}

// ConflictService decides whether a proposed slot is compatible with a
// student's availability and existing commitments. Pure query; no mutation.
type ConflictService struct {
	slots        committedSlotLister
	availability availabilityLister
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewConflictService builds the service.
func NewConflictService(slots committedSlotLister, availability availabilityLister, validate *validator.Validate, logger *zap.Logger) *ConflictService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{slots: slots, availability: availability, validator: validate, logger: logger}
}

// Check evaluates the proposal. Inverted intervals are not rejected here:
// they simply overlap nothing, mirroring the permissive input contract. A
// stricter mode would hook into validateProposal.
func (s *ConflictService) Check(ctx context.Context, req CheckConflictRequest) (*ConflictReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict check payload")
	}

	proposedStart, err := timeslot.Parse(req.StartTime)
	if err != nil {
		return nil, err
	}
	proposedEnd, err := timeslot.Parse(req.EndTime)
	if err != nil {
		return nil, err
	}
	if err := s.validateProposal(proposedStart, proposedEnd); err != nil {
		return nil, err
	}

	committed, err := s.slots.ListActiveSlotsByStudent(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load committed slots")
	}

	conflicts := []SlotConflict{}
	for _, slot := range committed {
		if slot.DayOfWeek != req.DayOfWeek {
			continue
		}
		if timeslot.Overlaps(proposedStart, proposedEnd, slot.StartTime, slot.EndTime) {
			conflicts = append(conflicts, SlotConflict{
				Course: slot.CourseLabel(),
				Time:   fmt.Sprintf("%s-%s", slot.StartTime, slot.EndTime),
			})
		}
	}

	windows, err := s.availability.ListByStudentDay(ctx, req.StudentID, req.DayOfWeek)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}

	withinAvailability, preference := resolveContainment(windows, proposedStart, proposedEnd)

	dayName := models.DayName(req.DayOfWeek)
	report := &ConflictReport{
		ProposedDay:        dayName,
		ProposedStart:      proposedStart,
		ProposedEnd:        proposedEnd,
		Conflicts:          conflicts,
		WithinAvailability: withinAvailability,
		Preference:         preference,
	}

	switch {
	case len(conflicts) > 0:
		labels := make([]string, len(conflicts))
		for i, c := range conflicts {
			labels[i] = c.Course
		}
		report.Verdict = VerdictNo
		report.Reason = fmt.Sprintf("Hard conflict with existing course(s): %s", strings.Join(labels, ", "))
	case !withinAvailability:
		report.Verdict = VerdictNo
		report.Reason = fmt.Sprintf("Proposed time is outside the student's availability on %s", dayName)
	case preference == models.PreferenceAvoid:
		report.Verdict = VerdictMaybe
		report.Reason = fmt.Sprintf("Student prefers to avoid this time slot on %s", dayName)
	case preference == models.PreferencePreferred:
		report.Verdict = VerdictYes
		report.Reason = fmt.Sprintf("Slot is available and in a preferred time window on %s", dayName)
	default:
		report.Verdict = VerdictYes
		report.Reason = fmt.Sprintf("Slot is available on %s", dayName)
	}

	return report, nil
}

// validateProposal is the single seam where stricter input checks would go.
// Inverted intervals currently pass through unchanged.
func (s *ConflictService) validateProposal(start, end timeslot.TimeOfDay) error {
	_ = start
	_ = end
	return nil
}

// resolveContainment finds whether any window fully contains the proposal.
// When several windows contain it, the most restrictive preference wins
// (avoid over available over preferred) so a deliberately avoided stretch is
// never silently upgraded by an overlapping wider window.
func resolveContainment(windows []models.AvailabilityWindow, start, end timeslot.TimeOfDay) (bool, models.Preference) {
	within := false
	var preference models.Preference
	for _, w := range windows {
		if !timeslot.Contains(w.StartTime, w.EndTime, start, end) {
			continue
		}
		pref := w.Preference
		if !pref.Valid() {
			pref = models.PreferenceAvailable
		}
		if !within || pref.Rank() > preference.Rank() {
			preference = pref
		}
		within = true
	}
	return within, preference
}
