package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/timeslot"
)

type fakeSlotLister struct {
	slots []models.StudentSlot
	err   error
}

func (f *fakeSlotLister) ListActiveSlotsByStudent(context.Context, string) ([]models.StudentSlot, error) {
	return f.slots, f.err
}

type fakeWindowLister struct {
	windows []models.AvailabilityWindow
	err     error
}

func (f *fakeWindowLister) ListByStudentDay(context.Context, string, int) ([]models.AvailabilityWindow, error) {
	return f.windows, f.err
}

func studentSlot(day int, start, end, code, title string) models.StudentSlot {
	return models.StudentSlot{
		ScheduleSlot: models.ScheduleSlot{
			DayOfWeek: day,
			StartTime: timeslot.MustParse(start),
			EndTime:   timeslot.MustParse(end),
		},
		CourseCode:  code,
		CourseTitle: title,
	}
}

func window(day int, start, end string, pref models.Preference) models.AvailabilityWindow {
	return models.AvailabilityWindow{
		DayOfWeek:  day,
		StartTime:  timeslot.MustParse(start),
		EndTime:    timeslot.MustParse(end),
		Preference: pref,
	}
}

func checkRequest(day int, start, end string) CheckConflictRequest {
	return CheckConflictRequest{StudentID: "student-1", DayOfWeek: day, StartTime: start, EndTime: end}
}

func TestConflictCheckHardConflict(t *testing.T) {
	svc := NewConflictService(
		&fakeSlotLister{slots: []models.StudentSlot{studentSlot(0, "09:00", "10:00", "MATH-5A", "Math Grade 5A")}},
		&fakeWindowLister{windows: []models.AvailabilityWindow{window(0, "08:00", "12:00", models.PreferencePreferred)}},
		nil, nil,
	)

	report, err := svc.Check(context.Background(), checkRequest(0, "09:30", "10:30"))
	require.NoError(t, err)
	assert.Equal(t, VerdictNo, report.Verdict)
	assert.Equal(t, "Hard conflict with existing course(s): MATH-5A Math Grade 5A", report.Reason)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, "09:00-10:00", report.Conflicts[0].Time)
}

func TestConflictCheckConflictOutranksAvoid(t *testing.T) {
	// A hard conflict must win even when the slot also sits in an avoid window.
	svc := NewConflictService(
		&fakeSlotLister{slots: []models.StudentSlot{studentSlot(2, "14:00", "15:00", "SCI-5", "Science 5")}},
		&fakeWindowLister{windows: []models.AvailabilityWindow{window(2, "13:00", "16:00", models.PreferenceAvoid)}},
		nil, nil,
	)

	report, err := svc.Check(context.Background(), checkRequest(2, "14:00", "15:00"))
	require.NoError(t, err)
	assert.Equal(t, VerdictNo, report.Verdict)
	assert.Contains(t, report.Reason, "Hard conflict")
}

func TestConflictCheckBackToBackIsNotAConflict(t *testing.T) {
	svc := NewConflictService(
		&fakeSlotLister{slots: []models.StudentSlot{studentSlot(0, "09:00", "10:00", "MATH-5A", "Math Grade 5A")}},
		&fakeWindowLister{windows: []models.AvailabilityWindow{window(0, "08:00", "12:00", models.PreferenceAvailable)}},
		nil, nil,
	)

	report, err := svc.Check(context.Background(), checkRequest(0, "10:00", "11:00"))
	require.NoError(t, err)
	assert.Equal(t, VerdictYes, report.Verdict)
	assert.Empty(t, report.Conflicts)
}

func TestConflictCheckOutsideAvailability(t *testing.T) {
	svc := NewConflictService(
		&fakeSlotLister{},
		&fakeWindowLister{windows: []models.AvailabilityWindow{window(4, "09:00", "10:00", models.PreferencePreferred)}},
		nil, nil,
	)

	// Partially overlapping a window is not containment.
	report, err := svc.Check(context.Background(), checkRequest(4, "09:30", "10:30"))
	require.NoError(t, err)
	assert.Equal(t, VerdictNo, report.Verdict)
	assert.Equal(t, "Proposed time is outside the student's availability on Friday", report.Reason)
	assert.False(t, report.WithinAvailability)
}

func TestConflictCheckAvoidWindowIsMaybe(t *testing.T) {
	svc := NewConflictService(
		&fakeSlotLister{},
		&fakeWindowLister{windows: []models.AvailabilityWindow{window(5, "08:00", "12:00", models.PreferenceAvoid)}},
		nil, nil,
	)

	report, err := svc.Check(context.Background(), checkRequest(5, "09:00", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, VerdictMaybe, report.Verdict)
	assert.Equal(t, "Student prefers to avoid this time slot on Saturday", report.Reason)
}

func TestConflictCheckPreferredWindowIsYes(t *testing.T) {
	svc := NewConflictService(
		&fakeSlotLister{},
		&fakeWindowLister{windows: []models.AvailabilityWindow{window(1, "09:00", "12:00", models.PreferencePreferred)}},
		nil, nil,
	)

	report, err := svc.Check(context.Background(), checkRequest(1, "10:00", "11:00"))
	require.NoError(t, err)
	assert.Equal(t, VerdictYes, report.Verdict)
	assert.Equal(t, "Slot is available and in a preferred time window on Tuesday", report.Reason)
	assert.Equal(t, models.PreferencePreferred, report.Preference)
}

func TestConflictCheckMostRestrictiveContainingWindowWins(t *testing.T) {
	// Two windows contain the slot: a wide preferred one and a narrow avoid
	// one. The avoid window must not be upgraded away.
	svc := NewConflictService(
		&fakeSlotLister{},
		&fakeWindowLister{windows: []models.AvailabilityWindow{
			window(3, "08:00", "17:00", models.PreferencePreferred),
			window(3, "12:00", "14:00", models.PreferenceAvoid),
		}},
		nil, nil,
	)

	report, err := svc.Check(context.Background(), checkRequest(3, "12:30", "13:30"))
	require.NoError(t, err)
	assert.Equal(t, VerdictMaybe, report.Verdict)
	assert.Equal(t, models.PreferenceAvoid, report.Preference)
}

func TestConflictCheckMalformedTime(t *testing.T) {
	svc := NewConflictService(&fakeSlotLister{}, &fakeWindowLister{}, nil, nil)

	_, err := svc.Check(context.Background(), checkRequest(0, "9am", "10:00"))
	require.Error(t, err)
}
