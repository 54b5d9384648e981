package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/timeslot"
)

type fakeFinderSessions struct {
	missed *models.SessionInstance
	booked []models.SessionInstance
}

func (f *fakeFinderSessions) FindByID(_ context.Context, id string) (*models.SessionInstance, error) {
	if f.missed == nil || f.missed.ID != id {
		return nil, sql.ErrNoRows
	}
	copied := *f.missed
	return &copied, nil
}

func (f *fakeFinderSessions) ListBookedInRange(context.Context, string, time.Time, time.Time) ([]models.SessionInstance, error) {
	return f.booked, nil
}

type fakeStudentWindows struct {
	windows []models.AvailabilityWindow
}

func (f *fakeStudentWindows) ListByStudent(context.Context, string) ([]models.AvailabilityWindow, error) {
	return f.windows, nil
}

func missedHourSession(id string) *models.SessionInstance {
	return &models.SessionInstance{
		ID:          id,
		ScheduleID:  "sched-1",
		SessionDate: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		StartTime:   timeslot.MustParse("09:00"),
		EndTime:     timeslot.MustParse("10:00"),
		Status:      models.SessionStatusMissed,
	}
}

func newFinderForTest(sessions *fakeFinderSessions, windows *fakeStudentWindows, maxCandidates int) *RescheduleService {
	svc := NewRescheduleService(sessions, windows, 7, maxCandidates, nil)
	// Tuesday 2026-03-10: the search window is Wed 03-11 through Tue 03-17.
	svc.now = fixedClock(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	return svc
}

func TestFindSlotsRanksPreferenceBeforeDate(t *testing.T) {
	sessions := &fakeFinderSessions{missed: missedHourSession("session-1")}
	windows := &fakeStudentWindows{windows: []models.AvailabilityWindow{
		window(2, "09:00", "11:00", models.PreferenceAvailable),
		window(3, "14:00", "16:00", models.PreferencePreferred),
	}}
	svc := newFinderForTest(sessions, windows, 5)

	candidates, err := svc.FindSlots(context.Background(), "student-1", "session-1")
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	// Thursday's preferred window outranks Wednesday's earlier available one.
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), candidates[0].Date)
	assert.Equal(t, models.PreferencePreferred, candidates[0].Preference)
	assert.Equal(t, "Thursday", candidates[0].DayName)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), candidates[1].Date)
	assert.Equal(t, models.PreferenceAvailable, candidates[1].Preference)
}

func TestFindSlotsUsesEarliestFitWithinWindow(t *testing.T) {
	sessions := &fakeFinderSessions{missed: missedHourSession("session-1")}
	windows := &fakeStudentWindows{windows: []models.AvailabilityWindow{
		window(2, "09:00", "12:00", models.PreferenceAvailable),
	}}
	svc := newFinderForTest(sessions, windows, 5)

	candidates, err := svc.FindSlots(context.Background(), "student-1", "session-1")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "09:00", candidates[0].StartTime.String())
	assert.Equal(t, "10:00", candidates[0].EndTime.String())
}

func TestFindSlotsExcludesBookedOverlaps(t *testing.T) {
	sessions := &fakeFinderSessions{
		missed: missedHourSession("session-1"),
		booked: []models.SessionInstance{{
			ID:          "busy-1",
			SessionDate: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
			StartTime:   timeslot.MustParse("09:30"),
			EndTime:     timeslot.MustParse("10:30"),
			Status:      models.SessionStatusPending,
		}},
	}
	windows := &fakeStudentWindows{windows: []models.AvailabilityWindow{
		window(2, "09:00", "11:00", models.PreferenceAvailable),
		window(3, "14:00", "15:00", models.PreferenceAvailable),
	}}
	svc := newFinderForTest(sessions, windows, 5)

	candidates, err := svc.FindSlots(context.Background(), "student-1", "session-1")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), candidates[0].Date)
}

func TestFindSlotsSkipsTooNarrowWindows(t *testing.T) {
	sessions := &fakeFinderSessions{missed: missedHourSession("session-1")}
	windows := &fakeStudentWindows{windows: []models.AvailabilityWindow{
		window(2, "09:00", "09:30", models.PreferencePreferred),
	}}
	svc := newFinderForTest(sessions, windows, 5)

	candidates, err := svc.FindSlots(context.Background(), "student-1", "session-1")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestFindSlotsCapsCandidateCount(t *testing.T) {
	sessions := &fakeFinderSessions{missed: missedHourSession("session-1")}
	var all []models.AvailabilityWindow
	for day := 0; day < 7; day++ {
		all = append(all, window(day, "09:00", "10:00", models.PreferenceAvailable))
	}
	svc := newFinderForTest(sessions, &fakeStudentWindows{windows: all}, 5)

	candidates, err := svc.FindSlots(context.Background(), "student-1", "session-1")
	require.NoError(t, err)
	require.Len(t, candidates, 5)
	// Same preference everywhere, so the five soonest dates win.
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), candidates[0].Date)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), candidates[4].Date)
}

func TestFindSlotsUnknownSession(t *testing.T) {
	svc := newFinderForTest(&fakeFinderSessions{}, &fakeStudentWindows{}, 5)

	_, err := svc.FindSlots(context.Background(), "student-1", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")
}
