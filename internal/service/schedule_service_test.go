package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
	appErrors "github.com/evlin-hq/evlin-scheduler-api/pkg/errors"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/timeslot"
)

type fakeCourseCatalog struct {
	course *models.Course
}

func (f *fakeCourseCatalog) FindByCode(_ context.Context, code string) (*models.Course, error) {
	if f.course == nil || f.course.Code != code {
		return nil, sql.ErrNoRows
	}
	return f.course, nil
}

type fakeScheduleRepo struct {
	schedules map[string]*models.ScheduleDetail
	slots     map[string][]models.ScheduleSlot
	statuses  map[string]models.ScheduleStatus
	nextID    int
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{
		schedules: map[string]*models.ScheduleDetail{},
		slots:     map[string][]models.ScheduleSlot{},
		statuses:  map[string]models.ScheduleStatus{},
	}
}

func (f *fakeScheduleRepo) FindByID(_ context.Context, id string) (*models.ScheduleDetail, error) {
	schedule, ok := f.schedules[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *schedule
	return &copied, nil
}

func (f *fakeScheduleRepo) ListByStudent(context.Context, string, models.ScheduleStatus) ([]models.ScheduleDetail, error) {
	return nil, nil
}

func (f *fakeScheduleRepo) Create(_ context.Context, schedule *models.Schedule) error {
	f.nextID++
	schedule.ID = fmt.Sprintf("sched-%d", f.nextID)
	f.schedules[schedule.ID] = &models.ScheduleDetail{Schedule: *schedule}
	return nil
}

func (f *fakeScheduleRepo) Activate(_ context.Context, id string) (bool, error) {
	schedule, ok := f.schedules[id]
	if !ok || schedule.Status != models.ScheduleStatusProposed {
		return false, nil
	}
	schedule.Status = models.ScheduleStatusActive
	f.statuses[id] = models.ScheduleStatusActive
	return true, nil
}

func (f *fakeScheduleRepo) CreateSlot(_ context.Context, slot *models.ScheduleSlot) error {
	f.nextID++
	slot.ID = fmt.Sprintf("slot-%d", f.nextID)
	f.slots[slot.ScheduleID] = append(f.slots[slot.ScheduleID], *slot)
	return nil
}

func (f *fakeScheduleRepo) ListSlots(_ context.Context, scheduleID string) ([]models.ScheduleSlot, error) {
	return f.slots[scheduleID], nil
}

type fakeUpserter struct {
	existing  map[string]models.SessionInstance
	upserted  []models.SessionInstance
	nextID    int
	returnNew int
}

func upsertKey(instance *models.SessionInstance) string {
	return instance.ScheduleSlotID + "|" + instance.SessionDate.Format("2006-01-02")
}

func (f *fakeUpserter) Upsert(_ context.Context, instance *models.SessionInstance) (*models.SessionInstance, error) {
	if f.existing == nil {
		f.existing = map[string]models.SessionInstance{}
	}
	key := upsertKey(instance)
	if stored, ok := f.existing[key]; ok {
		return &stored, nil
	}
	f.nextID++
	stored := *instance
	stored.ID = fmt.Sprintf("session-%d", f.nextID)
	f.existing[key] = stored
	f.upserted = append(f.upserted, stored)
	f.returnNew++
	return &stored, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestProposeNormalizesStartToNextMonday(t *testing.T) {
	catalog := &fakeCourseCatalog{course: &models.Course{ID: "course-1", Code: "MATH-5A", Title: "Math Grade 5A"}}
	repo := newFakeScheduleRepo()
	svc := NewScheduleService(catalog, repo, &fakeUpserter{}, 12, nil, nil)
	// Wednesday 2026-02-25.
	svc.now = fixedClock(time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC))

	schedule, err := svc.Propose(context.Background(), ProposeScheduleRequest{
		StudentID:  "student-1",
		CourseCode: "MATH-5A",
		Slots:      []SlotInput{{DayOfWeek: 0, StartTime: "09:00", EndTime: "10:00"}},
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), schedule.StartDate)
	// Default 12 weeks, inclusive range ending the day before the 13th Monday.
	assert.Equal(t, time.Date(2026, 5, 24, 0, 0, 0, 0, time.UTC), schedule.EndDate)
	assert.Equal(t, models.ScheduleStatusProposed, schedule.Status)
	require.Len(t, schedule.Slots, 1)
	assert.Equal(t, "Home", schedule.Slots[0].Location)
}

func TestProposeOnMondayStartsSameDay(t *testing.T) {
	catalog := &fakeCourseCatalog{course: &models.Course{ID: "course-1", Code: "MATH-5A"}}
	repo := newFakeScheduleRepo()
	svc := NewScheduleService(catalog, repo, &fakeUpserter{}, 12, nil, nil)
	svc.now = fixedClock(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))

	schedule, err := svc.Propose(context.Background(), ProposeScheduleRequest{
		StudentID:  "student-1",
		CourseCode: "MATH-5A",
		Slots:      []SlotInput{{DayOfWeek: 2, StartTime: "09:00", EndTime: "10:00"}},
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), schedule.StartDate)
}

func TestProposeUnknownCourse(t *testing.T) {
	svc := NewScheduleService(&fakeCourseCatalog{}, newFakeScheduleRepo(), &fakeUpserter{}, 12, nil, nil)

	_, err := svc.Propose(context.Background(), ProposeScheduleRequest{
		StudentID:  "student-1",
		CourseCode: "NOPE-1",
		Slots:      []SlotInput{{DayOfWeek: 0, StartTime: "09:00", EndTime: "10:00"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "course not found")
}

func TestConfirmExpandsOneInstancePerWeekPerSlot(t *testing.T) {
	catalog := &fakeCourseCatalog{course: &models.Course{ID: "course-1", Code: "MATH-5A"}}
	repo := newFakeScheduleRepo()
	upserter := &fakeUpserter{}
	svc := NewScheduleService(catalog, repo, upserter, 12, nil, nil)
	svc.now = fixedClock(time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC))

	schedule, err := svc.Propose(context.Background(), ProposeScheduleRequest{
		StudentID:     "student-1",
		CourseCode:    "MATH-5A",
		DurationWeeks: 12,
		Slots: []SlotInput{
			{DayOfWeek: 0, StartTime: "09:00", EndTime: "10:00"},
			{DayOfWeek: 2, StartTime: "14:00", EndTime: "15:00"},
		},
	})
	require.NoError(t, err)

	result, err := svc.Confirm(context.Background(), schedule.ID)
	require.NoError(t, err)

	assert.Equal(t, 24, result.SessionsCreated)
	assert.Equal(t, models.ScheduleStatusActive, repo.statuses[schedule.ID])

	for _, instance := range upserter.upserted {
		assert.Equal(t, models.SessionStatusPending, instance.Status)
		assert.False(t, instance.SessionDate.Before(schedule.StartDate))
		assert.False(t, instance.SessionDate.After(schedule.EndDate))
	}
}

func TestConfirmCancelledScheduleRejected(t *testing.T) {
	catalog := &fakeCourseCatalog{course: &models.Course{ID: "course-1", Code: "MATH-5A"}}
	repo := newFakeScheduleRepo()
	upserter := &fakeUpserter{}
	svc := NewScheduleService(catalog, repo, upserter, 12, nil, nil)
	svc.now = fixedClock(time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC))

	schedule, err := svc.Propose(context.Background(), ProposeScheduleRequest{
		StudentID:  "student-1",
		CourseCode: "MATH-5A",
		Slots:      []SlotInput{{DayOfWeek: 0, StartTime: "09:00", EndTime: "10:00"}},
	})
	require.NoError(t, err)

	repo.schedules[schedule.ID].Status = models.ScheduleStatusCancelled

	_, err = svc.Confirm(context.Background(), schedule.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)

	// The cancelled schedule stays cancelled and no sessions materialize.
	assert.Equal(t, models.ScheduleStatusCancelled, repo.schedules[schedule.ID].Status)
	assert.Empty(t, upserter.upserted)
}

func TestGenerateSessionInstancesIsIdempotent(t *testing.T) {
	catalog := &fakeCourseCatalog{course: &models.Course{ID: "course-1", Code: "MATH-5A"}}
	repo := newFakeScheduleRepo()
	upserter := &fakeUpserter{}
	svc := NewScheduleService(catalog, repo, upserter, 4, nil, nil)
	svc.now = fixedClock(time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC))

	schedule, err := svc.Propose(context.Background(), ProposeScheduleRequest{
		StudentID:  "student-1",
		CourseCode: "MATH-5A",
		Slots:      []SlotInput{{DayOfWeek: 0, StartTime: "09:00", EndTime: "10:00"}},
	})
	require.NoError(t, err)

	first, err := svc.GenerateSessionInstances(context.Background(), schedule.ID, schedule.StartDate, schedule.EndDate)
	require.NoError(t, err)
	require.Len(t, first, 4)

	upserter.returnNew = 0
	second, err := svc.GenerateSessionInstances(context.Background(), schedule.ID, schedule.StartDate, schedule.EndDate)
	require.NoError(t, err)
	require.Len(t, second, 4)

	// Re-running reuses every existing row instead of creating new ones.
	assert.Zero(t, upserter.returnNew)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestGenerateSessionInstancesSkipsDaysBeforeStart(t *testing.T) {
	catalog := &fakeCourseCatalog{course: &models.Course{ID: "course-1", Code: "MATH-5A"}}
	repo := newFakeScheduleRepo()
	upserter := &fakeUpserter{}
	svc := NewScheduleService(catalog, repo, upserter, 2, nil, nil)

	schedule := &models.Schedule{StudentID: "student-1", CourseID: "course-1", Status: models.ScheduleStatusProposed}
	require.NoError(t, repo.Create(context.Background(), schedule))
	require.NoError(t, repo.CreateSlot(context.Background(), &models.ScheduleSlot{
		ScheduleID: schedule.ID,
		DayOfWeek:  0,
		StartTime:  timeslot.MustParse("09:00"),
		EndTime:    timeslot.MustParse("10:00"),
	}))

	// Start mid-week on a Wednesday: the Monday of that week is in the past
	// and must not get an instance.
	start := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 13)
	instances, err := svc.GenerateSessionInstances(context.Background(), schedule.ID, start, end)
	require.NoError(t, err)

	require.Len(t, instances, 2)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), instances[0].SessionDate)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), instances[1].SessionDate)
}
