package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
)

func newScheduleRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestScheduleRepositoryListActiveSlotsByStudent(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	rows := sqlmock.NewRows([]string{"id", "schedule_id", "day_of_week", "start_time", "end_time", "location", "created_at", "course_code", "course_title"}).
		AddRow("slot-1", "sched-1", 0, []byte("09:00:00"), []byte("10:00:00"), "Home", time.Now(), "MATH-5A", "Math Grade 5A")

	mock.ExpectQuery("SELECT .+ FROM schedule_slots sl\\s+JOIN schedules s ON").
		WithArgs("student-1", string(models.ScheduleStatusActive)).
		WillReturnRows(rows)

	slots, err := repo.ListActiveSlotsByStudent(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "MATH-5A Math Grade 5A", slots[0].CourseLabel())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedules")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	schedule := &models.Schedule{
		StudentID: "student-1",
		CourseID:  "course-1",
		Status:    models.ScheduleStatusProposed,
		StartDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 5, 25, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(context.Background(), schedule))
	assert.NotEmpty(t, schedule.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryActivateIsCompareAndSwap(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedules SET status =")).
		WithArgs(string(models.ScheduleStatusActive), sqlmock.AnyArg(), "sched-1", string(models.ScheduleStatusProposed)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.Activate(context.Background(), "sched-1")
	require.NoError(t, err)
	assert.False(t, applied, "row no longer proposed should not transition")
	assert.NoError(t, mock.ExpectationsWereMet())
}
