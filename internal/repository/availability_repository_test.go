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
	"github.com/evlin-hq/evlin-scheduler-api/pkg/timeslot"
)

func newAvailabilityRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAvailabilityRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "day_of_week", "start_time", "end_time", "preference", "created_at"}).
		AddRow("win-1", "student-1", 0, []byte("09:00:00"), []byte("12:00:00"), "available", time.Now()).
		AddRow("win-2", "student-1", 2, []byte("14:00:00"), []byte("16:00:00"), "preferred", time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, day_of_week, start_time, end_time, preference, created_at FROM availability WHERE student_id = $1 ORDER BY day_of_week ASC, start_time ASC")).
		WithArgs("student-1").
		WillReturnRows(rows)

	windows, err := repo.ListByStudent(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, timeslot.MustParse("09:00"), windows[0].StartTime)
	assert.Equal(t, models.PreferencePreferred, windows[1].Preference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO availability")).
		WithArgs(sqlmock.AnyArg(), "student-1", 0, "09:00:00", "12:00:00", string(models.PreferenceAvailable), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	window := &models.AvailabilityWindow{
		StudentID:  "student-1",
		DayOfWeek:  0,
		StartTime:  timeslot.MustParse("09:00"),
		EndTime:    timeslot.MustParse("12:00"),
		Preference: models.PreferenceAvailable,
	}
	require.NoError(t, repo.Create(context.Background(), window))
	assert.NotEmpty(t, window.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
