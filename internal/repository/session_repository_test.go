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

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var sessionRows = []string{"id", "schedule_id", "schedule_slot_id", "session_date", "start_time", "end_time", "status", "checked_in_at", "rescheduled_from", "rescheduled_to", "created_at", "updated_at"}

func TestSessionRepositoryUpsertReturnsExistingRow(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(sessionRows).
		AddRow("existing-id", "sched-1", "slot-1", date, []byte("09:00:00"), []byte("10:00:00"), "pending", nil, nil, nil, time.Now(), time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO session_instances")).
		WillReturnRows(rows)

	stored, err := repo.Upsert(context.Background(), &models.SessionInstance{
		ScheduleID:     "sched-1",
		ScheduleSlotID: "slot-1",
		SessionDate:    date,
		Status:         models.SessionStatusPending,
	})
	require.NoError(t, err)
	// The composite key (slot, date) dedupes: the pre-existing id wins.
	assert.Equal(t, "existing-id", stored.ID)
	assert.Equal(t, models.SessionStatusPending, stored.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryMarkCompletedIsCompareAndSwap(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE session_instances SET status =")).
		WithArgs(string(models.SessionStatusCompleted), sqlmock.AnyArg(), sqlmock.AnyArg(), "sess-1", string(models.SessionStatusPending)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.MarkCompleted(context.Background(), "sess-1", time.Now())
	require.NoError(t, err)
	assert.False(t, applied, "row no longer pending should not transition")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListOverduePendingScopedToStudent(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	today := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(sessionRows).
		AddRow("sess-1", "sched-1", "slot-1", today.AddDate(0, 0, -2), []byte("09:00:00"), []byte("10:00:00"), "pending", nil, nil, nil, time.Now(), time.Now())

	mock.ExpectQuery("SELECT .+ FROM session_instances\\s+WHERE status = .+ AND session_date < .+ AND student_id = ").
		WithArgs(string(models.SessionStatusPending), today, string(models.ScheduleStatusActive), "student-1").
		WillReturnRows(rows)

	sessions, err := repo.ListOverduePending(context.Background(), "student-1", today)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess-1", sessions[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListBookedInRangeFiltersStatuses(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	rows := sqlmock.NewRows(sessionRows).
		AddRow("sess-2", "sched-1", "slot-1", from, []byte("09:00:00"), []byte("10:00:00"), "pending", nil, nil, nil, time.Now(), time.Now())

	mock.ExpectQuery("SELECT .+ FROM session_instances\\s+WHERE session_date BETWEEN").
		WithArgs(from, to, string(models.SessionStatusPending), string(models.SessionStatusCompleted), "student-1").
		WillReturnRows(rows)

	sessions, err := repo.ListBookedInRange(context.Background(), "student-1", from, to)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryMarkRescheduledIsCompareAndSwap(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE session_instances SET status =")).
		WithArgs(string(models.SessionStatusRescheduled), "new-id", sqlmock.AnyArg(), "sess-1", string(models.SessionStatusMissed)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.MarkRescheduled(context.Background(), "sess-1", "new-id")
	require.NoError(t, err)
	assert.False(t, applied, "row no longer missed should not transition")
	assert.NoError(t, mock.ExpectationsWereMet())
}
