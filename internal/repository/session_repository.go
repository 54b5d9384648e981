package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
)

// SessionRepository manages dated session instances. Instances are only ever
// inserted or status-transitioned, never deleted; history is permanent.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, schedule_id, schedule_slot_id, session_date, start_time, end_time, status, checked_in_at, rescheduled_from, rescheduled_to, created_at, updated_at`

// Upsert inserts a session instance keyed by (schedule_slot_id, session_date).
// Re-running expansion for an overlapping range neither duplicates nor resets
// rows that already exist: on conflict the existing row is returned untouched.
func (r *SessionRepository) Upsert(ctx context.Context, instance *models.SessionInstance) (*models.SessionInstance, error) {
	if instance.ID == "" {
		instance.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = now
	}
	instance.UpdatedAt = now

	query := fmt.Sprintf(`
INSERT INTO session_instances (id, schedule_id, schedule_slot_id, session_date, start_time, end_time, status, created_at, updated_at)
VALUES (:id, :schedule_id, :schedule_slot_id, :session_date, :start_time, :end_time, :status, :created_at, :updated_at)
ON CONFLICT (schedule_slot_id, session_date) DO UPDATE SET updated_at = session_instances.updated_at
RETURNING %s`, sessionColumns)

	rows, err := sqlx.NamedQueryContext(ctx, r.db, query, instance)
	if err != nil {
		return nil, fmt.Errorf("upsert session instance: %w", err)
	}
	defer rows.Close()

	var stored models.SessionInstance
	if !rows.Next() {
		return nil, fmt.Errorf("upsert session instance: no row returned")
	}
	if err := rows.StructScan(&stored); err != nil {
		return nil, fmt.Errorf("scan session instance: %w", err)
	}
	return &stored, nil
}

// Create inserts a replacement instance produced by a reschedule.
func (r *SessionRepository) Create(ctx context.Context, instance *models.SessionInstance) error {
	if instance.ID == "" {
		instance.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = now
	}
	instance.UpdatedAt = now

	const query = `
INSERT INTO session_instances (id, schedule_id, schedule_slot_id, session_date, start_time, end_time, status, rescheduled_from, created_at, updated_at)
VALUES (:id, :schedule_id, :schedule_slot_id, :session_date, :start_time, :end_time, :status, :rescheduled_from, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, instance); err != nil {
		return fmt.Errorf("insert session instance: %w", err)
	}
	return nil
}

// FindByID fetches a single instance. Returns sql.ErrNoRows when absent.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.SessionInstance, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_instances WHERE id = $1`, sessionColumns)
	var instance models.SessionInstance
	if err := r.db.GetContext(ctx, &instance, query, id); err != nil {
		return nil, err
	}
	return &instance, nil
}

const sessionDetailColumns = `si.id, si.schedule_id, si.schedule_slot_id, si.session_date, si.start_time, si.end_time, si.status, si.checked_in_at, si.rescheduled_from, si.rescheduled_to, si.created_at, si.updated_at,
	c.code AS course_code, c.title AS course_title, c.subject AS subject`

// ListByStudentDate returns a student's sessions on a single date with course
// metadata, ordered by start time.
func (r *SessionRepository) ListByStudentDate(ctx context.Context, studentID string, date time.Time) ([]models.SessionDetail, error) {
	query := fmt.Sprintf(`SELECT %s
FROM session_instances si
JOIN schedules s ON s.id = si.schedule_id
JOIN courses c ON c.id = s.course_id
WHERE s.student_id = $1 AND si.session_date = $2
ORDER BY si.start_time ASC`, sessionDetailColumns)

	var sessions []models.SessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, studentID, date); err != nil {
		return nil, fmt.Errorf("list sessions for date: %w", err)
	}
	return sessions, nil
}

// ListOverduePending returns pending instances dated strictly before the given
// day across active schedules, optionally scoped to one student.
func (r *SessionRepository) ListOverduePending(ctx context.Context, studentID string, before time.Time) ([]models.SessionInstance, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_instances
WHERE status = $1 AND session_date < $2
AND schedule_id IN (SELECT id FROM schedules WHERE status = $3`, sessionColumns)
	args := []interface{}{models.SessionStatusPending, before, models.ScheduleStatusActive}
	if studentID != "" {
		query += " AND student_id = $4"
		args = append(args, studentID)
	}
	query += ") ORDER BY session_date ASC, start_time ASC"

	var sessions []models.SessionInstance
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list overdue pending sessions: %w", err)
	}
	return sessions, nil
}

// ListUnresolvedMissed returns missed instances that have not been rescheduled.
func (r *SessionRepository) ListUnresolvedMissed(ctx context.Context, studentID string) ([]models.SessionDetail, error) {
	query := fmt.Sprintf(`SELECT %s
FROM session_instances si
JOIN schedules s ON s.id = si.schedule_id
JOIN courses c ON c.id = s.course_id
WHERE s.student_id = $1 AND si.status = $2 AND si.rescheduled_to IS NULL
ORDER BY si.session_date ASC, si.start_time ASC`, sessionDetailColumns)

	var sessions []models.SessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, studentID, models.SessionStatusMissed); err != nil {
		return nil, fmt.Errorf("list unresolved missed sessions: %w", err)
	}
	return sessions, nil
}

// ListBookedInRange returns instances occupying time in [from, to] inclusive.
// Only pending and completed rows block a reschedule candidate; cancelled,
// missed and already-rescheduled rows free their slot.
func (r *SessionRepository) ListBookedInRange(ctx context.Context, studentID string, from, to time.Time) ([]models.SessionInstance, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_instances
WHERE session_date BETWEEN $1 AND $2
AND status IN ($3, $4)
AND schedule_id IN (SELECT id FROM schedules WHERE student_id = $5)
ORDER BY session_date ASC, start_time ASC`, sessionColumns)

	var sessions []models.SessionInstance
	if err := r.db.SelectContext(ctx, &sessions, query, from, to, models.SessionStatusPending, models.SessionStatusCompleted, studentID); err != nil {
		return nil, fmt.Errorf("list booked sessions: %w", err)
	}
	return sessions, nil
}

// ListByStudentUpTo returns every instance across a student's active schedules
// dated on or before the given day. Input to check-in statistics.
func (r *SessionRepository) ListByStudentUpTo(ctx context.Context, studentID string, upTo time.Time) ([]models.SessionInstance, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_instances
WHERE session_date <= $1
AND schedule_id IN (SELECT id FROM schedules WHERE student_id = $2 AND status = $3)
ORDER BY session_date ASC, start_time ASC`, sessionColumns)

	var sessions []models.SessionInstance
	if err := r.db.SelectContext(ctx, &sessions, query, upTo, studentID, models.ScheduleStatusActive); err != nil {
		return nil, fmt.Errorf("list sessions up to date: %w", err)
	}
	return sessions, nil
}

// MarkCompleted records a check-in. The status guard doubles as a
// compare-and-swap so concurrent transitions cannot double-apply; it returns
// false when the row was not pending anymore.
func (r *SessionRepository) MarkCompleted(ctx context.Context, id string, checkedInAt time.Time) (bool, error) {
	const query = `UPDATE session_instances SET status = $1, checked_in_at = $2, updated_at = $3 WHERE id = $4 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, models.SessionStatusCompleted, checkedInAt, time.Now().UTC(), id, models.SessionStatusPending)
	if err != nil {
		return false, fmt.Errorf("mark session completed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark session completed: %w", err)
	}
	return affected > 0, nil
}

// MarkMissed transitions a pending instance to missed. Returns false when the
// row was already claimed by another sweep.
func (r *SessionRepository) MarkMissed(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE session_instances SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, models.SessionStatusMissed, time.Now().UTC(), id, models.SessionStatusPending)
	if err != nil {
		return false, fmt.Errorf("mark session missed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark session missed: %w", err)
	}
	return affected > 0, nil
}

// MarkCancelled skips a pending or missed instance without a replacement.
func (r *SessionRepository) MarkCancelled(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE session_instances SET status = $1, updated_at = $2 WHERE id = $3 AND status IN ($4, $5)`
	result, err := r.db.ExecContext(ctx, query, models.SessionStatusCancelled, time.Now().UTC(), id, models.SessionStatusPending, models.SessionStatusMissed)
	if err != nil {
		return false, fmt.Errorf("mark session cancelled: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark session cancelled: %w", err)
	}
	return affected > 0, nil
}

// MarkRescheduled points a missed source instance at its replacement. The
// status guard doubles as a compare-and-swap: only missed rows transition,
// so a completed or still-pending session can never be rescheduled over.
func (r *SessionRepository) MarkRescheduled(ctx context.Context, id, replacementID string) (bool, error) {
	const query = `UPDATE session_instances SET status = $1, rescheduled_to = $2, updated_at = $3 WHERE id = $4 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, models.SessionStatusRescheduled, replacementID, time.Now().UTC(), id, models.SessionStatusMissed)
	if err != nil {
		return false, fmt.Errorf("mark session rescheduled: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark session rescheduled: %w", err)
	}
	return affected > 0, nil
}
