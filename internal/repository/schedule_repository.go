package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
)

// ScheduleRepository manages schedules and their weekly slot templates.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs a ScheduleRepository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleDetailColumns = `s.id, s.student_id, s.course_id, s.status, s.start_date, s.end_date, s.created_at, s.updated_at,
	c.code AS course_code, c.title AS course_title, c.subject AS subject`

// FindByID fetches a schedule with course metadata. Returns sql.ErrNoRows when absent.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedules s JOIN courses c ON c.id = s.course_id WHERE s.id = $1`, scheduleDetailColumns)
	var schedule models.ScheduleDetail
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListByStudent returns a student's schedules, optionally filtered by status.
func (r *ScheduleRepository) ListByStudent(ctx context.Context, studentID string, status models.ScheduleStatus) ([]models.ScheduleDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedules s JOIN courses c ON c.id = s.course_id WHERE s.student_id = $1`, scheduleDetailColumns)
	args := []interface{}{studentID}
	if status != "" {
		query += " AND s.status = $2"
		args = append(args, status)
	}
	query += " ORDER BY s.start_date ASC"

	var schedules []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// Create inserts a schedule row.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	const query = `
INSERT INTO schedules (id, student_id, course_id, status, start_date, end_date, created_at, updated_at)
VALUES (:id, :student_id, :course_id, :status, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// Activate flips a proposed schedule to active. The status guard is a
// compare-and-swap: a cancelled or completed schedule stays put and the
// call reports false.
func (r *ScheduleRepository) Activate(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE schedules SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, models.ScheduleStatusActive, time.Now().UTC(), id, models.ScheduleStatusProposed)
	if err != nil {
		return false, fmt.Errorf("activate schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("activate schedule: %w", err)
	}
	return affected > 0, nil
}

// CreateSlot inserts one weekly slot for a schedule.
func (r *ScheduleRepository) CreateSlot(ctx context.Context, slot *models.ScheduleSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO schedule_slots (id, schedule_id, day_of_week, start_time, end_time, location, created_at)
VALUES (:id, :schedule_id, :day_of_week, :start_time, :end_time, :location, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("insert schedule slot: %w", err)
	}
	return nil
}

// ListSlots returns the weekly template for a schedule ordered by day/time.
func (r *ScheduleRepository) ListSlots(ctx context.Context, scheduleID string) ([]models.ScheduleSlot, error) {
	const query = `SELECT id, schedule_id, day_of_week, start_time, end_time, location, created_at
FROM schedule_slots WHERE schedule_id = $1 ORDER BY day_of_week ASC, start_time ASC`
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list schedule slots: %w", err)
	}
	return slots, nil
}

// ListActiveSlotsByStudent returns every committed slot across a student's
// active schedules joined with course metadata, the input the conflict
// engine tests proposals against.
func (r *ScheduleRepository) ListActiveSlotsByStudent(ctx context.Context, studentID string) ([]models.StudentSlot, error) {
	const query = `SELECT sl.id, sl.schedule_id, sl.day_of_week, sl.start_time, sl.end_time, sl.location, sl.created_at,
	c.code AS course_code, c.title AS course_title
FROM schedule_slots sl
JOIN schedules s ON s.id = sl.schedule_id
JOIN courses c ON c.id = s.course_id
WHERE s.student_id = $1 AND s.status = $2
ORDER BY sl.day_of_week ASC, sl.start_time ASC`
	var slots []models.StudentSlot
	if err := r.db.SelectContext(ctx, &slots, query, studentID, models.ScheduleStatusActive); err != nil {
		return nil, fmt.Errorf("list active slots: %w", err)
	}
	return slots, nil
}
