package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
)

// AvailabilityRepository manages a student's weekly availability windows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs an AvailabilityRepository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

const availabilityColumns = `id, student_id, day_of_week, start_time, end_time, preference, created_at`

// ListByStudent returns all windows for a student ordered by day then start time.
func (r *AvailabilityRepository) ListByStudent(ctx context.Context, studentID string) ([]models.AvailabilityWindow, error) {
	query := fmt.Sprintf(`SELECT %s FROM availability WHERE student_id = $1 ORDER BY day_of_week ASC, start_time ASC`, availabilityColumns)
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, studentID); err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return windows, nil
}

// ListByStudentDay returns the windows for a single day of the week.
func (r *AvailabilityRepository) ListByStudentDay(ctx context.Context, studentID string, dayOfWeek int) ([]models.AvailabilityWindow, error) {
	query := fmt.Sprintf(`SELECT %s FROM availability WHERE student_id = $1 AND day_of_week = $2 ORDER BY start_time ASC`, availabilityColumns)
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, studentID, dayOfWeek); err != nil {
		return nil, fmt.Errorf("list availability for day: %w", err)
	}
	return windows, nil
}

// Create inserts a new availability window.
func (r *AvailabilityRepository) Create(ctx context.Context, window *models.AvailabilityWindow) error {
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	if window.CreatedAt.IsZero() {
		window.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO availability (id, student_id, day_of_week, start_time, end_time, preference, created_at)
VALUES (:id, :student_id, :day_of_week, :start_time, :end_time, :preference, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("insert availability: %w", err)
	}
	return nil
}
