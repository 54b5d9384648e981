package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
)

// CheckinLogRepository appends audit entries for session transitions.
// The table is write-once: entries are never updated or deleted.
type CheckinLogRepository struct {
	db *sqlx.DB
}

// NewCheckinLogRepository constructs a CheckinLogRepository.
func NewCheckinLogRepository(db *sqlx.DB) *CheckinLogRepository {
	return &CheckinLogRepository{db: db}
}

// Append writes one audit entry.
func (r *CheckinLogRepository) Append(ctx context.Context, entry *models.CheckinLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if len(entry.Detail) == 0 {
		entry.Detail = []byte("{}")
	}

	const query = `
INSERT INTO checkin_log (id, session_instance_id, action, performed_by, detail, created_at)
VALUES (:id, :session_instance_id, :action, :performed_by, :detail, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append checkin log: %w", err)
	}
	return nil
}

// ListByStudent returns the audit trail for a student's sessions, newest first.
// Display-only; no core algorithm reads the log back.
func (r *CheckinLogRepository) ListByStudent(ctx context.Context, studentID string, limit int) ([]models.CheckinLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const query = `SELECT l.id, l.session_instance_id, l.action, l.performed_by, l.detail, l.created_at
FROM checkin_log l
JOIN session_instances si ON si.id = l.session_instance_id
JOIN schedules s ON s.id = si.schedule_id
WHERE s.student_id = $1
ORDER BY l.created_at DESC
LIMIT $2`

	var entries []models.CheckinLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("list checkin log: %w", err)
	}
	return entries, nil
}
