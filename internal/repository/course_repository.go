package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
)

// CourseRepository provides read access to the course catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `id, code, title, subject, grade_level_min, grade_level_max, description, duration_weeks, hours_per_week, difficulty, prerequisites, tags, is_active, created_at`

// List returns catalog entries matching the filter, ordered by subject then code.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.GradeLevel > 0 {
		conditions = append(conditions, fmt.Sprintf("grade_level_min <= $%d AND grade_level_max >= $%d", len(args)+1, len(args)+1))
		args = append(args, filter.GradeLevel)
	}
	if filter.Difficulty != "" {
		conditions = append(conditions, fmt.Sprintf("difficulty = $%d", len(args)+1))
		args = append(args, filter.Difficulty)
	}

	query := fmt.Sprintf(`SELECT %s FROM courses WHERE %s ORDER BY subject ASC, code ASC`,
		courseColumns, strings.Join(conditions, " AND "))

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// FindByID fetches a single course. Returns sql.ErrNoRows when absent.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByCode fetches a course by its catalog code. Returns sql.ErrNoRows when absent.
func (r *CourseRepository) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE code = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, code); err != nil {
		return nil, err
	}
	return &course, nil
}
