package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
	appErrors "github.com/evlin-hq/evlin-scheduler-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindByCode(ctx context.Context, code string) (*models.Course, error)
}

// CourseService exposes the read-only course catalog.
type CourseService struct {
	courses courseRepository
	logger  *zap.Logger
}

// NewCourseService builds the service.
func NewCourseService(courses courseRepository, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{courses: courses, logger: logger}
}

// List searches the catalog.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	courses, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// Get returns a course by id, falling back to a code lookup so both
// /courses/:id and /courses/MATH-5A resolve.
func (s *CourseService) Get(ctx context.Context, idOrCode string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, idOrCode)
	if err == nil {
		return course, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	course, err = s.courses.FindByCode(ctx, idOrCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found: "+idOrCode)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}
