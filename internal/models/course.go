package models

import (
	"time"

	"github.com/lib/pq"
)

// Course represents a catalog entry a schedule can be proposed against.
type Course struct {
	ID            string         `db:"id" json:"id"`
	Code          string         `db:"code" json:"code"`
	Title         string         `db:"title" json:"title"`
	Subject       string         `db:"subject" json:"subject"`
	GradeLevelMin int            `db:"grade_level_min" json:"grade_level_min"`
	GradeLevelMax int            `db:"grade_level_max" json:"grade_level_max"`
	Description   *string        `db:"description" json:"description,omitempty"`
	DurationWeeks int            `db:"duration_weeks" json:"duration_weeks"`
	HoursPerWeek  float64        `db:"hours_per_week" json:"hours_per_week"`
	Difficulty    string         `db:"difficulty" json:"difficulty"`
	Prerequisites pq.StringArray `db:"prerequisites" json:"prerequisites"`
	Tags          pq.StringArray `db:"tags" json:"tags"`
	IsActive      bool           `db:"is_active" json:"is_active"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// CourseFilter describes query params for searching the catalog.
type CourseFilter struct {
	Subject    string
	GradeLevel int
	Difficulty string
	ActiveOnly bool
}
