package models

import (
	"time"

	"github.com/evlin-hq/evlin-scheduler-api/pkg/timeslot"
)

// ScheduleStatus captures the lifecycle of a proposed course schedule.
type ScheduleStatus string

const (
	ScheduleStatusProposed  ScheduleStatus = "proposed"
	ScheduleStatusActive    ScheduleStatus = "active"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
	ScheduleStatusCompleted ScheduleStatus = "completed"
)

// Valid returns true when the status is a supported value.
func (s ScheduleStatus) Valid() bool {
	switch s {
	case ScheduleStatusProposed, ScheduleStatusActive, ScheduleStatusCancelled, ScheduleStatusCompleted:
		return true
	default:
		return false
	}
}

// Schedule binds a student to a course for a date range. Start dates are
// normalized to the next Monday at proposal time; confirmation flips the
// status to active and materializes session instances.
type Schedule struct {
	ID        string         `db:"id" json:"id"`
	StudentID string         `db:"student_id" json:"student_id"`
	CourseID  string         `db:"course_id" json:"course_id"`
	Status    ScheduleStatus `db:"status" json:"status"`
	StartDate time.Time      `db:"start_date" json:"start_date"`
	EndDate   time.Time      `db:"end_date" json:"end_date"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// ScheduleDetail extends a schedule with course metadata for display.
type ScheduleDetail struct {
	Schedule
	CourseCode  string         `db:"course_code" json:"course_code"`
	CourseTitle string         `db:"course_title" json:"course_title"`
	Subject     string         `db:"subject" json:"subject"`
	Slots       []ScheduleSlot `json:"slots,omitempty"`
}

// ScheduleSlot is the weekly template a schedule repeats: one recurring
// (day, start, end) meeting. Slots are never themselves completed or missed;
// dated session instances are.
type ScheduleSlot struct {
	ID         string             `db:"id" json:"id"`
	ScheduleID string             `db:"schedule_id" json:"schedule_id"`
	DayOfWeek  int                `db:"day_of_week" json:"day_of_week"`
	StartTime  timeslot.TimeOfDay `db:"start_time" json:"start_time"`
	EndTime    timeslot.TimeOfDay `db:"end_time" json:"end_time"`
	Location   string             `db:"location" json:"location"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
}

// StudentSlot is a committed slot joined with its course, the unit the
// conflict engine tests proposals against.
type StudentSlot struct {
	ScheduleSlot
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseTitle string `db:"course_title" json:"course_title"`
}

// CourseLabel renders the "CODE Title" form used in conflict reasons.
func (s StudentSlot) CourseLabel() string {
	if s.CourseCode == "" {
		return s.CourseTitle
	}
	return s.CourseCode + " " + s.CourseTitle
}
