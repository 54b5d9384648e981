package models

import (
	"time"

	"github.com/evlin-hq/evlin-scheduler-api/pkg/timeslot"
)

// SessionStatus tracks a dated session occurrence through its lifecycle.
// pending is the only entry state; completed and cancelled are terminal;
// missed is terminal unless the session is rescheduled.
type SessionStatus string

const (
	SessionStatusPending     SessionStatus = "pending"
	SessionStatusCompleted   SessionStatus = "completed"
	SessionStatusMissed      SessionStatus = "missed"
	SessionStatusRescheduled SessionStatus = "rescheduled"
	SessionStatusCancelled   SessionStatus = "cancelled"
)

// Valid returns true when the status is a supported value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusPending, SessionStatusCompleted, SessionStatusMissed, SessionStatusRescheduled, SessionStatusCancelled:
		return true
	default:
		return false
	}
}

// SessionInstance is one concrete dated occurrence of a weekly schedule slot.
// Instances are never deleted; missed, rescheduled and cancelled rows remain
// as permanent history. A missed instance points forward to its replacement
// via RescheduledTo, the replacement points backward via RescheduledFrom;
// never both on the same row.
type SessionInstance struct {
	ID              string             `db:"id" json:"id"`
	ScheduleID      string             `db:"schedule_id" json:"schedule_id"`
	ScheduleSlotID  string             `db:"schedule_slot_id" json:"schedule_slot_id"`
	SessionDate     time.Time          `db:"session_date" json:"session_date"`
	StartTime       timeslot.TimeOfDay `db:"start_time" json:"start_time"`
	EndTime         timeslot.TimeOfDay `db:"end_time" json:"end_time"`
	Status          SessionStatus      `db:"status" json:"status"`
	CheckedInAt     *time.Time         `db:"checked_in_at" json:"checked_in_at,omitempty"`
	RescheduledFrom *string            `db:"rescheduled_from" json:"rescheduled_from,omitempty"`
	RescheduledTo   *string            `db:"rescheduled_to" json:"rescheduled_to,omitempty"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`
}

// DurationMinutes returns the planned session length.
func (s SessionInstance) DurationMinutes() int {
	return s.EndTime.Minutes() - s.StartTime.Minutes()
}

// SessionDetail extends an instance with course metadata for display.
type SessionDetail struct {
	SessionInstance
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseTitle string `db:"course_title" json:"course_title"`
	Subject     string `db:"subject" json:"subject"`
}

// ReschedulePair reports one successful auto-reschedule from a sweep.
type ReschedulePair struct {
	MissedSession SessionInstance    `json:"missed_session"`
	NewSessionID  string             `json:"new_session_id"`
	NewDate       time.Time          `json:"new_date"`
	NewStart      timeslot.TimeOfDay `json:"new_start"`
	NewEnd        timeslot.TimeOfDay `json:"new_end"`
}

// SweepResult is the outcome of an auto-miss sweep.
type SweepResult struct {
	Missed      []SessionInstance `json:"missed"`
	Rescheduled []ReschedulePair  `json:"rescheduled"`
}

// RescheduleCandidate is one viable replacement slot proposed by the finder.
type RescheduleCandidate struct {
	Date       time.Time          `json:"date"`
	DayName    string             `json:"day_name"`
	StartTime  timeslot.TimeOfDay `json:"start_time"`
	EndTime    timeslot.TimeOfDay `json:"end_time"`
	Preference Preference         `json:"preference"`
}
