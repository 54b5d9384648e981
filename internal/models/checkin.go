package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// CheckinAction enumerates lifecycle transitions recorded in the audit log.
type CheckinAction string

const (
	CheckinActionCheckIn    CheckinAction = "check_in"
	CheckinActionAutoMiss   CheckinAction = "auto_miss"
	CheckinActionReschedule CheckinAction = "reschedule"
	CheckinActionCancel     CheckinAction = "cancel"
)

// CheckinActor identifies who performed a transition.
type CheckinActor string

const (
	CheckinActorParent CheckinActor = "parent"
	CheckinActorSystem CheckinActor = "system"
)

// CheckinLogEntry is an append-only audit record for a session transition.
// Entries are write-once; nothing in the core reads them back except the
// display endpoints.
type CheckinLogEntry struct {
	ID                string         `db:"id" json:"id"`
	SessionInstanceID string         `db:"session_instance_id" json:"session_instance_id"`
	Action            CheckinAction  `db:"action" json:"action"`
	PerformedBy       CheckinActor   `db:"performed_by" json:"performed_by"`
	Detail            types.JSONText `db:"detail" json:"detail,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}

// CheckinStats aggregates a student's session history up to today.
type CheckinStats struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Missed         int     `json:"missed"`
	Rescheduled    int     `json:"rescheduled"`
	Pending        int     `json:"pending"`
	CompletionRate float64 `json:"completion_rate"`
	Streak         int     `json:"streak"`
	WeekCompleted  int     `json:"week_completed"`
	WeekTotal      int     `json:"week_total"`
}

// DayProgress is one cell of the weekly progress strip.
type DayProgress struct {
	Date         time.Time `json:"date"`
	DayName      string    `json:"day_name"`
	Total        int       `json:"total"`
	Completed    int       `json:"completed"`
	Missed       int       `json:"missed"`
	Pending      int       `json:"pending"`
	AllCompleted bool      `json:"all_completed"`
}
