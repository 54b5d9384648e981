package models

import (
	"time"

	"github.com/evlin-hq/evlin-scheduler-api/pkg/timeslot"
)

// Preference tags an availability window with how the family feels about it.
type Preference string

const (
	PreferencePreferred Preference = "preferred"
	PreferenceAvailable Preference = "available"
	PreferenceAvoid     Preference = "avoid"
)

// Valid returns true when the preference is a supported value.
func (p Preference) Valid() bool {
	switch p {
	case PreferencePreferred, PreferenceAvailable, PreferenceAvoid:
		return true
	default:
		return false
	}
}

// Rank orders preferences for candidate sorting: preferred first, avoid last.
func (p Preference) Rank() int {
	switch p {
	case PreferencePreferred:
		return 0
	case PreferenceAvailable:
		return 1
	default:
		return 2
	}
}

// AvailabilityWindow is a weekly recurring window in which a student can study.
// Day of week follows the scheduling convention 0=Monday .. 6=Sunday.
type AvailabilityWindow struct {
	ID         string             `db:"id" json:"id"`
	StudentID  string             `db:"student_id" json:"student_id"`
	DayOfWeek  int                `db:"day_of_week" json:"day_of_week"`
	StartTime  timeslot.TimeOfDay `db:"start_time" json:"start_time"`
	EndTime    timeslot.TimeOfDay `db:"end_time" json:"end_time"`
	Preference Preference         `db:"preference" json:"preference"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
}

var dayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayName returns the English weekday name for a 0=Monday day index.
func DayName(day int) string {
	if day < 0 || day > 6 {
		return ""
	}
	return dayNames[day]
}

// WeekdayIndex converts time.Weekday (Sunday=0) into the 0=Monday convention.
func WeekdayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}
