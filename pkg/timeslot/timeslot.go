// Package timeslot provides wall-clock time-of-day values and half-open
// interval tests used by the conflict engine and the reschedule finder.
package timeslot

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	appErrors "github.com/evlin-hq/evlin-scheduler-api/pkg/errors"
)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

// Parse converts a zero-padded "HH:MM" or "HH:MM:SS" string into a TimeOfDay.
// Seconds are accepted and discarded. Malformed input yields a PARSE_ERROR.
func Parse(value string) (TimeOfDay, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("malformed time %q, expected HH:MM", value))
	}
	for _, part := range parts {
		if len(part) != 2 {
			return 0, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("malformed time %q, expected zero-padded HH:MM", value))
		}
	}

	hour, err := parseComponent(parts[0], 23)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, fmt.Sprintf("malformed time %q", value))
	}
	minute, err := parseComponent(parts[1], 59)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, fmt.Sprintf("malformed time %q", value))
	}
	if len(parts) == 3 {
		if _, err := parseComponent(parts[2], 59); err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, fmt.Sprintf("malformed time %q", value))
		}
	}

	return TimeOfDay(hour*60 + minute), nil
}

// MustParse is a test helper that panics on malformed input.
func MustParse(value string) TimeOfDay {
	t, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return t
}

func parseComponent(raw string, max int) (int, error) {
	n := 0
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit component %q", raw)
		}
		n = n*10 + int(r-'0')
	}
	if n > max {
		return 0, fmt.Errorf("component %q out of range", raw)
	}
	return n, nil
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Minutes returns the value as whole minutes since midnight.
func (t TimeOfDay) Minutes() int { return int(t) }

// Add returns the time shifted forward by the given number of minutes.
func (t TimeOfDay) Add(minutes int) TimeOfDay { return t + TimeOfDay(minutes) }

// String renders the canonical zero-padded HH:MM form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// MarshalJSON encodes the time as its HH:MM string form.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", t.String())), nil
}

// UnmarshalJSON accepts a quoted HH:MM[:SS] string.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implements driver.Valuer, producing the HH:MM:SS form Postgres TIME expects.
func (t TimeOfDay) Value() (driver.Value, error) {
	return fmt.Sprintf("%02d:%02d:00", t.Hour(), t.Minute()), nil
}

// Scan implements sql.Scanner for TIME columns.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = 0
		return nil
	case time.Time:
		*t = TimeOfDay(v.Hour()*60 + v.Minute())
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Back-to-back intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

// Contains reports whether [start, end) lies fully inside [windowStart, windowEnd].
// Partial overlap with the window does not count.
func Contains(windowStart, windowEnd, start, end TimeOfDay) bool {
	return windowStart <= start && end <= windowEnd
}
