package crm

import (
	"strings"
	"time"
)

// =============================================================================
// CALENDAR DAYS
// =============================================================================

const dateLayout = "2006-01-02"

// timestamp layouts accepted besides the plain calendar date.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
}

// StartOfDay truncates t to local midnight in t's own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ParseDay parses a stored date field and returns its midnight in loc.
//
// A plain "YYYY-MM-DD" is a calendar date in loc. A timestamp is first moved
// into loc and then truncated. Empty or malformed input returns ErrInvalidDate.
func ParseDay(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}

	if len(s) == len(dateLayout) {
		d, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return time.Time{}, ErrInvalidDate
		}
		return d, nil
	}

	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return StartOfDay(t.In(loc)), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// FormatDay renders t as "YYYY-MM-DD".
func FormatDay(t time.Time) string {
	return t.Format(dateLayout)
}

// ValidDate reports whether raw is a date field ParseDay accepts.
func ValidDate(raw string) bool {
	_, err := ParseDay(raw, time.UTC)
	return err == nil
}
