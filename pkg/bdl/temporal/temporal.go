// Package temporal parses BDL date and datetime values and performs the
// calendar-aware arithmetic used by within/elapsed comparisons.
package temporal

import (
	"fmt"
	"strings"
	"time"

	"mercator-hq/bdl/pkg/bdl/ast"
)

// DateLayout is the layout of date-only values.
const DateLayout = "2006-01-02"

// datetimeLayouts are tried in order after RFC 3339. Values without a zone
// are read as UTC.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// Parse converts a date or datetime value to an instant.
// Date-only strings are midnight UTC. time.Time values pass through.
func Parse(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t == nil {
			return time.Time{}, fmt.Errorf("nil time")
		}
		return *t, nil
	case string:
		return ParseString(t)
	}
	return time.Time{}, fmt.Errorf("value of type %T is not a date or datetime", v)
}

// ParseString parses a date-only or datetime string.
func ParseString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) == len(DateLayout) {
		if t, err := time.ParseInLocation(DateLayout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as date or datetime", s)
}

// IsDate reports whether s is a valid date-only string.
func IsDate(s string) bool {
	_, err := time.ParseInLocation(DateLayout, s, time.UTC)
	return err == nil
}

// IsDateTime reports whether s parses as a datetime (or date).
func IsDateTime(s string) bool {
	_, err := ParseString(s)
	return err == nil
}

// Shift moves t by n of the given unit. Month and year steps clamp to the last day of
// the target month, so one month after January 31 is the last day of February.
func Shift(t time.Time, n int, unit ast.DurationUnit) (time.Time, error) {
	switch unit {
	case ast.UnitMinutes:
		return t.Add(time.Duration(n) * time.Minute), nil
	case ast.UnitHours:
		return t.Add(time.Duration(n) * time.Hour), nil
	case ast.UnitDays:
		return t.AddDate(0, 0, n), nil
	case ast.UnitWeeks:
		return t.AddDate(0, 0, 7*n), nil
	case ast.UnitMonths:
		return addMonths(t, n), nil
	case ast.UnitYears:
		return addMonths(t, 12*n), nil
	}
	return time.Time{}, fmt.Errorf("unknown duration unit %q", unit)
}

// Subtract returns t minus the duration.
func Subtract(t time.Time, d *ast.Duration) (time.Time, error) {
	return Shift(t, -d.Amount, d.Unit)
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	y += total / 12
	total %= 12
	if total < 0 {
		total += 12
		y--
	}
	month := time.Month(total + 1)
	if last := daysIn(y, month, t.Location()); d > last {
		d = last
	}
	hh, mm, ss := t.Clock()
	return time.Date(y, month, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
