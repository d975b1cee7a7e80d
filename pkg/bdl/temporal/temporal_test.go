package temporal

import (
	"testing"
	"time"

	"mercator-hq/bdl/pkg/bdl/ast"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), false},
		{"2024-03-15T10:30:00Z", time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), false},
		{"2024-03-15T10:30:00+02:00", time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC), false},
		{"2024-03-15T10:30:00", time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), false},
		{"2024-02-30", time.Time{}, true},
		{"yesterday", time.Time{}, true},
	}

	for _, tt := range tests {
		got, err := ParseString(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseString(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("ParseString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseRejectsNonTemporal(t *testing.T) {
	if _, err := Parse(42.0); err == nil {
		t.Error("expected error for numeric value")
	}
	if _, err := Parse(true); err == nil {
		t.Error("expected error for boolean value")
	}
}

func TestShiftClampsMonthEnd(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		n    int
		unit ast.DurationUnit
		want time.Time
	}{
		{"jan31 plus one month leap year", date(2024, 1, 31), 1, ast.UnitMonths, date(2024, 2, 29)},
		{"jan31 plus one month", date(2023, 1, 31), 1, ast.UnitMonths, date(2023, 2, 28)},
		{"mar31 minus one month", date(2023, 3, 31), -1, ast.UnitMonths, date(2023, 2, 28)},
		{"may31 minus three months", date(2023, 5, 31), -3, ast.UnitMonths, date(2023, 2, 28)},
		{"jan15 minus two months crosses year", date(2024, 1, 15), -2, ast.UnitMonths, date(2023, 11, 15)},
		{"feb29 plus one year", date(2024, 2, 29), 1, ast.UnitYears, date(2025, 2, 28)},
		{"days", date(2024, 2, 28), 2, ast.UnitDays, date(2024, 3, 1)},
		{"weeks", date(2024, 1, 1), -1, ast.UnitWeeks, date(2023, 12, 25)},
		{"hours", date(2024, 1, 1), 36, ast.UnitHours, time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Shift(tt.from, tt.n, tt.unit)
			if err != nil {
				t.Fatalf("Shift() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Shift() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShiftUnknownUnit(t *testing.T) {
	if _, err := Shift(date(2024, 1, 1), 1, "fortnights"); err == nil {
		t.Error("expected error for unknown unit")
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
