package period

import (
	"fmt"
	"time"
)

// Period is one calendar month, the filter boundary for deterministic
// aggregation. The covered interval is [Start, End) in UTC.
type Period struct {
	Year  int
	Month time.Month
}

// New validates and constructs a Period. Year must be a positive 4-digit
// value; month must be 1..12.
func New(year, month int) (Period, error) {
	if year < 1000 || year > 9999 {
		return Period{}, fmt.Errorf("invalid year %d (must be 4-digit)", year)
	}
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("invalid month %d (must be 1-12)", month)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// Start returns the first instant of the month in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the following month in UTC.
// December rolls over to January of the next year.
func (p Period) End() time.Time {
	if p.Month == time.December {
		return time.Date(p.Year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(p.Year, p.Month+1, 1, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether t falls inside the month.
func (p Period) Contains(t time.Time) bool {
	u := t.UTC()
	return !u.Before(p.Start()) && u.Before(p.End())
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
