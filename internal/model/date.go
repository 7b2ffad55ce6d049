package model

import (
	"fmt"
	"time"
)

// Date is an ISO-8601 calendar day in UTC, e.g. "2025-01-10". Schedules and
// daily overlays are keyed by this exact string form throughout the system;
// BitLog additionally relies on byte offsets 0:7 being the "YYYY-MM" prefix
// and the last two characters being the zero-padded day of month.
type Date string

// Today returns the current UTC day. Callers that need determinism (tests,
// migrations) should construct Date values directly instead.
func Today(now time.Time) Date {
	return Date(now.UTC().Format("2006-01-02"))
}

func (d Date) Time() (time.Time, error) {
	t, err := time.Parse("2006-01-02", string(d))
	if err != nil {
		return time.Time{}, fmt.Errorf("model: invalid date %q: %w", d, err)
	}
	return t, nil
}

// Month returns the "YYYY-MM" slice used as the BitLog key suffix.
func (d Date) Month() string {
	if len(d) < 7 {
		return string(d)
	}
	return string(d[:7])
}

// Day returns the 1..31 day-of-month, as used by BitLog bit-position math.
func (d Date) Day() (int, error) {
	if len(d) != 10 {
		return 0, fmt.Errorf("model: invalid date %q", d)
	}
	day := 0
	for _, c := range d[8:10] {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("model: invalid date %q", d)
		}
		day = day*10 + int(c-'0')
	}
	if day < 1 || day > 31 {
		return 0, fmt.Errorf("model: day out of range in %q", d)
	}
	return day, nil
}

func (d Date) Weekday() (time.Weekday, error) {
	t, err := d.Time()
	if err != nil {
		return 0, err
	}
	return t.Weekday(), nil
}

func (d Date) Before(other Date) bool { return d < other }
func (d Date) After(other Date) bool  { return d > other }

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	t, err := d.Time()
	if err != nil {
		return d
	}
	return Date(t.AddDate(0, 0, n).Format("2006-01-02"))
}

// DaysBetween returns b - a in whole days.
func DaysBetween(a, b Date) (int, error) {
	ta, err := a.Time()
	if err != nil {
		return 0, err
	}
	tb, err := b.Time()
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}
