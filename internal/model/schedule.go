package model

import "github.com/askesis/askesis/internal/bitlog"

// HabitSchedule is one time-bounded configuration in a habit's history. The
// interval is half-open: [StartDate, EndDate). EndDate == nil means this is
// the currently active configuration.
type HabitSchedule struct {
	StartDate Date  `json:"startDate"`
	EndDate   *Date `json:"endDate,omitempty"`

	Name    string `json:"name,omitempty"`
	NameKey string `json:"nameKey,omitempty"`

	Icon  string `json:"icon"`
	Color string `json:"color"`
	Goal  Goal   `json:"goal"`

	Times     []bitlog.Time `json:"times"`
	Frequency Frequency `json:"frequency"`

	// ScheduleAnchor roots interval-frequency phase calculations.
	ScheduleAnchor Date `json:"scheduleAnchor"`
}

// EffectiveName returns Name if set (user text takes precedence per spec
// §3), else NameKey as a translation key for the caller to resolve.
func (s HabitSchedule) EffectiveName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.NameKey
}

// Covers reports whether date falls within this schedule's half-open
// interval [StartDate, EndDate).
func (s HabitSchedule) Covers(date Date) bool {
	if date.Before(s.StartDate) {
		return false
	}
	if s.EndDate != nil && !date.Before(*s.EndDate) {
		return false
	}
	return true
}

// HasTime reports whether t is among this schedule's configured times.
func (s HabitSchedule) HasTime(t bitlog.Time) bool {
	for _, x := range s.Times {
		if x == t {
			return true
		}
	}
	return false
}
