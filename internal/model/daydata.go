package model

import "github.com/askesis/askesis/internal/bitlog"

// Instance is the per-(date, habit, time) overlay: a note and/or a goal
// override. Completion status itself lives in BitLog, not here (spec §3).
type Instance struct {
	Note         string `json:"note,omitempty"`
	GoalOverride *int   `json:"goalOverride,omitempty"`

	// LegacyStatus carries a pre-BitLog "completed"/"snoozed" marker found on
	// import or in an unmigrated blob. Selectors consult it only as a
	// fallback when BitLog has no entry at all for the instance's month
	// (spec §4.1).
	LegacyStatus string `json:"status,omitempty"`
}

// HabitDayData is the mutable per-habit, per-day overlay: an optional
// one-off override of the habit's scheduled times, plus per-time instances.
type HabitDayData struct {
	DailySchedule []bitlog.Time        `json:"dailySchedule,omitempty"`
	Instances     map[bitlog.Time]Instance `json:"instances,omitempty"`
}
