package model

import "sort"

// Habit is a user-defined practice with a versioned schedule history. A
// deleted habit remains in AppState.Habits forever as a tombstone
// (DeletedOn set, ScheduleHistory empty) so sync can propagate the deletion.
type Habit struct {
	ID        string `json:"id"`
	CreatedOn Date   `json:"createdOn"`

	DeletedOn    *Date `json:"deletedOn,omitempty"`
	DeletedName  string `json:"deletedName,omitempty"`
	GraduatedOn  *Date `json:"graduatedOn,omitempty"`

	ScheduleHistory []HabitSchedule `json:"scheduleHistory"`

	// LastModified is an optional per-habit logical-clock watermark used by
	// the sync merge's habit-conflict tiebreak (spec §4.6); zero if never set.
	LastModified int64 `json:"lastModified,omitempty"`
}

// IsTombstone reports whether this habit has been permanently deleted.
func (h *Habit) IsTombstone() bool {
	return h.DeletedOn != nil
}

// CurrentSchedule returns the open-ended (EndDate == nil) schedule entry, if
// any. Per the scheduleHistory invariant at most one such entry exists and
// it is the last.
func (h *Habit) CurrentSchedule() *HabitSchedule {
	n := len(h.ScheduleHistory)
	if n == 0 {
		return nil
	}
	last := &h.ScheduleHistory[n-1]
	if last.EndDate == nil {
		return last
	}
	return nil
}

// SortScheduleHistory restores the strictly-ascending-by-StartDate invariant.
func (h *Habit) SortScheduleHistory() {
	sort.SliceStable(h.ScheduleHistory, func(i, j int) bool {
		return h.ScheduleHistory[i].StartDate < h.ScheduleHistory[j].StartDate
	})
}

// LastScheduleName returns the name of the most recent schedule entry,
// regardless of whether it is currently open, for resurrection name
// matching (spec §4.7).
func (h *Habit) LastScheduleName() string {
	if n := len(h.ScheduleHistory); n > 0 {
		return h.ScheduleHistory[n-1].EffectiveName()
	}
	return h.DeletedName
}

// EffectiveClock returns the date that orders this habit against another
// version or candidate of itself when no other signal is available: the
// start date of its most recent schedule entry, or CreatedOn for a
// hard-deleted habit whose ScheduleHistory has been emptied (spec §4.6's
// "latest by schedule start date" tiebreak, §4.7's resurrection ranking).
func (h *Habit) EffectiveClock() Date {
	if n := len(h.ScheduleHistory); n > 0 {
		return h.ScheduleHistory[n-1].StartDate
	}
	return h.CreatedOn
}
