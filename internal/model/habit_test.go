package model

import "testing"

func mkDate(s string) *Date {
	d := Date(s)
	return &d
}

func TestCurrentScheduleOnlyReturnsOpenEndedEntry(t *testing.T) {
	h := &Habit{
		ScheduleHistory: []HabitSchedule{
			{StartDate: "2025-01-01", EndDate: mkDate("2025-02-01"), Name: "old"},
			{StartDate: "2025-02-01", Name: "new"},
		},
	}
	cur := h.CurrentSchedule()
	if cur == nil || cur.Name != "new" {
		t.Fatalf("CurrentSchedule() = %+v, want the open-ended entry", cur)
	}
}

func TestCurrentScheduleNilWhenAllClosed(t *testing.T) {
	h := &Habit{
		ScheduleHistory: []HabitSchedule{
			{StartDate: "2025-01-01", EndDate: mkDate("2025-02-01"), Name: "old"},
		},
	}
	if h.CurrentSchedule() != nil {
		t.Fatal("expected nil when every schedule entry is closed")
	}
}

func TestIsTombstone(t *testing.T) {
	h := &Habit{}
	if h.IsTombstone() {
		t.Fatal("fresh habit should not be a tombstone")
	}
	h.DeletedOn = mkDate("2025-01-01")
	if !h.IsTombstone() {
		t.Fatal("habit with DeletedOn set should be a tombstone")
	}
}

func TestLastScheduleNamePrefersHistoryOverDeletedName(t *testing.T) {
	h := &Habit{
		DeletedName: "stale",
		ScheduleHistory: []HabitSchedule{
			{StartDate: "2025-01-01", Name: "fresh"},
		},
	}
	if got := h.LastScheduleName(); got != "fresh" {
		t.Errorf("LastScheduleName() = %q, want %q", got, "fresh")
	}
}

func TestLastScheduleNameFallsBackToDeletedNameOnceTombstoned(t *testing.T) {
	h := &Habit{DeletedName: "archived habit"}
	if got := h.LastScheduleName(); got != "archived habit" {
		t.Errorf("LastScheduleName() = %q, want %q", got, "archived habit")
	}
}

func TestSortScheduleHistoryRestoresAscendingOrder(t *testing.T) {
	h := &Habit{
		ScheduleHistory: []HabitSchedule{
			{StartDate: "2025-03-01"},
			{StartDate: "2025-01-01"},
			{StartDate: "2025-02-01"},
		},
	}
	h.SortScheduleHistory()
	for i := 1; i < len(h.ScheduleHistory); i++ {
		if h.ScheduleHistory[i-1].StartDate > h.ScheduleHistory[i].StartDate {
			t.Fatalf("schedule history not sorted: %+v", h.ScheduleHistory)
		}
	}
}

func TestEffectiveNamePrefersNameOverNameKey(t *testing.T) {
	s := HabitSchedule{Name: "Read", NameKey: "habit.read"}
	if got := s.EffectiveName(); got != "Read" {
		t.Errorf("EffectiveName() = %q, want %q", got, "Read")
	}
	s2 := HabitSchedule{NameKey: "habit.read"}
	if got := s2.EffectiveName(); got != "habit.read" {
		t.Errorf("EffectiveName() fallback = %q, want %q", got, "habit.read")
	}
}

func TestScheduleCoversHalfOpenInterval(t *testing.T) {
	s := HabitSchedule{StartDate: "2025-01-10", EndDate: mkDate("2025-02-01")}
	if s.Covers("2025-01-09") {
		t.Error("should not cover a date before StartDate")
	}
	if !s.Covers("2025-01-10") {
		t.Error("should cover StartDate itself")
	}
	if !s.Covers("2025-01-31") {
		t.Error("should cover the day before EndDate")
	}
	if s.Covers("2025-02-01") {
		t.Error("should not cover EndDate itself (half-open)")
	}
}
