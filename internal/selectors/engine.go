// Package selectors implements pure, memoized queries over model.AppState:
// effective schedules, streaks, day summaries, and visibility rules. Schedule
// lookups, per-date active habits, streaks and day summaries are cached in
// maps keyed by their inputs; the other queries are computed on each call.
// The Actions layer — never a
// selector itself — is responsible for invalidating those caches on any
// mutation that could affect them (spec §4.3).
package selectors

import (
	"sort"
	"sync"

	"github.com/askesis/askesis/internal/model"
)

// Engine owns the memoization caches for one AppState. It holds no state of
// its own beyond those caches: every query reads State fresh, and the cached
// ones store the derived result under a key built from their arguments.
type Engine struct {
	State *model.AppState

	mu                  sync.Mutex
	scheduleCache       map[scheduleCacheKey]*model.HabitSchedule
	activeHabitsCache   map[string][]*model.Habit // date -> habits scheduled that day
	streaksCache        map[string]int            // habitID+"|"+date -> streak
	daySummaryCache     map[string]DaySummary      // date -> summary
}

func NewEngine(state *model.AppState) *Engine {
	return &Engine{State: state}
}

func (e *Engine) locked(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// ClearAll drops every memoized result. Called by Actions on any structural
// change (add/remove/edit habit) per spec §4.3's clearSelectorInternalCaches.
func (e *Engine) ClearAll() {
	e.locked(func() {
		e.scheduleCache = nil
		e.activeHabitsCache = nil
		e.streaksCache = nil
		e.daySummaryCache = nil
	})
}

// InvalidateForDate drops only the per-date caches (active habits, day
// summary) for date; schedule and streak caches are left untouched (spec §4.3's
// invalidateCachesForDateChange, used after per-day mutations).
func (e *Engine) InvalidateForDate(date model.Date) {
	e.locked(func() {
		delete(e.activeHabitsCache, string(date))
		delete(e.daySummaryCache, string(date))
	})
}

type scheduleCacheKey struct {
	habitID string
	date    model.Date
}

// GetScheduleForDate binary-searches habit.ScheduleHistory for the entry
// covering date. Returns nil if the habit is tombstoned, graduated, not yet
// created on date, or otherwise has no active schedule there (spec §4.3).
func (e *Engine) GetScheduleForDate(habit *model.Habit, date model.Date) *model.HabitSchedule {
	key := scheduleCacheKey{habit.ID, date}

	e.mu.Lock()
	if e.scheduleCache == nil {
		e.scheduleCache = make(map[scheduleCacheKey]*model.HabitSchedule)
	}
	if cached, ok := e.scheduleCache[key]; ok {
		e.mu.Unlock()
		return cached
	}
	e.mu.Unlock()

	result := scheduleForDate(habit, date)

	e.mu.Lock()
	e.scheduleCache[key] = result
	e.mu.Unlock()
	return result
}

func scheduleForDate(habit *model.Habit, date model.Date) *model.HabitSchedule {
	if habit.IsTombstone() {
		return nil
	}
	if habit.GraduatedOn != nil && !date.Before(*habit.GraduatedOn) {
		return nil
	}
	if date.Before(habit.CreatedOn) {
		return nil
	}
	hist := habit.ScheduleHistory
	// ScheduleHistory is sorted ascending by StartDate (invariant); binary
	// search for the rightmost entry whose StartDate <= date.
	i := sort.Search(len(hist), func(i int) bool {
		return hist[i].StartDate > date
	})
	if i == 0 {
		return nil
	}
	candidate := &hist[i-1]
	if candidate.Covers(date) {
		return candidate
	}
	return nil
}
