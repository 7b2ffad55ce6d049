package selectors

import (
	"github.com/askesis/askesis/internal/bitlog"
	"github.com/askesis/askesis/internal/model"
)

// GetEffectiveScheduleForHabitOnDate returns the times a habit is configured
// for on date: the day's DailySchedule override if set, else the active
// schedule's Times, else an empty slice (spec §4.3).
func (e *Engine) GetEffectiveScheduleForHabitOnDate(habit *model.Habit, date model.Date) []bitlog.Time {
	if dd := e.State.DayDataFor(date, habit.ID); dd != nil && dd.DailySchedule != nil {
		return dd.DailySchedule
	}
	if sched := e.GetScheduleForDate(habit, date); sched != nil {
		return sched.Times
	}
	return nil
}

// ShouldHabitAppearOnDate evaluates tombstone/graduation/creation gates and
// then the schedule's Frequency against its ScheduleAnchor (spec §4.3).
func (e *Engine) ShouldHabitAppearOnDate(habit *model.Habit, date model.Date) (bool, error) {
	if habit.DeletedOn != nil && !date.Before(*habit.DeletedOn) {
		return false, nil
	}
	if habit.GraduatedOn != nil && !date.Before(*habit.GraduatedOn) {
		return false, nil
	}
	if date.Before(habit.CreatedOn) {
		return false, nil
	}
	sched := e.GetScheduleForDate(habit, date)
	if sched == nil {
		return false, nil
	}
	return sched.Frequency.Matches(sched.ScheduleAnchor, date)
}

// ActiveHabitsOnDate returns every non-tombstoned habit that should appear
// on date, memoized per date.
func (e *Engine) ActiveHabitsOnDate(date model.Date) ([]*model.Habit, error) {
	key := string(date)
	e.mu.Lock()
	if e.activeHabitsCache == nil {
		e.activeHabitsCache = make(map[string][]*model.Habit)
	}
	if cached, ok := e.activeHabitsCache[key]; ok {
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	var out []*model.Habit
	for _, h := range e.State.Habits {
		ok, err := e.ShouldHabitAppearOnDate(h, date)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, h)
		}
	}

	e.mu.Lock()
	e.activeHabitsCache[key] = out
	e.mu.Unlock()
	return out, nil
}
