// Package testfixture builds deterministic AppState scenarios for tests
// (currently the selectors tests),
// the same role the teacher's internal/storage/sqlite/test_helpers.go plays
// for issue trees: one small builder so every test constructs fixtures the
// same way instead of hand-rolling AppState literals.
package testfixture

import (
	"testing"

	"github.com/askesis/askesis/internal/bitlog"
	"github.com/askesis/askesis/internal/model"
)

// Env wraps a fresh in-memory AppState plus the *testing.T used to fail
// fast on builder misuse. Use New(t) then chain AddHabit/Toggle/etc.
type Env struct {
	t     *testing.T
	State *model.AppState
}

// New returns an Env over an empty AppState.
func New(t *testing.T) *Env {
	t.Helper()
	return &Env{t: t, State: model.NewAppState()}
}

// AddHabit appends a daily, checkbox-goal, morning-only habit named name
// with id id, starting on startDate. Returns the habit for further tweaks.
func (e *Env) AddHabit(id, name string, startDate model.Date) *model.Habit {
	e.t.Helper()
	h := &model.Habit{
		ID:        id,
		CreatedOn: startDate,
		ScheduleHistory: []model.HabitSchedule{{
			StartDate:      startDate,
			Name:           name,
			Goal:           model.CheckGoal(),
			Times:          []bitlog.Time{bitlog.Morning},
			Frequency:      model.Daily(),
			ScheduleAnchor: startDate,
		}},
	}
	e.State.Habits = append(e.State.Habits, h)
	return h
}

// AddHabitWith appends a habit built from a caller-supplied schedule,
// for scenarios that need an interval or specific-days-of-week frequency,
// a quantity goal, or multiple daily times.
func (e *Env) AddHabitWith(id string, createdOn model.Date, schedule model.HabitSchedule) *model.Habit {
	e.t.Helper()
	h := &model.Habit{
		ID:              id,
		CreatedOn:       createdOn,
		ScheduleHistory: []model.HabitSchedule{schedule},
	}
	e.State.Habits = append(e.State.Habits, h)
	return h
}

// Toggle sets habitID's BitLog status directly for (date, t), failing the
// test immediately on any BitLog error (an invalid date in a fixture is a
// test bug, not a scenario under test).
func (e *Env) Toggle(habitID string, date model.Date, t bitlog.Time, status bitlog.Status) {
	e.t.Helper()
	if err := e.State.MonthlyLogs.SetStatus(habitID, string(date), t, status); err != nil {
		e.t.Fatalf("testfixture: SetStatus(%s, %s, %s): %v", habitID, date, t, err)
	}
}

// MarkDone is shorthand for Toggle(..., StatusDone).
func (e *Env) MarkDone(habitID string, date model.Date, t bitlog.Time) {
	e.t.Helper()
	e.Toggle(habitID, date, t, bitlog.StatusDone)
}

// Tombstone marks habitID deleted as of deletedOn, recording its last
// schedule name as DeletedName and clearing ScheduleHistory much as
// RequestHabitPermanentDeletion does (which instead uses CreatedOn as the
// deletion date), without going through internal/actions
// so pure-selector and migration tests don't need a full ActionContext.
func (e *Env) Tombstone(habitID string, deletedOn model.Date) {
	e.t.Helper()
	h := e.State.HabitByID(habitID)
	if h == nil {
		e.t.Fatalf("testfixture: Tombstone: no habit %q", habitID)
	}
	h.DeletedName = h.LastScheduleName()
	h.DeletedOn = &deletedOn
	h.ScheduleHistory = nil
}

// Days returns n consecutive model.Date values starting at start, for
// building streak fixtures without repeating AddDays arithmetic in every
// test.
func Days(start model.Date, n int) []model.Date {
	out := make([]model.Date, n)
	for i := range out {
		out[i] = start.AddDays(i)
	}
	return out
}
