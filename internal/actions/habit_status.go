package actions

import (
	"context"
	"fmt"

	"github.com/askesis/askesis/internal/bitlog"
	"github.com/askesis/askesis/internal/model"
)

// nextStatus cycles a checkbox-style instance through the three
// user-reachable states: tapping never lands on DONE_PLUS, which is only
// ever set by a quantity goal being met or exceeded (setGoalOverride).
func nextStatus(s bitlog.Status) bitlog.Status {
	switch s {
	case bitlog.StatusNull:
		return bitlog.StatusDone
	case bitlog.StatusDone, bitlog.StatusDonePlus:
		return bitlog.StatusDeferred
	case bitlog.StatusDeferred:
		return bitlog.StatusNull
	default:
		panic(fmt.Sprintf("actions: unhandled Status tag %d", uint8(s)))
	}
}

// ToggleHabitStatus advances (habitID, date, t)'s BitLog status one step
// around the cycle NULL -> DONE -> DEFERRED -> NULL (spec §4.7).
func (a *ActionContext) ToggleHabitStatus(ctx context.Context, habitID string, date model.Date, t bitlog.Time) error {
	return a.mutate(ctx, true, func() (*model.Date, error) {
		cur, err := a.state.MonthlyLogs.GetStatus(habitID, string(date), t)
		if err != nil {
			return nil, fmt.Errorf("actions: toggle status: %w", err)
		}
		if err := a.state.MonthlyLogs.SetStatus(habitID, string(date), t, nextStatus(cur)); err != nil {
			return nil, fmt.Errorf("actions: toggle status: %w", err)
		}
		return &date, nil
	})
}

// MarkAllHabitsForDate sets every scheduled (habit, time) slot on date to
// DONE in one commit — the "mark today done" bulk action (spec §4.7).
func (a *ActionContext) MarkAllHabitsForDate(ctx context.Context, date model.Date) error {
	return a.mutate(ctx, true, func() (*model.Date, error) {
		habits, err := a.sel.ActiveHabitsOnDate(date)
		if err != nil {
			return nil, fmt.Errorf("actions: mark all: %w", err)
		}
		for _, h := range habits {
			for _, t := range a.sel.GetEffectiveScheduleForHabitOnDate(h, date) {
				if err := a.state.MonthlyLogs.SetStatus(h.ID, string(date), t, bitlog.StatusDone); err != nil {
					return nil, fmt.Errorf("actions: mark all: %w", err)
				}
			}
		}
		return &date, nil
	})
}

// SetGoalOverride records a one-off progress count for a quantity-goal
// habit's instance and, if it meets or exceeds the habit's goal total,
// promotes the BitLog status to DONE_PLUS (spec §4.7).
func (a *ActionContext) SetGoalOverride(ctx context.Context, habit *model.Habit, date model.Date, t bitlog.Time, count int) error {
	return a.mutate(ctx, true, func() (*model.Date, error) {
		dd := a.state.EnsureDayData(date, habit.ID)
		inst := dd.Instances[t]
		inst.GoalOverride = &count
		dd.Instances[t] = inst

		sched := a.sel.GetScheduleForDate(habit, date)
		status := bitlog.StatusDone
		if sched != nil && sched.Goal.IsQuantity() && sched.Goal.Total > 0 && count >= sched.Goal.Total {
			status = bitlog.StatusDonePlus
		}
		if err := a.state.MonthlyLogs.SetStatus(habit.ID, string(date), t, status); err != nil {
			return nil, fmt.Errorf("actions: set goal override: %w", err)
		}
		return &date, nil
	})
}
