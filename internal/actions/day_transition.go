package actions

import (
	"context"
	"fmt"

	"github.com/askesis/askesis/internal/model"
)

// celebrationMilestones are the streak lengths (in days) that queue a
// PendingCelebrations entry. Chosen to match the teacher's own "meaningful
// streak" cadence of early-frequent, then exponentially spaced, milestones.
var celebrationMilestones = []int{3, 7, 14, 30, 50, 100, 365}

// HandleDayTransition runs when the app notices the calendar day has
// advanced to newToday. It evaluates yesterday's completed streaks for
// milestone crossings and queues a celebration for each one found
// (spec §4.7). It never touches today's or newToday's data itself — that is
// left to the UI collaborator re-rendering against the new date.
func (a *ActionContext) HandleDayTransition(ctx context.Context, newToday model.Date) error {
	return a.mutate(ctx, false, func() (*model.Date, error) {
		prev := newToday.AddDays(-1)
		habits, err := a.sel.ActiveHabitsOnDate(prev)
		if err != nil {
			return nil, fmt.Errorf("actions: day transition: %w", err)
		}
		for _, h := range habits {
			streak, err := a.sel.CalculateHabitStreak(h, prev)
			if err != nil {
				return nil, fmt.Errorf("actions: day transition: %w", err)
			}
			if isCelebrationMilestone(streak) {
				a.state.PendingCelebrations = append(a.state.PendingCelebrations, model.Celebration{
					HabitID: h.ID,
					Kind:    "streak",
					Value:   streak,
				})
			}
		}
		return nil, nil
	})
}

func isCelebrationMilestone(streak int) bool {
	for _, m := range celebrationMilestones {
		if streak == m {
			return true
		}
	}
	return false
}

// ConsumeAndFormatCelebrations drains PendingCelebrations and renders each
// into a short user-facing message. Once returned, a celebration is gone —
// callers must not retry on a rendering failure downstream of this call.
func (a *ActionContext) ConsumeAndFormatCelebrations(ctx context.Context) ([]string, error) {
	var messages []string
	err := a.mutate(ctx, false, func() (*model.Date, error) {
		for _, c := range a.state.PendingCelebrations {
			messages = append(messages, formatCelebration(c))
		}
		a.state.PendingCelebrations = nil
		return nil, nil
	})
	return messages, err
}

func formatCelebration(c model.Celebration) string {
	switch c.Kind {
	case "streak":
		return fmt.Sprintf("%d-day streak!", c.Value)
	default:
		return fmt.Sprintf("milestone reached: %s", c.Kind)
	}
}
