package actions

import (
	"context"
	"fmt"

	"github.com/askesis/askesis/internal/model"
)

// ReorderHabit moves habitID to newIndex in the display order, clamping out
// of range. Order has no meaning beyond display, so this never touches the
// logical clock's callers' expectations about data content, only position.
func (a *ActionContext) ReorderHabit(ctx context.Context, habitID string, newIndex int) error {
	return a.mutate(ctx, true, func() (*model.Date, error) {
		idx := indexOfHabit(a.state.Habits, habitID)
		if idx < 0 {
			return nil, fmt.Errorf("actions: unknown habit %q", habitID)
		}
		if newIndex < 0 {
			newIndex = 0
		}
		if newIndex >= len(a.state.Habits) {
			newIndex = len(a.state.Habits) - 1
		}
		a.state.Habits = moveHabit(a.state.Habits, idx, newIndex)
		return nil, nil
	})
}

// HandleHabitDrop reorders the habit list in response to a drag-and-drop
// gesture: draggedID is repositioned immediately before/after targetID
// depending on which side of the list it moved from.
func (a *ActionContext) HandleHabitDrop(ctx context.Context, draggedID, targetID string) error {
	return a.mutate(ctx, true, func() (*model.Date, error) {
		draggedIdx := indexOfHabit(a.state.Habits, draggedID)
		targetIdx := indexOfHabit(a.state.Habits, targetID)
		if draggedIdx < 0 || targetIdx < 0 {
			return nil, fmt.Errorf("actions: drag-and-drop references an unknown habit")
		}
		a.state.Habits = moveHabit(a.state.Habits, draggedIdx, targetIdx)
		return nil, nil
	})
}

func indexOfHabit(habits []*model.Habit, id string) int {
	for i, h := range habits {
		if h.ID == id {
			return i
		}
	}
	return -1
}

// moveHabit relocates the element at from to sit at position to, shifting
// the rest of the slice accordingly. The element lands at exactly index to
// in the returned slice.
func moveHabit(habits []*model.Habit, from, to int) []*model.Habit {
	if from == to {
		return habits
	}
	h := habits[from]
	without := append(append([]*model.Habit{}, habits[:from]...), habits[from+1:]...)
	out := make([]*model.Habit, 0, len(habits))
	out = append(out, without[:to]...)
	out = append(out, h)
	out = append(out, without[to:]...)
	return out
}
