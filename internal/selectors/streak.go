package selectors

import (
	"fmt"

	"github.com/askesis/askesis/internal/model"
)

// CalculateHabitStreak counts consecutive days ending at date on which the
// habit was scheduled and every scheduled time that day is DONE or
// DONE_PLUS. Days the habit isn't scheduled on are skipped rather than
// breaking the streak; the first scheduled-but-incomplete day stops it
// (spec §4.3).
func (e *Engine) CalculateHabitStreak(habit *model.Habit, date model.Date) (int, error) {
	cacheKey := habit.ID + "|" + string(date)
	e.mu.Lock()
	if e.streaksCache == nil {
		e.streaksCache = make(map[string]int)
	}
	if cached, ok := e.streaksCache[cacheKey]; ok {
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	streak := 0
	cur := date
	for !cur.Before(habit.CreatedOn) {
		ok, err := e.ShouldHabitAppearOnDate(habit, cur)
		if err != nil {
			return 0, fmt.Errorf("selectors: streak for %s at %s: %w", habit.ID, cur, err)
		}
		if !ok {
			cur = cur.AddDays(-1)
			continue
		}
		times := e.GetEffectiveScheduleForHabitOnDate(habit, cur)
		if len(times) == 0 {
			cur = cur.AddDays(-1)
			continue
		}
		allComplete := true
		for _, t := range times {
			status, err := e.EffectiveStatus(habit.ID, cur, t)
			if err != nil {
				return 0, err
			}
			if !status.IsComplete() {
				allComplete = false
				break
			}
		}
		if !allComplete {
			break
		}
		streak++
		cur = cur.AddDays(-1)
	}

	e.mu.Lock()
	e.streaksCache[cacheKey] = streak
	e.mu.Unlock()
	return streak, nil
}
