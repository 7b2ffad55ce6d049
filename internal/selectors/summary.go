package selectors

import (
	"github.com/askesis/askesis/internal/bitlog"
	"github.com/askesis/askesis/internal/model"
)

// DaySummary tallies every scheduled (habit, time) slot on a date.
type DaySummary struct {
	Total             int
	Completed         int
	Snoozed           int
	Pending           int
	ShowPlusIndicator bool
}

// CalculateDaySummary iterates the habits active on date and sums their
// scheduled time slots into completed/snoozed/pending buckets (spec §4.3).
func (e *Engine) CalculateDaySummary(date model.Date) (DaySummary, error) {
	key := string(date)
	e.mu.Lock()
	if e.daySummaryCache == nil {
		e.daySummaryCache = make(map[string]DaySummary)
	}
	if cached, ok := e.daySummaryCache[key]; ok {
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	habits, err := e.ActiveHabitsOnDate(date)
	if err != nil {
		return DaySummary{}, err
	}

	var summary DaySummary
	for _, h := range habits {
		for _, t := range e.GetEffectiveScheduleForHabitOnDate(h, date) {
			status, err := e.EffectiveStatus(h.ID, date, t)
			if err != nil {
				return DaySummary{}, err
			}
			summary.Total++
			switch status {
			case bitlog.StatusDone:
				summary.Completed++
			case bitlog.StatusDonePlus:
				summary.Completed++
				summary.ShowPlusIndicator = true
			case bitlog.StatusDeferred:
				summary.Snoozed++
			case bitlog.StatusNull:
				summary.Pending++
			}
		}
	}

	e.mu.Lock()
	e.daySummaryCache[key] = summary
	e.mu.Unlock()
	return summary, nil
}
