package selectors

import (
	"github.com/askesis/askesis/internal/bitlog"
	"github.com/askesis/askesis/internal/model"
)

// EffectiveStatus returns the BitLog status for (habitID, date, t), falling
// back to the legacy dailyData instance marker only when BitLog has no
// record for that month at all (spec §4.1: "falls back ... for backward
// compatibility during migration").
func (e *Engine) EffectiveStatus(habitID string, date model.Date, t bitlog.Time) (bitlog.Status, error) {
	if e.State.MonthlyLogs.HasMonth(habitID, string(date)) {
		return e.State.MonthlyLogs.GetStatus(habitID, string(date), t)
	}
	if dd := e.State.DayDataFor(date, habitID); dd != nil {
		if inst, ok := dd.Instances[t]; ok {
			switch inst.LegacyStatus {
			case "completed":
				return bitlog.StatusDone, nil
			case "snoozed":
				return bitlog.StatusDeferred, nil
			}
		}
	}
	return bitlog.StatusNull, nil
}
