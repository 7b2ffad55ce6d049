package selectors

import "strings"

// IsHabitNameDuplicate does a case-insensitive, trimmed comparison of name
// against every active habit's current schedule name, excluding
// ignoredHabitID (the habit being edited, if any) (spec §4.3).
func (e *Engine) IsHabitNameDuplicate(name string, ignoredHabitID string) bool {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return false
	}
	for _, h := range e.State.Habits {
		if h.ID == ignoredHabitID || h.IsTombstone() {
			continue
		}
		cur := h.CurrentSchedule()
		if cur == nil {
			continue
		}
		if strings.ToLower(strings.TrimSpace(cur.EffectiveName())) == needle {
			return true
		}
	}
	return false
}
