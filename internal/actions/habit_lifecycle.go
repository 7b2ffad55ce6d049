package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/askesis/askesis/internal/apperrors"
	"github.com/askesis/askesis/internal/bitlog"
	"github.com/askesis/askesis/internal/model"
)

// SaveHabitFromModal creates a new habit or appends an edited schedule to an
// existing one, effective from effectiveDate. A nil habitID means "create",
// unless a tombstoned or ended (not graduated) habit with a matching last
// schedule name exists — in that case that habit is resurrected instead of spawning a duplicate
// sibling (spec §4.7's resurrection rule). Returns the affected habit's id.
func (a *ActionContext) SaveHabitFromModal(ctx context.Context, habitID *string, schedule model.HabitSchedule, effectiveDate model.Date) (string, error) {
	var resultID string
	err := a.mutate(ctx, true, func() (*model.Date, error) {
		name := strings.TrimSpace(schedule.EffectiveName())
		if name == "" {
			return nil, fmt.Errorf("%w: habit name must not be empty", apperrors.ErrValidation)
		}
		ignoredID := ""
		if habitID != nil {
			ignoredID = *habitID
		}
		if a.sel.IsHabitNameDuplicate(name, ignoredID) {
			return nil, fmt.Errorf("%w: a habit named %q already exists", apperrors.ErrValidation, name)
		}

		if habitID != nil {
			h := a.state.HabitByID(*habitID)
			if h == nil {
				return nil, fmt.Errorf("actions: unknown habit %q", *habitID)
			}
			applyFutureScheduleChange(h, schedule, effectiveDate)
			resultID = h.ID
			a.bumpHabit(h)
			return nil, nil
		}

		if resurrected := a.findResurrectionCandidate(schedule.EffectiveName()); resurrected != nil {
			resurrected.DeletedOn = nil
			resurrected.DeletedName = ""
			resurrected.GraduatedOn = nil
			schedule.StartDate = effectiveDate
			resurrected.ScheduleHistory = append(resurrected.ScheduleHistory, schedule)
			resultID = resurrected.ID
			a.bumpHabit(resurrected)
			return nil, nil
		}

		schedule.StartDate = effectiveDate
		h := &model.Habit{
			ID:              uuid.NewString(),
			CreatedOn:       effectiveDate,
			ScheduleHistory: []model.HabitSchedule{schedule},
		}
		a.bumpHabit(h)
		a.state.Habits = append(a.state.Habits, h)
		resultID = h.ID
		return nil, nil
	})
	return resultID, err
}

// applyFutureScheduleChange closes the currently open schedule entry as of
// effectiveDate and appends the edited one. Any entry already queued to
// start on or after effectiveDate is dropped first — editing a pending
// future change replaces it rather than stacking a second one on top
// (spec §4.7's _requestFutureScheduleChange / stale-future-entry removal).
func applyFutureScheduleChange(h *model.Habit, schedule model.HabitSchedule, effectiveDate model.Date) {
	kept := make([]model.HabitSchedule, 0, len(h.ScheduleHistory)+1)
	for _, s := range h.ScheduleHistory {
		if !s.StartDate.Before(effectiveDate) {
			continue
		}
		kept = append(kept, s)
	}
	if n := len(kept); n > 0 && kept[n-1].EndDate == nil {
		end := effectiveDate
		kept[n-1].EndDate = &end
	}
	schedule.StartDate = effectiveDate
	h.ScheduleHistory = append(kept, schedule)
}

// findResurrectionCandidate looks for a habit no longer currently active —
// either tombstoned (permanently deleted) or merely ended (its schedule
// closed via RequestHabitEndingFromModal, never tombstoned) — whose last
// known name matches name. Graduated habits are excluded: graduation is a
// deliberate "this is done, don't offer it back" state, not a pause. When
// more than one candidate shares the name, the one with the latest schedule
// start date wins (spec §4.7's resurrection rule).
func (a *ActionContext) findResurrectionCandidate(name string) *model.Habit {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil
	}
	var best *model.Habit
	for _, h := range a.state.Habits {
		if h.CurrentSchedule() != nil || h.GraduatedOn != nil {
			continue
		}
		if strings.ToLower(strings.TrimSpace(h.LastScheduleName())) != needle {
			continue
		}
		if best == nil || h.EffectiveClock() > best.EffectiveClock() {
			best = h
		}
	}
	return best
}

// RequestHabitEndingFromModal closes a habit's current schedule at endDate
// without tombstoning it — the habit stops appearing from that date on but
// its history (and a future resurrection by name) is preserved.
func (a *ActionContext) RequestHabitEndingFromModal(ctx context.Context, habitID string, endDate model.Date) error {
	return a.mutate(ctx, true, func() (*model.Date, error) {
		h := a.state.HabitByID(habitID)
		if h == nil {
			return nil, fmt.Errorf("actions: unknown habit %q", habitID)
		}
		cur := h.CurrentSchedule()
		if cur == nil {
			return nil, fmt.Errorf("actions: habit %q has no active schedule to end", habitID)
		}
		end := endDate
		cur.EndDate = &end
		a.bumpHabit(h)
		return nil, nil
	})
}

// RequestHabitTimeRemoval drops one scheduled time from a habit's current
// configuration, effective from effectiveDate. If that was the last
// scheduled time, the habit is ended outright rather than left with an
// empty schedule.
func (a *ActionContext) RequestHabitTimeRemoval(ctx context.Context, habitID string, t bitlog.Time, effectiveDate model.Date) error {
	return a.mutate(ctx, true, func() (*model.Date, error) {
		h := a.state.HabitByID(habitID)
		if h == nil {
			return nil, fmt.Errorf("actions: unknown habit %q", habitID)
		}
		cur := h.CurrentSchedule()
		if cur == nil {
			return nil, fmt.Errorf("actions: habit %q has no active schedule", habitID)
		}
		remaining := make([]bitlog.Time, 0, len(cur.Times))
		for _, x := range cur.Times {
			if x != t {
				remaining = append(remaining, x)
			}
		}
		if len(remaining) == 0 {
			end := effectiveDate
			cur.EndDate = &end
			a.bumpHabit(h)
			return nil, nil
		}
		next := *cur
		next.Times = remaining
		applyFutureScheduleChange(h, next, effectiveDate)
		a.bumpHabit(h)
		return nil, nil
	})
}

// GraduateHabit marks a habit as graduated as of date: it stops appearing
// on the active list but, unlike deletion, is never tombstoned or purged.
func (a *ActionContext) GraduateHabit(ctx context.Context, habitID string, date model.Date) error {
	return a.mutate(ctx, true, func() (*model.Date, error) {
		h := a.state.HabitByID(habitID)
		if h == nil {
			return nil, fmt.Errorf("actions: unknown habit %q", habitID)
		}
		d := date
		h.GraduatedOn = &d
		a.bumpHabit(h)
		return nil, nil
	})
}

// RequestHabitPermanentDeletion tombstones a habit, prunes its BitLog
// entries and dailyData overlays immediately, and offloads purging it from
// the (expensive, gzip-bearing) year archives to CryptoWorker in the
// background (spec §4.4, §4.7). The tombstone itself — DeletedOn,
// DeletedName — is what lets sync propagate the deletion and lets a later
// SaveHabitFromModal resurrect it by name. Per the data model invariant,
// DeletedOn is set to the habit's own CreatedOn, not the date the deletion
// was requested.
func (a *ActionContext) RequestHabitPermanentDeletion(ctx context.Context, habitID string) error {
	return a.mutate(ctx, true, func() (*model.Date, error) {
		h := a.state.HabitByID(habitID)
		if h == nil {
			return nil, fmt.Errorf("actions: unknown habit %q", habitID)
		}

		name := h.LastScheduleName()
		h.DeletedOn = &h.CreatedOn
		h.DeletedName = name
		h.ScheduleHistory = nil
		h.GraduatedOn = nil
		a.bumpHabit(h)

		a.state.MonthlyLogs.PruneLogsForHabit(habitID)
		for _, byHabit := range a.state.DailyData {
			delete(byHabit, habitID)
		}

		go func(id string) {
			if err := a.persistence.PurgeHabit(context.Background(), a.state, id); err != nil {
				a.log.Warn("actions: purge habit from archives failed", "habit", id, "error", err)
			}
		}(habitID)

		return nil, nil
	})
}
