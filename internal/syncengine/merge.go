package syncengine

import (
	"sort"

	"github.com/askesis/askesis/internal/bitlog"
	"github.com/askesis/askesis/internal/model"
)

// MergeStates reconciles a local and a just-pulled remote AppState using
// last-writer-wins, the same per-field deterministic-tiebreak idiom the
// teacher's internal/merge package uses for 3-way issue merges (mergeField,
// mergeFieldByUpdatedAt), adapted to 2-way LWW keyed by the logical clock
// instead of a shared base snapshot and RFC3339 timestamps (spec §4.6).
func MergeStates(local, remote *model.AppState) *model.AppState {
	if remote == nil {
		return local
	}
	if local == nil {
		return remote
	}

	localWins := local.LastModified >= remote.LastModified

	merged := &model.AppState{
		Version:     model.CurrentVersion,
		Habits:      mergeHabits(local.Habits, remote.Habits),
		DailyData:   mergeDailyData(local.DailyData, remote.DailyData, localWins),
		Archives:    mergeArchives(local.Archives, remote.Archives, localWins),
		MonthlyLogs: mergeMonthlyLogs(local.MonthlyLogs, remote.MonthlyLogs, localWins),

		Language:        pickString(local.Language, remote.Language, localWins),
		OnboardingDone:  local.OnboardingDone || remote.OnboardingDone,
		InitialSyncDone: local.InitialSyncDone || remote.InitialSyncDone,

		AIDailyCount:      pickInt(local.AIDailyCount, remote.AIDailyCount, localWins),
		AIQuotaDate:       model.Date(pickString(string(local.AIQuotaDate), string(remote.AIQuotaDate), localWins)),
		LastAIContextHash: pickStringPtr(local.LastAIContextHash, remote.LastAIContextHash, localWins),

		LastModified: maxInt64(local.LastModified, remote.LastModified),
	}
	return merged
}

// mergeHabits applies LWW per habit (not the whole-state clock), mirroring
// the teacher's per-record merge granularity. The primary comparator is
// each side's most recent schedule start date (spec §4.6) since that is
// what every edit path actually advances; the per-habit LastModified
// watermark (internal/actions' bumpHabit) only breaks a tie where both
// sides' schedules happen to start on the same day. A further tie favors
// whichever side marks the habit a tombstone, matching the teacher's
// "deletion always wins" rule.
func mergeHabits(local, remote []*model.Habit) []*model.Habit {
	byID := make(map[string]*model.Habit, len(local)+len(remote))
	for _, h := range local {
		byID[h.ID] = h
	}
	for _, r := range remote {
		l, ok := byID[r.ID]
		if !ok {
			byID[r.ID] = r
			continue
		}
		if remoteWinsHabit(l, r) {
			byID[r.ID] = r
		}
	}

	out := make([]*model.Habit, 0, len(byID))
	for _, h := range byID {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// remoteWinsHabit reports whether r should replace l during merge.
func remoteWinsHabit(l, r *model.Habit) bool {
	lc, rc := l.EffectiveClock(), r.EffectiveClock()
	if rc != lc {
		return rc > lc
	}
	if r.LastModified != l.LastModified {
		return r.LastModified > l.LastModified
	}
	return r.IsTombstone() && !l.IsTombstone()
}

// mergeDailyData takes whichever side's overlay wins for a given
// (date, habitID) pair when both sides have one, per the whole-state clock;
// entries present on only one side always survive.
func mergeDailyData(local, remote map[model.Date]map[string]*model.HabitDayData, localWins bool) map[model.Date]map[string]*model.HabitDayData {
	out := make(map[model.Date]map[string]*model.HabitDayData)
	for date, byHabit := range local {
		out[date] = make(map[string]*model.HabitDayData, len(byHabit))
		for habitID, dd := range byHabit {
			out[date][habitID] = dd
		}
	}
	for date, byHabit := range remote {
		if out[date] == nil {
			out[date] = make(map[string]*model.HabitDayData, len(byHabit))
		}
		for habitID, dd := range byHabit {
			if _, conflict := out[date][habitID]; !conflict || !localWins {
				out[date][habitID] = dd
			}
		}
	}
	return out
}

// mergeArchives unions per-year archive blobs, picking the whole-state
// winner's blob for a year both sides have archived independently.
func mergeArchives(local, remote map[string][]byte, localWins bool) map[string][]byte {
	out := make(map[string][]byte, len(local)+len(remote))
	for year, blob := range local {
		out[year] = blob
	}
	for year, blob := range remote {
		if _, conflict := out[year]; !conflict || !localWins {
			out[year] = blob
		}
	}
	return out
}

// mergeMonthlyLogs takes the whole BitLog store from the winning side
// wholesale rather than merging key by key: BitLog entries carry no
// per-entry clock, so the only consistent choice is whole-shard-wins on the
// surrounding state's logical clock (spec §9/§12.3).
func mergeMonthlyLogs(local, remote *bitlog.Store, localWins bool) *bitlog.Store {
	if remote == nil {
		return local
	}
	if local == nil {
		return remote
	}
	if localWins {
		return local
	}
	return remote
}

func pickString(local, remote string, localWins bool) string {
	if localWins {
		return local
	}
	return remote
}

func pickInt(local, remote int, localWins bool) int {
	if localWins {
		return local
	}
	return remote
}

func pickStringPtr(local, remote *string, localWins bool) *string {
	if localWins {
		return local
	}
	return remote
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
