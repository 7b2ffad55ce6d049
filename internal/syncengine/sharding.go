// Package syncengine implements the sharded, end-to-end-encrypted multi
// device sync described in spec §4.6: the local state is split into a
// "core" metadata shard and one shard per month of BitLog history, each
// shard is pushed/pulled independently so a quiet month of history never
// re-uploads, and divergent copies are reconciled with last-writer-wins
// merge keyed by the app's logical clock.
//
// The shard split and LWW merge are grounded on the teacher's
// internal/syncbranch (branch-based serialization of structured state) and
// internal/merge (per-field 3-way merge with deterministic tie-breaks),
// adapted from git-branch transport to an HTTP blob store and from 3-way
// (base/left/right) merge to 2-way LWW, since spec §4.6 has no shared base
// snapshot between devices.
package syncengine

import (
	"github.com/askesis/askesis/internal/bitlog"
	"github.com/askesis/askesis/internal/model"
)

// CoreShardKey names the metadata shard: everything in AppState except the
// BitLog history.
const CoreShardKey = "core"

// coreSnapshot is the JSON shape of the core shard — AppState minus
// MonthlyLogs, which travels in its own per-month shards instead.
type coreSnapshot struct {
	Version int `json:"version"`

	Habits    []*model.Habit                         `json:"habits"`
	DailyData map[model.Date]map[string]*model.HabitDayData `json:"dailyData"`
	Archives  map[string][]byte                      `json:"archives"`

	Language        string `json:"language"`
	OnboardingDone  bool   `json:"onboardingDone"`
	InitialSyncDone bool   `json:"initialSyncDone"`

	AIDailyCount      int        `json:"aiDailyCount"`
	AIQuotaDate       model.Date `json:"aiQuotaDate"`
	LastAIContextHash *string    `json:"lastAIContextHash"`

	LastModified int64 `json:"lastModified"`
}

func buildCoreSnapshot(state *model.AppState) coreSnapshot {
	return coreSnapshot{
		Version:           state.Version,
		Habits:            state.Habits,
		DailyData:         state.DailyData,
		Archives:          state.Archives,
		Language:          state.Language,
		OnboardingDone:    state.OnboardingDone,
		InitialSyncDone:   state.InitialSyncDone,
		AIDailyCount:      state.AIDailyCount,
		AIQuotaDate:       state.AIQuotaDate,
		LastAIContextHash: state.LastAIContextHash,
		LastModified:      state.LastModified,
	}
}

func applyCoreSnapshot(state *model.AppState, snap coreSnapshot) {
	state.Version = snap.Version
	state.Habits = snap.Habits
	state.DailyData = snap.DailyData
	if state.DailyData == nil {
		state.DailyData = make(map[model.Date]map[string]*model.HabitDayData)
	}
	state.Archives = snap.Archives
	if state.Archives == nil {
		state.Archives = make(map[string][]byte)
	}
	state.Language = snap.Language
	state.OnboardingDone = snap.OnboardingDone
	state.InitialSyncDone = snap.InitialSyncDone
	state.AIDailyCount = snap.AIDailyCount
	state.AIQuotaDate = snap.AIQuotaDate
	state.LastAIContextHash = snap.LastAIContextHash
	state.LastModified = snap.LastModified
}

// monthShard is the JSON shape of one BitLog month shard: every
// (habitID, month) entry across all habits whose month matches Month.
type monthShard struct {
	Month   string      `json:"month"`
	Entries [][2]string `json:"entries"`
}

// shardMonths groups a BitLog store's entries by month, independent of
// which habit they belong to, so a shard boundary lines up with "a month of
// history" rather than "a habit" (spec §4.6: shard granularity is time, not
// habit, so habit count doesn't change upload fan-out).
func shardMonths(store *bitlog.Store) map[string]monthShard {
	out := map[string]monthShard{}
	if store == nil {
		return out
	}
	for _, pair := range store.SerializeLogsForCloud() {
		key, hexVal := pair[0], pair[1]
		month := monthOfKey(key)
		shard := out[month]
		shard.Month = month
		shard.Entries = append(shard.Entries, [2]string{key, hexVal})
		out[month] = shard
	}
	return out
}

// monthOfKey extracts the "YYYY-MM" suffix from a bitlog.Key-formatted key.
// It takes the key's last seven characters; a key shorter than eight is
// returned unchanged.
func monthOfKey(key string) string {
	if len(key) < 8 {
		return key
	}
	return key[len(key)-7:]
}
