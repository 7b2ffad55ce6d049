package persistence

import (
	"context"
	"log/slog"
	"time"

	"github.com/askesis/askesis/internal/cryptoworker"
	"github.com/askesis/askesis/internal/model"
)

// archivalHorizon is how long a dailyData entry stays "hot" before it
// becomes a candidate for compaction into Archives (spec §4.4).
const archivalHorizon = 365 * 24 * time.Hour

// pruneOrphanDayData drops dailyData overlays that reference a habit id the
// state no longer knows about at all — not even as a tombstone. Tombstoned
// habits keep their dailyData until permanent deletion explicitly purges it
// (actions.RequestHabitPermanentDeletion); this pass only removes data that
// outlived every trace of its habit.
func pruneOrphanDayData(state *model.AppState, log *slog.Logger) {
	if state.DailyData == nil {
		return
	}
	removed := 0
	for date, byHabit := range state.DailyData {
		for habitID := range byHabit {
			if state.HabitByID(habitID) != nil {
				continue
			}
			delete(byHabit, habitID)
			removed++
		}
		if len(byHabit) == 0 {
			delete(state.DailyData, date)
		}
	}
	if removed > 0 && log != nil {
		log.Debug("persistence: pruned orphan dailyData entries", "count", removed)
	}
}

// offloadArchival compacts dailyData entries older than archivalHorizon into
// state.Archives, with the gzip/JSON work done by CryptoWorker off this
// goroutine. It is best-effort: a failed pass just leaves the data in
// DailyData for the next boot to retry.
func (p *Persistence) offloadArchival(ctx context.Context, state *model.AppState) {
	if state.DailyData == nil || p.worker == nil {
		return
	}

	cutoff := time.Now().Add(-archivalHorizon)
	additions := map[string]cryptoworker.YearArchive{}
	for date, byHabit := range state.DailyData {
		t, err := date.Time()
		if err != nil || !t.Before(cutoff) {
			continue
		}
		year := string(date)[:4]
		if additions[year] == nil {
			additions[year] = cryptoworker.YearArchive{}
		}
		additions[year][date] = byHabit
	}
	if len(additions) == 0 {
		return
	}

	result, err := p.worker.RunTask(ctx, cryptoworker.TaskArchive, cryptoworker.ArchivePayload{
		Additions: additions,
		Base:      state.Archives,
	})
	if err != nil {
		p.log.Warn("persistence: archival pass failed", "error", err)
		return
	}
	archived, ok := result.(map[string][]byte)
	if !ok {
		return
	}

	if state.Archives == nil {
		state.Archives = map[string][]byte{}
	}
	for year, blob := range archived {
		state.Archives[year] = blob
	}
	for year := range additions {
		for date := range state.DailyData {
			if string(date)[:4] != year {
				continue
			}
			if t, err := date.Time(); err == nil && t.Before(cutoff) {
				delete(state.DailyData, date)
			}
		}
	}
}

// PurgeHabit removes a habit's entries from every archived year, offloading
// the gzip round trip to CryptoWorker (spec §4.4's permanent-deletion path).
func (p *Persistence) PurgeHabit(ctx context.Context, state *model.AppState, habitID string) error {
	if len(state.Archives) == 0 {
		return nil
	}
	result, err := p.worker.RunTask(ctx, cryptoworker.TaskPruneHabit, cryptoworker.PruneHabitPayload{
		HabitID:  habitID,
		Archives: state.Archives,
	})
	if err != nil {
		return err
	}
	pruned, ok := result.(map[string][]byte)
	if !ok {
		return nil
	}
	for year, blob := range pruned {
		if len(blob) == 0 {
			delete(state.Archives, year)
			continue
		}
		state.Archives[year] = blob
	}
	return nil
}
