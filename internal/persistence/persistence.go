package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/askesis/askesis/internal/bitlog"
	"github.com/askesis/askesis/internal/cryptoworker"
	"github.com/askesis/askesis/internal/migrations"
	"github.com/askesis/askesis/internal/model"
)

// saveDebounce matches the teacher's batching window for its own
// internal/storage writers, reused here for the KV flush (spec §4.4).
const saveDebounce = 500 * time.Millisecond

// Persistence implements the split hot/cold storage layer: a debounced
// SaveState for routine edits, a synchronous FlushSaveBuffer for lifecycle
// boundaries, and a LoadState that runs the full boot-time hydration
// algorithm (source resolution, migration, BitLog preference order, orphan
// pruning, archival offload).
type Persistence struct {
	store  *KVStore
	worker *cryptoworker.Worker
	log    *slog.Logger

	mu      sync.Mutex
	pending *model.AppState
	timer   *time.Timer
}

// New constructs a Persistence layer over an already-open KVStore and a
// CryptoWorker used to offload archival compression off the save path.
func New(store *KVStore, worker *cryptoworker.Worker, log *slog.Logger) *Persistence {
	if log == nil {
		log = slog.Default()
	}
	return &Persistence{store: store, worker: worker, log: log}
}

// SaveState schedules a debounced write of state. Repeated calls within the
// debounce window coalesce into a single flush carrying the latest state
// (spec §4.4: "the most recent call wins; no queueing of every edit").
func (p *Persistence) SaveState(state *model.AppState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = state
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(saveDebounce, func() {
		p.mu.Lock()
		pending := p.pending
		p.pending = nil
		p.timer = nil
		p.mu.Unlock()
		if pending == nil {
			return
		}
		if err := p.flush(context.Background(), pending); err != nil {
			p.log.Warn("persistence: debounced save dropped", "error", err)
		}
	})
}

// FlushSaveBuffer synchronously writes any pending state, for callers that
// must not return until data is durable (app shutdown, explicit export).
func (p *Persistence) FlushSaveBuffer(ctx context.Context) error {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()

	if pending == nil {
		return nil
	}
	return p.flush(ctx, pending)
}

func (p *Persistence) flush(ctx context.Context, state *model.AppState) error {
	coreJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("persistence: encode core state: %w", err)
	}

	var logsBlob []byte
	if state.MonthlyLogs != nil {
		packed := state.MonthlyLogs.PackBinaryLogs()
		logsBlob, err = json.Marshal(packed)
		if err != nil {
			return fmt.Errorf("persistence: encode monthly logs: %w", err)
		}
	}

	if err := p.store.SetMany(ctx, map[string][]byte{
		StateJSONKey:   coreJSON,
		StateBinaryKey: logsBlob,
	}); err != nil {
		return fmt.Errorf("persistence: flush: %w", err)
	}
	return nil
}

// LoadState runs the boot-time hydration algorithm from spec §4.4:
//
//  1. resolve the source blob — remoteState, when given, is the actual
//     source (a just-pulled sync snapshot); otherwise the current on-disk
//     key, falling back to the legacy single-key record if that's absent,
//  2. run it through the migration chain up to targetVersion,
//  3. hydrate MonthlyLogs: when loading from disk the local binary blob
//     wins; when remoteState is given the local blob is not read, and
//     remoteState's logs are used unless the migration chain already
//     produced inline logs; otherwise the inline logs are kept,
//  4. filter out habits with an empty ScheduleHistory unless tombstoned —
//     a schedule-less, non-deleted habit is an impossible state that only
//     a partially-applied sync merge or a truncated migration can produce,
//  5. drop dailyData entries that reference a habit no longer known at all,
//  6. offload compaction of now-cold dailyData into Archives.
func (p *Persistence) LoadState(ctx context.Context, remoteState *model.AppState, targetVersion int) (*model.AppState, error) {
	var blob []byte
	var logsBlob []byte

	if remoteState != nil {
		encoded, err := json.Marshal(remoteState)
		if err != nil {
			return nil, fmt.Errorf("persistence: encode remote state: %w", err)
		}
		blob = encoded
	} else {
		values, err := p.store.GetMany(ctx, []string{StateJSONKey, StateBinaryKey, LegacyStorageKey})
		if err != nil {
			return nil, fmt.Errorf("persistence: load: %w", err)
		}
		blob = values[StateJSONKey]
		if len(blob) == 0 {
			blob = values[LegacyStorageKey]
		}
		logsBlob = values[StateBinaryKey]
	}

	state, err := migrations.MigrateState(blob, targetVersion, p.log)
	if err != nil {
		return nil, fmt.Errorf("persistence: migrate: %w", err)
	}

	p.hydrateMonthlyLogs(state, remoteState, logsBlob)
	filterEmptyScheduleHistory(state, p.log)

	pruneOrphanDayData(state, p.log)
	p.offloadArchival(ctx, state)

	p.mu.Lock()
	p.pending = nil
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()

	return state, nil
}

// filterEmptyScheduleHistory drops habits that are neither a tombstone nor
// carry any schedule entries (spec §4.4 step 4) — a state a correct local
// write can never produce, but a merge of two versions of the same habit
// can, if one side's ScheduleHistory was wiped without the DeletedOn
// tombstone fields being carried along with it.
func filterEmptyScheduleHistory(state *model.AppState, log *slog.Logger) {
	kept := make([]*model.Habit, 0, len(state.Habits))
	dropped := 0
	for _, h := range state.Habits {
		if len(h.ScheduleHistory) == 0 && !h.IsTombstone() {
			dropped++
			continue
		}
		kept = append(kept, h)
	}
	state.Habits = kept
	if dropped > 0 && log != nil {
		log.Debug("persistence: dropped habits with empty schedule history", "count", dropped)
	}
}

func (p *Persistence) hydrateMonthlyLogs(state *model.AppState, remoteState *model.AppState, logsBlob []byte) {
	if len(logsBlob) > 0 {
		var packed map[string][]byte
		if err := json.Unmarshal(logsBlob, &packed); err == nil {
			store := bitlog.NewStore()
			store.UnpackBinaryLogs(packed)
			state.MonthlyLogs = store
			return
		}
		p.log.Warn("persistence: discarding unreadable monthly logs blob")
	}

	if remoteState != nil && remoteState.MonthlyLogs != nil && remoteState.MonthlyLogs.Len() > 0 {
		if state.MonthlyLogs == nil || state.MonthlyLogs.Len() == 0 {
			state.MonthlyLogs = remoteState.MonthlyLogs
			return
		}
	}

	if state.MonthlyLogs == nil {
		state.MonthlyLogs = bitlog.NewStore()
	}
}
