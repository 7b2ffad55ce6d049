// Package actions implements every named mutation of AppState: toggling a
// habit's status, editing its schedule, permanently deleting it, day
// rollover, and the bookkeeping that keeps selectors' caches, the logical
// clock, and pending UI notifications consistent across all of them
// (spec §4.7).
//
// Every exported mutation runs inside ActionContext.mutate, which serializes
// writers both within the process (a plain mutex) and across processes
// sharing the same data directory (a github.com/gofrs/flock file lock),
// the same single-exclusive-lock idiom the teacher's cmd/bd sync path uses
// around its own sync.lock file.
package actions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofrs/flock"

	"github.com/askesis/askesis/internal/model"
	"github.com/askesis/askesis/internal/persistence"
	"github.com/askesis/askesis/internal/selectors"
)

// Notifier receives change notifications so a UI collaborator can re-render.
// ActionContext never renders anything itself (spec §1: UI is an external
// collaborator) — it only calls back.
type Notifier interface {
	// NotifyChanges fires after any mutation commits, for a full re-read of
	// the affected surface.
	NotifyChanges()
	// NotifyPartialUIRefresh fires for mutations scoped to a single date,
	// letting a UI collaborator skip re-rendering everything.
	NotifyPartialUIRefresh(date model.Date)
}

type noopNotifier struct{}

func (noopNotifier) NotifyChanges()                      {}
func (noopNotifier) NotifyPartialUIRefresh(model.Date) {}

// ActionContext is the single owner of AppState mutation. It holds the
// in-process lock, the cross-process file lock, the selector
// engine whose caches it is responsible for invalidating, and the
// persistence layer it debounce-saves through after every commit.
type ActionContext struct {
	log          *slog.Logger
	persistence  *persistence.Persistence
	notifier     Notifier
	fileLock     *flock.Flock

	mu    sync.Mutex
	state *model.AppState
	sel   *selectors.Engine

	// batchActive suppresses per-call notifications and saves while a
	// caller is running several mutations as one logical unit (spec §4.7's
	// _isBatchOpActive), flushing once at the end instead.
	batchActive bool
	batchDirty  bool
	batchDates  map[model.Date]bool

	// bootLocked gates mutations before the first sync pull completes,
	// per spec §4.7's boot lock: editing before the device has seen any
	// server state risks creating a duplicate sibling habit on first sync.
	bootLocked bool
}

// New constructs an ActionContext over state, using lockPath (typically
// "<data dir>/.askesis-action.lock") for the cross-process exclusive lock.
func New(state *model.AppState, p *persistence.Persistence, notifier Notifier, lockPath string, log *slog.Logger) *ActionContext {
	if log == nil {
		log = slog.Default()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &ActionContext{
		log:         log,
		persistence: p,
		notifier:    notifier,
		fileLock:    flock.New(lockPath),
		state:       state,
		sel:         selectors.NewEngine(state),
		bootLocked:  !state.InitialSyncDone,
	}
}

// Selectors exposes the engine mutations must invalidate through — read
// access for callers assembling UI view-models between mutations.
func (a *ActionContext) Selectors() *selectors.Engine { return a.sel }

// State returns the live AppState pointer. Callers must only mutate it from
// inside a mutate call.
func (a *ActionContext) State() *model.AppState { return a.state }

// SetBootUnlocked clears the boot lock once the first post-install sync
// pull has completed (spec §4.7).
func (a *ActionContext) SetBootUnlocked() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.InitialSyncDone = true
	a.bootLocked = false
}

// ErrBootLocked is returned by any boot-gated mutation attempted while
// AppState.InitialSyncDone is false, i.e. until SetBootUnlocked runs.
var ErrBootLocked = fmt.Errorf("actions: application is waiting for initial sync before accepting edits")

// mutate runs fn with the in-process lock held, having first taken (and
// always releasing) the cross-process file lock. With requireBootUnlocked
// set it fails with ErrBootLocked while the boot lock holds. Every call whose
// fn succeeds bumps AppState.LastModified by exactly one.
func (a *ActionContext) mutate(ctx context.Context, requireBootUnlocked bool, fn func() (touchedDate *model.Date, err error)) error {
	if err := a.fileLock.Lock(); err != nil {
		return fmt.Errorf("actions: acquire file lock: %w", err)
	}
	defer func() {
		if err := a.fileLock.Unlock(); err != nil {
			a.log.Warn("actions: release file lock", "error", err)
		}
	}()

	a.mu.Lock()
	defer a.mu.Unlock()

	if requireBootUnlocked && a.bootLocked {
		return ErrBootLocked
	}

	touched, err := fn()
	if err != nil {
		return err
	}

	a.state.LastModified++

	if a.batchActive {
		a.batchDirty = true
		if touched != nil {
			if a.batchDates == nil {
				a.batchDates = map[model.Date]bool{}
			}
			a.batchDates[*touched] = true
		}
		return nil
	}

	a.persistence.SaveState(a.state)
	if touched != nil {
		a.sel.InvalidateForDate(*touched)
		a.notifier.NotifyPartialUIRefresh(*touched)
	} else {
		a.sel.ClearAll()
		a.notifier.NotifyChanges()
	}
	return nil
}

// bumpHabit stamps h with the logical clock value mutate is about to commit
// for this call, giving sync's per-habit merge tiebreak (spec §4.6) a
// LastModified to fall back on when two devices edit the same habit without
// either side's schedule history actually advancing (e.g. ending or
// graduating it). Callers call this from inside the mutate closure, before
// mutate's own a.state.LastModified++ runs.
func (a *ActionContext) bumpHabit(h *model.Habit) {
	h.LastModified = a.state.LastModified + 1
}

// ReloadFromDisk re-runs LoadState and replaces the live AppState's contents
// in place, so every outstanding pointer into it (selectors, callers holding
// State()) keeps working. Used by persistence.Watcher's onChange callback
// when another process has written behind this one's back (spec §9's
// cross-process wake-from-background event).
func (a *ActionContext) ReloadFromDisk(ctx context.Context, p *persistence.Persistence) error {
	fresh, err := p.LoadState(ctx, nil, model.CurrentVersion)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	*a.state = *fresh
	a.sel.ClearAll()
	a.notifier.NotifyChanges()
	return nil
}

// RunBatch executes fn with per-call saves/notifications suppressed, then
// flushes one save and one notification at the end (spec §4.7's
// _isBatchOpActive).
func (a *ActionContext) RunBatch(ctx context.Context, fn func() error) error {
	a.mu.Lock()
	a.batchActive = true
	a.batchDirty = false
	a.batchDates = nil
	a.mu.Unlock()

	err := fn()

	a.mu.Lock()
	dirty := a.batchDirty
	dates := a.batchDates
	a.batchActive = false
	a.batchDirty = false
	a.batchDates = nil
	a.mu.Unlock()

	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}

	a.persistence.SaveState(a.state)
	a.sel.ClearAll()
	if len(dates) == 1 {
		for d := range dates {
			a.notifier.NotifyPartialUIRefresh(d)
		}
		return nil
	}
	a.notifier.NotifyChanges()
	return nil
}
