// Command askesis is a thin cobra CLI over internal/actions, internal/
// syncengine, internal/exportimport, and internal/migrations — a debug and
// scripting surface, not the product UI (spec §1 treats the real UI as an
// external collaborator this core never imports). Grounded on the
// teacher's cmd/bd: one cobra.Command variable per subcommand file,
// registered onto rootCmd from init(), flags read with cmd.Flags().Get*.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/askesis/askesis/internal/actions"
	"github.com/askesis/askesis/internal/config"
	"github.com/askesis/askesis/internal/cryptoworker"
	"github.com/askesis/askesis/internal/logging"
	"github.com/askesis/askesis/internal/model"
	"github.com/askesis/askesis/internal/persistence"
)

var rootCmd = &cobra.Command{
	Use:   "askesis",
	Short: "Offline-first habit tracker core — sync, migration, and storage debug CLI",
}

// dbPathFromConfig returns the SQLite database path under the configured
// data directory.
func dbPathFromConfig() string {
	return filepath.Join(config.DataDir(), "askesis.db")
}

// bootstrap opens storage, hydrates state, and wires an ActionContext —
// the same sequence every state-touching subcommand needs before it can do
// anything. Callers must call appHandles.shutdown before the process exits
// so the debounced save buffer flushes.
func bootstrap(ctx context.Context) (*appHandles, error) {
	if err := config.Initialize(); err != nil {
		return nil, fmt.Errorf("askesis: config: %w", err)
	}

	log := logging.New(logging.Options{
		Path:        config.LogPath(),
		Level:       config.LogLevel(),
		Interactive: true,
	})

	if err := os.MkdirAll(config.DataDir(), 0o755); err != nil {
		return nil, fmt.Errorf("askesis: create data dir: %w", err)
	}

	store, err := persistence.OpenKVStore(dbPathFromConfig())
	if err != nil {
		return nil, fmt.Errorf("askesis: open storage: %w", err)
	}

	worker := cryptoworker.New(log)
	worker.Preload()

	pers := persistence.New(store, worker, log)
	state, err := pers.LoadState(ctx, nil, model.CurrentVersion)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("askesis: load state: %w", err)
	}

	lockPath := filepath.Join(config.DataDir(), ".askesis-action.lock")
	ac := actions.New(state, pers, nil, lockPath, log)

	handles := &appHandles{log: log, store: store, worker: worker, pers: pers, actions: ac}

	watcher, err := persistence.NewWatcher(dbPathFromConfig(), func() {
		if err := ac.ReloadFromDisk(context.Background(), pers); err != nil {
			log.Warn("askesis: reload after external write failed", "error", err)
		}
	}, log)
	if err != nil {
		log.Warn("askesis: data directory watch disabled", "error", err)
	} else {
		handles.watcher = watcher
	}

	return handles, nil
}

// appHandles is the set of live resources a subcommand's RunE closes over.
type appHandles struct {
	log     *slog.Logger
	store   *persistence.KVStore
	worker  *cryptoworker.Worker
	pers    *persistence.Persistence
	actions *actions.ActionContext
	watcher *persistence.Watcher
}

func (a *appHandles) shutdown(ctx context.Context) {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			a.log.Warn("askesis: close watcher failed", "error", err)
		}
	}
	if err := a.pers.FlushSaveBuffer(ctx); err != nil {
		a.log.Warn("askesis: flush on exit failed", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("askesis: close storage failed", "error", err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
