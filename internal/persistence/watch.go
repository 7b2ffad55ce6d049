package persistence

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of fsnotify events a single SQLite
// commit can produce (WAL checkpoint, journal rename, etc.) into one
// reload signal.
const watchDebounce = 250 * time.Millisecond

// Watcher observes the data directory for writes this process did not
// itself make — e.g. a second askesis process, or a future sync daemon,
// committing behind this one's back — and calls onChange so the caller can
// drop any in-memory cache and re-run LoadState. This stands in for the
// "wake from background" event spec §9 describes for cross-process
// coordination; the teacher watches its own data directory the same way
// for its daemon/CLI split.
type Watcher struct {
	fsw      *fsnotify.Watcher
	dbName   string
	onChange func()
	log      *slog.Logger
	timer    *time.Timer
	done     chan struct{}
}

// NewWatcher starts watching the directory containing dbPath. onChange is
// invoked (from a background goroutine) no more than once per
// watchDebounce window.
func NewWatcher(dbPath string, onChange func(), log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(dbPath)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		dbName:   filepath.Base(dbPath),
		onChange: onChange,
		log:      log,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != w.dbName {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("persistence: watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(watchDebounce, w.onChange)
}

// Close stops watching and releases the underlying fsnotify handle.
func (w *Watcher) Close() error {
	close(w.done)
	if w.timer != nil {
		w.timer.Stop()
	}
	return w.fsw.Close()
}
