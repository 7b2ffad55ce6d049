// Package persistence implements the split hot/cold storage layer described
// in spec §4.4: two keys in an embedded KV store (structured JSON plus
// packed binary logs), debounced writes, a synchronous flush path for
// lifecycle events, and idle-time pruning/archival passes.
//
// The embedded store is a single SQLite file opened through
// github.com/ncruces/go-sqlite3, the same pure-Go (wazero-backed, no cgo)
// driver the teacher repo uses for its own local database.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const (
	// StateJSONKey holds the structured metadata shard (spec §6).
	StateJSONKey = "askesis_core_json"
	// StateBinaryKey holds the packed monthly BitLog map (spec §6).
	StateBinaryKey = "askesis_logs_binary"
	// LegacyStorageKey is read only as a one-shot migration source.
	LegacyStorageKey = "habitTrackerState_v1"
	// SyncWatermarksKey holds the sync client's per-shard content-hash map
	// (spec §12.3), so a one-shot `askesis sync` invocation still gets the
	// delta-push benefit of a shard whose content hasn't changed since the
	// previous run.
	SyncWatermarksKey = "askesis_sync_watermarks"

	openTimeout = 15 * time.Second
	maxRetries  = 2
)

// ErrUnavailable is returned when every retry attempt at opening or using
// the store has failed; callers must treat saves as dropped, not fatal
// (spec §4.4, §7: "saves are dropped silently... in-memory state remains
// authoritative").
var ErrUnavailable = errors.New("persistence: storage unavailable")

// KVStore wraps a *sql.DB handle that is transparently reopened on
// "connection closed"-class failures, per spec §4.4's failure model.
type KVStore struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

// OpenKVStore opens (creating if necessary) the SQLite-backed KV store at
// path and ensures its schema exists.
func OpenKVStore(path string) (*KVStore, error) {
	k := &KVStore{path: path}
	if _, err := k.ensureOpen(context.Background()); err != nil {
		return nil, err
	}
	return k, nil
}

func (k *KVStore) ensureOpen(ctx context.Context) (*sql.DB, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.db != nil {
		return k.db, nil
	}

	openCtx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()

	db, err := sql.Open("sqlite3", "file:"+k.path)
	if err != nil {
		return nil, fmt.Errorf("persistence: open: %w", err)
	}
	if err := db.PingContext(openCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: ping: %w", err)
	}
	if _, err := db.ExecContext(openCtx, `CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: schema: %w", err)
	}
	if _, err := db.ExecContext(openCtx, `CREATE TABLE IF NOT EXISTS identity (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: schema: %w", err)
	}

	k.db = db
	return db, nil
}

// invalidate drops the cached handle so the next call reopens it; used when
// an operation observes a "connection closed"-class error.
func (k *KVStore) invalidate() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.db != nil {
		k.db.Close()
		k.db = nil
	}
}

func isConnectionClosed(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "closed")
}

// withRetry runs fn up to maxRetries+1 times, reopening the handle between
// attempts when the failure looks like a dropped connection (spec §4.4).
func (k *KVStore) withRetry(ctx context.Context, fn func(*sql.DB) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		db, err := k.ensureOpen(ctx)
		if err != nil {
			lastErr = err
			k.invalidate()
			continue
		}
		if err := fn(db); err != nil {
			lastErr = err
			if isConnectionClosed(err) {
				k.invalidate()
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// Get returns the value for key, or (nil, false, nil) if absent.
func (k *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		found bool
	)
	err := k.withRetry(ctx, func(db *sql.DB) error {
		row := db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key)
		var v []byte
		if err := row.Scan(&v); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				found = false
				return nil
			}
			return err
		}
		value, found = v, true
		return nil
	})
	return value, found, err
}

// GetMany reads every key in a single transaction (spec §4.4: "a single
// transaction reads both keys in parallel" — SQLite serializes reads
// regardless, so "in parallel" here means "within one atomic snapshot").
func (k *KVStore) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	err := k.withRetry(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return err
		}
		defer tx.Rollback()
		for _, key := range keys {
			var v []byte
			err := tx.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					continue
				}
				return err
			}
			out[key] = v
		}
		return tx.Commit()
	})
	return out, err
}

// SetMany writes every key in one atomic transaction (spec §4.4: "final
// flush happens atomically in one transaction across both keys").
func (k *KVStore) SetMany(ctx context.Context, values map[string][]byte) error {
	return k.withRetry(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		for key, value := range values {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO kv(key, value) VALUES (?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
				key, value); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// IdentityGet reads a value from the plain key-value string store (spec
// §4.4, §6) — used for the sync key and similarly small scalars.
func (k *KVStore) IdentityGet(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := k.withRetry(ctx, func(db *sql.DB) error {
		row := db.QueryRowContext(ctx, `SELECT value FROM identity WHERE key = ?`, key)
		var v string
		if err := row.Scan(&v); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		value, found = v, true
		return nil
	})
	return value, found, err
}

func (k *KVStore) IdentitySet(ctx context.Context, key, value string) error {
	return k.withRetry(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO identity(key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value)
		return err
	})
}

func (k *KVStore) IdentityDelete(ctx context.Context, key string) error {
	return k.withRetry(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `DELETE FROM identity WHERE key = ?`, key)
		return err
	})
}

func (k *KVStore) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.db == nil {
		return nil
	}
	err := k.db.Close()
	k.db = nil
	return err
}
