package syncengine

import (
	"sync"

	"github.com/mitchellh/hashstructure/v2"
)

// watermarks reconstructs per-shard "has this changed since I last pushed
// it" state from content hashes rather than a persisted sequence number.
// Nothing in the wire protocol hands the client an authoritative per-shard
// version; the client derives one itself (spec §9 Open Question, resolved
// in SPEC_FULL §12.3) by hashing each shard's plaintext with
// github.com/mitchellh/hashstructure and comparing against the hash
// recorded after the last successful push or pull of that shard.
type watermarks struct {
	mu     sync.Mutex
	hashes map[string]uint64
}

func newWatermarks() *watermarks {
	return &watermarks{hashes: make(map[string]uint64)}
}

// changed hashes content and reports whether it differs from the last
// recorded hash for key. The hash is always returned so the caller can
// record it after a successful push without re-hashing.
func (w *watermarks) changed(key string, content any) (uint64, bool, error) {
	h, err := hashstructure.Hash(content, hashstructure.FormatV2, nil)
	if err != nil {
		return 0, false, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	prev, ok := w.hashes[key]
	return h, !ok || prev != h, nil
}

func (w *watermarks) record(key string, h uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hashes[key] = h
}

func (w *watermarks) snapshot() map[string]uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]uint64, len(w.hashes))
	for k, v := range w.hashes {
		out[k] = v
	}
	return out
}

// loadFrom seeds the hash map from a previously persisted snapshot, e.g. one
// loaded from the same KV store SaveState flushes to.
func (w *watermarks) loadFrom(hashes map[string]uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for k, v := range hashes {
		w.hashes[k] = v
	}
}
