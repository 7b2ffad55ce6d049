package syncengine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/askesis/askesis/internal/cryptoworker"
	"github.com/askesis/askesis/internal/persistence"
)

// ErrConflict is returned when the server rejects a shard push because a
// newer version already exists there (HTTP 409), signaling the caller
// should pull and merge before retrying.
var ErrConflict = errors.New("syncengine: shard conflict")

// ErrUnauthorized is returned on HTTP 401/403 — the sync key hash the
// server has on file doesn't match, or the account was revoked.
var ErrUnauthorized = errors.New("syncengine: sync key rejected")

// ErrNoRemoteState is returned by Pull when the remote has no core shard
// yet — a brand-new sync key with nothing pushed to it so far.
var ErrNoRemoteState = errors.New("syncengine: remote has no core shard")

const requestTimeout = 30 * time.Second

// Client talks to the sync server named in spec §6: a blob store keyed by
// shard name, scoped by a per-device sync key whose SHA-256 hash travels in
// the X-Sync-Key-Hash header (the raw key itself never leaves the device).
type Client struct {
	httpClient *http.Client
	baseURL    string
	worker     *cryptoworker.Worker
	store      *persistence.KVStore
	log        *slog.Logger

	key         [32]byte
	syncKeyHash string

	wm *watermarks
}

// NewClient derives the device's symmetric key from syncKey and prepares a
// client for baseURL (the sync server's root endpoint, e.g.
// "https://sync.askesis.example/api"). It loads any watermark map persisted
// by a previous run from store, so a one-shot CLI invocation still gets
// delta-push's benefit across process runs (spec §12.3); store may be nil in
// tests, in which case watermarks simply never persist across a Client's
// lifetime.
func NewClient(ctx context.Context, baseURL, syncKey string, store *persistence.KVStore, worker *cryptoworker.Worker, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	key, err := cryptoworker.DeriveKey(syncKey)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(syncKey))
	c := &Client{
		httpClient:  &http.Client{Timeout: requestTimeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		worker:      worker,
		store:       store,
		log:         log,
		key:         key,
		syncKeyHash: hex.EncodeToString(sum[:]),
		wm:          newWatermarks(),
	}
	c.loadWatermarks(ctx)
	return c, nil
}

// loadWatermarks seeds c.wm from the persisted blob, if any. A missing or
// unreadable blob just leaves the client starting cold, the same as before
// watermark persistence existed.
func (c *Client) loadWatermarks(ctx context.Context) {
	if c.store == nil {
		return
	}
	blob, found, err := c.store.Get(ctx, persistence.SyncWatermarksKey)
	if err != nil || !found || len(blob) == 0 {
		return
	}
	var hashes map[string]uint64
	if err := json.Unmarshal(blob, &hashes); err != nil {
		c.log.Warn("syncengine: discarding unreadable watermark blob", "error", err)
		return
	}
	c.wm.loadFrom(hashes)
}

// persistWatermarks flushes the current watermark map to store, best-effort:
// a failure here only costs the next run its delta-push optimization, never
// correctness (changed() falls back to "never seen" on a cold cache).
func (c *Client) persistWatermarks(ctx context.Context) {
	if c.store == nil {
		return
	}
	blob, err := json.Marshal(c.wm.snapshot())
	if err != nil {
		c.log.Warn("syncengine: encode watermark snapshot failed", "error", err)
		return
	}
	if err := c.store.SetMany(ctx, map[string][]byte{persistence.SyncWatermarksKey: blob}); err != nil {
		c.log.Warn("syncengine: persist watermarks failed", "error", err)
	}
}

func statusError(op, key string, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusConflict:
		return ErrConflict
	default:
		return &httpError{op: op, shard: key, status: resp.StatusCode}
	}
}

type httpError struct {
	op     string
	shard  string
	status int
}

func (e *httpError) Error() string {
	return "syncengine: " + e.op + " shard " + e.shard + ": " + http.StatusText(e.status)
}
