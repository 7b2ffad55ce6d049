package syncengine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/askesis/askesis/internal/bitlog"
	"github.com/askesis/askesis/internal/cryptoworker"
	"github.com/askesis/askesis/internal/model"
)

// Pull fetches every shard the server currently holds, decrypts them
// concurrently via CryptoWorker, and reconstructs a full *model.AppState
// from the core shard plus the union of month shards (spec §4.6).
func (c *Client) Pull(ctx context.Context) (*model.AppState, error) {
	keys, err := c.listShards(ctx)
	if err != nil {
		return nil, err
	}

	type fetched struct {
		key       string
		hash      uint64
		plaintext []byte
	}

	results := make([]fetched, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			ciphertext, found, err := c.getShard(gctx, key)
			if err != nil {
				return err
			}
			if !found {
				return nil
			}
			res, err := c.worker.RunTask(gctx, cryptoworker.TaskDecrypt, cryptoworker.DecryptPayload{
				Key:        c.key,
				Ciphertext: ciphertext,
			})
			if err != nil {
				return fmt.Errorf("syncengine: decrypt shard %s: %w", key, err)
			}
			plain, ok := res.([]byte)
			if !ok {
				return fmt.Errorf("syncengine: unexpected decrypt result type for shard %s", key)
			}
			results[i] = fetched{key: key, plaintext: plain}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	state := model.NewAppState()
	state.MonthlyLogs = bitlog.NewStore()
	haveCore := false

	for _, f := range results {
		if f.plaintext == nil {
			continue
		}
		if f.key == CoreShardKey {
			var core coreSnapshot
			if err := json.Unmarshal(f.plaintext, &core); err != nil {
				return nil, fmt.Errorf("syncengine: decode core shard: %w", err)
			}
			applyCoreSnapshot(state, core)
			haveCore = true
		} else {
			var shard monthShard
			if err := json.Unmarshal(f.plaintext, &shard); err != nil {
				return nil, fmt.Errorf("syncengine: decode shard %s: %w", f.key, err)
			}
			if err := state.MonthlyLogs.MergeFromCloud(shard.Entries); err != nil {
				return nil, fmt.Errorf("syncengine: merge shard %s: %w", f.key, err)
			}
		}

		hash, _, err := c.wm.changed(f.key, rawPayloadFor(f.key, f.plaintext))
		if err == nil {
			c.wm.record(f.key, hash)
		}
	}

	if !haveCore {
		return nil, ErrNoRemoteState
	}
	c.persistWatermarks(ctx)
	return state, nil
}

// rawPayloadFor re-decodes a shard's plaintext into its typed shape so the
// watermark hash recorded after a pull is computed over the same structure
// Push hashes, not over raw bytes (which would never match after a
// round-trip through JSON field reordering).
func rawPayloadFor(key string, plaintext []byte) any {
	if key == CoreShardKey {
		var core coreSnapshot
		_ = json.Unmarshal(plaintext, &core)
		return core
	}
	var shard monthShard
	_ = json.Unmarshal(plaintext, &shard)
	return shard
}

// listShards retries transient failures (network errors, 5xx) through
// WithRetry; a 401/403/409 from statusError is returned unwrapped so the
// retry loop's ErrConflict/ErrUnauthorized short circuit applies.
func (c *Client) listShards(ctx context.Context) ([]string, error) {
	var shards []string
	err := WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/shards", nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-Sync-Key-Hash", c.syncKeyHash)
		req.Header.Set("X-Sync-Protocol-Version", ProtocolVersion)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("syncengine: list shards: %w", err)
		}
		defer resp.Body.Close()

		if err := checkProtocolCompatibility(resp.Header.Get("X-Sync-Protocol-Version")); err != nil {
			return err
		}

		if resp.StatusCode != http.StatusOK {
			return statusError("list", "*", resp)
		}

		var body struct {
			Shards []string `json:"shards"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("syncengine: decode shard list: %w", err)
		}
		shards = body.Shards
		return nil
	})
	return shards, err
}

func (c *Client) getShard(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	found := false
	err := WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.baseURL+"/shards/"+url.PathEscape(key), nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-Sync-Key-Hash", c.syncKeyHash)
		req.Header.Set("X-Sync-Protocol-Version", ProtocolVersion)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("syncengine: fetch shard %s: %w", key, err)
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("syncengine: read shard %s: %w", key, err)
			}
			data, found = body, true
			return nil
		case http.StatusNotFound:
			found = false
			return nil
		default:
			return statusError("fetch", key, resp)
		}
	})
	return data, found, err
}
