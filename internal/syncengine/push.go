package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/askesis/askesis/internal/cryptoworker"
	"github.com/askesis/askesis/internal/model"
)

// Push uploads every shard whose content hash has changed since the last
// successful push or pull (spec §4.6). Shards are encrypted concurrently
// via CryptoWorker (one singleflight-deduplicated task per shard) and then
// uploaded; a 409 on any shard surfaces as ErrConflict so the caller can
// pull-merge-retry instead of clobbering a newer remote copy.
func (c *Client) Push(ctx context.Context, state *model.AppState) error {
	payloads := map[string]any{CoreShardKey: buildCoreSnapshot(state)}
	for month, shard := range shardMonths(state.MonthlyLogs) {
		payloads[month] = shard
	}

	type encrypted struct {
		key        string
		hash       uint64
		ciphertext []byte
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var toUpload []encrypted

	for key, payload := range payloads {
		key, payload := key, payload
		hash, changed, err := c.wm.changed(key, payload)
		if err != nil {
			return fmt.Errorf("syncengine: hash shard %s: %w", key, err)
		}
		if !changed {
			continue
		}
		g.Go(func() error {
			raw, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("syncengine: encode shard %s: %w", key, err)
			}
			res, err := c.worker.RunTaskDedup(gctx, "encrypt:"+key, cryptoworker.TaskEncrypt, cryptoworker.EncryptPayload{
				Key:       c.key,
				Plaintext: raw,
			})
			if err != nil {
				return fmt.Errorf("syncengine: encrypt shard %s: %w", key, err)
			}
			ciphertext, ok := res.([]byte)
			if !ok {
				return fmt.Errorf("syncengine: unexpected encrypt result type for shard %s", key)
			}
			mu.Lock()
			toUpload = append(toUpload, encrypted{key: key, hash: hash, ciphertext: ciphertext})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, e := range toUpload {
		if err := c.putShard(ctx, e.key, e.ciphertext); err != nil {
			return err
		}
		c.wm.record(e.key, e.hash)
	}
	c.persistWatermarks(ctx)
	return nil
}

func (c *Client) putShard(ctx context.Context, key string, ciphertext []byte) error {
	return WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut,
			c.baseURL+"/shards/"+url.PathEscape(key), bytes.NewReader(ciphertext))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		req.Header.Set("X-Sync-Key-Hash", c.syncKeyHash)
		req.Header.Set("X-Sync-Protocol-Version", ProtocolVersion)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("syncengine: push shard %s: %w", key, err)
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusNoContent:
			return nil
		default:
			return statusError("push", key, resp)
		}
	})
}
