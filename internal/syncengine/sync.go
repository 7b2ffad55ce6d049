package syncengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/askesis/askesis/internal/model"
)

// NewSyncKey mints a fresh opaque per-device sync key. It is a plain UUID
// (spec §4.6 treats the key as an opaque secret, not a structured token);
// google/uuid is already the id generator the rest of the pack standardizes
// on, so it is reused here rather than reaching for crypto/rand directly.
func NewSyncKey() string {
	return uuid.NewString()
}

// SyncOnce runs one full pull-merge-push cycle: pull the remote state (if
// any shard exists), merge it with local per MergeStates, and push the
// merged result back so both sides converge (spec §4.6, S3: offline/online
// convergence). The returned state is the merged state the caller should
// adopt locally.
func (c *Client) SyncOnce(ctx context.Context, local *model.AppState) (*model.AppState, error) {
	remote, err := c.Pull(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoRemoteState) {
			return nil, fmt.Errorf("syncengine: pull: %w", err)
		}
		remote = nil
	}

	merged := MergeStates(local, remote)

	if err := c.pushWithConflictRetry(ctx, merged); err != nil {
		return nil, fmt.Errorf("syncengine: push: %w", err)
	}
	return merged, nil
}

// pushWithConflictRetry retries once after an ErrConflict by re-pulling and
// re-merging, so a race with another device's concurrent push resolves
// instead of failing outright.
func (c *Client) pushWithConflictRetry(ctx context.Context, state *model.AppState) error {
	err := c.Push(ctx, state)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrConflict) {
		return err
	}

	remote, pullErr := c.Pull(ctx)
	if pullErr != nil {
		return err
	}
	*state = *MergeStates(state, remote)
	return c.Push(ctx, state)
}
