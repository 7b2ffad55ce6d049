package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/askesis/askesis/internal/config"
	"github.com/askesis/askesis/internal/model"
	"github.com/askesis/askesis/internal/persistence"
	"github.com/askesis/askesis/internal/syncengine"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Manage end-to-end-encrypted multi-device sync",
}

const syncKeyIdentityKey = "sync_key"

var syncEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Generate and store a new sync key on this device",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return err
		}
		store, err := persistence.OpenKVStore(dbPathFromConfig())
		if err != nil {
			return err
		}
		defer store.Close()

		key := syncengine.NewSyncKey()
		if err := store.IdentitySet(cmd.Context(), syncKeyIdentityKey, key); err != nil {
			return fmt.Errorf("askesis: store sync key: %w", err)
		}
		fmt.Fprintln(os.Stdout, key)
		return nil
	},
}

var syncDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Remove this device's sync key, leaving local data untouched",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return err
		}
		store, err := persistence.OpenKVStore(dbPathFromConfig())
		if err != nil {
			return err
		}
		defer store.Close()
		return store.IdentityDelete(cmd.Context(), syncKeyIdentityKey)
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether this device has a sync key configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return err
		}
		store, err := persistence.OpenKVStore(dbPathFromConfig())
		if err != nil {
			return err
		}
		defer store.Close()

		_, ok, err := store.IdentityGet(cmd.Context(), syncKeyIdentityKey)
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintln(os.Stdout, "enabled")
		} else {
			fmt.Fprintln(os.Stdout, "disabled")
		}
		return nil
	},
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push this device's changed shards to the sync endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.shutdown(cmd.Context())

		client, err := newSyncClient(cmd.Context(), a)
		if err != nil {
			return err
		}
		return client.Push(cmd.Context(), a.actions.State())
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Run one full pull-merge-push sync cycle and adopt the merged state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.shutdown(cmd.Context())

		client, err := newSyncClient(cmd.Context(), a)
		if err != nil {
			return err
		}
		merged, err := client.SyncOnce(cmd.Context(), a.actions.State())
		if err != nil {
			return err
		}
		hydrated, err := a.pers.LoadState(cmd.Context(), merged, model.CurrentVersion)
		if err != nil {
			return fmt.Errorf("askesis: hydrate merged state: %w", err)
		}
		*a.actions.State() = *hydrated
		a.actions.SetBootUnlocked()
		a.pers.SaveState(a.actions.State())
		return nil
	},
}

func newSyncClient(ctx context.Context, a *appHandles) (*syncengine.Client, error) {
	endpoint := config.SyncEndpoint()
	if endpoint == "" {
		return nil, fmt.Errorf("askesis: no sync endpoint configured (set sync.endpoint)")
	}
	key, ok, err := a.store.IdentityGet(ctx, syncKeyIdentityKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("askesis: no sync key configured; run `askesis sync enable` first")
	}
	return syncengine.NewClient(ctx, endpoint, key, a.store, a.worker, a.log)
}

func init() {
	syncCmd.AddCommand(syncEnableCmd, syncDisableCmd, syncStatusCmd, syncPushCmd, syncPullCmd)
	rootCmd.AddCommand(syncCmd)
}
