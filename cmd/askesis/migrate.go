package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/askesis/askesis/internal/config"
	"github.com/askesis/askesis/internal/model"
	"github.com/askesis/askesis/internal/persistence"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Inspect the persisted schema version",
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the on-disk schema version vs. the version this binary produces",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return err
		}
		store, err := persistence.OpenKVStore(dbPathFromConfig())
		if err != nil {
			return err
		}
		defer store.Close()

		onDisk, err := peekOnDiskVersion(cmd.Context(), store)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "on-disk: v%d\nbinary:  v%d\n", onDisk, model.CurrentVersion)
		if onDisk < model.CurrentVersion {
			fmt.Fprintln(os.Stdout, "status:  behind (migrated in memory on next load; written back at next save)")
		} else {
			fmt.Fprintln(os.Stdout, "status:  current")
		}
		return nil
	},
}

// peekOnDiskVersion reads the persisted core blob directly, without running
// it through migrations.MigrateState, so it reports what is genuinely on
// disk rather than the always-current version LoadState produces.
func peekOnDiskVersion(ctx context.Context, store *persistence.KVStore) (int, error) {
	values, err := store.GetMany(ctx, []string{persistence.StateJSONKey, persistence.LegacyStorageKey})
	if err != nil {
		return 0, err
	}

	blob := values[persistence.StateJSONKey]
	if len(blob) == 0 {
		blob = values[persistence.LegacyStorageKey]
	}
	if len(blob) == 0 {
		return model.CurrentVersion, nil
	}

	var versioned struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(blob, &versioned); err != nil {
		return 0, fmt.Errorf("askesis: on-disk blob is not well-formed JSON: %w", err)
	}
	return versioned.Version, nil
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
