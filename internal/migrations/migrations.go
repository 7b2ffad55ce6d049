// Package migrations sequentially transforms a persisted blob of any past
// schema version into a model.AppState conforming to the current version
// (spec §4.2). Each migration is a pure function over the raw JSON
// representation; none of them touch storage.
package migrations

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/sjson"

	"github.com/askesis/askesis/internal/model"
)

// ErrSchemaCorrupt marks a top-level parse failure migration could not
// route around per-entry (unlike the graceful per-entry drops each
// migration does internally). Per spec §7 this is the one error class that
// should reach the user as "your data looks corrupted, import a backup"
// rather than a silent retry or drop.
var ErrSchemaCorrupt = errors.New("migrations: persisted blob is not well-formed")

// Migration is one ordered schema-version transform. Order is fixed at
// compile time by the registry slice below; it must never be reordered.
type Migration struct {
	TargetVersion int
	Name          string
	Apply         func(blob []byte, log *slog.Logger) ([]byte, error)
}

// registry lists every migration in ascending TargetVersion order. Versions
// with no migration listed here (1-5, 7, 8) are assumed pre-existing schema
// steps this codebase never produced and so never needs to replay; any
// blob claiming one of those versions is handled by whichever migration's
// TargetVersion is the next one strictly greater than it.
var registry = []Migration{
	{TargetVersion: 6, Name: "schedule_history_consolidation", Apply: applyScheduleHistoryConsolidation},
	{TargetVersion: 9, Name: "bitmask_widen_2bit_to_3bit", Apply: applyBitmaskWiden},
	{TargetVersion: 10, Name: "ai_quota_fields", Apply: applyAIQuotaFields},
}

// MigrateState takes a persisted blob of any past schema version (nil/empty
// meaning "no prior state") and returns a model.AppState at targetVersion.
func MigrateState(loaded []byte, targetVersion int, log *slog.Logger) (*model.AppState, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(loaded) == 0 || string(loaded) == "null" {
		return freshState(targetVersion), nil
	}

	version, err := readVersion(loaded)
	if err != nil {
		return nil, fmt.Errorf("%w: reading version: %v", ErrSchemaCorrupt, err)
	}

	blob := loaded
	for _, m := range registry {
		if m.TargetVersion > version && m.TargetVersion <= targetVersion {
			blob, err = m.Apply(blob, log)
			if err != nil {
				return nil, fmt.Errorf("migrations: %s failed: %w", m.Name, err)
			}
			version = m.TargetVersion
		}
	}

	state, err := finalize(blob, log)
	if err != nil {
		return nil, fmt.Errorf("%w: finalize: %v", ErrSchemaCorrupt, err)
	}
	state.Version = targetVersion
	return state, nil
}

func readVersion(blob []byte) (int, error) {
	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(blob, &probe); err != nil {
		return 0, err
	}
	return probe.Version, nil
}

func freshState(targetVersion int) *model.AppState {
	s := model.NewAppState()
	s.Version = targetVersion
	return s
}

// setVersion is a small helper most migrations call at their end.
func setVersion(blob []byte, v int) ([]byte, error) {
	return sjson.SetBytes(blob, "version", v)
}
