package migrations

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"math/big"

	"github.com/tidwall/gjson"

	"github.com/askesis/askesis/internal/bitlog"
	"github.com/askesis/askesis/internal/model"
)

// finalize converts a fully-migrated raw JSON blob into a typed AppState,
// hydrating monthlyLogs separately since it is excluded from the typed
// struct's JSON tags (it is persisted as a separate binary key in normal
// operation; see spec §4.4, §6).
func finalize(blob []byte, log *slog.Logger) (*model.AppState, error) {
	var state model.AppState
	if err := json.Unmarshal(blob, &state); err != nil {
		return nil, err
	}
	if state.Habits == nil {
		state.Habits = nil
	}
	if state.DailyData == nil {
		state.DailyData = make(map[model.Date]map[string]*model.HabitDayData)
	}
	if state.Archives == nil {
		state.Archives = make(map[string][]byte)
	}

	store, err := hydrateMonthlyLogs(blob, log)
	if err != nil {
		return nil, err
	}
	state.MonthlyLogs = store
	state.MonthlyLogsSerialized = nil
	return &state, nil
}

// hydrateMonthlyLogs builds a bitlog.Store from whichever representation is
// present: the structured "monthlyLogs" map (hot storage / legacy blobs) or
// the "monthlyLogsSerialized" hex-pair list (export/cloud form). Per-entry
// parse failures are logged and dropped; they never abort the migration
// (spec §4.2).
func hydrateMonthlyLogs(blob []byte, log *slog.Logger) (*bitlog.Store, error) {
	store := bitlog.NewStore()

	if ml := gjson.GetBytes(blob, "monthlyLogs"); ml.Exists() && ml.IsObject() {
		ml.ForEach(func(key, value gjson.Result) bool {
			v, ok := decodeLogValue(value)
			if !ok {
				log.Warn("migrations: dropping unparseable monthlyLogs entry", "key", key.String())
				return true
			}
			store.SetRaw(key.String(), v)
			return true
		})
		return store, nil
	}

	if serialized := gjson.GetBytes(blob, "monthlyLogsSerialized"); serialized.Exists() && serialized.IsArray() {
		for _, pair := range serialized.Array() {
			arr := pair.Array()
			if len(arr) != 2 {
				log.Warn("migrations: dropping malformed monthlyLogsSerialized pair")
				continue
			}
			b, err := hex.DecodeString(arr[1].String())
			if err != nil {
				log.Warn("migrations: dropping unparseable monthlyLogsSerialized hex", "key", arr[0].String())
				continue
			}
			store.SetRaw(arr[0].String(), fromLittleEndian(b))
		}
		return store, nil
	}

	return store, nil
}

// decodeLogValue accepts the three shapes spec §4.2 names: a hex string (our
// own canonical wire form), {__type:"bigint", val:"<decimal>"}, or
// {__type:"bytes", val:"<base64 little-endian>"}.
func decodeLogValue(value gjson.Result) (*big.Int, bool) {
	switch {
	case value.Type == gjson.String:
		if b, err := hex.DecodeString(value.String()); err == nil {
			return fromLittleEndian(b), true
		}
		if v, ok := new(big.Int).SetString(value.String(), 10); ok {
			return v, true
		}
		return nil, false
	case value.IsObject():
		typ := value.Get("__type").String()
		val := value.Get("val")
		switch typ {
		case "bigint":
			v, ok := new(big.Int).SetString(val.String(), 10)
			return v, ok
		case "bytes":
			b, err := base64.StdEncoding.DecodeString(val.String())
			if err != nil {
				return nil, false
			}
			return fromLittleEndian(b), true
		default:
			return nil, false
		}
	default:
		return nil, false
	}
}

func fromLittleEndian(le []byte) *big.Int {
	be := make([]byte, len(le))
	for i, b := range le {
		be[len(le)-1-i] = b
	}
	return new(big.Int).SetBytes(be)
}

func toLittleEndianHex(v *big.Int) string {
	if v.Sign() == 0 {
		return ""
	}
	be := v.Bytes()
	le := make([]byte, len(be))
	for i, b := range be {
		le[len(be)-1-i] = b
	}
	return hex.EncodeToString(le)
}
