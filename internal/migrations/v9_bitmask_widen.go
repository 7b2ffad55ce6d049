package migrations

import (
	"log/slog"
	"math/big"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	oldBitsPerSlot = 2
	oldBitsPerDay  = oldBitsPerSlot * 3
	oldSlotMask    = 0b11

	newBitsPerSlot = 3
	newBitsPerDay  = newBitsPerSlot * 3
)

// applyBitmaskWiden re-emits every monthlyLogs entry from v8's 2-bit slots
// (6 bits/day) to v9's 3-bit slots (9 bits/day), per spec §4.2's S1 scenario. Each old
// 2-bit value is reinterpreted verbatim at its new wider bit position; no
// status is reinterpreted in meaning.
func applyBitmaskWiden(blob []byte, log *slog.Logger) ([]byte, error) {
	ml := gjson.GetBytes(blob, "monthlyLogs")
	if !ml.Exists() || !ml.IsObject() {
		return setVersion(blob, 9)
	}

	widened := make(map[string]string)
	ml.ForEach(func(key, value gjson.Result) bool {
		old, ok := decodeLogValue(value)
		if !ok {
			log.Warn("migrations: v9 widen dropping unparseable entry", "key", key.String())
			return true
		}
		widened[key.String()] = toLittleEndianHex(widenBitmask(old))
		return true
	})

	out := blob
	var err error
	out, err = sjson.SetBytes(out, "monthlyLogs", widened)
	if err != nil {
		return nil, err
	}
	return setVersion(out, 9)
}

func widenBitmask(old *big.Int) *big.Int {
	newVal := new(big.Int)
	for day := 1; day <= 31; day++ {
		for offset := 0; offset < 3; offset++ {
			oldPos := uint((day-1)*oldBitsPerDay + oldBitsPerSlot*offset)
			shifted := new(big.Int).Rsh(old, oldPos)
			slot := shifted.Uint64() & oldSlotMask
			if slot == 0 {
				continue
			}
			newPos := uint((day-1)*newBitsPerDay + newBitsPerSlot*offset)
			set := new(big.Int).Lsh(big.NewInt(int64(slot)), newPos)
			newVal.Or(newVal, set)
		}
	}
	return newVal
}
