package migrations

import (
	"log/slog"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// applyAIQuotaFields adds the AI-usage quota fields introduced in v10 if the
// blob predates them (spec §4.2).
func applyAIQuotaFields(blob []byte, log *slog.Logger) ([]byte, error) {
	out := blob
	var err error

	if !gjson.GetBytes(out, "aiDailyCount").Exists() {
		if out, err = sjson.SetBytes(out, "aiDailyCount", 0); err != nil {
			return nil, err
		}
	}
	if !gjson.GetBytes(out, "aiQuotaDate").Exists() {
		today := time.Now().UTC().Format("2006-01-02")
		if out, err = sjson.SetBytes(out, "aiQuotaDate", today); err != nil {
			return nil, err
		}
	}
	if !gjson.GetBytes(out, "lastAIContextHash").Exists() {
		if out, err = sjson.SetBytes(out, "lastAIContextHash", nil); err != nil {
			return nil, err
		}
	}

	return setVersion(out, 10)
}
