package cryptoworker

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/askesis/askesis/internal/model"
)

// YearArchive is the decompressed shape of one Archives[year] blob: the
// dailyData entries for that year, keyed exactly as model.AppState.DailyData
// is (date -> habitID -> overlay).
type YearArchive map[model.Date]map[string]*model.HabitDayData

// ArchivePayload is the request shape for TaskArchive: per year, the
// newly-cold dailyData entries to fold in, plus the existing compressed
// blob (if any) to merge with.
type ArchivePayload struct {
	Additions map[string]YearArchive // year -> additions
	Base      map[string][]byte      // year -> existing compressed blob
}

// archive merges additions into each year's existing archive (if any) and
// returns freshly recompressed blobs (spec §4.5).
func archive(p ArchivePayload) (map[string][]byte, error) {
	out := make(map[string][]byte, len(p.Additions))
	for year, add := range p.Additions {
		existing := YearArchive{}
		if blob, ok := p.Base[year]; ok {
			decoded, err := decompressYear(blob)
			if err != nil {
				return nil, fmt.Errorf("cryptoworker: decompress archive %s: %w", year, err)
			}
			existing = decoded
		}
		for date, byHabit := range add {
			if existing[date] == nil {
				existing[date] = make(map[string]*model.HabitDayData)
			}
			for habitID, dd := range byHabit {
				existing[date][habitID] = dd
			}
		}
		compressed, err := compressYear(existing)
		if err != nil {
			return nil, fmt.Errorf("cryptoworker: compress archive %s: %w", year, err)
		}
		out[year] = compressed
	}
	return out, nil
}

// PruneHabitPayload is the request shape for TaskPruneHabit.
type PruneHabitPayload struct {
	HabitID  string
	Archives map[string][]byte // year -> compressed blob
}

// pruneHabit walks every year's archive, strips habitID's entries, and
// returns the re-compressed result. A year whose archive becomes
// structurally empty is returned with a nil/empty blob — the caller
// (Persistence) treats that as a signal to delete the year entry entirely
// (spec §4.4).
func pruneHabit(p PruneHabitPayload) (map[string][]byte, error) {
	out := make(map[string][]byte, len(p.Archives))
	for year, blob := range p.Archives {
		decoded, err := decompressYear(blob)
		if err != nil {
			return nil, fmt.Errorf("cryptoworker: decompress archive %s: %w", year, err)
		}
		empty := true
		for date, byHabit := range decoded {
			delete(byHabit, p.HabitID)
			if len(byHabit) == 0 {
				delete(decoded, date)
			} else {
				empty = false
			}
		}
		if empty {
			out[year] = nil
			continue
		}
		compressed, err := compressYear(decoded)
		if err != nil {
			return nil, fmt.Errorf("cryptoworker: compress archive %s: %w", year, err)
		}
		out[year] = compressed
	}
	return out, nil
}

func compressYear(y YearArchive) ([]byte, error) {
	raw, err := json.Marshal(y)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(raw); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressYear(blob []byte) (YearArchive, error) {
	if len(blob) == 0 {
		return YearArchive{}, nil
	}
	gr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	raw, err := io.ReadAll(gr)
	if err != nil {
		return nil, err
	}
	var y YearArchive
	if err := json.Unmarshal(raw, &y); err != nil {
		return nil, err
	}
	if y == nil {
		y = YearArchive{}
	}
	return y, nil
}
