package bitlog

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	// BitsPerSlot is the width of one (day, time) status field.
	BitsPerSlot = 3
	// BitsPerDay is three slots (Morning, Afternoon, Evening) per day.
	BitsPerDay = BitsPerSlot * 3
	// slotMask isolates one 3-bit status field.
	slotMask = 0b111
)

// bitPos returns the bit offset of (day, timeOffset) within a month's field,
// per spec §4.1: (day-1)*9 + 3*time_offset. day is 1-indexed.
func bitPos(day, timeOffset int) int {
	return (day-1)*BitsPerDay + BitsPerSlot*timeOffset
}

// Key formats the BitLog map key for a habit's month. Month must be the
// "YYYY-MM" prefix of an ISO date; callers typically pass date.Month().
// Migrations depend on this exact layout (habitId + "_" + YYYY-MM) — do not
// change it without a migration.
func Key(habitID, month string) string {
	return habitID + "_" + month
}

// HabitIDFromKey extracts the habit id portion of a BitLog key.
func HabitIDFromKey(key string) string {
	if i := strings.LastIndex(key, "_"); i >= 0 {
		return key[:i]
	}
	return key
}

// Store is the in-memory map of BitLog keys to their packed integer value.
// Ordered iteration (via Keys) keeps serialization and sync shard contents
// reproducible across runs, which matters for tests and for diffing synced
// blobs.
type Store struct {
	entries *orderedmap.OrderedMap[string, *big.Int]
}

func NewStore() *Store {
	return &Store{entries: orderedmap.New[string, *big.Int]()}
}

func (s *Store) get(key string) *big.Int {
	if v, ok := s.entries.Get(key); ok {
		return v
	}
	return nil
}

func (s *Store) ensure(key string) *big.Int {
	if v := s.get(key); v != nil {
		return v
	}
	v := new(big.Int)
	s.entries.Set(key, v)
	return v
}

// Keys returns BitLog keys in insertion order.
func (s *Store) Keys() []string {
	out := make([]string, 0, s.entries.Len())
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func (s *Store) Len() int { return s.entries.Len() }

// HasMonth reports whether any entry exists for habitID's month covering
// date, which lets callers distinguish "explicitly null" from "no record at
// all" for the legacy-fallback read path (spec §4.1).
func (s *Store) HasMonth(habitID string, date string) bool {
	return s.get(Key(habitID, month(date))) != nil
}

// GetStatus returns the status stored for (habitID, date, t), or StatusNull
// if no record exists for that month at all.
func (s *Store) GetStatus(habitID string, date string, t Time) (Status, error) {
	day, err := dayOfMonth(date)
	if err != nil {
		return StatusNull, err
	}
	key := Key(habitID, month(date))
	v := s.get(key)
	if v == nil {
		return StatusNull, nil
	}
	pos := bitPos(day, t.Offset())
	shifted := new(big.Int).Rsh(v, uint(pos))
	return Status(shifted.Uint64() & slotMask), nil
}

// SetStatus clears the 3-bit slot for (habitID, date, t) and ORs in status,
// leaving every other slot untouched.
func (s *Store) SetStatus(habitID string, date string, t Time, status Status) error {
	day, err := dayOfMonth(date)
	if err != nil {
		return err
	}
	key := Key(habitID, month(date))
	v := s.ensure(key)
	pos := uint(bitPos(day, t.Offset()))

	clearMask := new(big.Int).Lsh(big.NewInt(slotMask), pos)
	clearMask.Not(clearMask)
	v.And(v, clearMask)

	set := new(big.Int).Lsh(big.NewInt(int64(status)&slotMask), pos)
	v.Or(v, set)
	return nil
}

// PruneLogsForHabit removes every entry whose key begins with habitID+"_".
func (s *Store) PruneLogsForHabit(habitID string) {
	prefix := habitID + "_"
	for _, k := range s.Keys() {
		if strings.HasPrefix(k, prefix) {
			s.entries.Delete(k)
		}
	}
}

// PackBinaryLogs returns a snapshot of the store as little-endian byte
// buffers, one per month key, trimmed to the minimal width that fits all set
// bits (per spec §4.1/§6).
func (s *Store) PackBinaryLogs() map[string][]byte {
	out := make(map[string][]byte, s.entries.Len())
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = littleEndianBytes(pair.Value)
	}
	return out
}

// UnpackBinaryLogs restores the store in place from little-endian byte
// buffers keyed by BitLog key, replacing any existing contents.
func (s *Store) UnpackBinaryLogs(blobs map[string][]byte) {
	s.entries = orderedmap.New[string, *big.Int]()
	for _, k := range sortedKeys(blobs) {
		s.entries.Set(k, fromLittleEndianBytes(blobs[k]))
	}
}

// SerializeLogsForCloud renders the store as an ordered list of
// [key, hexString] pairs for export/import and sync shard payloads.
func (s *Store) SerializeLogsForCloud() [][2]string {
	out := make([][2]string, 0, s.entries.Len())
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, [2]string{pair.Key, hex.EncodeToString(littleEndianBytes(pair.Value))})
	}
	return out
}

// DeserializeLogsFromCloud is the inverse of SerializeLogsForCloud. It
// replaces the store's entire contents.
func (s *Store) DeserializeLogsFromCloud(pairs [][2]string) error {
	s.entries = orderedmap.New[string, *big.Int]()
	return s.MergeFromCloud(pairs)
}

// MergeFromCloud decodes pairs and sets them into the store without
// clearing existing entries first, so a sync client can fold in several
// per-month shards one at a time.
func (s *Store) MergeFromCloud(pairs [][2]string) error {
	for _, pair := range pairs {
		key, hexVal := pair[0], pair[1]
		b, err := hex.DecodeString(hexVal)
		if err != nil {
			return fmt.Errorf("bitlog: invalid hex for key %q: %w", key, err)
		}
		s.entries.Set(key, fromLittleEndianBytes(b))
	}
	return nil
}

// Clone returns a deep, independent copy of the store.
func (s *Store) Clone() *Store {
	out := NewStore()
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		out.entries.Set(pair.Key, new(big.Int).Set(pair.Value))
	}
	return out
}

// Raw returns the packed integer for a key, or nil if absent. Exposed for
// migrations that need to reinterpret bit layouts directly.
func (s *Store) Raw(key string) *big.Int { return s.get(key) }

// SetRaw installs v verbatim under key, used by migrations rebuilding a store
// at a new bit width.
func (s *Store) SetRaw(key string, v *big.Int) { s.entries.Set(key, v) }

func littleEndianBytes(v *big.Int) []byte {
	if v.Sign() == 0 {
		return nil
	}
	be := v.Bytes() // big-endian, minimal width
	le := make([]byte, len(be))
	for i, b := range be {
		le[len(be)-1-i] = b
	}
	return le
}

func fromLittleEndianBytes(le []byte) *big.Int {
	be := make([]byte, len(le))
	for i, b := range le {
		be[len(le)-1-i] = b
	}
	return new(big.Int).SetBytes(be)
}

func month(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

func dayOfMonth(date string) (int, error) {
	if len(date) != 10 {
		return 0, fmt.Errorf("bitlog: invalid date %q", date)
	}
	day := 0
	for _, c := range date[8:10] {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("bitlog: invalid date %q", date)
		}
		day = day*10 + int(c-'0')
	}
	if day < 1 || day > 31 {
		return 0, fmt.Errorf("bitlog: day out of range in %q", date)
	}
	return day, nil
}

func sortedKeys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	// Deterministic order for reproducibility even though the source map is
	// unordered; plain insertion sort is fine at this size.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
