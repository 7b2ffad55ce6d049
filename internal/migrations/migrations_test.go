package migrations

import (
	"errors"
	"fmt"
	"testing"

	"github.com/askesis/askesis/internal/bitlog"
	"github.com/askesis/askesis/internal/model"
)

func TestMigrateStateEmptyBlobProducesFreshState(t *testing.T) {
	state, err := MigrateState(nil, model.CurrentVersion, nil)
	if err != nil {
		t.Fatalf("MigrateState(nil): %v", err)
	}
	if state.Version != model.CurrentVersion {
		t.Errorf("fresh state version = %d, want %d", state.Version, model.CurrentVersion)
	}
	if state.MonthlyLogs == nil || state.MonthlyLogs.Len() != 0 {
		t.Error("fresh state should have an empty, non-nil MonthlyLogs store")
	}
}

func TestMigrateStateAtCurrentVersionIsIdempotent(t *testing.T) {
	blob := []byte(`{"version":10,"habits":[],"dailyData":{},"archives":{},"language":"en"}`)
	first, err := MigrateState(blob, model.CurrentVersion, nil)
	if err != nil {
		t.Fatalf("first MigrateState: %v", err)
	}
	second, err := MigrateState(blob, model.CurrentVersion, nil)
	if err != nil {
		t.Fatalf("second MigrateState: %v", err)
	}
	if first.Version != second.Version {
		t.Errorf("idempotence: versions differ %d vs %d", first.Version, second.Version)
	}
}

func TestMigrateStateRejectsUnparseableTopLevelBlob(t *testing.T) {
	_, err := MigrateState([]byte(`not json at all`), model.CurrentVersion, nil)
	if err == nil {
		t.Fatal("expected an error for unparseable top-level blob")
	}
	if !errors.Is(err, ErrSchemaCorrupt) {
		t.Errorf("expected errors.Is(err, ErrSchemaCorrupt), got %v", err)
	}
}

func TestMigrateStateBitmaskWidenPreservesEveryBit(t *testing.T) {
	// v8 blob: 2-bit field, day 1 morning = 0b01 (done), day 2 evening = 0b11.
	blob := []byte(fmt.Sprintf(
		`{"version":8,"habits":[],"dailyData":{},"archives":{},"language":"en","monthlyLogs":{"h1_2025-03":"%s"}}`,
		oldPackedHex(),
	))

	state, err := MigrateState(blob, model.CurrentVersion, nil)
	if err != nil {
		t.Fatalf("MigrateState: %v", err)
	}

	gotMorning, err := state.MonthlyLogs.GetStatus("h1", "2025-03-01", 0)
	if err != nil {
		t.Fatal(err)
	}
	if gotMorning != 1 {
		t.Errorf("day1 morning after widen = %d, want 1 (done)", gotMorning)
	}
	gotEvening, err := state.MonthlyLogs.GetStatus("h1", "2025-03-02", 2)
	if err != nil {
		t.Fatal(err)
	}
	if gotEvening != 3 {
		t.Errorf("day2 evening after widen = %d, want 3 (done_plus)", gotEvening)
	}
}

// oldPackedHex hand-builds a v8-style 2-bit-per-slot little-endian hex value:
// day1 morning = 1 (bit offset 0), day2 evening = 3 (bit offset
// (2-1)*6 + 2*2 = 10).
func oldPackedHex() string {
	v := uint64(1) // day1 morning = 1 at offset 0
	v |= uint64(3) << 10
	// 2 bytes little-endian is enough to hold offset 10..11.
	return fmt.Sprintf("%02x%02x", byte(v), byte(v>>8))
}

func TestMigrateStateScheduleHistoryConsolidationChainsAncestry(t *testing.T) {
	blob := []byte(`{
		"version": 5,
		"habits": [
			{"id": "h1", "createdOn": "2025-01-01", "name": "Read"},
			{"id": "h2", "previousVersionId": "h1", "createdOn": "2025-02-01", "name": "Read more"}
		],
		"dailyData": {},
		"archives": {},
		"language": "en"
	}`)

	state, err := MigrateState(blob, model.CurrentVersion, nil)
	if err != nil {
		t.Fatalf("MigrateState: %v", err)
	}
	if len(state.Habits) != 1 {
		t.Fatalf("expected the two legacy versions to consolidate into one habit, got %d", len(state.Habits))
	}
	h := state.Habits[0]
	if h.ID != "h2" {
		t.Errorf("consolidated habit should keep the newest id, got %q", h.ID)
	}
	if len(h.ScheduleHistory) != 2 {
		t.Fatalf("expected 2 schedule history entries, got %d", len(h.ScheduleHistory))
	}
	if h.ScheduleHistory[0].EndDate == nil || *h.ScheduleHistory[0].EndDate != "2025-02-01" {
		t.Errorf("first entry should close exactly when the second began, got %+v", h.ScheduleHistory[0])
	}
	if h.ScheduleHistory[1].EndDate != nil {
		t.Error("the newest entry should remain open-ended")
	}
}

func TestMigrateStateScheduleHistoryConsolidationResolvesDailyDataCollisionsDeterministically(t *testing.T) {
	blob := []byte(`{
		"version": 5,
		"habits": [
			{"id": "h1", "createdOn": "2025-01-01", "name": "Read"},
			{"id": "h2", "previousVersionId": "h1", "createdOn": "2025-02-01", "name": "Read more"}
		],
		"dailyData": {
			"2025-03-01": {
				"h1": {"instances": {"0": {"note": "from h1"}}},
				"h2": {"instances": {"1": {"note": "from h2"}}}
			}
		},
		"archives": {},
		"language": "en"
	}`)

	for i := 0; i < 20; i++ {
		state, err := MigrateState(blob, model.CurrentVersion, nil)
		if err != nil {
			t.Fatalf("MigrateState: %v", err)
		}
		day := state.DayDataFor("2025-03-01", "h2")
		if day == nil {
			t.Fatalf("expected dailyData remapped onto the consolidated id h2, run %d", i)
		}
		if _, ok := day.Instances[bitlog.Morning]; !ok {
			t.Errorf("run %d: expected h1's instance to survive the merge into h2's day data, got %+v", i, day.Instances)
		}
		if _, ok := day.Instances[bitlog.Afternoon]; !ok {
			t.Errorf("run %d: expected h2's own instance to survive, got %+v", i, day.Instances)
		}
	}
}
