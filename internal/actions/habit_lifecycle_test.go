package actions_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/askesis/askesis/internal/actions"
	"github.com/askesis/askesis/internal/bitlog"
	"github.com/askesis/askesis/internal/cryptoworker"
	"github.com/askesis/askesis/internal/model"
	"github.com/askesis/askesis/internal/persistence"
)

// newTestContext builds an ActionContext over a fresh AppState backed by a
// real, file-based SQLite store in a temp directory, the same test-isolation
// idiom the teacher's internal/storage/sqlite test helpers use.
func newTestContext(t *testing.T) *actions.ActionContext {
	t.Helper()
	dir := t.TempDir()
	store, err := persistence.OpenKVStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("OpenKVStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	worker := cryptoworker.New(nil)
	pers := persistence.New(store, worker, nil)
	state := model.NewAppState()
	state.InitialSyncDone = true

	return actions.New(state, pers, nil, filepath.Join(dir, "test.lock"), nil)
}

func dailySchedule(name string) model.HabitSchedule {
	return model.HabitSchedule{
		Name:           name,
		Goal:           model.CheckGoal(),
		Times:          []bitlog.Time{bitlog.Morning},
		Frequency:      model.Daily(),
		ScheduleAnchor: "2025-01-01",
	}
}

func TestSaveHabitFromModalRejectsEmptyName(t *testing.T) {
	ac := newTestContext(t)
	_, err := ac.SaveHabitFromModal(context.Background(), nil, dailySchedule("   "), "2025-01-01")
	if err == nil {
		t.Fatal("expected validation error for a blank habit name")
	}
}

func TestSaveHabitFromModalRejectsDuplicateName(t *testing.T) {
	ac := newTestContext(t)
	_, err := ac.SaveHabitFromModal(context.Background(), nil, dailySchedule("Read"), "2025-01-01")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err = ac.SaveHabitFromModal(context.Background(), nil, dailySchedule("read"), "2025-01-02")
	if err == nil {
		t.Fatal("expected a case-insensitive duplicate name to be rejected")
	}
}

func TestPermanentDeletionThenResurrectionReusesTheSameHabit(t *testing.T) {
	ac := newTestContext(t)
	ctx := context.Background()

	id, err := ac.SaveHabitFromModal(ctx, nil, dailySchedule("Meditate"), "2025-01-01")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ac.Selectors().State.MonthlyLogs.SetStatus(id, "2025-01-02", bitlog.Morning, bitlog.StatusDone)

	if err := ac.RequestHabitPermanentDeletion(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	deleted := ac.State().HabitByID(id)
	if deleted == nil || !deleted.IsTombstone() {
		t.Fatalf("expected %q to be tombstoned", id)
	}
	if deleted.DeletedOn == nil || *deleted.DeletedOn != deleted.CreatedOn {
		t.Errorf("DeletedOn = %v, want CreatedOn %v", deleted.DeletedOn, deleted.CreatedOn)
	}
	if deleted.DeletedName != "Meditate" {
		t.Errorf("DeletedName = %q, want %q", deleted.DeletedName, "Meditate")
	}
	if ac.State().MonthlyLogs.HasMonth(id, "2025-01-02") {
		t.Error("BitLog entries should be pruned immediately on permanent deletion")
	}

	resurrectedID, err := ac.SaveHabitFromModal(ctx, nil, dailySchedule("Meditate"), "2025-03-01")
	if err != nil {
		t.Fatalf("resurrect: %v", err)
	}
	if resurrectedID != id {
		t.Errorf("resurrection should reuse habit id %q, got a new one %q", id, resurrectedID)
	}
	h := ac.State().HabitByID(id)
	if h.IsTombstone() {
		t.Error("resurrected habit should no longer be a tombstone")
	}
	if h.CurrentSchedule() == nil {
		t.Fatal("resurrected habit has no current schedule")
	}

	// Give the background archive purge goroutine a moment; it must not
	// resurrect anything or otherwise mutate state after resurrection.
	time.Sleep(20 * time.Millisecond)
	if h.IsTombstone() {
		t.Error("background purge should not re-tombstone a resurrected habit")
	}
	if h.LastModified == 0 {
		t.Error("resurrection should stamp the habit's per-habit LastModified for sync's merge tiebreak")
	}
}

func TestEndedHabitIsAResurrectionCandidate(t *testing.T) {
	ac := newTestContext(t)
	ctx := context.Background()

	id, err := ac.SaveHabitFromModal(ctx, nil, dailySchedule("Journal"), "2025-01-01")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := ac.RequestHabitEndingFromModal(ctx, id, "2025-02-01"); err != nil {
		t.Fatalf("end: %v", err)
	}
	ended := ac.State().HabitByID(id)
	if ended.IsTombstone() {
		t.Fatal("ending a habit must not tombstone it")
	}
	if ended.CurrentSchedule() != nil {
		t.Fatal("an ended habit should have no currently open schedule")
	}

	resurrectedID, err := ac.SaveHabitFromModal(ctx, nil, dailySchedule("Journal"), "2025-03-01")
	if err != nil {
		t.Fatalf("resurrect: %v", err)
	}
	if resurrectedID != id {
		t.Errorf("re-adding a habit matching an ended (not tombstoned) one should reuse its id %q, got %q", id, resurrectedID)
	}
	h := ac.State().HabitByID(id)
	if h.CurrentSchedule() == nil {
		t.Error("resurrected habit should have a current schedule again")
	}
}

func TestGraduatedHabitIsNotAResurrectionCandidate(t *testing.T) {
	ac := newTestContext(t)
	ctx := context.Background()

	id, err := ac.SaveHabitFromModal(ctx, nil, dailySchedule("Read"), "2025-01-01")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ac.RequestHabitEndingFromModal(ctx, id, "2025-02-01"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := ac.GraduateHabit(ctx, id, "2025-02-01"); err != nil {
		t.Fatalf("graduate: %v", err)
	}

	newID, err := ac.SaveHabitFromModal(ctx, nil, dailySchedule("Read"), "2025-03-01")
	if err != nil {
		t.Fatalf("create after graduation: %v", err)
	}
	if newID == id {
		t.Error("a graduated habit must not be offered back as a resurrection candidate")
	}
}

func TestFutureScheduleChangeSupersedesAnAlreadyQueuedOne(t *testing.T) {
	ac := newTestContext(t)
	ctx := context.Background()

	id, err := ac.SaveHabitFromModal(ctx, nil, dailySchedule("Write"), "2025-01-01")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Queue a future change effective March 1.
	if _, err := ac.SaveHabitFromModal(ctx, &id, dailySchedule("Write daily"), "2025-03-01"); err != nil {
		t.Fatalf("first future edit: %v", err)
	}
	// Edit again, also effective March 1 — this should replace, not stack.
	if _, err := ac.SaveHabitFromModal(ctx, &id, dailySchedule("Write more"), "2025-03-01"); err != nil {
		t.Fatalf("second future edit: %v", err)
	}

	h := ac.State().HabitByID(id)
	count := 0
	for _, s := range h.ScheduleHistory {
		if s.StartDate == "2025-03-01" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one schedule entry starting 2025-03-01, got %d", count)
	}
	if h.CurrentSchedule().Name != "Write more" {
		t.Errorf("current schedule name = %q, want the latest edit to have replaced the queued one", h.CurrentSchedule().Name)
	}
}
