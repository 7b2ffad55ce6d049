package exportimport

import (
	"testing"

	"github.com/askesis/askesis/internal/bitlog"
	"github.com/askesis/askesis/internal/model"
)

func sampleState() *model.AppState {
	state := model.NewAppState()
	state.Language = "en"
	state.LastModified = 42
	state.Habits = []*model.Habit{
		{
			ID:        "h1",
			CreatedOn: "2025-01-01",
			ScheduleHistory: []model.HabitSchedule{{
				StartDate: "2025-01-01",
				Name:      "Read",
				Icon:      "<svg viewBox=\"0 0 1 1\"></svg>",
				Color:     "#336699",
				Goal:      model.CheckGoal(),
				Times:     []bitlog.Time{bitlog.Morning},
				Frequency: model.Daily(),
			}},
		},
	}
	state.MonthlyLogs.SetStatus("h1", "2025-01-02", bitlog.Morning, bitlog.StatusDone)
	return state
}

func TestExportImportJSONRoundTrip(t *testing.T) {
	state := sampleState()
	data, err := ExportJSON(state)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	got, err := ImportJSON(data)
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if len(got.Habits) != 1 || got.Habits[0].ID != "h1" {
		t.Fatalf("habits did not round-trip: %+v", got.Habits)
	}
	status, err := got.MonthlyLogs.GetStatus("h1", "2025-01-02", bitlog.Morning)
	if err != nil {
		t.Fatal(err)
	}
	if status != bitlog.StatusDone {
		t.Errorf("BitLog entry did not survive JSON round trip, got %s", status)
	}
	if got.LastModified != 42 {
		t.Errorf("LastModified = %d, want 42", got.LastModified)
	}
}

func TestExportImportYAMLRoundTrip(t *testing.T) {
	state := sampleState()
	data, err := ExportYAML(state)
	if err != nil {
		t.Fatalf("ExportYAML: %v", err)
	}
	got, err := ImportYAML(data)
	if err != nil {
		t.Fatalf("ImportYAML: %v", err)
	}
	if len(got.Habits) != 1 || got.Habits[0].ScheduleHistory[0].Name != "Read" {
		t.Fatalf("habit did not survive YAML round trip: %+v", got.Habits)
	}
	status, err := got.MonthlyLogs.GetStatus("h1", "2025-01-02", bitlog.Morning)
	if err != nil {
		t.Fatal(err)
	}
	if status != bitlog.StatusDone {
		t.Errorf("BitLog entry did not survive YAML round trip, got %s", status)
	}
}

func TestImportRejectsMalformedJSON(t *testing.T) {
	if _, err := ImportJSON([]byte(`not json`)); err == nil {
		t.Fatal("expected an error decoding malformed JSON")
	}
}

func TestImportSanitizesBadIconToSentinel(t *testing.T) {
	state := sampleState()
	state.Habits[0].ScheduleHistory[0].Icon = "javascript:alert(1)"
	data, err := ExportJSON(state)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ImportJSON(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Habits[0].ScheduleHistory[0].Icon != sentinelIcon {
		t.Errorf("icon = %q, want sentinel replacement", got.Habits[0].ScheduleHistory[0].Icon)
	}
}

func TestImportResetsMalformedColorToEmpty(t *testing.T) {
	state := sampleState()
	state.Habits[0].ScheduleHistory[0].Color = "not-a-color"
	data, err := ExportJSON(state)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ImportJSON(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Habits[0].ScheduleHistory[0].Color != "" {
		t.Errorf("color = %q, want reset to empty", got.Habits[0].ScheduleHistory[0].Color)
	}
}

func TestImportAcceptsValidShortHexColor(t *testing.T) {
	state := sampleState()
	state.Habits[0].ScheduleHistory[0].Color = "#fff"
	data, err := ExportJSON(state)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ImportJSON(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Habits[0].ScheduleHistory[0].Color != "#fff" {
		t.Errorf("valid short hex color should survive import unchanged, got %q", got.Habits[0].ScheduleHistory[0].Color)
	}
}

func TestImportRejectsMalformedBitLogHex(t *testing.T) {
	data := []byte(`{"version":10,"habits":[],"dailyData":{},"archives":{},"language":"en","monthlyLogsSerialized":[["h1_2025-01","not-hex"]]}`)
	if _, err := ImportJSON(data); err == nil {
		t.Fatal("expected DeserializeLogsFromCloud to reject a malformed hex shard")
	}
}
