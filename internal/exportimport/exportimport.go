// Package exportimport implements the document format spec §6 defines for
// full-state backup and restore: the structured AppState JSON plus a
// monthlyLogsSerialized array of [key, hexString] pairs standing in for the
// BitLog store (which is otherwise excluded from JSON marshaling). A YAML
// sibling format is supplemented for human-editable backups (spec §12.1,
// SPEC_FULL.md).
package exportimport

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/askesis/askesis/internal/model"
)

// document mirrors model.AppState's durable shape for (de)serialization,
// substituting MonthlyLogsSerialized for the in-memory BitLog store the
// same way the hot-storage JSON shard does.
type document struct {
	Version int `json:"version" yaml:"version"`

	Habits    []*model.Habit                         `json:"habits" yaml:"habits"`
	DailyData map[model.Date]map[string]*model.HabitDayData `json:"dailyData" yaml:"dailyData"`
	Archives  map[string][]byte                       `json:"archives" yaml:"archives"`

	MonthlyLogsSerialized [][2]string `json:"monthlyLogsSerialized" yaml:"monthlyLogsSerialized"`

	Language        string `json:"language" yaml:"language"`
	OnboardingDone  bool   `json:"onboardingDone" yaml:"onboardingDone"`
	InitialSyncDone bool   `json:"initialSyncDone" yaml:"initialSyncDone"`

	AIDailyCount      int     `json:"aiDailyCount" yaml:"aiDailyCount"`
	AIQuotaDate       model.Date `json:"aiQuotaDate" yaml:"aiQuotaDate"`
	LastAIContextHash *string `json:"lastAIContextHash" yaml:"lastAIContextHash"`

	LastModified int64 `json:"lastModified" yaml:"lastModified"`
}

func toDocument(state *model.AppState) document {
	var logs [][2]string
	if state.MonthlyLogs != nil {
		logs = state.MonthlyLogs.SerializeLogsForCloud()
	}
	return document{
		Version:               state.Version,
		Habits:                sanitizeHabitsForExport(state.Habits),
		DailyData:             state.DailyData,
		Archives:              state.Archives,
		MonthlyLogsSerialized: logs,
		Language:              state.Language,
		OnboardingDone:        state.OnboardingDone,
		InitialSyncDone:       state.InitialSyncDone,
		AIDailyCount:          state.AIDailyCount,
		AIQuotaDate:           state.AIQuotaDate,
		LastAIContextHash:     state.LastAIContextHash,
		LastModified:          state.LastModified,
	}
}

func fromDocument(doc document) (*model.AppState, error) {
	state := model.NewAppState()
	state.Version = doc.Version
	state.Habits = sanitizeHabitsOnImport(doc.Habits)
	state.DailyData = doc.DailyData
	if state.DailyData == nil {
		state.DailyData = map[model.Date]map[string]*model.HabitDayData{}
	}
	state.Archives = doc.Archives
	if state.Archives == nil {
		state.Archives = map[string][]byte{}
	}
	state.Language = doc.Language
	state.OnboardingDone = doc.OnboardingDone
	state.InitialSyncDone = doc.InitialSyncDone
	state.AIDailyCount = doc.AIDailyCount
	state.AIQuotaDate = doc.AIQuotaDate
	state.LastAIContextHash = doc.LastAIContextHash
	state.LastModified = doc.LastModified

	if err := state.MonthlyLogs.DeserializeLogsFromCloud(doc.MonthlyLogsSerialized); err != nil {
		return nil, fmt.Errorf("exportimport: re-inflate monthlyLogs: %w", err)
	}
	return state, nil
}

// ExportJSON renders state as the canonical backup document.
func ExportJSON(state *model.AppState) ([]byte, error) {
	return json.MarshalIndent(toDocument(state), "", "  ")
}

// ImportJSON parses a JSON backup document produced by ExportJSON (or the
// app's own hot-storage JSON shard, which shares the same shape) back into
// an AppState. The caller is responsible for running it through
// internal/migrations if Version is behind current.
func ImportJSON(data []byte) (*model.AppState, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("exportimport: decode json: %w", err)
	}
	return fromDocument(doc)
}

// ExportYAML renders the same logical document as ExportJSON in YAML, for
// human-editable backups (spec §12.1 supplement — additive, not a
// replacement for the canonical JSON format).
func ExportYAML(state *model.AppState) ([]byte, error) {
	return yaml.Marshal(toDocument(state))
}

// ImportYAML parses a YAML sibling document produced by ExportYAML.
func ImportYAML(data []byte) (*model.AppState, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("exportimport: decode yaml: %w", err)
	}
	return fromDocument(doc)
}

// sentinelIcon replaces an SVG icon string that fails validation on import
// (spec §6).
const sentinelIcon = "�"

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{3,8}$`)

// sanitizeHabitsForExport is the identity function today — export never
// needs to repair data, only import does — but is kept as the export-side
// counterpart so a future outbound validation rule has an obvious home.
func sanitizeHabitsForExport(habits []*model.Habit) []*model.Habit { return habits }

// sanitizeHabitsOnImport enforces spec §6's import-time repair rules: an
// SVG icon must start with "<svg" or is replaced with a sentinel character,
// and a color must be '#' followed by 3 to 8 hex digits or is reset to empty.
func sanitizeHabitsOnImport(habits []*model.Habit) []*model.Habit {
	for _, h := range habits {
		for i := range h.ScheduleHistory {
			s := &h.ScheduleHistory[i]
			if s.Icon != "" && !strings.HasPrefix(strings.TrimSpace(s.Icon), "<svg") {
				s.Icon = sentinelIcon
			}
			if s.Color != "" && !colorPattern.MatchString(s.Color) {
				s.Color = ""
			}
		}
	}
	return habits
}
