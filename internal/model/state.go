package model

import "github.com/askesis/askesis/internal/bitlog"

// CurrentVersion is the schema version this codebase produces and expects.
// internal/migrations brings any older persisted blob up to this value.
const CurrentVersion = 10

// Celebration is a pending milestone notification (e.g. a streak threshold)
// queued by Actions for the UI collaborator to render and then consume.
type Celebration struct {
	HabitID string `json:"habitId"`
	Kind    string `json:"kind"`
	Value   int    `json:"value"`
}

// AppState is the single persistable root object (spec §3). MonthlyLogs is
// always present but is never written into the structured JSON (json:"-") —
// it is persisted separately as packed binary (spec §4.4, §6).
type AppState struct {
	Version int `json:"version"`

	Habits    []*Habit                                 `json:"habits"`
	DailyData map[Date]map[string]*HabitDayData         `json:"dailyData"`
	Archives  map[string][]byte                         `json:"archives"` // year -> compressed blob
	MonthlyLogs *bitlog.Store                           `json:"-"`

	// MonthlyLogsSerialized holds BitLog hex pairs only when a decoded JSON
	// blob carried them (a legacy or cloud-form record); migration re-inflates
	// them into MonthlyLogs and clears this field. The hot storage path always
	// uses the binary key instead (spec §6).
	MonthlyLogsSerialized [][2]string `json:"monthlyLogsSerialized,omitempty"`

	Language          string `json:"language"`
	OnboardingDone    bool   `json:"onboardingDone"`
	InitialSyncDone   bool   `json:"initialSyncDone"`

	AIDailyCount       int     `json:"aiDailyCount"`
	AIQuotaDate        Date    `json:"aiQuotaDate"`
	LastAIContextHash  *string `json:"lastAIContextHash"`

	// LastModified is the monotone-non-decreasing logical clock advanced by
	// every committed mutation (spec §4.7) and used as the sync LWW
	// tiebreaker (spec §4.6).
	LastModified int64 `json:"lastModified"`

	// PendingCelebrations queues milestone notices for the next
	// ConsumeAndFormatCelebrations call; not part of the durable snapshot.
	PendingCelebrations []Celebration `json:"-"`
}

// NewAppState returns a fresh, empty state at CurrentVersion.
func NewAppState() *AppState {
	return &AppState{
		Version:     CurrentVersion,
		Habits:      nil,
		DailyData:   make(map[Date]map[string]*HabitDayData),
		Archives:    make(map[string][]byte),
		MonthlyLogs: bitlog.NewStore(),
		Language:    "en",
	}
}

// HabitByID returns the habit with the given id, or nil.
func (s *AppState) HabitByID(id string) *Habit {
	for _, h := range s.Habits {
		if h.ID == id {
			return h
		}
	}
	return nil
}

// DayDataFor returns the overlay for (date, habitID), or nil if none exists.
func (s *AppState) DayDataFor(date Date, habitID string) *HabitDayData {
	byHabit, ok := s.DailyData[date]
	if !ok {
		return nil
	}
	return byHabit[habitID]
}

// EnsureDayData returns the overlay for (date, habitID), creating empty
// entries along the way if necessary.
func (s *AppState) EnsureDayData(date Date, habitID string) *HabitDayData {
	byHabit, ok := s.DailyData[date]
	if !ok {
		byHabit = make(map[string]*HabitDayData)
		s.DailyData[date] = byHabit
	}
	dd, ok := byHabit[habitID]
	if !ok {
		dd = &HabitDayData{Instances: make(map[bitlog.Time]Instance)}
		byHabit[habitID] = dd
	}
	return dd
}
