package migrations

import (
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/askesis/askesis/internal/bitlog"
	"github.com/askesis/askesis/internal/model"
)

// legacyHabit is the pre-v6 shape: one record per schedule edit, chained to
// its ancestor via PreviousVersionID.
type legacyHabit struct {
	ID                string          `json:"id"`
	PreviousVersionID string          `json:"previousVersionId,omitempty"`
	CreatedOn         model.Date      `json:"createdOn"`
	EndedOn           *model.Date     `json:"endedOn,omitempty"`
	Name              string          `json:"name,omitempty"`
	NameKey           string          `json:"nameKey,omitempty"`
	Icon              string          `json:"icon"`
	Color             string          `json:"color"`
	Goal              model.Goal      `json:"goal"`
	Times             []bitlog.Time   `json:"times"`
	Frequency         model.Frequency `json:"frequency"`
	ScheduleAnchor    model.Date      `json:"scheduleAnchor"`
	DeletedOn         *model.Date     `json:"deletedOn,omitempty"`
	DeletedName       string          `json:"deletedName,omitempty"`
	GraduatedOn       *model.Date     `json:"graduatedOn,omitempty"`
}

// applyScheduleHistoryConsolidation treats pre-v6 habit records as nodes of
// an undirected graph (edge = PreviousVersionID) and merges each connected
// component into one v6 Habit whose ScheduleHistory is the chain of its
// member versions (spec §4.2). BFS, not recursion, per spec §9 — some
// ancestry chains are long.
func applyScheduleHistoryConsolidation(blob []byte, log *slog.Logger) ([]byte, error) {
	rawHabits := gjson.GetBytes(blob, "habits")
	if !rawHabits.Exists() || !rawHabits.IsArray() {
		return setVersion(blob, 6)
	}

	var legacy []legacyHabit
	if err := json.Unmarshal([]byte(rawHabits.Raw), &legacy); err != nil {
		return nil, err
	}

	byID := make(map[string]*legacyHabit, len(legacy))
	for i := range legacy {
		byID[legacy[i].ID] = &legacy[i]
	}

	adjacency := make(map[string][]string)
	for i := range legacy {
		h := &legacy[i]
		if h.PreviousVersionID == "" {
			continue
		}
		if _, ok := byID[h.PreviousVersionID]; !ok {
			log.Warn("migrations: v6 habit references missing previousVersionId", "habit", h.ID, "missing", h.PreviousVersionID)
			continue
		}
		adjacency[h.ID] = append(adjacency[h.ID], h.PreviousVersionID)
		adjacency[h.PreviousVersionID] = append(adjacency[h.PreviousVersionID], h.ID)
	}

	visited := make(map[string]bool, len(legacy))
	remap := make(map[string]string) // old id -> consolidated id
	// rank orders members within their own component by CreatedOn ascending,
	// the same order applyScheduleHistoryConsolidation sorts them into below.
	// remapDailyData uses it to resolve same-date collisions deterministically
	// instead of ranging over a Go map.
	rank := make(map[string]int, len(legacy))

	consolidated := make([]*model.Habit, 0, len(legacy))

	for i := range legacy {
		root := legacy[i].ID
		if visited[root] {
			continue
		}
		component := bfsComponent(root, adjacency, visited)

		members := make([]*legacyHabit, 0, len(component))
		for _, id := range component {
			members = append(members, byID[id])
		}
		sort.SliceStable(members, func(a, b int) bool {
			return members[a].CreatedOn < members[b].CreatedOn
		})

		newest := members[len(members)-1]
		consolidatedID := newest.ID
		for idx, m := range members {
			remap[m.ID] = consolidatedID
			rank[m.ID] = idx
		}

		habit := &model.Habit{
			ID:          consolidatedID,
			CreatedOn:   members[0].CreatedOn,
			DeletedOn:   newest.DeletedOn,
			DeletedName: newest.DeletedName,
			GraduatedOn: newest.GraduatedOn,
		}

		for idx, m := range members {
			var endDate *model.Date
			if idx+1 < len(members) {
				d := members[idx+1].CreatedOn
				endDate = &d
			} else {
				endDate = m.EndedOn
			}
			habit.ScheduleHistory = append(habit.ScheduleHistory, model.HabitSchedule{
				StartDate:      m.CreatedOn,
				EndDate:        endDate,
				Name:           m.Name,
				NameKey:        m.NameKey,
				Icon:           m.Icon,
				Color:          m.Color,
				Goal:           m.Goal,
				Times:          m.Times,
				Frequency:      m.Frequency,
				ScheduleAnchor: m.ScheduleAnchor,
			})
		}

		consolidated = append(consolidated, habit)
	}

	out, err := sjson.SetBytes(blob, "habits", consolidated)
	if err != nil {
		return nil, err
	}

	out, err = remapDailyData(out, remap, rank, log)
	if err != nil {
		return nil, err
	}

	return setVersion(out, 6)
}

// bfsComponent returns every node reachable from root via adjacency,
// marking each visited. Iterative (queue-based), not recursive.
func bfsComponent(root string, adjacency map[string][]string, visited map[string]bool) []string {
	queue := []string{root}
	visited[root] = true
	var component []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		component = append(component, cur)
		for _, next := range adjacency[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return component
}

// remapDailyData rewrites every dailyData[date][habitID] entry keyed by a
// superseded id onto its consolidated id, merging Instances with the
// later-processed (newer-version) record winning on collision. Collisions
// are resolved by walking each date's habit ids in rank order (the same
// CreatedOn-ascending order applyScheduleHistoryConsolidation sorted a
// component's members into) rather than ranging over the dailyData map
// directly, whose iteration order Go randomizes per run.
func remapDailyData(blob []byte, remap map[string]string, rank map[string]int, log *slog.Logger) ([]byte, error) {
	raw := gjson.GetBytes(blob, "dailyData")
	if !raw.Exists() || !raw.IsObject() {
		return blob, nil
	}

	var dailyData map[string]map[string]*model.HabitDayData
	if err := json.Unmarshal([]byte(raw.Raw), &dailyData); err != nil {
		return nil, err
	}

	for date, byHabit := range dailyData {
		habitIDs := make([]string, 0, len(byHabit))
		for habitID := range byHabit {
			habitIDs = append(habitIDs, habitID)
		}
		sort.SliceStable(habitIDs, func(a, b int) bool {
			return rank[habitIDs[a]] < rank[habitIDs[b]]
		})

		merged := make(map[string]*model.HabitDayData, len(byHabit))
		for _, habitID := range habitIDs {
			dd := byHabit[habitID]
			target, ok := remap[habitID]
			if !ok {
				target = habitID
			}
			existing, ok := merged[target]
			if !ok {
				merged[target] = dd
				continue
			}
			merged[target] = mergeDayData(existing, dd)
		}
		dailyData[date] = merged
	}

	return sjson.SetBytes(blob, "dailyData", dailyData)
}

func mergeDayData(base, incoming *model.HabitDayData) *model.HabitDayData {
	if incoming.DailySchedule != nil {
		base.DailySchedule = incoming.DailySchedule
	}
	if base.Instances == nil {
		base.Instances = make(map[bitlog.Time]model.Instance)
	}
	for t, inst := range incoming.Instances {
		base.Instances[t] = inst
	}
	return base
}
