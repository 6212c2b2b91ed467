// ABOUTME: Compares two snapshots of the same record population
// ABOUTME: Produces per-category deltas, added/removed sets, and deal stage transitions
package diff

import (
	"sort"

	"github.com/harperreed/crmpulse/models"
)

// DealComparison is the result of comparing two deal collections.
type DealComparison struct {
	OldCount           int                      `json:"oldCount"`
	NewCount           int                      `json:"newCount"`
	StageChanges       map[string]int           `json:"stageChanges"`
	DepartmentChanges  map[string]int           `json:"departmentChanges"`
	ResponsibleChanges map[string]int           `json:"responsibleChanges"`
	Added              []models.Deal            `json:"added"`
	Removed            []models.Deal            `json:"removed"`
	Transitions        []models.StageTransition `json:"transitions"`
}

// TaskComparison is the result of comparing two task collections.
type TaskComparison struct {
	OldCount        int            `json:"oldCount"`
	NewCount        int            `json:"newCount"`
	StatusChanges   map[string]int `json:"statusChanges"`
	AssigneeChanges map[string]int `json:"assigneeChanges"`
	CreatorChanges  map[string]int `json:"creatorChanges"`
	Added           []models.Task  `json:"added"`
	Removed         []models.Task  `json:"removed"`
}

// CompareDeals diffs two deal collections.
func CompareDeals(old, cur []models.Deal) DealComparison {
	added, removed := AddedRemoved(old, cur)
	return DealComparison{
		OldCount:           len(old),
		NewCount:           len(cur),
		StageChanges:       Deltas(old, cur, func(d models.Deal) string { return d.Stage }),
		DepartmentChanges:  Deltas(old, cur, func(d models.Deal) string { return d.Department }),
		ResponsibleChanges: Deltas(old, cur, func(d models.Deal) string { return d.Responsible }),
		Added:              added,
		Removed:            removed,
		Transitions:        Transitions(old, cur),
	}
}

// CompareTasks diffs two task collections.
func CompareTasks(old, cur []models.Task) TaskComparison {
	added, removed := AddedRemoved(old, cur)
	return TaskComparison{
		OldCount:        len(old),
		NewCount:        len(cur),
		StatusChanges:   Deltas(old, cur, func(t models.Task) string { return t.Status }),
		AssigneeChanges: Deltas(old, cur, func(t models.Task) string { return t.Assignee }),
		CreatorChanges:  Deltas(old, cur, func(t models.Task) string { return t.Creator }),
		Added:           added,
		Removed:         removed,
	}
}

// Deltas counts category values on both sides and returns new minus old for
// every value seen on either side. Zero deltas are kept. Empty values are
// counted under the unknown label.
func Deltas[T any](old, cur []T, category func(T) string) map[string]int {
	count := func(records []T) map[string]int {
		out := make(map[string]int)
		for _, r := range records {
			key := category(r)
			if key == "" {
				key = models.UnknownLabel
			}
			out[key]++
		}
		return out
	}

	oldCounts, newCounts := count(old), count(cur)
	deltas := make(map[string]int, len(oldCounts)+len(newCounts))
	for k, n := range newCounts {
		deltas[k] = n - oldCounts[k]
	}
	for k, n := range oldCounts {
		if _, seen := newCounts[k]; !seen {
			deltas[k] = -n
		}
	}
	return deltas
}

// AddedRemoved returns records of cur whose key is absent from old, and
// records of old whose key is absent from cur. Keyless records are skipped.
func AddedRemoved[T models.Keyed](old, cur []T) (added, removed []T) {
	oldKeys := keySet(old)
	newKeys := keySet(cur)

	for _, r := range cur {
		if k := r.Key(); k != "" && !oldKeys[k] {
			added = append(added, r)
		}
	}
	for _, r := range old {
		if k := r.Key(); k != "" && !newKeys[k] {
			removed = append(removed, r)
		}
	}
	return added, removed
}

// Transitions lists deals present on both sides whose stage changed, in the
// order of the new collection. Context fields come from the new record.
func Transitions(old, cur []models.Deal) []models.StageTransition {
	oldStage := make(map[string]string, len(old))
	for _, d := range old {
		if d.DealID != "" {
			oldStage[d.DealID] = d.Stage
		}
	}

	var out []models.StageTransition
	seen := make(map[string]bool)
	for _, d := range cur {
		prev, ok := oldStage[d.DealID]
		if d.DealID == "" || !ok || prev == d.Stage || seen[d.DealID] {
			continue
		}
		seen[d.DealID] = true
		out = append(out, models.StageTransition{
			DealID:             d.DealID,
			OldStage:           prev,
			NewStage:           d.Stage,
			CurrentResponsible: d.Responsible,
			CurrentDepartment:  d.Department,
		})
	}
	return out
}

func keySet[T models.Keyed](records []T) map[string]bool {
	set := make(map[string]bool, len(records))
	for _, r := range records {
		if k := r.Key(); k != "" {
			set[k] = true
		}
	}
	return set
}

// DeltaEntry is one category delta.
type DeltaEntry struct {
	Key   string `json:"key"`
	Delta int    `json:"delta"`
}

// SortedDeltas orders deltas by absolute magnitude, largest first, then by key.
func SortedDeltas(deltas map[string]int) []DeltaEntry {
	out := make([]DeltaEntry, 0, len(deltas))
	for k, v := range deltas {
		out = append(out, DeltaEntry{Key: k, Delta: v})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := abs(out[i].Delta), abs(out[j].Delta)
		if ai != aj {
			return ai > aj
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// TransitionCounts groups transitions by their old and new stage.
func TransitionCounts(transitions []models.StageTransition) map[[2]string]int {
	out := make(map[[2]string]int)
	for _, tr := range transitions {
		out[[2]string{tr.OldStage, tr.NewStage}]++
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
