// ABOUTME: list_snapshots and compare_snapshots MCP tools
// ABOUTME: Comparisons report category deltas, added/removed ids, and stage transitions
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/crmpulse/diff"
	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/snapshot"
)

type SnapshotHandlers struct {
	snapshots *snapshot.Service
	source    *Source
}

func NewSnapshotHandlers(snapshots *snapshot.Service, source *Source) *SnapshotHandlers {
	return &SnapshotHandlers{snapshots: snapshots, source: source}
}

type ListSnapshotsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of snapshots to return (default all)"`
}

type SnapshotInfo struct {
	ID         string `json:"id"`
	CreatedAt  string `json:"created_at"`
	Week       string `json:"week"`
	WeekStart  string `json:"week_start"`
	WeekEnd    string `json:"week_end"`
	DealsCount int    `json:"deals_count"`
	TasksCount int    `json:"tasks_count"`
}

type ListSnapshotsOutput struct {
	Snapshots []SnapshotInfo `json:"snapshots"`
	Count     int            `json:"count"`
}

func (h *SnapshotHandlers) ListSnapshots(ctx context.Context, _ *mcp.CallToolRequest, input ListSnapshotsInput) (*mcp.CallToolResult, ListSnapshotsOutput, error) {
	list, err := h.snapshots.List(ctx)
	if err != nil {
		return nil, ListSnapshotsOutput{}, fmt.Errorf("failed to list snapshots: %w", err)
	}
	if input.Limit > 0 && len(list) > input.Limit {
		list = list[:input.Limit]
	}

	out := ListSnapshotsOutput{Snapshots: make([]SnapshotInfo, 0, len(list)), Count: len(list)}
	for _, s := range list {
		out.Snapshots = append(out.Snapshots, snapshotInfo(s))
	}
	return nil, out, nil
}

func snapshotInfo(s models.SnapshotSummary) SnapshotInfo {
	info := SnapshotInfo{
		ID:         s.ID.String(),
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
		WeekStart:  s.WeekStart,
		WeekEnd:    s.WeekEnd,
		DealsCount: s.DealsCount,
		TasksCount: s.TasksCount,
	}
	if week, err := diff.ParseWeek(s.WeekStart); err == nil {
		info.Week = week.Label()
	}
	return info
}

type CompareSnapshotsInput struct {
	OldID string `json:"old_id" jsonschema:"Snapshot id of the earlier state (required)"`
	NewID string `json:"new_id,omitempty" jsonschema:"Snapshot id of the later state (default: the cached collection)"`
	Kind  string `json:"kind,omitempty" jsonschema:"Record kind: deals (default) or tasks"`
}

type DeltaInfo struct {
	Category string `json:"category"`
	Key      string `json:"key"`
	Delta    int    `json:"delta"`
}

type CompareSnapshotsOutput struct {
	Kind        string                   `json:"kind"`
	Old         string                   `json:"old"`
	New         string                   `json:"new"`
	OldCount    int                      `json:"old_count"`
	NewCount    int                      `json:"new_count"`
	Added       []string                 `json:"added"`
	Removed     []string                 `json:"removed"`
	Deltas      []DeltaInfo              `json:"deltas"`
	Transitions []models.StageTransition `json:"transitions,omitempty"`
}

func (h *SnapshotHandlers) CompareSnapshots(ctx context.Context, _ *mcp.CallToolRequest, input CompareSnapshotsInput) (*mcp.CallToolResult, CompareSnapshotsOutput, error) {
	if input.OldID == "" {
		return nil, CompareSnapshotsOutput{}, fmt.Errorf("old_id is required")
	}
	kind, err := validKind(input.Kind)
	if err != nil {
		return nil, CompareSnapshotsOutput{}, err
	}

	old, err := h.source.Load(ctx, input.OldID)
	if err != nil {
		return nil, CompareSnapshotsOutput{}, err
	}
	cur, err := h.source.Load(ctx, input.NewID)
	if err != nil {
		return nil, CompareSnapshotsOutput{}, err
	}

	out := CompareSnapshotsOutput{Kind: kind, Old: old.Label, New: cur.Label}
	switch kind {
	case models.KindDeals:
		cmp := diff.CompareDeals(old.Deals, cur.Deals)
		out.OldCount, out.NewCount = cmp.OldCount, cmp.NewCount
		out.Added, out.Removed = keys(cmp.Added), keys(cmp.Removed)
		out.Deltas = deltaInfos(map[string]map[string]int{
			"stage":       cmp.StageChanges,
			"department":  cmp.DepartmentChanges,
			"responsible": cmp.ResponsibleChanges,
		}, "stage", "department", "responsible")
		out.Transitions = cmp.Transitions
	case models.KindTasks:
		cmp := diff.CompareTasks(old.Tasks, cur.Tasks)
		out.OldCount, out.NewCount = cmp.OldCount, cmp.NewCount
		out.Added, out.Removed = keys(cmp.Added), keys(cmp.Removed)
		out.Deltas = deltaInfos(map[string]map[string]int{
			"status":   cmp.StatusChanges,
			"assignee": cmp.AssigneeChanges,
			"creator":  cmp.CreatorChanges,
		}, "status", "assignee", "creator")
	}
	return nil, out, nil
}

// deltaInfos flattens non-zero deltas in category order.
func deltaInfos(byCategory map[string]map[string]int, order ...string) []DeltaInfo {
	out := []DeltaInfo{}
	for _, category := range order {
		for _, e := range diff.SortedDeltas(byCategory[category]) {
			if e.Delta != 0 {
				out = append(out, DeltaInfo{Category: category, Key: e.Key, Delta: e.Delta})
			}
		}
	}
	return out
}

func keys[T models.Keyed](records []T) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Key())
	}
	return out
}
