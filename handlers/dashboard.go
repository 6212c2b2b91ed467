// ABOUTME: dashboard MCP tool
// ABOUTME: Funnel, staleness, and role-mismatch aggregates over a record source
package handlers

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/crmpulse/normalize"
	"github.com/harperreed/crmpulse/viz"
)

type DashboardHandlers struct {
	source *Source
	vocab  *normalize.Vocabulary
	now    func() time.Time
}

func NewDashboardHandlers(source *Source, vocab *normalize.Vocabulary) *DashboardHandlers {
	return &DashboardHandlers{source: source, vocab: vocab, now: time.Now}
}

type DashboardInput struct {
	Source    string `json:"source,omitempty" jsonschema:"Snapshot id (default: the cached collection)"`
	StaleDays int    `json:"stale_days,omitempty" jsonschema:"Days without changes before a deal or open task is stale (default 14)"`
}

type DashboardOutput struct {
	Funnel      []viz.StageStats   `json:"funnel"`
	TotalDeals  int                `json:"total_deals"`
	TotalAmount float64            `json:"total_amount"`
	TotalTasks  int                `json:"total_tasks"`
	OpenTasks   int                `json:"open_tasks"`
	StaleDays   int                `json:"stale_days"`
	StaleDeals  []viz.StaleDeal    `json:"stale_deals"`
	StaleTasks  []viz.StaleTask    `json:"stale_tasks"`
	Mismatches  []viz.RoleMismatch `json:"mismatches"`
}

func (h *DashboardHandlers) Dashboard(ctx context.Context, _ *mcp.CallToolRequest, input DashboardInput) (*mcp.CallToolResult, DashboardOutput, error) {
	recs, err := h.source.Load(ctx, input.Source)
	if err != nil {
		return nil, DashboardOutput{}, err
	}

	stats := viz.GenerateDashboardStats(recs.Deals, recs.Tasks, h.vocab, h.now(), input.StaleDays)
	return nil, DashboardOutput{
		Funnel:      nonNil(stats.Funnel),
		TotalDeals:  stats.TotalDeals,
		TotalAmount: stats.TotalAmount,
		TotalTasks:  stats.TotalTasks,
		OpenTasks:   stats.OpenTasks,
		StaleDays:   stats.StaleDays,
		StaleDeals:  nonNil(stats.StaleDeals),
		StaleTasks:  nonNil(stats.StaleTasks),
		Mismatches:  nonNil(stats.Mismatches),
	}, nil
}

// nonNil keeps empty lists as [] in tool output.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
