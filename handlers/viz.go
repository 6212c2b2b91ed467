// ABOUTME: GraphViz visualization MCP handlers
// ABOUTME: Provides the transition_graph tool: DOT source of stage moves between two sources
package handlers

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/crmpulse/diff"
	"github.com/harperreed/crmpulse/viz"
)

type VizHandlers struct {
	source *Source
}

func NewVizHandlers(source *Source) *VizHandlers {
	return &VizHandlers{source: source}
}

type TransitionGraphInput struct {
	OldID string `json:"old_id" jsonschema:"Snapshot id of the earlier state (required)"`
	NewID string `json:"new_id,omitempty" jsonschema:"Snapshot id of the later state (default: the cached collection)"`
}

type TransitionGraphOutput struct {
	Old             string `json:"old"`
	New             string `json:"new"`
	DOTSource       string `json:"dot_source"`
	TransitionCount int    `json:"transition_count"`
	EdgeCount       int    `json:"edge_count"`
}

func (h *VizHandlers) TransitionGraph(ctx context.Context, _ *mcp.CallToolRequest, input TransitionGraphInput) (*mcp.CallToolResult, TransitionGraphOutput, error) {
	if input.OldID == "" {
		return nil, TransitionGraphOutput{}, fmt.Errorf("old_id is required")
	}

	old, err := h.source.Load(ctx, input.OldID)
	if err != nil {
		return nil, TransitionGraphOutput{}, err
	}
	cur, err := h.source.Load(ctx, input.NewID)
	if err != nil {
		return nil, TransitionGraphOutput{}, err
	}

	transitions := diff.Transitions(old.Deals, cur.Deals)
	dot, err := viz.TransitionGraph(ctx, transitions, viz.FormatDOT)
	if err != nil {
		return nil, TransitionGraphOutput{}, fmt.Errorf("failed to generate graph: %w", err)
	}

	return nil, TransitionGraphOutput{
		Old:             old.Label,
		New:             cur.Label,
		DOTSource:       string(dot),
		TransitionCount: len(transitions),
		EdgeCount:       len(diff.TransitionCounts(transitions)),
	}, nil
}
