// ABOUTME: MCP prompt templates for weekly pipeline reviews
// ABOUTME: Prompts embed a rendered comparison or dashboard so the model works from real numbers
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/crmpulse/diff"
	"github.com/harperreed/crmpulse/normalize"
	"github.com/harperreed/crmpulse/viz"
)

type PromptHandlers struct {
	source *Source
	vocab  *normalize.Vocabulary
}

func NewPromptHandlers(source *Source, vocab *normalize.Vocabulary) *PromptHandlers {
	return &PromptHandlers{source: source, vocab: vocab}
}

// GetPrompt builds the named prompt.
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	switch request.Params.Name {
	case "weekly-review":
		return h.weeklyReview(ctx, request.Params.Arguments)
	case "pipeline-health":
		return h.pipelineHealth(ctx, request.Params.Arguments)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", request.Params.Name)
	}
}

func (h *PromptHandlers) weeklyReview(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	oldID, ok := args["old_id"]
	if !ok || oldID == "" {
		return nil, fmt.Errorf("old_id is required")
	}
	old, err := h.source.Load(ctx, oldID)
	if err != nil {
		return nil, err
	}
	cur, err := h.source.Load(ctx, args["new_id"])
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	text.WriteString("Here is how the sales pipeline changed between two snapshots.\n\n")
	text.WriteString(viz.RenderDealComparison(diff.CompareDeals(old.Deals, cur.Deals)))
	text.WriteString("\n")
	text.WriteString(viz.RenderTaskComparison(diff.CompareTasks(old.Tasks, cur.Tasks)))
	text.WriteString("\nPlease provide:\n")
	text.WriteString("1. The most important movements and who drove them\n")
	text.WriteString("2. Deals that moved backwards or were removed\n")
	text.WriteString("3. Questions to raise at the weekly meeting")

	return userPrompt(fmt.Sprintf("Weekly review: %s → %s", old.Label, cur.Label), text.String()), nil
}

func (h *PromptHandlers) pipelineHealth(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	recs, err := h.source.Load(ctx, args["source"])
	if err != nil {
		return nil, err
	}
	stats := viz.GenerateDashboardStats(recs.Deals, recs.Tasks, h.vocab, time.Now(), 0)

	var text strings.Builder
	text.WriteString("Here is the current state of the sales pipeline.\n\n")
	text.WriteString(viz.RenderDashboard(stats))
	text.WriteString("\nPlease provide:\n")
	text.WriteString("1. Bottlenecks in the funnel\n")
	text.WriteString("2. Stale deals and tasks worth chasing first\n")
	text.WriteString("3. Deals that should be handed to another department")

	return userPrompt(fmt.Sprintf("Pipeline health: %s", recs.Label), text.String()), nil
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: text}},
		},
	}
}
