// ABOUTME: analyze_schema MCP tool
// ABOUTME: Reports fields missing from the hosted tables with suggested column DDL
package handlers

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/schema"
)

type SchemaHandlers struct {
	source *Source
}

func NewSchemaHandlers(source *Source) *SchemaHandlers {
	return &SchemaHandlers{source: source}
}

type AnalyzeSchemaInput struct {
	Kind   string `json:"kind,omitempty" jsonschema:"Record kind: deals (default) or tasks"`
	Source string `json:"source,omitempty" jsonschema:"Snapshot id to analyze (default: the cached collection)"`
}

type AnalyzeSchemaOutput struct {
	Table      string               `json:"table"`
	Total      int                  `json:"total"`
	Fields     []schema.FieldReport `json:"fields"`
	Statements []string             `json:"statements"`
}

func (h *SchemaHandlers) AnalyzeSchema(ctx context.Context, _ *mcp.CallToolRequest, input AnalyzeSchemaInput) (*mcp.CallToolResult, AnalyzeSchemaOutput, error) {
	kind, err := validKind(input.Kind)
	if err != nil {
		return nil, AnalyzeSchemaOutput{}, err
	}
	recs, err := h.source.Load(ctx, input.Source)
	if err != nil {
		return nil, AnalyzeSchemaOutput{}, err
	}

	var report schema.Report
	if kind == models.KindDeals {
		report = schema.AnalyzeDeals(recs.Deals)
	} else {
		report = schema.AnalyzeTasks(recs.Tasks)
	}

	fields := report.Fields
	if fields == nil {
		fields = []schema.FieldReport{}
	}
	statements := report.Statements()
	if statements == nil {
		statements = []string{}
	}
	return nil, AnalyzeSchemaOutput{
		Table:      schema.TableName(kind),
		Total:      report.Total,
		Fields:     fields,
		Statements: statements,
	}, nil
}
