// ABOUTME: Assembles the MCP server from the tool, resource, and prompt handlers
// ABOUTME: Serves over stdio for desktop assistants
package handlers

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/crmpulse/collection"
	"github.com/harperreed/crmpulse/ingest"
	"github.com/harperreed/crmpulse/normalize"
	"github.com/harperreed/crmpulse/snapshot"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// Deps are the services the MCP server exposes.
type Deps struct {
	Importer  *ingest.Importer
	Cache     *collection.Cache
	Snapshots *snapshot.Service
	Vocab     *normalize.Vocabulary
}

// NewServer registers every tool, resource, and prompt.
func NewServer(deps Deps) *mcp.Server {
	source := &Source{Cache: deps.Cache, Snapshots: deps.Snapshots}

	importHandlers := NewImportHandlers(deps.Importer, deps.Cache, deps.Snapshots)
	snapshotHandlers := NewSnapshotHandlers(deps.Snapshots, source)
	schemaHandlers := NewSchemaHandlers(source)
	dashboardHandlers := NewDashboardHandlers(source, deps.Vocab)
	resourceHandlers := NewResourceHandlers(source)
	promptHandlers := NewPromptHandlers(source, deps.Vocab)
	vizHandlers := NewVizHandlers(source)

	server := mcp.NewServer(&mcp.Implementation{Name: "crmpulse", Version: Version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "import_csv",
		Description: "Import a CRM deal or task export (CSV/TSV, UTF-8 or Windows-1251) into the working collection",
	}, importHandlers.ImportCSV)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_snapshots",
		Description: "List stored weekly snapshots, newest first",
	}, snapshotHandlers.ListSnapshots)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "compare_snapshots",
		Description: "Compare two snapshots (or a snapshot and the working collection): deltas per stage, department, responsible, plus stage transitions",
	}, snapshotHandlers.CompareSnapshots)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_schema",
		Description: "Find fields missing from the hosted tables and suggest columns for them",
	}, schemaHandlers.AnalyzeSchema)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dashboard",
		Description: "Stage funnel with amounts, stale deals and tasks, and deals sitting at another department's stage",
	}, dashboardHandlers.Dashboard)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "transition_graph",
		Description: "GraphViz DOT source of deal stage transitions between two snapshots, edges weighted by deal count",
	}, vizHandlers.TransitionGraph)

	for _, r := range []struct{ name, desc string }{
		{"deals", "Working deal collection"},
		{"tasks", "Working task collection"},
		{"snapshots", "Stored snapshot summaries"},
	} {
		server.AddResource(&mcp.Resource{
			URI:         uriScheme + r.name,
			Name:        r.name,
			Description: r.desc,
			MIMEType:    "application/json",
		}, resourceHandlers.ReadResource)
	}
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "snapshots/{id}",
		Name:        "snapshot",
		Description: "A stored snapshot with its full deal and task payload",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	server.AddPrompt(&mcp.Prompt{
		Name:        "weekly-review",
		Description: "Review what changed in the pipeline between two snapshots",
		Arguments: []*mcp.PromptArgument{
			{Name: "old_id", Description: "Earlier snapshot id", Required: true},
			{Name: "new_id", Description: "Later snapshot id (default: the working collection)"},
		},
	}, promptHandlers.GetPrompt)
	server.AddPrompt(&mcp.Prompt{
		Name:        "pipeline-health",
		Description: "Assess funnel bottlenecks and stale work",
		Arguments: []*mcp.PromptArgument{
			{Name: "source", Description: "Snapshot id (default: the working collection)"},
		},
	}, promptHandlers.GetPrompt)

	return server
}
