// ABOUTME: MCP server subcommand
// ABOUTME: Starts the MCP server for Claude Desktop integration
package cli

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/crmpulse/handlers"
	"github.com/harperreed/crmpulse/logging"
)

// MCPCommand serves the MCP tools on stdio until the client disconnects.
func MCPCommand(ctx context.Context, app *App) error {
	logging.Component("mcp").Info("starting MCP server", "version", handlers.Version)

	server := handlers.NewServer(handlers.Deps{
		Importer:  app.Importer,
		Cache:     app.Cache,
		Snapshots: app.Snapshots,
		Vocab:     app.Vocab,
	})
	return server.Run(ctx, &mcp.StdioTransport{})
}
