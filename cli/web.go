// ABOUTME: web command
// ABOUTME: Serves the read-only dashboard until interrupted
package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/harperreed/crmpulse/handlers"
	"github.com/harperreed/crmpulse/web"
)

// WebCommand starts the web dashboard.
func WebCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("web", flag.ContinueOnError)
	port := fs.Int("port", 8080, "Port to listen on")
	if err := fs.Parse(args); err != nil {
		return err
	}

	server, err := web.NewServer(&handlers.Source{Cache: app.Cache, Snapshots: app.Snapshots}, app.Vocab)
	if err != nil {
		return err
	}
	app.printf("✓ Dashboard at http://localhost:%d (Ctrl+C to stop)\n", *port)
	return server.Start(ctx, fmt.Sprintf(":%d", *port))
}
