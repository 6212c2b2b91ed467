// ABOUTME: dashboard command
// ABOUTME: Prints the stage funnel, totals, and items needing attention
package cli

import (
	"context"
	"flag"
	"time"

	"github.com/harperreed/crmpulse/viz"
)

// DashboardCommand renders the dashboard for the working collections or a snapshot.
func DashboardCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	staleDays := fs.Int("stale-days", viz.DefaultStaleDays, "Days without changes before an item is stale")
	source := fs.String("source", "cache", "Snapshot id (default: working collection)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	recs, err := app.loadRecords(ctx, *source, "")
	if err != nil {
		return err
	}
	stats := viz.GenerateDashboardStats(recs.Deals, recs.Tasks, app.Vocab, time.Now(), *staleDays)
	app.printf("%s", viz.RenderDashboard(stats))
	return nil
}
