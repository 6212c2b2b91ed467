// ABOUTME: compare command
// ABOUTME: Prints category deltas, added/removed ids, and stage transitions between two record sets
package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/harperreed/crmpulse/diff"
	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/viz"
)

// CompareCommand diffs two snapshots, CSV files, or the working collections.
func CompareCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	kind := fs.String("kind", models.KindDeals, "Record kind (deals, tasks)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: compare [--kind deals|tasks] <old> <new>")
	}

	old, err := app.loadRecords(ctx, fs.Arg(0), *kind)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", fs.Arg(0), err)
	}
	cur, err := app.loadRecords(ctx, fs.Arg(1), *kind)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", fs.Arg(1), err)
	}

	app.printf("%s → %s\n\n", old.Label, cur.Label)
	switch *kind {
	case models.KindDeals:
		app.printf("%s", viz.RenderDealComparison(diff.CompareDeals(old.Deals, cur.Deals)))
	case models.KindTasks:
		app.printf("%s", viz.RenderTaskComparison(diff.CompareTasks(old.Tasks, cur.Tasks)))
	default:
		return fmt.Errorf("invalid --kind %q (valid: deals, tasks)", *kind)
	}
	return nil
}
