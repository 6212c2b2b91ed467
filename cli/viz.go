// ABOUTME: viz subcommands
// ABOUTME: Renders the stage-transition graph between two record sets as DOT, SVG, or PNG
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/harperreed/crmpulse/diff"
	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/viz"
)

// VizCommand routes the viz subcommands.
func VizCommand(ctx context.Context, app *App, args []string) error {
	if len(args) == 0 || args[0] != "transitions" {
		return fmt.Errorf("usage: viz transitions <old> <new> [--output file]")
	}

	fs := flag.NewFlagSet("viz transitions", flag.ContinueOnError)
	output := fs.String("output", "", "Output file; .svg and .png are rendered, anything else is DOT (default: stdout)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: viz transitions [--output file] <old> <new>")
	}

	old, err := app.loadRecords(ctx, fs.Arg(0), models.KindDeals)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", fs.Arg(0), err)
	}
	cur, err := app.loadRecords(ctx, fs.Arg(1), models.KindDeals)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", fs.Arg(1), err)
	}

	transitions := diff.Transitions(old.Deals, cur.Deals)
	if *output == "" {
		return viz.WriteTransitionGraph(ctx, app.Out, transitions, viz.FormatDOT)
	}

	data, err := viz.TransitionGraph(ctx, transitions, viz.FormatFromPath(*output))
	if err != nil {
		return err
	}
	if err := os.WriteFile(*output, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", *output, err)
	}
	app.printf("✓ %d stage transitions written to %s\n", len(transitions), *output)
	return nil
}
