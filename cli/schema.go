// ABOUTME: schema analyze command
// ABOUTME: Reports fields missing from the hosted tables and can apply the suggested columns
package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/schema"
)

// SchemaCommand routes the schema subcommands.
func SchemaCommand(ctx context.Context, app *App, args []string) error {
	if len(args) == 0 || args[0] != "analyze" {
		return fmt.Errorf("usage: schema analyze --table deals|tasks [--source id] [--apply]")
	}

	fs := flag.NewFlagSet("schema analyze", flag.ContinueOnError)
	table := fs.String("table", models.KindDeals, "Table to check (deals, tasks)")
	source := fs.String("source", "", "Snapshot id or CSV path (default: working collection)")
	apply := fs.Bool("apply", false, "Add the suggested columns to the remote store")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *table != models.KindDeals && *table != models.KindTasks {
		return fmt.Errorf("invalid --table %q (valid: deals, tasks)", *table)
	}

	ref := *source
	if ref == "" {
		ref = "cache"
	}
	recs, err := app.loadRecords(ctx, ref, *table)
	if err != nil {
		return err
	}

	var report schema.Report
	if *table == models.KindDeals {
		report = schema.AnalyzeDeals(recs.Deals)
	} else {
		report = schema.AnalyzeTasks(recs.Tasks)
	}

	if len(report.Fields) == 0 {
		app.printf("✓ No new fields in %d %s\n", report.Total, *table)
		return nil
	}

	app.printf("New fields in %d %s:\n\n", report.Total, *table)
	for _, f := range report.Fields {
		app.printf("  %-30s %-14s %5.0f%%", f.Name, f.Type, f.FillRate*100)
		if f.Priority != "" {
			app.printf("  %s", f.Priority)
		}
		if len(f.Samples) > 0 {
			app.printf("  e.g. %s", strings.Join(f.Samples, ", "))
		}
		app.printf("\n")
	}

	stmts := report.Statements()
	if len(stmts) == 0 {
		return nil
	}
	app.printf("\nSuggested DDL:\n")
	for _, s := range stmts {
		app.printf("  %s\n", s)
	}

	if !*apply {
		return nil
	}
	if app.Remote == nil {
		return fmt.Errorf("--apply needs a reachable remote store (set CRMPULSE_DATABASE_URL)")
	}

	app.printf("\n")
	failed := 0
	for _, res := range app.Remote.ApplyStatements(ctx, stmts) {
		if res.Err != nil {
			failed++
			app.printf("✗ %s: %v\n", res.Statement, res.Err)
			continue
		}
		app.printf("✓ %s\n", res.Statement)
	}
	if failed > 0 {
		app.printf("⚠ %d of %d statements failed\n", failed, len(stmts))
	}
	return nil
}
