// ABOUTME: export command
// ABOUTME: Writes a record collection as CSV, HTML, or XLSX
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harperreed/crmpulse/export"
	"github.com/harperreed/crmpulse/models"
)

// ExportCommand exports deals or tasks from the working collection or a snapshot.
func ExportCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	kind := fs.String("kind", models.KindDeals, "Record kind (deals, tasks)")
	format := fs.String("format", "", "Output format (csv, html, xlsx; default from --output extension)")
	output := fs.String("output", "", "Output file (default: stdout, csv and html only)")
	source := fs.String("source", "cache", "Snapshot id or CSV path (default: working collection)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *kind != models.KindDeals && *kind != models.KindTasks {
		return fmt.Errorf("invalid --kind %q (valid: deals, tasks)", *kind)
	}

	name := *format
	if name == "" {
		name = strings.TrimPrefix(filepath.Ext(*output), ".")
	}
	if name == "" {
		name = string(export.FormatCSV)
	}
	f, err := export.ParseFormat(name)
	if err != nil {
		return err
	}
	if f == export.FormatXLSX && *output == "" {
		return fmt.Errorf("xlsx export needs --output")
	}

	recs, err := app.loadRecords(ctx, *source, *kind)
	if err != nil {
		return err
	}
	table := export.DealTable(recs.Deals)
	count := len(recs.Deals)
	if *kind == models.KindTasks {
		table = export.TaskTable(recs.Tasks)
		count = len(recs.Tasks)
	}

	if *output == "" {
		return export.Write(app.Out, f, table)
	}

	file, err := os.Create(*output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", *output, err)
	}
	if err := export.Write(file, f, table); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	app.printf("✓ Exported %d %s to %s\n", count, *kind, *output)
	return nil
}
