// ABOUTME: snapshots subcommands: list, show, delete, and week
// ABOUTME: Reads go through the backend chain so the remote store is preferred when configured
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/harperreed/crmpulse/diff"
	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/snapshot"
)

// SnapshotsCommand routes the snapshots subcommands.
func SnapshotsCommand(ctx context.Context, app *App, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("snapshots requires a subcommand (list, show, delete, week)")
	}
	switch args[0] {
	case "list":
		return snapshotsList(ctx, app)
	case "show":
		return snapshotsShow(ctx, app, args[1:])
	case "delete":
		return snapshotsDelete(ctx, app, args[1:])
	case "week":
		return snapshotsWeek(ctx, app, args[1:])
	default:
		return fmt.Errorf("unknown snapshots command: %s", args[0])
	}
}

func snapshotsList(ctx context.Context, app *App) error {
	list, err := app.Snapshots.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}
	if len(list) == 0 {
		app.printf("No snapshots found\n")
		return nil
	}

	w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tWEEK\tDEALS\tTASKS")
	fmt.Fprintln(w, "--\t-------\t----\t-----\t-----")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), weekLabel(s), s.DealsCount, s.TasksCount)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	app.printf("\nTotal: %d snapshots\n", len(list))
	return nil
}

func weekLabel(s models.SnapshotSummary) string {
	if week, err := diff.ParseWeek(s.WeekStart); err == nil {
		return week.Label()
	}
	return s.WeekStart
}

func snapshotsShow(ctx context.Context, app *App, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("snapshot id required")
	}
	id, err := snapshot.ParseID(args[0])
	if err != nil {
		return err
	}
	snap, err := app.Snapshots.Get(ctx, id)
	if err != nil {
		return err
	}

	app.printf("Snapshot %s\n", snap.ID)
	app.printf("  Created: %s\n", snap.CreatedAt.Local().Format("2006-01-02 15:04"))
	app.printf("  Week:    %s\n", weekLabel(snap.Summary()))
	app.printf("  Deals:   %d\n", snap.DealsCount)
	app.printf("  Tasks:   %d\n", snap.TasksCount)
	keys := make([]string, 0, len(snap.Metadata))
	for k := range snap.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		app.printf("  %s: %s\n", k, snap.Metadata[k])
	}
	return nil
}

func snapshotsDelete(ctx context.Context, app *App, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("snapshot id required")
	}
	id, err := snapshot.ParseID(args[0])
	if err != nil {
		return err
	}
	if err := app.Snapshots.Delete(ctx, id); err != nil {
		return err
	}
	app.printf("✓ Snapshot %s deleted\n", id)
	return nil
}

func snapshotsWeek(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("snapshots week", flag.ContinueOnError)
	date := fs.String("date", "", "Any day of the week, YYYY-MM-DD (default: today)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	day := time.Now()
	if *date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", *date, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", *date, err)
		}
		day = parsed
	}

	week := diff.WeekOf(day)
	snap, err := app.Snapshots.FindByWeek(ctx, day)
	if errors.Is(err, snapshot.ErrNotFound) {
		app.printf("No snapshot for week %s\n", week.Label())
		return nil
	}
	if err != nil {
		return err
	}
	app.printf("✓ Week %s: snapshot %s (%d deals, %d tasks)\n", week.Label(), snap.ID, snap.DealsCount, snap.TasksCount)
	return nil
}
