// ABOUTME: import subcommands: csv files and Bitrix24 webhooks
// ABOUTME: Imports are gated per source, logged, cached, and optionally snapshotted and upserted
package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/harperreed/crmpulse/bitrix"
	"github.com/harperreed/crmpulse/db"
	"github.com/harperreed/crmpulse/ingest"
	"github.com/harperreed/crmpulse/logging"
	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/tui"
)

// Import sources as recorded in the import-state gate and import log.
const (
	SourceCSV    = "csv"
	SourceBitrix = "bitrix"
)

// ImportCSVCommand canonicalizes a CSV/TSV export into the working collection.
func ImportCSVCommand(ctx context.Context, app *App, args []string) (err error) {
	fs := flag.NewFlagSet("import csv", flag.ContinueOnError)
	kind := fs.String("kind", models.KindDeals, "Record kind (deals, tasks)")
	merge := fs.Bool("merge", false, "Merge into the working collection by id instead of replacing it")
	save := fs.Bool("save", false, "Store a snapshot after importing")
	force := fs.Bool("force", false, "Clear a leftover import mark before starting")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("file path required (use - for stdin)")
	}
	if *kind != models.KindDeals && *kind != models.KindTasks {
		return fmt.Errorf("invalid --kind %q (valid: deals, tasks)", *kind)
	}

	data, err := ingest.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	if err := beginImport(app, SourceCSV, *force); err != nil {
		return err
	}
	defer finishImport(app, SourceCSV, &err)

	var records, ignored, size int
	switch *kind {
	case models.KindDeals:
		res := app.Importer.ImportDeals(data)
		records, ignored = len(res.Deals), res.Ignored
		deals := res.Deals
		if *merge {
			deals, err = app.Cache.MergeDeals(res.Deals)
		} else {
			err = app.Cache.SaveDeals(res.Deals)
		}
		size = len(deals)
		if err == nil {
			app.upsertDeals(ctx, res.Deals)
			app.printf("✓ Imported %d deals (delimiter %q)\n", records, res.Delimiter)
			app.printf("  Week: %d/%d, week %d of month, week %d of year\n",
				res.Meta.Month, res.Meta.Year, res.Meta.WeekOfMonth, res.Meta.WeekOfYear)
		}
	case models.KindTasks:
		res := app.Importer.ImportTasks(data)
		records, ignored = len(res.Tasks), res.Ignored
		tasks := res.Tasks
		if *merge {
			tasks, err = app.Cache.MergeTasks(res.Tasks)
		} else {
			err = app.Cache.SaveTasks(res.Tasks)
		}
		size = len(tasks)
		if err == nil {
			app.upsertTasks(ctx, res.Tasks)
			app.printf("✓ Imported %d tasks (delimiter %q)\n", records, res.Delimiter)
		}
	}
	logImport(app, SourceCSV, *kind, records, ignored, err)
	if err != nil {
		return fmt.Errorf("failed to update %s collection: %w", *kind, err)
	}

	app.printf("  Collection size: %d\n", size)
	if ignored > 0 {
		app.printf("⚠ %d rows lack a stage/status or responsible\n", ignored)
	}

	if *save {
		return app.saveWorkingSnapshot(ctx, map[string]string{"source": SourceCSV, "kind": *kind})
	}
	return nil
}

// ImportBitrixCommand pulls deals and/or tasks from the configured webhook.
func ImportBitrixCommand(ctx context.Context, app *App, args []string) (err error) {
	fs := flag.NewFlagSet("import bitrix", flag.ContinueOnError)
	kind := fs.String("kind", bitrix.KindAll, "What to import (deals, tasks, all)")
	noSnapshot := fs.Bool("no-snapshot", false, "Skip storing a snapshot of the imported batch")
	force := fs.Bool("force", false, "Clear a leftover import mark before starting")
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch *kind {
	case bitrix.KindDeals, bitrix.KindTasks, bitrix.KindAll:
	default:
		return fmt.Errorf("invalid --kind %q (valid: deals, tasks, all)", *kind)
	}

	cfg := app.Config
	if cfg.BitrixWebhook == "" {
		return fmt.Errorf("no Bitrix24 webhook configured (set CRMPULSE_BITRIX_WEBHOOK)")
	}

	if err := beginImport(app, SourceBitrix, *force); err != nil {
		return err
	}
	defer finishImport(app, SourceBitrix, &err)

	var snapshots bitrix.SnapshotCreator
	if !*noSnapshot {
		snapshots = app.Snapshots
	}
	adapter := bitrix.NewAdapter(
		bitrix.NewClient(cfg.BitrixWebhook, bitrix.WithRateLimit(cfg.RateLimit)),
		app.Vocab,
		bitrix.Options{
			SalesCategory:      cfg.SalesCategory,
			FallbackCategoryID: cfg.FallbackCategoryID,
			DescriptionLimit:   cfg.DescriptionLimit,
		},
		snapshots,
	)

	var res *bitrix.Result
	run := func() (string, error) {
		r, err := adapter.Import(ctx, *kind)
		if err != nil {
			return "", err
		}
		res = r
		return fmt.Sprintf("Loaded %d deals, %d tasks", r.DealsCount(), r.TasksCount()), nil
	}

	var summary string
	if app.Interactive {
		summary, err = tui.RunImport("Загрузка из Bitrix24", run, app.In, app.Out)
	} else {
		summary, err = run()
	}
	if err != nil {
		logImport(app, SourceBitrix, *kind, 0, 0, err)
		app.printf("✗ %s\n", bitrix.UserMessage)
		return err
	}
	if !app.Interactive {
		app.printf("✓ %s\n", summary)
	}

	if res.Deals != nil {
		if err = app.Cache.SaveDeals(res.Deals.Deals); err != nil {
			logImport(app, SourceBitrix, *kind, 0, 0, err)
			return fmt.Errorf("failed to cache deals: %w", err)
		}
		app.upsertDeals(ctx, res.Deals.Deals)
		app.printf("  Sales category: %s\n", res.Deals.CategoryID)
	}
	if res.Tasks != nil {
		if err = app.Cache.SaveTasks(res.Tasks.Tasks); err != nil {
			logImport(app, SourceBitrix, *kind, 0, 0, err)
			return fmt.Errorf("failed to cache tasks: %w", err)
		}
		app.upsertTasks(ctx, res.Tasks.Tasks)
	}

	for _, chunk := range res.PartialFailures() {
		app.printf("⚠ %d names could not be resolved (chunk %d): %v\n", len(chunk.IDs), chunk.Index, chunk.Err)
	}
	switch {
	case res.SnapshotErr != nil:
		app.printf("⚠ Snapshot not saved: %v\n", res.SnapshotErr)
	case res.Snapshot != nil:
		app.printf("✓ Snapshot %s saved (%s)\n", res.Snapshot.ID, res.SnapshotBackend)
	}

	logImport(app, SourceBitrix, *kind, res.DealsCount()+res.TasksCount(), 0, nil)
	return nil
}

// saveWorkingSnapshot snapshots both working collections.
func (a *App) saveWorkingSnapshot(ctx context.Context, metadata map[string]string) error {
	deals, err := a.Cache.Deals()
	if err != nil {
		return fmt.Errorf("failed to load deals: %w", err)
	}
	tasks, err := a.Cache.Tasks()
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	snap, backend, err := a.Snapshots.Create(ctx, deals, tasks, metadata)
	if err != nil {
		a.printf("⚠ Snapshot not saved: %v\n", err)
		return err
	}
	a.printf("✓ Snapshot %s saved (%s, week %s – %s)\n", snap.ID, backend, snap.WeekStart, snap.WeekEnd)
	return nil
}

func (a *App) upsertDeals(ctx context.Context, deals []models.Deal) {
	if a.Remote == nil {
		return
	}
	res, err := a.Remote.UpsertDeals(ctx, deals)
	if err != nil {
		a.printf("⚠ Remote store not updated: %v\n", err)
		return
	}
	a.printf("  Remote store: %d deals written\n", res.Written)
}

func (a *App) upsertTasks(ctx context.Context, tasks []models.Task) {
	if a.Remote == nil {
		return
	}
	res, err := a.Remote.UpsertTasks(ctx, tasks)
	if err != nil {
		a.printf("⚠ Remote store not updated: %v\n", err)
		return
	}
	a.printf("  Remote store: %d tasks written\n", res.Written)
}

// beginImport takes the import gate, first clearing it when force is set.
func beginImport(app *App, source string, force bool) error {
	if force {
		if err := db.ResetImport(app.DB, source); err != nil {
			return err
		}
		logging.Component("cli").Warn("import mark cleared", "source", source)
	}
	return db.BeginImport(app.DB, source)
}

// finishImport always clears the import gate, recording the outcome.
func finishImport(app *App, source string, err *error) {
	if ferr := db.FinishImport(app.DB, source, *err); ferr != nil {
		logging.Component("cli").Warn("failed to reset import state", "source", source, "err", ferr)
	}
}

func logImport(app *App, source, kind string, records, ignored int, importErr error) {
	if _, err := db.LogImport(app.DB, source, kind, records, ignored, importErr); err != nil {
		logging.Component("cli").Warn("failed to write import log", "source", source, "err", err)
	}
}
