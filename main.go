// ABOUTME: Entry point for the crmpulse CLI and MCP server
// ABOUTME: Routes to import, comparison, snapshot, schema, export, and sync commands
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/harperreed/crmpulse/charm"
	"github.com/harperreed/crmpulse/cli"
	"github.com/harperreed/crmpulse/config"
	"github.com/harperreed/crmpulse/logging"
)

const version = "0.1.0"

func main() {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	dbPath := flag.String("db-path", "", "Local database path (default: ~/.local/share/crmpulse/crmpulse.db)")
	verbose := flag.Bool("verbose", false, "Debug logging")

	// Parse global flags but don't fail on unknown (for subcommands)
	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("crmpulse version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	logging.SetLevel(cfg.LogLevel)
	if *verbose {
		logging.SetLevel("debug")
	}

	command := args[0]
	commandArgs := args[1:]

	// Sync commands manage the charm link and need no local stores.
	if command == "sync" {
		if err := runSync(commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer app.Close()

	if err := run(ctx, app, command, commandArgs); err != nil {
		app.Close()
		log.Fatalf("Error: %v", err)
	}
}

func run(ctx context.Context, app *cli.App, command string, args []string) error {
	switch command {
	case "mcp":
		return cli.MCPCommand(ctx, app)

	case "import":
		if len(args) == 0 {
			return fmt.Errorf("import requires a source (csv, bitrix)")
		}
		switch args[0] {
		case "csv":
			return cli.ImportCSVCommand(ctx, app, args[1:])
		case "bitrix":
			return cli.ImportBitrixCommand(ctx, app, args[1:])
		default:
			return fmt.Errorf("unknown import source: %s", args[0])
		}

	case "compare":
		return cli.CompareCommand(ctx, app, args)
	case "snapshots":
		return cli.SnapshotsCommand(ctx, app, args)
	case "schema":
		return cli.SchemaCommand(ctx, app, args)
	case "export":
		return cli.ExportCommand(ctx, app, args)
	case "dashboard":
		return cli.DashboardCommand(ctx, app, args)
	case "viz":
		return cli.VizCommand(ctx, app, args)
	case "cache":
		return cli.CacheCommand(app, args)
	case "web":
		return cli.WebCommand(ctx, app, args)

	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runSync(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("sync requires a subcommand (link, status, now, auto, wipe)")
	}
	w := os.Stdout
	switch args[0] {
	case "link":
		return charm.SyncLinkCommand(w, args[1:])
	case "status":
		return charm.SyncStatusCommand(w, args[1:])
	case "now":
		return charm.SyncNowCommand(w, args[1:])
	case "auto":
		return charm.SyncAutoCommand(w, args[1:])
	case "wipe":
		return charm.SyncWipeCommand(w, args[1:])
	default:
		return fmt.Errorf("unknown sync command: %s", args[0])
	}
}

func printUsage() {
	fmt.Printf(`crmpulse v%s - weekly CRM pipeline snapshots

USAGE:
  crmpulse [global flags] <command> [subcommand] [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --db-path <path>       Local database path (default: ~/.local/share/crmpulse/crmpulse.db)
  --verbose              Debug logging

COMMANDS:
  import csv [--kind deals|tasks] [--merge] [--save] [--force] <file>
                         Import a CSV/TSV export (UTF-8 or Windows-1251; - for stdin)
  import bitrix [--kind deals|tasks|all] [--no-snapshot] [--force]
                         Import from the Bitrix24 webhook in CRMPULSE_BITRIX_WEBHOOK
                         and snapshot the batch; --force clears a stuck import mark
  compare [--kind deals|tasks] <old> <new>
                         Compare snapshots, CSV files, or "cache"
  snapshots list         List snapshots, newest first
  snapshots show <id>    Show one snapshot
  snapshots delete <id>  Delete a snapshot
  snapshots week [--date YYYY-MM-DD]
                         Find the snapshot for a week
  schema analyze [--table deals|tasks] [--source ref] [--apply]
                         Find fields missing from the hosted tables
  export [--kind deals|tasks] [--format csv|html|xlsx] [--output file] [--source ref]
                         Export a collection
  dashboard [--stale-days n] [--source ref]
                         Funnel, stale items, and role mismatches
  viz transitions [--output file.dot|svg|png] <old> <new>
                         Stage-transition graph
  cache clear [--kind deals|tasks]
                         Clear the working collections
  sync link|status|now|auto|wipe
                         Charm cloud sync of the working collections
  web [--port n]         Serve the read-only web dashboard (default :8080)
  mcp                    Start the MCP server on stdio

ENVIRONMENT:
  CRMPULSE_BITRIX_WEBHOOK, CRMPULSE_DATABASE_URL, CRMPULSE_DB_PATH,
  CRMPULSE_SALES_CATEGORY, CRMPULSE_FALLBACK_CATEGORY_ID, CRMPULSE_VOCABULARY,
  CRMPULSE_LOG_LEVEL, CRMPULSE_RATE_LIMIT, CRMPULSE_TASK_DESCRIPTION_LIMIT
  (a .env file in the working directory is read too)
`, version)
}
