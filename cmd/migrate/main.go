// ABOUTME: Migration utility that copies local fallback snapshots to the hosted store
// ABOUTME: Provides dry-run and backup capabilities; snapshots already present remotely are skipped

package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harperreed/crmpulse/config"
	"github.com/harperreed/crmpulse/db"
	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/remote"
)

// target is the store snapshots are copied into.
type target interface {
	ListSnapshots(ctx context.Context) ([]models.SnapshotSummary, error)
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	dbPath := flag.String("db", cfg.DBPath, "Path to the local database")
	dsn := flag.String("remote", cfg.DatabaseURL, "PostgreSQL DSN of the hosted store (default: CRMPULSE_DATABASE_URL)")
	dryRun := flag.Bool("dry-run", false, "Show what would happen without making changes")
	backup := flag.Bool("backup", true, "Create a backup of the local database first")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("Error: -remote flag or CRMPULSE_DATABASE_URL is required")
	}

	if err := run(context.Background(), *dbPath, *dsn, *dryRun, *backup); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migration completed successfully")
}

func run(ctx context.Context, dbPath, dsn string, dryRun, createBackup bool) error {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database file does not exist: %s", dbPath)
	}

	if createBackup && !dryRun {
		backupPath := fmt.Sprintf("%s.backup.%s", dbPath, time.Now().Format("20060102-150405"))
		log.Printf("Creating backup: %s", backupPath)

		input, err := os.ReadFile(dbPath)
		if err != nil {
			return fmt.Errorf("failed to read database: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0644); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		log.Printf("Backup created successfully")
	}

	local, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = local.Close() }()

	store, err := remote.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if !dryRun {
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	copied, err := migrate(ctx, local, store, dryRun)
	if err != nil {
		return err
	}
	log.Printf("Snapshots copied: %d", copied)
	return nil
}

// migrate copies every local snapshot missing from dst and returns how many
// were (or, on a dry run, would be) copied.
func migrate(ctx context.Context, local *sql.DB, dst target, dryRun bool) (int, error) {
	localList, err := db.ListSnapshots(local)
	if err != nil {
		return 0, fmt.Errorf("failed to list local snapshots: %w", err)
	}
	log.Printf("Local snapshots: %d", len(localList))

	remoteList, err := dst.ListSnapshots(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list remote snapshots: %w", err)
	}
	present := make(map[uuid.UUID]bool, len(remoteList))
	for _, s := range remoteList {
		present[s.ID] = true
	}

	copied := 0
	for _, s := range localList {
		if present[s.ID] {
			continue
		}
		if dryRun {
			log.Printf("[DRY RUN] Would copy snapshot %s (week %s, %d deals, %d tasks)",
				s.ID, s.WeekStart, s.DealsCount, s.TasksCount)
			copied++
			continue
		}

		snap, err := db.GetSnapshot(local, s.ID)
		if err != nil {
			return copied, fmt.Errorf("failed to read snapshot %s: %w", s.ID, err)
		}
		if snap == nil {
			continue
		}
		if err := dst.SaveSnapshot(ctx, snap); err != nil {
			return copied, fmt.Errorf("failed to copy snapshot %s: %w", s.ID, err)
		}
		log.Printf("Copied snapshot %s", s.ID)
		copied++
	}
	return copied, nil
}
