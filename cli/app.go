// ABOUTME: Shared services for CLI commands: local store, remote store, cache, snapshots
// ABOUTME: The remote store is optional; when it is unreachable commands fall back to local storage
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/harperreed/crmpulse/charm"
	"github.com/harperreed/crmpulse/collection"
	"github.com/harperreed/crmpulse/config"
	"github.com/harperreed/crmpulse/db"
	"github.com/harperreed/crmpulse/ingest"
	"github.com/harperreed/crmpulse/logging"
	"github.com/harperreed/crmpulse/normalize"
	"github.com/harperreed/crmpulse/remote"
	"github.com/harperreed/crmpulse/snapshot"
)

// App bundles what the commands operate on.
type App struct {
	Config    *config.Config
	DB        *sql.DB
	Remote    *remote.Store
	Cache     *collection.Cache
	Snapshots *snapshot.Service
	Vocab     *normalize.Vocabulary
	Importer  *ingest.Importer

	Out         io.Writer
	In          io.Reader
	Interactive bool
}

// NewApp opens the stores named by cfg.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	vocab := normalize.NewVocabulary(normalize.DefaultVocabularyFile())
	if cfg.VocabularyPath != "" {
		v, err := normalize.LoadVocabulary(cfg.VocabularyPath)
		if err != nil {
			return nil, err
		}
		vocab = v
	}

	database, err := db.OpenDatabase(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	kv, err := charm.GetClient()
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to open collection store: %w", err)
	}

	app := &App{
		Config:      cfg,
		DB:          database,
		Cache:       collection.NewCache(kv),
		Vocab:       vocab,
		Importer:    ingest.NewImporter(normalize.NewCanonicalizer(vocab)),
		Out:         os.Stdout,
		In:          os.Stdin,
		Interactive: term.IsTerminal(int(os.Stdout.Fd())),
	}

	var backends []snapshot.Backend
	if cfg.HasRemoteStore() {
		store, err := remote.Open(ctx, cfg.DatabaseURL)
		if err == nil {
			err = store.EnsureSchema(ctx)
			if err != nil {
				_ = store.Close()
			}
		}
		if err != nil {
			logging.Component("cli").Warn("remote store unavailable, using local storage only", "err", err)
		} else {
			app.Remote = store
			backends = append(backends, &snapshot.RemoteBackend{Store: store})
		}
	}
	backends = append(backends, &snapshot.LocalBackend{DB: database, Limit: db.SnapshotLimit})
	app.Snapshots = snapshot.NewService(backends...)

	return app, nil
}

// Close releases the stores.
func (a *App) Close() {
	if a.Remote != nil {
		_ = a.Remote.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.Out, format, args...)
}
