// ABOUTME: Resolves command arguments to record sets
// ABOUTME: An argument is a CSV path, a snapshot id, or "cache" for the working collections
package cli

import (
	"context"
	"os"

	"github.com/harperreed/crmpulse/handlers"
	"github.com/harperreed/crmpulse/ingest"
	"github.com/harperreed/crmpulse/models"
)

// loadRecords resolves ref to the working collections, a CSV file, or a
// snapshot id, in that order.
func (a *App) loadRecords(ctx context.Context, ref, kind string) (*handlers.Records, error) {
	source := &handlers.Source{Cache: a.Cache, Snapshots: a.Snapshots}
	if ref == "" || ref == handlers.SourceCache {
		return source.Load(ctx, ref)
	}

	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		data, err := ingest.ReadFile(ref)
		if err != nil {
			return nil, err
		}
		recs := &handlers.Records{Label: ref}
		if kind == models.KindTasks {
			recs.Tasks = a.Importer.ImportTasks(data).Tasks
		} else {
			recs.Deals = a.Importer.ImportDeals(data).Deals
		}
		return recs, nil
	}

	return source.Load(ctx, ref)
}
