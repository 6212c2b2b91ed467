// ABOUTME: Resolves a record source for tools: the cached collections or a stored snapshot
// ABOUTME: An empty reference or "cache" means the working collections
package handlers

import (
	"context"
	"fmt"

	"github.com/harperreed/crmpulse/collection"
	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/snapshot"
)

// SourceCache names the working collections as a source.
const SourceCache = "cache"

// Records is a loaded deal/task pair.
type Records struct {
	Label string
	Deals []models.Deal
	Tasks []models.Task
}

// Source loads records by reference.
type Source struct {
	Cache     *collection.Cache
	Snapshots *snapshot.Service
}

// Load returns the records behind ref.
func (s *Source) Load(ctx context.Context, ref string) (*Records, error) {
	if ref == "" || ref == SourceCache {
		if s.Cache == nil {
			return nil, fmt.Errorf("no collection cache configured")
		}
		deals, err := s.Cache.Deals()
		if err != nil {
			return nil, fmt.Errorf("failed to load cached deals: %w", err)
		}
		tasks, err := s.Cache.Tasks()
		if err != nil {
			return nil, fmt.Errorf("failed to load cached tasks: %w", err)
		}
		return &Records{Label: SourceCache, Deals: deals, Tasks: tasks}, nil
	}

	if s.Snapshots == nil {
		return nil, fmt.Errorf("no snapshot store configured")
	}
	id, err := snapshot.ParseID(ref)
	if err != nil {
		return nil, err
	}
	snap, err := s.Snapshots.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Records{Label: snap.ID.String(), Deals: snap.DealsData, Tasks: snap.TasksData}, nil
}

func validKind(kind string) (string, error) {
	switch kind {
	case "", models.KindDeals:
		return models.KindDeals, nil
	case models.KindTasks:
		return models.KindTasks, nil
	default:
		return "", fmt.Errorf("invalid kind %q (valid: deals, tasks)", kind)
	}
}
