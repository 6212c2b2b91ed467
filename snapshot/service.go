// ABOUTME: Creates, lists, and looks up week-tagged snapshots
// ABOUTME: Snapshots are immutable once created
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/crmpulse/diff"
	"github.com/harperreed/crmpulse/models"
)

// Service manages snapshots over a backend chain.
type Service struct {
	chain Chain
	now   func() time.Time
}

// NewService creates a service over the given backends, tried in order.
func NewService(backends ...Backend) *Service {
	return &Service{chain: Chain(backends), now: time.Now}
}

// Build captures deals and tasks as a snapshot of the current week.
func (s *Service) Build(deals []models.Deal, tasks []models.Task, metadata map[string]string) *models.Snapshot {
	now := s.now()
	week := diff.WeekOf(now)
	return &models.Snapshot{
		ID:         uuid.New(),
		CreatedAt:  now,
		WeekStart:  week.StartISO(),
		WeekEnd:    week.EndISO(),
		DealsCount: len(deals),
		TasksCount: len(tasks),
		DealsData:  deals,
		TasksData:  tasks,
		Metadata:   metadata,
	}
}

// Create builds and stores a snapshot. It returns the backend that kept it.
func (s *Service) Create(ctx context.Context, deals []models.Deal, tasks []models.Task, metadata map[string]string) (*models.Snapshot, string, error) {
	snap := s.Build(deals, tasks, metadata)
	backend, _, err := s.chain.Save(ctx, snap)
	if err != nil {
		return snap, "", err
	}
	return snap, backend, nil
}

// List returns snapshot summaries, newest first.
func (s *Service) List(ctx context.Context) ([]models.SnapshotSummary, error) {
	list, _, err := s.chain.List(ctx)
	return list, err
}

// Get loads a snapshot by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Snapshot, error) {
	return s.chain.Get(ctx, id)
}

// Delete removes a snapshot.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.chain.Delete(ctx, id)
}

// FindByWeek returns the newest snapshot whose week contains date.
func (s *Service) FindByWeek(ctx context.Context, date time.Time) (*models.Snapshot, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	target := diff.WeekOf(date)
	var best *models.SnapshotSummary
	for i := range list {
		if list[i].WeekStart != target.StartISO() {
			continue
		}
		if best == nil || list[i].CreatedAt.After(best.CreatedAt) {
			best = &list[i]
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no snapshot for week %s", ErrNotFound, target.Label())
	}
	return s.Get(ctx, best.ID)
}

// ParseID parses a snapshot id.
func ParseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid snapshot id %q: %w", s, err)
	}
	return id, nil
}
