// ABOUTME: Ordered chain of snapshot storage backends
// ABOUTME: Writes stop at the first backend that succeeds; all failures are joined
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/harperreed/crmpulse/db"
	"github.com/harperreed/crmpulse/logging"
	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/remote"
)

var (
	// ErrNotFound is returned when no backend has the snapshot.
	ErrNotFound = errors.New("snapshot not found")
	// ErrAllBackendsFailed wraps the joined errors of every backend.
	ErrAllBackendsFailed = errors.New("all snapshot backends failed")
)

// Backend stores snapshots. Get returns nil, nil when the id is unknown.
type Backend interface {
	Name() string
	Save(ctx context.Context, snap *models.Snapshot) error
	List(ctx context.Context) ([]models.SnapshotSummary, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Snapshot, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// Attempt is the outcome of one backend call.
type Attempt struct {
	Backend string
	Err     error
}

// Chain tries backends in order.
type Chain []Backend

// Save stores the snapshot in the first backend that accepts it.
func (c Chain) Save(ctx context.Context, snap *models.Snapshot) (string, []Attempt, error) {
	var attempts []Attempt
	var errs []error
	for _, b := range c {
		err := b.Save(ctx, snap)
		attempts = append(attempts, Attempt{Backend: b.Name(), Err: err})
		if err == nil {
			return b.Name(), attempts, nil
		}
		logging.Component("snapshot").Warn("snapshot backend failed", "backend", b.Name(), "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
	}
	return "", attempts, allFailed(errs)
}

// List returns the listing of the first backend that answers.
func (c Chain) List(ctx context.Context) ([]models.SnapshotSummary, string, error) {
	var errs []error
	for _, b := range c {
		list, err := b.List(ctx)
		if err == nil {
			return list, b.Name(), nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
	}
	return nil, "", allFailed(errs)
}

// Get looks the id up in each backend in turn.
func (c Chain) Get(ctx context.Context, id uuid.UUID) (*models.Snapshot, error) {
	var errs []error
	for _, b := range c {
		snap, err := b.Get(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}
		if snap != nil {
			return snap, nil
		}
	}
	if len(errs) == len(c) && len(c) > 0 {
		return nil, allFailed(errs)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Delete removes the id from every backend that has it.
func (c Chain) Delete(ctx context.Context, id uuid.UUID) error {
	var errs []error
	deleted := false
	for _, b := range c {
		ok, err := b.Delete(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}
		deleted = deleted || ok
	}
	if deleted {
		return nil
	}
	if len(errs) == len(c) && len(c) > 0 {
		return allFailed(errs)
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func allFailed(errs []error) error {
	return fmt.Errorf("%w: %w", ErrAllBackendsFailed, errors.Join(errs...))
}

// LocalBackend keeps a bounded number of snapshots in SQLite.
type LocalBackend struct {
	DB    *sql.DB
	Limit int
}

// Name identifies the backend.
func (l *LocalBackend) Name() string { return "local" }

func (l *LocalBackend) Save(_ context.Context, snap *models.Snapshot) error {
	return db.SaveSnapshot(l.DB, snap, l.Limit)
}

func (l *LocalBackend) List(_ context.Context) ([]models.SnapshotSummary, error) {
	return db.ListSnapshots(l.DB)
}

func (l *LocalBackend) Get(_ context.Context, id uuid.UUID) (*models.Snapshot, error) {
	return db.GetSnapshot(l.DB, id)
}

func (l *LocalBackend) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	return db.DeleteSnapshot(l.DB, id)
}

// RemoteBackend stores snapshots in the hosted store.
type RemoteBackend struct {
	Store *remote.Store
}

// Name identifies the backend.
func (r *RemoteBackend) Name() string { return "remote" }

func (r *RemoteBackend) Save(ctx context.Context, snap *models.Snapshot) error {
	return r.Store.SaveSnapshot(ctx, snap)
}

func (r *RemoteBackend) List(ctx context.Context) ([]models.SnapshotSummary, error) {
	return r.Store.ListSnapshots(ctx)
}

func (r *RemoteBackend) Get(ctx context.Context, id uuid.UUID) (*models.Snapshot, error) {
	return r.Store.GetSnapshot(ctx, id)
}

func (r *RemoteBackend) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.Store.DeleteSnapshot(ctx, id)
}
