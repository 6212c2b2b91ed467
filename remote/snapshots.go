// ABOUTME: Snapshot persistence in the hosted PostgreSQL store
// ABOUTME: Deal and task payloads are stored as JSONB
package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/harperreed/crmpulse/models"
)

// SaveSnapshot inserts a snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	deals, err := json.Marshal(snap.DealsData)
	if err != nil {
		return fmt.Errorf("failed to encode deals: %w", err)
	}
	tasks, err := json.Marshal(snap.TasksData)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}
	var metadata sql.NullString
	if len(snap.Metadata) > 0 {
		data, err := json.Marshal(snap.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO crm_snapshots (id, created_at, week_start, week_end, deals_count, tasks_count, deals_data, tasks_data, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, snap.ID.String(), snap.CreatedAt, snap.WeekStart, snap.WeekEnd,
		snap.DealsCount, snap.TasksCount, string(deals), string(tasks), metadata)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns summaries, newest first.
func (s *Store) ListSnapshots(ctx context.Context) ([]models.SnapshotSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, to_char(week_start, 'YYYY-MM-DD'), to_char(week_end, 'YYYY-MM-DD'), deals_count, tasks_count
		FROM crm_snapshots
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.SnapshotSummary
	for rows.Next() {
		var sum models.SnapshotSummary
		var id string
		if err := rows.Scan(&id, &sum.CreatedAt, &sum.WeekStart, &sum.WeekEnd, &sum.DealsCount, &sum.TasksCount); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if sum.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid snapshot id %q: %w", id, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// GetSnapshot loads one snapshot, or nil if it does not exist.
func (s *Store) GetSnapshot(ctx context.Context, id uuid.UUID) (*models.Snapshot, error) {
	snap := &models.Snapshot{ID: id}
	var deals, tasks []byte
	var metadata []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT created_at, to_char(week_start, 'YYYY-MM-DD'), to_char(week_end, 'YYYY-MM-DD'), deals_count, tasks_count, deals_data, tasks_data, metadata
		FROM crm_snapshots
		WHERE id = $1
	`, id.String()).Scan(&snap.CreatedAt, &snap.WeekStart, &snap.WeekEnd, &snap.DealsCount, &snap.TasksCount, &deals, &tasks, &metadata)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if err := json.Unmarshal(deals, &snap.DealsData); err != nil {
		return nil, fmt.Errorf("failed to decode deals: %w", err)
	}
	if err := json.Unmarshal(tasks, &snap.TasksData); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &snap.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return snap, nil
}

// DeleteSnapshot removes a snapshot and reports whether it existed.
func (s *Store) DeleteSnapshot(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM crm_snapshots WHERE id = $1`, id.String())
	if err != nil {
		return false, fmt.Errorf("failed to delete snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return n > 0, nil
}
