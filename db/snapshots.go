// ABOUTME: Database operations for the local snapshot fallback
// ABOUTME: Keeps only the most recent snapshots and prunes older ones on save
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/harperreed/crmpulse/models"
)

// SnapshotLimit is how many snapshots the local store retains.
const SnapshotLimit = 10

// SaveSnapshot stores a snapshot and prunes everything beyond the newest limit.
func SaveSnapshot(db *sql.DB, snap *models.Snapshot, limit int) error {
	dealsData, err := json.Marshal(nonNilDeals(snap.DealsData))
	if err != nil {
		return fmt.Errorf("failed to encode deals: %w", err)
	}
	tasksData, err := json.Marshal(nonNilTasks(snap.TasksData))
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

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO snapshots (id, created_at, week_start, week_end, deals_count, tasks_count, deals_data, tasks_data, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.ID.String(), snap.CreatedAt, snap.WeekStart, snap.WeekEnd,
		snap.DealsCount, snap.TasksCount, string(dealsData), string(tasksData), metadata)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if limit > 0 {
		_, err = tx.Exec(`
			DELETE FROM snapshots
			WHERE id NOT IN (SELECT id FROM snapshots ORDER BY created_at DESC LIMIT ?)
		`, limit)
		if err != nil {
			return fmt.Errorf("failed to prune snapshots: %w", err)
		}
	}

	return tx.Commit()
}

// ListSnapshots returns snapshot summaries, newest first.
func ListSnapshots(db *sql.DB) ([]models.SnapshotSummary, error) {
	rows, err := db.Query(`
		SELECT id, created_at, week_start, week_end, deals_count, tasks_count
		FROM snapshots
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.SnapshotSummary
	for rows.Next() {
		var s models.SnapshotSummary
		var id string
		if err := rows.Scan(&id, &s.CreatedAt, &s.WeekStart, &s.WeekEnd, &s.DealsCount, &s.TasksCount); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if s.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid snapshot id %q: %w", id, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetSnapshot loads a full snapshot, or nil if it does not exist.
func GetSnapshot(db *sql.DB, id uuid.UUID) (*models.Snapshot, error) {
	snap := &models.Snapshot{ID: id}
	var dealsData, tasksData string
	var metadata sql.NullString

	err := db.QueryRow(`
		SELECT created_at, week_start, week_end, deals_count, tasks_count, deals_data, tasks_data, metadata
		FROM snapshots
		WHERE id = ?
	`, id.String()).Scan(
		&snap.CreatedAt,
		&snap.WeekStart,
		&snap.WeekEnd,
		&snap.DealsCount,
		&snap.TasksCount,
		&dealsData,
		&tasksData,
		&metadata,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(dealsData), &snap.DealsData); err != nil {
		return nil, fmt.Errorf("failed to decode deals: %w", err)
	}
	if err := json.Unmarshal([]byte(tasksData), &snap.TasksData); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &snap.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}

	return snap, nil
}

// DeleteSnapshot removes a snapshot. It reports whether a row was deleted.
func DeleteSnapshot(db *sql.DB, id uuid.UUID) (bool, error) {
	res, err := db.Exec(`DELETE FROM snapshots WHERE id = ?`, id.String())
	if err != nil {
		return false, fmt.Errorf("failed to delete snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return n > 0, nil
}

func nonNilDeals(d []models.Deal) []models.Deal {
	if d == nil {
		return []models.Deal{}
	}
	return d
}

func nonNilTasks(t []models.Task) []models.Task {
	if t == nil {
		return []models.Task{}
	}
	return t
}
