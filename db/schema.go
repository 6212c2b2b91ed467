// ABOUTME: Database schema definitions for the local store
// ABOUTME: Snapshot fallback storage, import gate, and import history
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL,
	week_start TEXT NOT NULL,
	week_end TEXT NOT NULL,
	deals_count INTEGER NOT NULL DEFAULT 0,
	tasks_count INTEGER NOT NULL DEFAULT 0,
	deals_data TEXT NOT NULL,
	tasks_data TEXT NOT NULL,
	metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_week ON snapshots(week_start);

CREATE TABLE IF NOT EXISTS import_state (
	source TEXT PRIMARY KEY,
	status TEXT NOT NULL CHECK(status IN ('idle', 'importing', 'error')),
	started_at DATETIME,
	finished_at DATETIME,
	error_message TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS import_log (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	kind TEXT NOT NULL,
	record_count INTEGER NOT NULL DEFAULT 0,
	ignored_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	imported_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_import_log_source ON import_log(source, imported_at DESC);
`

// InitSchema creates the local tables if they are missing.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
