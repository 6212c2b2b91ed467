// ABOUTME: Database operations for the import_state and import_log tables
// ABOUTME: Gates overlapping imports per source and records each import run
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrImportInProgress is returned when a source is already importing.
var ErrImportInProgress = errors.New("import already in progress")

// Import statuses.
const (
	StatusIdle      = "idle"
	StatusImporting = "importing"
	StatusError     = "error"
)

// ImportState is the loading flag of one import source.
type ImportState struct {
	Source       string
	Status       string
	StartedAt    *time.Time
	FinishedAt   *time.Time
	ErrorMessage *string
	UpdatedAt    time.Time
}

// GetImportState retrieves the state for a source, or nil if it never ran.
func GetImportState(db *sql.DB, source string) (*ImportState, error) {
	var state ImportState
	var startedAt, finishedAt sql.NullTime
	var errorMessage sql.NullString

	err := db.QueryRow(`
		SELECT source, status, started_at, finished_at, error_message, updated_at
		FROM import_state
		WHERE source = ?
	`, source).Scan(
		&state.Source,
		&state.Status,
		&startedAt,
		&finishedAt,
		&errorMessage,
		&state.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import state: %w", err)
	}

	if startedAt.Valid {
		state.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		state.FinishedAt = &finishedAt.Time
	}
	if errorMessage.Valid {
		state.ErrorMessage = &errorMessage.String
	}

	return &state, nil
}

// StaleImportAfter is how long an import may hold its source before a new
// import takes the source over. A process killed mid-import never clears
// its own flag.
const StaleImportAfter = 2 * time.Hour

// BeginImport marks a source as importing. It fails with ErrImportInProgress
// when the source is already marked and the mark is younger than
// StaleImportAfter.
func BeginImport(db *sql.DB, source string) error {
	return beginImport(db, source, time.Now().UTC(), StaleImportAfter)
}

func beginImport(db *sql.DB, source string, now time.Time, staleAfter time.Duration) error {
	res, err := db.Exec(`
		INSERT INTO import_state (source, status, started_at, finished_at, error_message, created_at, updated_at)
		VALUES (?, 'importing', ?, NULL, NULL, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(source) DO UPDATE SET
			status = 'importing',
			started_at = excluded.started_at,
			finished_at = NULL,
			error_message = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE import_state.status != 'importing'
			OR import_state.started_at IS NULL
			OR import_state.started_at < ?
	`, source, now, now.Add(-staleAfter))
	if err != nil {
		return fmt.Errorf("failed to begin import: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to begin import: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s (use --force if no import is running)", ErrImportInProgress, source)
	}
	return nil
}

// ResetImport clears a source's loading flag regardless of its state.
func ResetImport(db *sql.DB, source string) error {
	_, err := db.Exec(`
		UPDATE import_state
		SET status = 'idle', finished_at = ?, error_message = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE source = ?
	`, time.Now().UTC(), source)
	if err != nil {
		return fmt.Errorf("failed to reset import state: %w", err)
	}
	return nil
}

// FinishImport resets the loading flag. A non-nil importErr leaves the
// source in the error state with its message.
func FinishImport(db *sql.DB, source string, importErr error) error {
	status := StatusIdle
	var errorMsg sql.NullString
	if importErr != nil {
		status = StatusError
		errorMsg = sql.NullString{String: importErr.Error(), Valid: true}
	}

	_, err := db.Exec(`
		UPDATE import_state
		SET status = ?, finished_at = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE source = ?
	`, status, time.Now().UTC(), errorMsg, source)
	if err != nil {
		return fmt.Errorf("failed to finish import: %w", err)
	}
	return nil
}

// ImportLogEntry is one recorded import run.
type ImportLogEntry struct {
	ID           string
	Source       string
	Kind         string
	RecordCount  int
	IgnoredCount int
	ErrorMessage *string
	ImportedAt   time.Time
}

// LogImport appends an import run and returns its id.
func LogImport(db *sql.DB, source, kind string, records, ignored int, importErr error) (string, error) {
	id := ulid.Make().String()

	var errorMsg sql.NullString
	if importErr != nil {
		errorMsg = sql.NullString{String: importErr.Error(), Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO import_log (id, source, kind, record_count, ignored_count, error_message, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, source, kind, records, ignored, errorMsg, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to log import: %w", err)
	}
	return id, nil
}

// ListImportLog returns the most recent import runs, newest first.
func ListImportLog(db *sql.DB, limit int) ([]ImportLogEntry, error) {
	rows, err := db.Query(`
		SELECT id, source, kind, record_count, ignored_count, error_message, imported_at
		FROM import_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import log: %w", err)
	}
	defer rows.Close()

	var entries []ImportLogEntry
	for rows.Next() {
		var e ImportLogEntry
		var errorMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.Source, &e.Kind, &e.RecordCount, &e.IgnoredCount, &errorMsg, &e.ImportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import log: %w", err)
		}
		if errorMsg.Valid {
			e.ErrorMessage = &errorMsg.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
