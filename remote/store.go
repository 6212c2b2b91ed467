// ABOUTME: Hosted PostgreSQL store for canonical records and snapshots
// ABOUTME: Upserts by stable external id and keeps the full record in a payload column
package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/harperreed/crmpulse/logging"
	"github.com/harperreed/crmpulse/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS crm_deals (
	external_id TEXT PRIMARY KEY,
	title TEXT,
	responsible TEXT,
	stage TEXT,
	department TEXT,
	amount NUMERIC(15,2),
	currency TEXT,
	company TEXT,
	contact TEXT,
	created_at TEXT,
	modified_at TEXT,
	payload JSONB NOT NULL,
	imported_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS crm_tasks (
	external_id TEXT PRIMARY KEY,
	title TEXT,
	creator TEXT,
	assignee TEXT,
	status TEXT,
	priority TEXT,
	created_at TEXT,
	closed_at TEXT,
	payload JSONB NOT NULL,
	imported_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS crm_snapshots (
	id UUID PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	week_start DATE NOT NULL,
	week_end DATE NOT NULL,
	deals_count INTEGER NOT NULL,
	tasks_count INTEGER NOT NULL,
	deals_data JSONB NOT NULL,
	tasks_data JSONB NOT NULL,
	metadata JSONB
);
`

// Store is the hosted relational store.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach remote store: %w", err)
	}
	return NewStore(db), nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the base tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create remote schema: %w", err)
	}
	return nil
}

// UpsertResult counts what an upsert wrote. Records without an id have no
// stable external key and are skipped.
type UpsertResult struct {
	Written int
	Skipped int
}

const upsertDealSQL = `
	INSERT INTO crm_deals (external_id, title, responsible, stage, department, amount, currency, company, contact, created_at, modified_at, payload)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (external_id) DO UPDATE SET
		title = EXCLUDED.title,
		responsible = EXCLUDED.responsible,
		stage = EXCLUDED.stage,
		department = EXCLUDED.department,
		amount = EXCLUDED.amount,
		currency = EXCLUDED.currency,
		company = EXCLUDED.company,
		contact = EXCLUDED.contact,
		created_at = EXCLUDED.created_at,
		modified_at = EXCLUDED.modified_at,
		payload = EXCLUDED.payload,
		updated_at = NOW()
`

const upsertTaskSQL = `
	INSERT INTO crm_tasks (external_id, title, creator, assignee, status, priority, created_at, closed_at, payload)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (external_id) DO UPDATE SET
		title = EXCLUDED.title,
		creator = EXCLUDED.creator,
		assignee = EXCLUDED.assignee,
		status = EXCLUDED.status,
		priority = EXCLUDED.priority,
		created_at = EXCLUDED.created_at,
		closed_at = EXCLUDED.closed_at,
		payload = EXCLUDED.payload,
		updated_at = NOW()
`

// UpsertDeals writes deals keyed by deal id in one transaction.
func (s *Store) UpsertDeals(ctx context.Context, deals []models.Deal) (UpsertResult, error) {
	return upsert(ctx, s.db, deals, func(tx *sql.Tx, d models.Deal, payload []byte) error {
		_, err := tx.ExecContext(ctx, upsertDealSQL,
			d.DealID, d.Title, d.Responsible, d.Stage, d.Department, d.Amount, d.Currency,
			d.Company, d.Contact, nullString(d.CreatedAt), nullString(d.ModifiedAt), string(payload))
		return err
	})
}

// UpsertTasks writes tasks keyed by task id in one transaction.
func (s *Store) UpsertTasks(ctx context.Context, tasks []models.Task) (UpsertResult, error) {
	return upsert(ctx, s.db, tasks, func(tx *sql.Tx, t models.Task, payload []byte) error {
		_, err := tx.ExecContext(ctx, upsertTaskSQL,
			t.ID, t.Title, t.Creator, t.Assignee, t.Status, t.Priority,
			nullString(t.CreatedAt), nullString(t.ClosedAt), string(payload))
		return err
	})
}

func upsert[T models.Keyed](ctx context.Context, db *sql.DB, records []T, write func(*sql.Tx, T, []byte) error) (UpsertResult, error) {
	var res UpsertResult

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range records {
		if r.Key() == "" {
			res.Skipped++
			continue
		}
		payload, err := json.Marshal(r)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("failed to encode record %s: %w", r.Key(), err)
		}
		if err := write(tx, r, payload); err != nil {
			return UpsertResult{}, fmt.Errorf("failed to upsert record %s: %w", r.Key(), err)
		}
		res.Written++
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("failed to commit upsert: %w", err)
	}
	if res.Skipped > 0 {
		logging.Component("remote").Warn("records without id not upserted", "skipped", res.Skipped)
	}
	return res, nil
}

// StatementResult is the outcome of one advisory DDL statement.
type StatementResult struct {
	Statement string
	Err       error
	Code      string
}

// ApplyStatements executes each statement on its own. Failures are
// collected and never stop the remaining statements.
func (s *Store) ApplyStatements(ctx context.Context, stmts []string) []StatementResult {
	log := logging.Component("remote")
	results := make([]StatementResult, 0, len(stmts))

	for _, stmt := range stmts {
		res := StatementResult{Statement: stmt}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			res.Err = err
			var pqErr *pq.Error
			if errors.As(err, &pqErr) {
				res.Code = string(pqErr.Code)
			}
			log.Warn("schema statement failed", "statement", stmt, "code", res.Code, "err", err)
		}
		results = append(results, res)
	}
	return results
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
