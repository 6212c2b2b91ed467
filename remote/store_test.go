package remote

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/crmpulse/models"
)

func TestUpsertDeals(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO crm_deals")).
		WithArgs("100", "Поставка", "Иван Петров", "Новая", "Отдел продаж", 1500.5, "RUB",
			"", "", "2024-03-01", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	res, err := store.UpsertDeals(ctx, []models.Deal{
		{
			DealID: "100", Title: "Поставка", Responsible: "Иван Петров", Stage: "Новая",
			Department: "Отдел продаж", Amount: 1500.5, Currency: "RUB",
			CreatedAt: models.StringPtr("2024-03-01"),
		},
		{Title: "без id"},
	})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Written: 1, Skipped: 1}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertTasksRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO crm_tasks")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err = store.UpsertTasks(context.Background(), []models.Task{{ID: "1"}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyStatementsContinuesAfterFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	stmts := []string{
		`ALTER TABLE "crm_deals" ADD COLUMN IF NOT EXISTS "a" text;`,
		`ALTER TABLE "crm_deals" ADD COLUMN IF NOT EXISTS "b" text;`,
	}

	mock.ExpectExec(regexp.QuoteMeta(stmts[0])).
		WillReturnError(&pq.Error{Code: "42501", Message: "permission denied"})
	mock.ExpectExec(regexp.QuoteMeta(stmts[1])).
		WillReturnResult(sqlmock.NewResult(0, 0))

	results := store.ApplyStatements(context.Background(), stmts)
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.Equal(t, "42501", results[0].Code)
	assert.NoError(t, results[1].Err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotQueries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	ctx := context.Background()
	id := uuid.New()
	created := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO crm_snapshots")).
		WithArgs(id.String(), created, "2024-03-04", "2024-03-10", 1, 0, sqlmock.AnyArg(), "null", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.SaveSnapshot(ctx, &models.Snapshot{
		ID: id, CreatedAt: created, WeekStart: "2024-03-04", WeekEnd: "2024-03-10",
		DealsCount: 1, DealsData: []models.Deal{{DealID: "1"}},
	})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM crm_snapshots")).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "week_start", "week_end", "deals_count", "tasks_count", "deals_data", "tasks_data", "metadata"}).
			AddRow(created, "2024-03-04", "2024-03-10", 1, 0, []byte(`[{"dealId":"1","stage":"Новая"}]`), []byte(`[]`), nil))

	snap, err := store.GetSnapshot(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Len(t, snap.DealsData, 1)
	assert.Equal(t, "Новая", snap.DealsData[0].Stage)

	mock.ExpectQuery(regexp.QuoteMeta("FROM crm_snapshots")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}))

	missing, err := store.GetSnapshot(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM crm_snapshots")).
		WithArgs(id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := store.DeleteSnapshot(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
