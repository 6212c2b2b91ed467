package db

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginImportGate(t *testing.T) {
	db := setupTestDB(t)

	state, err := GetImportState(db, "bitrix")
	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, BeginImport(db, "bitrix"))

	err = BeginImport(db, "bitrix")
	assert.ErrorIs(t, err, ErrImportInProgress)

	// Other sources are independent
	require.NoError(t, BeginImport(db, "csv"))

	require.NoError(t, FinishImport(db, "bitrix", nil))
	state, err = GetImportState(db, "bitrix")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, StatusIdle, state.Status)
	assert.NotNil(t, state.FinishedAt)
	assert.Nil(t, state.ErrorMessage)

	require.NoError(t, BeginImport(db, "bitrix"))
}

func TestFinishImportWithError(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, BeginImport(db, "bitrix"))
	require.NoError(t, FinishImport(db, "bitrix", errors.New("transport failed")))

	state, err := GetImportState(db, "bitrix")
	require.NoError(t, err)
	assert.Equal(t, StatusError, state.Status)
	require.NotNil(t, state.ErrorMessage)
	assert.Equal(t, "transport failed", *state.ErrorMessage)

	// An errored source can be retried
	require.NoError(t, BeginImport(db, "bitrix"))
}

func TestBeginImportTakesOverStaleMark(t *testing.T) {
	db := setupTestDB(t)

	// A process that died mid-import three hours ago left its mark behind.
	started := time.Now().UTC().Add(-3 * time.Hour)
	require.NoError(t, beginImport(db, "bitrix", started, StaleImportAfter))

	require.NoError(t, BeginImport(db, "bitrix"))
	state, err := GetImportState(db, "bitrix")
	require.NoError(t, err)
	assert.Equal(t, StatusImporting, state.Status)
	require.NotNil(t, state.StartedAt)
	assert.WithinDuration(t, time.Now(), *state.StartedAt, time.Minute)

	// The fresh mark still blocks.
	assert.ErrorIs(t, BeginImport(db, "bitrix"), ErrImportInProgress)
}

func TestResetImportClearsMark(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, BeginImport(db, "csv"))
	require.ErrorIs(t, BeginImport(db, "csv"), ErrImportInProgress)

	require.NoError(t, ResetImport(db, "csv"))
	state, err := GetImportState(db, "csv")
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, state.Status)

	require.NoError(t, BeginImport(db, "csv"))

	// Resetting a source that never ran is a no-op.
	require.NoError(t, ResetImport(db, "never"))
}

func TestImportLog(t *testing.T) {
	db := setupTestDB(t)

	first, err := LogImport(db, "csv", "deals", 10, 2, nil)
	require.NoError(t, err)
	second, err := LogImport(db, "bitrix", "tasks", 0, 0, errors.New("boom"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	entries, err := ListImportLog(db, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, second, entries[0].ID)
	require.NotNil(t, entries[0].ErrorMessage)
	assert.Equal(t, "boom", *entries[0].ErrorMessage)
	assert.Equal(t, 10, entries[1].RecordCount)
	assert.Equal(t, 2, entries[1].IgnoredCount)

	limited, err := ListImportLog(db, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
