// ABOUTME: Tests for the CLI commands
// ABOUTME: Runs commands against a temp charm store, in-memory SQLite, and a fake Bitrix24 server
package cli

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/harperreed/crmpulse/bitrix"
	"github.com/harperreed/crmpulse/charm"
	"github.com/harperreed/crmpulse/collection"
	"github.com/harperreed/crmpulse/config"
	"github.com/harperreed/crmpulse/db"
	"github.com/harperreed/crmpulse/diff"
	"github.com/harperreed/crmpulse/ingest"
	"github.com/harperreed/crmpulse/normalize"
	"github.com/harperreed/crmpulse/snapshot"
)

const weekOneCSV = "ID;Название;Ответственный;Стадия;Дата создания\n" +
	"1;Поставка;Иван Петров;Новая;04.03.2024\n" +
	"2;Монтаж;Дмитрий Соколов;В работе;05.03.2024\n"

const weekTwoCSV = "ID;Название;Ответственный;Стадия;Дата создания;UF_CRM_SOURCE\n" +
	"1;Поставка;Иван Петров;won;04.03.2024;сайт\n" +
	"3;Ремонт;Мария Смирнова;Новая;12.03.2024;выставка\n"

func testApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()

	client, cleanup := charm.NewTestClient(t)
	t.Cleanup(cleanup)

	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	require.NoError(t, db.InitSchema(conn))
	t.Cleanup(func() { _ = conn.Close() })

	cfg := config.Default()
	cfg.RateLimit = 0

	vocab := normalize.NewVocabulary(normalize.DefaultVocabularyFile())
	out := &bytes.Buffer{}
	return &App{
		Config:    cfg,
		DB:        conn,
		Cache:     collection.NewCache(client),
		Snapshots: snapshot.NewService(&snapshot.LocalBackend{DB: conn, Limit: db.SnapshotLimit}),
		Vocab:     vocab,
		Importer:  ingest.NewImporter(normalize.NewCanonicalizer(vocab)),
		Out:       out,
		In:        strings.NewReader(""),
	}, out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestImportCSVCommand(t *testing.T) {
	app, out := testApp(t)
	ctx := context.Background()

	err := ImportCSVCommand(ctx, app, []string{"--save", writeFile(t, "deals.csv", weekOneCSV)})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✓ Imported 2 deals")
	assert.Contains(t, out.String(), "✓ Snapshot")

	deals, err := app.Cache.Deals()
	require.NoError(t, err)
	assert.Len(t, deals, 2)

	list, err := app.Snapshots.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, diff.WeekOf(time.Now()).StartISO(), list[0].WeekStart)

	state, err := db.GetImportState(app.DB, SourceCSV)
	require.NoError(t, err)
	assert.Equal(t, db.StatusIdle, state.Status)

	logs, err := db.ListImportLog(app.DB, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 2, logs[0].RecordCount)
}

func TestImportCSVCommandMerge(t *testing.T) {
	app, out := testApp(t)
	ctx := context.Background()

	require.NoError(t, ImportCSVCommand(ctx, app, []string{writeFile(t, "a.csv", weekOneCSV)}))
	require.NoError(t, ImportCSVCommand(ctx, app, []string{"--merge", writeFile(t, "b.csv", weekTwoCSV)}))

	deals, err := app.Cache.Deals()
	require.NoError(t, err)
	assert.Len(t, deals, 3)
	assert.Contains(t, out.String(), "Collection size: 3")
}

func TestImportCSVCommandGate(t *testing.T) {
	app, _ := testApp(t)
	require.NoError(t, db.BeginImport(app.DB, SourceCSV))

	err := ImportCSVCommand(context.Background(), app, []string{writeFile(t, "a.csv", weekOneCSV)})
	assert.ErrorIs(t, err, db.ErrImportInProgress)
}

func TestImportCSVCommandForceClearsLeftoverMark(t *testing.T) {
	app, out := testApp(t)
	require.NoError(t, db.BeginImport(app.DB, SourceCSV))

	err := ImportCSVCommand(context.Background(), app, []string{"--force", writeFile(t, "a.csv", weekOneCSV)})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✓ Imported 2 deals")

	state, err := db.GetImportState(app.DB, SourceCSV)
	require.NoError(t, err)
	assert.Equal(t, db.StatusIdle, state.Status)
}

func TestImportCSVCommandValidation(t *testing.T) {
	app, _ := testApp(t)
	ctx := context.Background()

	assert.Error(t, ImportCSVCommand(ctx, app, nil))
	assert.Error(t, ImportCSVCommand(ctx, app, []string{"--kind", "contacts", "x.csv"}))
}

func TestImportBitrixCommandNeedsWebhook(t *testing.T) {
	app, _ := testApp(t)

	err := ImportBitrixCommand(context.Background(), app, nil)
	assert.ErrorContains(t, err, "CRMPULSE_BITRIX_WEBHOOK")
}

func TestImportBitrixCommandFailureResetsState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	app, out := testApp(t)
	app.Config.BitrixWebhook = srv.URL + "/rest/1/secret/"

	err := ImportBitrixCommand(context.Background(), app, []string{"--kind", "deals"})
	require.Error(t, err)
	assert.Contains(t, out.String(), bitrix.UserMessage)

	state, err := db.GetImportState(app.DB, SourceBitrix)
	require.NoError(t, err)
	assert.Equal(t, db.StatusError, state.Status)

	// The gate is open again.
	require.NoError(t, db.BeginImport(app.DB, SourceBitrix))
}

// taskWebhook serves a one-task Bitrix24 portal.
func taskWebhook(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/tasks.task.list.json"):
			_, _ = w.Write([]byte(`{"result":{"tasks":[{"id":"7","title":"Подготовить КП","status":"3",` +
				`"priority":"1","createdBy":"5","responsibleId":"5"}]},"total":1}`))
		case strings.HasSuffix(r.URL.Path, "/user.get.json"):
			_, _ = w.Write([]byte(`{"result":[{"ID":"5","NAME":"Иван","LAST_NAME":"Петров"}]}`))
		default:
			http.Error(w, "unknown method", http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/rest/1/secret/"
}

func TestImportBitrixCommandSnapshotsByDefault(t *testing.T) {
	app, out := testApp(t)
	app.Config.BitrixWebhook = taskWebhook(t)
	ctx := context.Background()

	require.NoError(t, ImportBitrixCommand(ctx, app, []string{"--kind", "tasks"}))
	assert.Contains(t, out.String(), "✓ Loaded 0 deals, 1 tasks")
	assert.Contains(t, out.String(), "✓ Snapshot ")

	list, err := app.Snapshots.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].TasksCount)

	tasks, err := app.Cache.Tasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Иван Петров", tasks[0].Assignee)
}

func TestImportBitrixCommandNoSnapshot(t *testing.T) {
	app, out := testApp(t)
	app.Config.BitrixWebhook = taskWebhook(t)
	ctx := context.Background()

	require.NoError(t, ImportBitrixCommand(ctx, app, []string{"--kind", "tasks", "--no-snapshot"}))
	assert.NotContains(t, out.String(), "Snapshot")

	list, err := app.Snapshots.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCompareCommand(t *testing.T) {
	app, out := testApp(t)

	err := CompareCommand(context.Background(), app, []string{
		writeFile(t, "old.csv", weekOneCSV),
		writeFile(t, "new.csv", weekTwoCSV),
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Было: 2  Стало: 2")
	assert.Contains(t, out.String(), "Новых: 1  Удалённых: 1  Смен этапа: 1")
	assert.Contains(t, out.String(), normalize.StageNew+" → "+normalize.StageWon)

	assert.Error(t, CompareCommand(context.Background(), app, []string{"only-one"}))
}

func TestSnapshotsCommand(t *testing.T) {
	app, out := testApp(t)
	ctx := context.Background()

	require.NoError(t, SnapshotsCommand(ctx, app, []string{"list"}))
	assert.Contains(t, out.String(), "No snapshots found")

	require.NoError(t, ImportCSVCommand(ctx, app, []string{"--save", writeFile(t, "a.csv", weekOneCSV)}))
	list, err := app.Snapshots.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID.String()

	out.Reset()
	require.NoError(t, SnapshotsCommand(ctx, app, []string{"list"}))
	assert.Contains(t, out.String(), id)
	assert.Contains(t, out.String(), "Total: 1 snapshots")

	out.Reset()
	require.NoError(t, SnapshotsCommand(ctx, app, []string{"show", id}))
	assert.Contains(t, out.String(), "source: csv")

	out.Reset()
	require.NoError(t, SnapshotsCommand(ctx, app, []string{"week", "--date", time.Now().Format("2006-01-02")}))
	assert.Contains(t, out.String(), id)

	out.Reset()
	require.NoError(t, SnapshotsCommand(ctx, app, []string{"week", "--date", "2001-04-02"}))
	assert.Contains(t, out.String(), "No snapshot for week")

	require.NoError(t, SnapshotsCommand(ctx, app, []string{"delete", id}))
	_, err = app.Snapshots.Get(ctx, list[0].ID)
	assert.ErrorIs(t, err, snapshot.ErrNotFound)

	assert.Error(t, SnapshotsCommand(ctx, app, []string{"show", "nope"}))
	assert.Error(t, SnapshotsCommand(ctx, app, nil))
}

func TestSchemaCommand(t *testing.T) {
	app, out := testApp(t)
	ctx := context.Background()
	require.NoError(t, ImportCSVCommand(ctx, app, []string{writeFile(t, "b.csv", weekTwoCSV)}))

	out.Reset()
	require.NoError(t, SchemaCommand(ctx, app, []string{"analyze"}))
	assert.Contains(t, out.String(), "UF_CRM_SOURCE")
	assert.Contains(t, out.String(), `ALTER TABLE "crm_deals"`)

	err := SchemaCommand(ctx, app, []string{"analyze", "--apply"})
	assert.ErrorContains(t, err, "remote store")
}

func TestExportCommandXLSX(t *testing.T) {
	app, out := testApp(t)
	ctx := context.Background()
	require.NoError(t, ImportCSVCommand(ctx, app, []string{writeFile(t, "a.csv", weekOneCSV)}))

	path := filepath.Join(t.TempDir(), "deals.xlsx")
	require.NoError(t, ExportCommand(ctx, app, []string{"--output", path}))
	assert.Contains(t, out.String(), "✓ Exported 2 deals")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Сделки")
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	assert.Error(t, ExportCommand(ctx, app, []string{"--format", "xlsx"}))
}

func TestExportCommandCSVToStdout(t *testing.T) {
	app, out := testApp(t)
	ctx := context.Background()
	require.NoError(t, ImportCSVCommand(ctx, app, []string{writeFile(t, "a.csv", weekOneCSV)}))

	out.Reset()
	require.NoError(t, ExportCommand(ctx, app, []string{"--format", "csv"}))
	assert.True(t, strings.HasPrefix(out.String(), "\uFEFF"))
	assert.Contains(t, out.String(), "Поставка")
}

func TestDashboardCommand(t *testing.T) {
	app, out := testApp(t)
	ctx := context.Background()
	require.NoError(t, ImportCSVCommand(ctx, app, []string{writeFile(t, "a.csv", weekOneCSV)}))

	out.Reset()
	require.NoError(t, DashboardCommand(ctx, app, nil))
	assert.Contains(t, out.String(), "ВОРОНКА")
	assert.Contains(t, out.String(), normalize.StageExecuting)
}

func TestVizCommandDOT(t *testing.T) {
	app, out := testApp(t)

	err := VizCommand(context.Background(), app, []string{
		"transitions",
		writeFile(t, "old.csv", weekOneCSV),
		writeFile(t, "new.csv", weekTwoCSV),
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "digraph")
	assert.Contains(t, out.String(), "->")
}

func TestCacheCommand(t *testing.T) {
	app, out := testApp(t)
	ctx := context.Background()
	require.NoError(t, ImportCSVCommand(ctx, app, []string{writeFile(t, "a.csv", weekOneCSV)}))

	require.NoError(t, CacheCommand(app, []string{"clear"}))
	assert.Contains(t, out.String(), "✓ Cleared deals")

	deals, err := app.Cache.Deals()
	require.NoError(t, err)
	assert.Empty(t, deals)

	assert.Error(t, CacheCommand(app, nil))
}
