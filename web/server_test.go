// ABOUTME: Tests for the web dashboard routes
// ABOUTME: Serves pages from an in-memory source and inspects them with goquery
package web

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/crmpulse/charm"
	"github.com/harperreed/crmpulse/collection"
	"github.com/harperreed/crmpulse/db"
	"github.com/harperreed/crmpulse/handlers"
	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/normalize"
	"github.com/harperreed/crmpulse/snapshot"
)

func testServer(t *testing.T) (*Server, *handlers.Source) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	client, cleanup := charm.NewTestClient(t)
	t.Cleanup(cleanup)

	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	require.NoError(t, db.InitSchema(conn))
	t.Cleanup(func() { _ = conn.Close() })

	source := &handlers.Source{
		Cache:     collection.NewCache(client),
		Snapshots: snapshot.NewService(&snapshot.LocalBackend{DB: conn, Limit: db.SnapshotLimit}),
	}
	srv, err := NewServer(source, normalize.NewVocabulary(normalize.DefaultVocabularyFile()))
	require.NoError(t, err)
	srv.now = func() time.Time { return time.Date(2024, 3, 30, 12, 0, 0, 0, time.Local) }
	return srv, source
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func document(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	return doc
}

var sampleDeals = []models.Deal{
	{DealID: "1", Title: "Поставка", Responsible: "Иван Петров", Department: "Отдел продаж",
		Stage: normalize.StageExecuting, Amount: 1500, CreatedAt: models.StringPtr("2024-03-01")},
	{DealID: "2", Title: "Монтаж", Responsible: "Дмитрий Соколов", Department: "Производство",
		Stage: normalize.StageExecuting, Amount: 500, CreatedAt: models.StringPtr("2024-03-28")},
}

func TestDashboardPage(t *testing.T) {
	srv, source := testServer(t)
	require.NoError(t, source.Cache.SaveDeals(sampleDeals))

	doc := document(t, get(t, srv, "/"))
	assert.Equal(t, "Дашборд", doc.Find("h1").Text())
	assert.Equal(t, 1, doc.Find("#funnel tbody tr").Length())
	assert.Contains(t, doc.Find("#totals").Text(), "Сделок: 2")
	assert.Equal(t, 1, doc.Find("#stale-deals tbody tr").Length())
	assert.Contains(t, doc.Find("#mismatches").Text(), "Иван Петров")
}

func TestDashboardJSON(t *testing.T) {
	srv, source := testServer(t)
	require.NoError(t, source.Cache.SaveDeals(sampleDeals))

	rec := get(t, srv, "/api/dashboard?stale_days=100")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"TotalDeals":2`)
	assert.Contains(t, rec.Body.String(), `"StaleDeals":null`)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/dashboard?stale_days=x").Code)
}

func TestTablePage(t *testing.T) {
	srv, source := testServer(t)
	require.NoError(t, source.Cache.SaveTasks([]models.Task{
		{ID: "7", Title: "<b>Звонок</b>", Status: normalize.StatusNew},
	}))

	doc := document(t, get(t, srv, "/tasks"))
	assert.Equal(t, "1", doc.Find("#count").Text())
	assert.Equal(t, len(models.TaskFields), doc.Find("#records thead th").Length())
	assert.Contains(t, doc.Find("#records tbody").Text(), "<b>Звонок</b>")
	assert.Equal(t, 0, doc.Find("#records tbody b").Length())
}

func TestSnapshotsAndCompare(t *testing.T) {
	srv, source := testServer(t)
	ctx := context.Background()

	old := []models.Deal{{DealID: "1", Stage: normalize.StageNew, Responsible: "Иван Петров"}}
	snap, _, err := source.Snapshots.Create(ctx, old, nil, nil)
	require.NoError(t, err)
	require.NoError(t, source.Cache.SaveDeals(sampleDeals))

	doc := document(t, get(t, srv, "/snapshots"))
	assert.Contains(t, doc.Find("#snapshots").Text(), snap.ID.String())

	doc = document(t, get(t, srv, "/compare?old="+snap.ID.String()))
	assert.Contains(t, doc.Find("#deals").Text(), normalize.StageNew+" → "+normalize.StageExecuting)

	rec := get(t, srv, "/graph.svg?old="+snap.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<svg")

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/compare").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/compare?old=00000000-0000-0000-0000-000000000001").Code)
}

func TestExport(t *testing.T) {
	srv, source := testServer(t)
	require.NoError(t, source.Cache.SaveDeals(sampleDeals))

	rec := get(t, srv, "/export/deals?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=deals.csv", rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\uFEFF"))
	assert.Contains(t, rec.Body.String(), "Поставка")

	rec = get(t, srv, "/export/deals?format=xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"))

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/export/contacts").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/export/deals?format=pdf").Code)
}
