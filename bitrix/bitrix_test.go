// ABOUTME: Tests for the Bitrix adapter against a fake webhook server
// ABOUTME: Covers pagination, enum shapes, chunk failures, and fatal listing errors
package bitrix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/normalize"
)

type fakeBitrix struct {
	t        *testing.T
	mu       sync.Mutex
	calls    map[string]int
	handlers map[string]func(params map[string]any) (int, any)
}

func newFakeBitrix(t *testing.T) (*fakeBitrix, *Client) {
	f := &fakeBitrix{t: t, calls: make(map[string]int), handlers: make(map[string]func(map[string]any) (int, any))}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, NewClient(srv.URL+"/rest/1/secret", WithRateLimit(0))
}

func (f *fakeBitrix) on(method string, h func(params map[string]any) (int, any)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

func (f *fakeBitrix) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeBitrix) serve(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/rest/1/secret/"), ".json")

	var params map[string]any
	_ = json.NewDecoder(r.Body).Decode(&params)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	h, ok := f.handlers[method]

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"ERROR_METHOD_NOT_FOUND","error_description":"Method not found!"}`))
		return
	}

	status, body := h(params)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func page(items []map[string]any, params map[string]any, total int) map[string]any {
	start := int(params["start"].(float64))
	end := min(start+PageSize, len(items))
	out := map[string]any{"result": items[start:end], "total": total}
	if end < len(items) {
		out["next"] = end
	}
	return out
}

func TestCallErrors(t *testing.T) {
	f, client := newFakeBitrix(t)
	f.on("crm.deal.get", func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"error": "ACCESS_DENIED", "error_description": "no rights"}
	})
	f.on("crm.deal.empty", func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"time": map[string]any{}}
	})
	ctx := context.Background()

	_, err := client.Call(ctx, "crm.deal.get", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ACCESS_DENIED", apiErr.Code)

	_, err = client.Call(ctx, "crm.deal.empty", nil)
	assert.ErrorIs(t, err, ErrMissingResult)

	_, err = client.Call(ctx, "no.such.method", nil)
	assert.ErrorIs(t, err, ErrTransport)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ERROR_METHOD_NOT_FOUND", apiErr.Code)
}

func TestListAllPaginates(t *testing.T) {
	f, client := newFakeBitrix(t)
	var items []map[string]any
	for i := 1; i <= 120; i++ {
		items = append(items, map[string]any{"ID": fmt.Sprint(i)})
	}
	f.on("crm.deal.list", func(p map[string]any) (int, any) { return http.StatusOK, page(items, p, len(items)) })

	records, err := client.ListAll(context.Background(), "crm.deal.list", nil)
	require.NoError(t, err)
	assert.Len(t, records, 120)
	assert.Equal(t, 3, f.count("crm.deal.list"))
}

func TestListAllStopsWithoutNext(t *testing.T) {
	f, client := newFakeBitrix(t)
	var items []map[string]any
	for i := 0; i < PageSize; i++ {
		items = append(items, map[string]any{"ID": fmt.Sprint(i)})
	}
	f.on("crm.deal.list", func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"result": items}
	})

	records, err := client.ListAll(context.Background(), "crm.deal.list", nil)
	require.NoError(t, err)
	assert.Len(t, records, PageSize)
	assert.Equal(t, 1, f.count("crm.deal.list"))
}

func TestListAllFailsOnSecondPage(t *testing.T) {
	f, client := newFakeBitrix(t)
	var items []map[string]any
	for i := 0; i < 80; i++ {
		items = append(items, map[string]any{"ID": fmt.Sprint(i)})
	}
	f.on("crm.deal.list", func(p map[string]any) (int, any) {
		if p["start"].(float64) > 0 {
			return http.StatusServiceUnavailable, map[string]any{}
		}
		return http.StatusOK, page(items, p, len(items))
	})

	_, err := client.ListAll(context.Background(), "crm.deal.list", nil)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestParseEnumItemsShapes(t *testing.T) {
	objects := ParseEnumItems(json.RawMessage(`[{"ID":"1","VALUE":"Сайт"},{"ID":"2","VALUE":"Звонок"}]`))
	assert.Equal(t, map[string]string{"1": "Сайт", "2": "Звонок"}, objects)

	pairs := ParseEnumItems(json.RawMessage(`[["1","Сайт"],[2,"Звонок"]]`))
	assert.Equal(t, map[string]string{"1": "Сайт", "2": "Звонок"}, pairs)

	plain := ParseEnumItems(json.RawMessage(`{"1":"Сайт","2":"Звонок"}`))
	assert.Equal(t, map[string]string{"1": "Сайт", "2": "Звонок"}, plain)

	assert.Empty(t, ParseEnumItems(json.RawMessage(`"nonsense"`)))
}

func TestResolveSalesCategoryFallback(t *testing.T) {
	f, client := newFakeBitrix(t)
	ctx := context.Background()

	assert.Equal(t, "0", client.ResolveSalesCategory(ctx, "продаж", "0"))

	f.on("crm.dealcategory.list", func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"result": []map[string]any{
			{"ID": "3", "NAME": "Производство"},
			{"ID": "7", "NAME": "Отдел ПРОДАЖ"},
		}}
	})
	assert.Equal(t, "7", client.ResolveSalesCategory(ctx, "продаж", "0"))
	assert.Equal(t, "0", client.ResolveSalesCategory(ctx, "склад", "0"))
}

func TestResolveChunksSurviveFailures(t *testing.T) {
	f, client := newFakeBitrix(t)
	calls := 0
	f.on("user.get", func(p map[string]any) (int, any) {
		calls++
		if calls == 2 {
			return http.StatusInternalServerError, map[string]any{}
		}
		ids := p["filter"].(map[string]any)["ID"].([]any)
		var users []map[string]any
		for _, id := range ids {
			users = append(users, map[string]any{"ID": id, "NAME": "Пользователь", "LAST_NAME": id})
		}
		return http.StatusOK, map[string]any{"result": users}
	})

	var ids []string
	for i := 1; i <= 120; i++ {
		ids = append(ids, fmt.Sprint(i))
	}

	report := client.ResolveUsers(context.Background(), ids)
	require.Len(t, report.Chunks, 3)
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Index)
	assert.Len(t, report.Names, 70)
	assert.Len(t, report.Unresolved(), 50)
	assert.Equal(t, "Пользователь 1", report.Name("1"))
	assert.Equal(t, "60", report.Name("60"))
}

type recordingSnapshots struct {
	deals []models.Deal
	tasks []models.Task
	err   error
}

func (r *recordingSnapshots) Create(_ context.Context, deals []models.Deal, tasks []models.Task, _ map[string]string) (*models.Snapshot, string, error) {
	if r.err != nil {
		return nil, "", r.err
	}
	r.deals, r.tasks = deals, tasks
	return &models.Snapshot{DealsCount: len(deals), TasksCount: len(tasks)}, "local", nil
}

func setupDealServer(f *fakeBitrix) {
	f.on("crm.dealcategory.list", func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"result": []map[string]any{{"ID": "2", "NAME": "Продажи"}}}
	})
	f.on("crm.deal.fields", func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"result": map[string]any{
			"UF_CRM_SOURCE": map[string]any{"type": "enumeration", "isMultiple": true,
				"items": []map[string]any{{"ID": "11", "VALUE": "Сайт"}, {"ID": "12", "VALUE": "Выставка"}}},
			"UF_CRM_PARTNER": map[string]any{"type": "crm", "settings": map[string]any{"COMPANY": "Y"}},
		}}
	})
	f.on("crm.dealcategory.stage.list", func(p map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"result": []map[string]any{
			{"STATUS_ID": "C2:NEW", "NAME": "Новая сделка"},
			{"STATUS_ID": "C2:EXECUTING", "NAME": "В работе"},
		}}
	})
	f.on("crm.deal.list", func(p map[string]any) (int, any) {
		filter := p["filter"].(map[string]any)
		if filter["CATEGORY_ID"] != "2" {
			return http.StatusOK, map[string]any{"result": []any{}}
		}
		return http.StatusOK, map[string]any{"result": []map[string]any{
			{
				"ID": "100", "TITLE": "Поставка станков", "STAGE_ID": "C2:NEW", "ASSIGNED_BY_ID": "5",
				"DATE_CREATE": "2024-03-01T10:00:00+03:00", "DATE_MODIFY": "2024-03-05T12:30:00+03:00",
				"OPPORTUNITY": "150000.00", "CURRENCY_ID": "", "COMPANY_ID": "9", "CONTACT_ID": "31",
				"UF_CRM_SOURCE": []any{"11", "12"}, "UF_CRM_PARTNER": "9", "UF_CRM_NOTE": "C_31",
			},
			{
				"ID": "101", "TITLE": "Ремонт", "STAGE_ID": "C2:WON", "ASSIGNED_BY_ID": "6",
				"OPPORTUNITY": "", "COMPANY_ID": "0", "CONTACT_ID": nil,
			},
		}}
	})
	f.on("user.get", func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"result": []map[string]any{{"ID": "5", "NAME": "Иван", "LAST_NAME": "Петров"}}}
	})
	f.on("crm.contact.list", func(map[string]any) (int, any) {
		return http.StatusInternalServerError, map[string]any{}
	})
	f.on("crm.company.list", func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"result": []map[string]any{{"ID": "9", "TITLE": "ООО Станкопром"}}}
	})
}

func TestImportDeals(t *testing.T) {
	f, client := newFakeBitrix(t)
	setupDealServer(f)
	snaps := &recordingSnapshots{}

	adapter := NewAdapter(client, nil, Options{SalesCategory: "продаж"}, snaps)
	res, err := adapter.Import(context.Background(), KindDeals)
	require.NoError(t, err)
	require.Equal(t, 2, res.DealsCount())
	assert.Equal(t, "2", res.Deals.CategoryID)

	deal := res.Deals.Deals[0]
	assert.Equal(t, "100", deal.DealID)
	assert.Equal(t, "Иван Петров", deal.Responsible)
	assert.Equal(t, "Отдел продаж", deal.Department)
	assert.Equal(t, normalize.StageNew, deal.Stage)
	assert.Equal(t, "2024-03-01 10:00:00", *deal.CreatedAt)
	assert.InDelta(t, 150000.0, deal.Amount, 0.001)
	assert.Equal(t, DefaultCurrency, deal.Currency)
	assert.Equal(t, "ООО Станкопром", deal.Company)
	// The contact lookup failed, so the raw id stays.
	assert.Equal(t, "31", deal.Contact)
	assert.Equal(t, "Сайт, Выставка", deal.Extra["UF_CRM_SOURCE"])
	assert.Equal(t, "ООО Станкопром", deal.Extra["UF_CRM_PARTNER"])
	assert.Equal(t, "31", deal.Extra["UF_CRM_NOTE"])
	assert.Equal(t, "C2:NEW", deal.Extra["STAGE_ID"])

	second := res.Deals.Deals[1]
	assert.Equal(t, normalize.StageWon, second.Stage)
	assert.Equal(t, "6", second.Responsible)
	assert.Equal(t, models.UnknownLabel, second.Department)
	assert.Equal(t, models.DashLabel, second.Company)
	assert.Equal(t, models.DashLabel, second.Contact)

	failures := res.PartialFailures()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, ErrTransport)

	require.NotNil(t, res.Snapshot)
	assert.Len(t, snaps.deals, 2)
	assert.Nil(t, snaps.tasks)
}

func TestImportDealsListingFailureIsFatal(t *testing.T) {
	f, client := newFakeBitrix(t)
	setupDealServer(f)
	f.on("crm.deal.list", func(map[string]any) (int, any) {
		return http.StatusBadGateway, map[string]any{}
	})
	snaps := &recordingSnapshots{}

	res, err := NewAdapter(client, nil, Options{}, snaps).Import(context.Background(), KindDeals)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Nil(t, snaps.deals)
}

func setupTaskServer(f *fakeBitrix) {
	f.on("tasks.task.list", func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"result": map[string]any{"tasks": []map[string]any{
			{
				"id": "7", "title": "Подготовить КП", "status": "3", "priority": "2",
				"createdBy": "5", "responsibleId": "8", "createdDate": "2024-03-04T09:00:00+03:00",
				"description": strings.Repeat("д", 600),
				"responsible": map[string]any{"id": "8", "name": "Смирнова Мария"},
			},
		}}}
	})
	f.on("user.get", func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"result": []map[string]any{{"ID": "5", "NAME": "Иван", "LAST_NAME": "Петров"}}}
	})
}

func TestImportTasks(t *testing.T) {
	f, client := newFakeBitrix(t)
	setupTaskServer(f)

	res, err := NewAdapter(client, nil, Options{}, nil).Import(context.Background(), KindTasks)
	require.NoError(t, err)
	require.Equal(t, 1, res.TasksCount())

	task := res.Tasks.Tasks[0]
	assert.Equal(t, "7", task.ID)
	assert.Equal(t, "Иван Петров", task.Creator)
	assert.Equal(t, "Мария Смирнова", task.Assignee)
	assert.Equal(t, normalize.StatusInProgress, task.Status)
	assert.Equal(t, normalize.PriorityHigh, task.Priority)
	assert.Equal(t, DefaultDescriptionLimit, len([]rune(task.Description)))
	assert.Nil(t, res.Snapshot)

	// Raw fields named like canonical ones are kept under a prefixed key.
	assert.Equal(t, "7", task.Extra["source.id"])
	assert.NotContains(t, task.Extra, "id")
	assert.Greater(t, len([]rune(task.Extra["source.description"].(string))), DefaultDescriptionLimit)
}

func TestImportAllSnapshotFailureIsNotFatal(t *testing.T) {
	f, client := newFakeBitrix(t)
	setupDealServer(f)
	setupTaskServer(f)
	f.on("user.get", func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"result": []map[string]any{}}
	})
	snaps := &recordingSnapshots{err: errors.New("disk full")}

	res, err := NewAdapter(client, nil, Options{SalesCategory: "продаж"}, snaps).Import(context.Background(), KindAll)
	require.NoError(t, err)
	assert.Equal(t, 2, res.DealsCount())
	assert.Equal(t, 1, res.TasksCount())
	assert.Error(t, res.SnapshotErr)
	assert.Nil(t, res.Snapshot)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "абв", Truncate("абвгд", 3))
	assert.Equal(t, "абв", Truncate("абв", 3))
	assert.Equal(t, "абвгд", Truncate("абвгд", 0))
}
