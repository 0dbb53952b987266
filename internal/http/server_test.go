package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/backend"
	"fintrack/internal/clock"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/http/dto"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
	backend *backend.Backend
	clock   *clock.Fixed
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	clk := clock.NewFixed(time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC))
	cfg := &config.Config{
		StorageBackend: config.StorageMemory,
		EntryBackend:   config.EntryBackendLocal,
		ClaimTTL:       48 * time.Hour,
		WeekStart:      "monday",
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	b, err := backend.New(context.Background(), cfg, backend.Options{Clock: clk, Metrics: m})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	srv, err := NewServer(Config{Addr: ":0", RateLimitPerMinute: 1000}, b.Tracker, m, reg, b.Caches, log.Discard())
	require.NoError(t, err)
	return &testAPI{t: t, handler: srv.Handler, backend: b, clock: clk}
}

func (a *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			buf.WriteString(v)
		default:
			require.NoError(a.t, json.NewEncoder(&buf).Encode(v))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (a *testAPI) createEntry(typ core.EntryType, amount, category, desc, date string) core.Transaction {
	a.t.Helper()
	rr := a.do(http.MethodPost, "/api/v1/entries", map[string]any{
		"type": typ, "amount": amount, "category": category, "description": desc, "date": date,
	})
	require.Equal(a.t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[core.Transaction](a.t, rr)
}

func TestHealthReadyAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := api.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	}

	rr := api.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "fintrack_http_requests_total")
}

func TestEntries_CreateListUpdateDelete(t *testing.T) {
	api := newTestAPI(t)

	created := api.createEntry(core.Expense, "12.50", "Food", "Lunch", "2024-03-12")
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.Amount.Equal(decimal.RequireFromString("12.5")))

	list := decode[dto.EntryListResponse](t, api.do(http.MethodGet, "/api/v1/entries", nil))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, created.ID, list.Entries[0].ID)

	rr := api.do(http.MethodPut, "/api/v1/entries/"+created.ID, map[string]any{"description": "Team lunch"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Team lunch", decode[core.Transaction](t, rr).Description)

	rr = api.do(http.MethodDelete, "/api/v1/entries/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	list = decode[dto.EntryListResponse](t, api.do(http.MethodGet, "/api/v1/entries", nil))
	assert.Equal(t, 0, list.Count)
	assert.NotNil(t, list.Entries)
}

func TestEntries_ErrorMapping(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(http.MethodPost, "/api/v1/entries", map[string]any{
		"type": "expense", "amount": "0", "category": "Food", "description": "Free", "date": "2024-03-12",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	errResp := decode[dto.ErrorResponse](t, rr)
	assert.Equal(t, dto.CodeValidation, errResp.Error)
	assert.Equal(t, "amount", errResp.Field)

	rr = api.do(http.MethodPost, "/api/v1/entries", `{"type":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(http.MethodPost, "/api/v1/entries", `{"bogus":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(http.MethodDelete, "/api/v1/entries/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, dto.CodeNotFound, decode[dto.ErrorResponse](t, rr).Error)

	rr = api.do(http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReports_TotalsViewBreakdownSeries(t *testing.T) {
	api := newTestAPI(t)
	api.createEntry(core.Income, "2000", "Salary", "Pay", "2024-03-01")
	api.createEntry(core.Expense, "50", "Food", "Groceries", "2024-03-12")
	api.createEntry(core.Expense, "150", "Transport", "Train", "2024-02-20")

	totals := decode[dto.TotalsResponse](t, api.do(http.MethodGet, "/api/v1/totals", nil))
	assert.Equal(t, "1800", totals.Balance.String())
	assert.Equal(t, "EUR", totals.Currency)

	view := decode[dto.EntryListResponse](t, api.do(http.MethodGet, "/api/v1/view?type=expense&range=month", nil))
	require.Equal(t, 1, view.Count)
	assert.Equal(t, "Groceries", view.Entries[0].Description)

	view = decode[dto.EntryListResponse](t, api.do(http.MethodGet, "/api/v1/view?search=TRAIN", nil))
	require.Equal(t, 1, view.Count)

	rr := api.do(http.MethodGet, "/api/v1/view?range=decade", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	breakdown := decode[dto.BreakdownResponse](t, api.do(http.MethodGet, "/api/v1/breakdown?type=expense", nil))
	assert.Equal(t, "200", breakdown.Total.String())
	require.Len(t, breakdown.Categories, 2)
	assert.Equal(t, "Transport", breakdown.Categories[0].Name)
	assert.Equal(t, "75", breakdown.Categories[0].Percent.String())

	series := decode[dto.SeriesResponse](t, api.do(http.MethodGet, "/api/v1/series?period=month&count=2", nil))
	require.Len(t, series.Buckets, 2)
	assert.Equal(t, 1, series.Buckets[0].Count)
	assert.Equal(t, 2, series.Buckets[1].Count)

	rr = api.do(http.MethodGet, "/api/v1/series?count=abc", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestRecurring_LifecycleAndProcessing(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(http.MethodPost, "/api/v1/recurring", map[string]any{
		"type": "expense", "description": "Rent", "amount": "900", "category": "Housing",
		"frequency": "monthly", "startDate": "2024-03-01",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rt := decode[core.RecurringTemplate](t, rr)
	assert.True(t, rt.IsActive)

	upcoming := decode[dto.TemplateListResponse](t, api.do(http.MethodGet, "/api/v1/recurring/upcoming?limit=3", nil))
	require.Equal(t, 1, upcoming.Count)

	processed := decode[dto.ProcessResponse](t, api.do(http.MethodPost, "/api/v1/recurring/process", nil))
	require.Equal(t, 1, processed.Emitted)
	assert.Equal(t, "Rent (Auto)", processed.Entries[0].Description)

	again := decode[dto.ProcessResponse](t, api.do(http.MethodPost, "/api/v1/recurring/process", nil))
	assert.Equal(t, 0, again.Emitted)

	rr = api.do(http.MethodPost, "/api/v1/recurring/"+rt.ID+"/process", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "Rent (Manual)", decode[core.Transaction](t, rr).Description)

	got := decode[core.RecurringTemplate](t, api.do(http.MethodGet, "/api/v1/recurring/"+rt.ID, nil))
	require.NotNil(t, got.NextDue)
	assert.Equal(t, "2024-05-01", got.NextDue.String())

	toggled := decode[core.RecurringTemplate](t, api.do(http.MethodPost, "/api/v1/recurring/"+rt.ID+"/toggle", nil))
	assert.False(t, toggled.IsActive)
	rr = api.do(http.MethodPost, "/api/v1/recurring/"+rt.ID+"/process", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	set := decode[core.RecurringTemplate](t, api.do(http.MethodPost, "/api/v1/recurring/"+rt.ID+"/toggle", map[string]any{"isActive": true}))
	assert.True(t, set.IsActive)

	rr = api.do(http.MethodPut, "/api/v1/recurring/"+rt.ID, map[string]any{"amount": "950"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "950", decode[core.RecurringTemplate](t, rr).Amount.String())

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/api/v1/recurring/"+rt.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/v1/recurring/"+rt.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/api/v1/recurring/"+rt.ID+"/process", nil).Code)

	entries := decode[dto.EntryListResponse](t, api.do(http.MethodGet, "/api/v1/entries", nil))
	assert.Equal(t, 2, entries.Count)
}

func TestProfileCategoriesAndStatus(t *testing.T) {
	api := newTestAPI(t)

	p := decode[core.Profile](t, api.do(http.MethodGet, "/api/v1/profile", nil))
	assert.Equal(t, "EUR", p.Currency)

	rr := api.do(http.MethodPut, "/api/v1/profile", map[string]any{"name": " Ada ", "currency": "usd", "theme": "dark"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	saved := decode[core.Profile](t, rr)
	assert.Equal(t, "Ada", saved.Name)
	assert.Equal(t, "USD", saved.Currency)

	rr = api.do(http.MethodPut, "/api/v1/profile", map[string]any{"currency": "dollars", "theme": "dark"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	totals := decode[dto.TotalsResponse](t, api.do(http.MethodGet, "/api/v1/totals", nil))
	assert.Equal(t, "USD", totals.Currency)

	cats := decode[dto.CategoriesResponse](t, api.do(http.MethodGet, "/api/v1/categories", nil))
	assert.Contains(t, cats.Income, "Salary")
	assert.Contains(t, cats.Expense, "Food")

	status := decode[dto.StatusResponse](t, api.do(http.MethodGet, "/api/v1/status", nil))
	assert.True(t, status.NetworkAvailable)
}

func TestRateLimit(t *testing.T) {
	m := metrics.NewNop()
	api := newTestAPI(t)
	srv, err := NewServer(Config{RateLimitPerMinute: 2}, api.backend.Tracker, m, nil, nil, log.Discard())
	require.NoError(t, err)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/totals", nil))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code, "health checks are not rate limited")

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code, "metrics are disabled without a gatherer")
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", core.NewValidationError("amount", "bad"), http.StatusUnprocessableEntity, dto.CodeValidation},
		{"not found", core.NewNotFound("entry", "x"), http.StatusNotFound, dto.CodeNotFound},
		{"network", core.NewPersistenceError("add", core.ErrNetworkUnavailable), http.StatusServiceUnavailable, dto.CodePersistence},
		{"persistence", core.NewPersistenceError("add", assert.AnError), http.StatusServiceUnavailable, dto.CodePersistence},
		{"other", assert.AnError, http.StatusInternalServerError, dto.CodeInternal},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			status, resp := mapDomainError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, resp.Error)
			assert.False(t, strings.Contains(resp.Message, assert.AnError.Error()), "internal details stay out of the body")
		})
	}
}
