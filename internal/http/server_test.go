package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familyledger/internal/backend"
	"familyledger/internal/core"
	"familyledger/internal/repository/memory"
	"familyledger/internal/session"
)

type testServer struct {
	*Server
	store *memory.Store
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	store := memory.New()
	if opts.Services == nil {
		opts.Services = backend.NewServices(store, nil)
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	}
	s := NewServer(opts)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return &testServer{Server: s, store: store}
}

func (ts *testServer) do(t *testing.T, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("down") }})

	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = ts.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTransactionLifecycle(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(t, http.MethodPost, "/api/accounts/transactions", map[string]any{
		"date": "2024-01-05", "amount": 300, "details": "salary", "isInCome": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assert.Equal(t, true, created["isInCome"])
	assert.NotContains(t, created, "isCashback")
	assert.Equal(t, "2024-01-05", created["date"])
	id := created["id"].(string)

	rec = ts.do(t, http.MethodPut, "/api/accounts/transactions/"+id, map[string]any{
		"date": "2024-01-06", "amount": "1,200", "details": "salary", "isInCome": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, updated["version"])
	assert.EqualValues(t, 1200, updated["amount"])

	rec = ts.do(t, http.MethodGet, "/api/credit/transactions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/accounts/transactions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/accounts/transactions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestCreditUsesCashbackField(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(t, http.MethodPost, "/api/credit/transactions", map[string]any{
		"date": "2024-01-05", "amount": "50", "details": "refund", "isCashback": true, "isInCome": false,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assert.Equal(t, true, created["isCashback"])
	assert.NotContains(t, created, "isInCome")
}

func TestTransactionValidation(t *testing.T) {
	ts := newTestServer(t, Options{})

	tests := []struct {
		name   string
		body   any
		status int
		field  string
	}{
		{name: "missing details", body: map[string]any{"date": "2024-01-05", "amount": 1}, status: http.StatusUnprocessableEntity, field: "details"},
		{name: "missing date", body: map[string]any{"amount": 1, "details": "x"}, status: http.StatusUnprocessableEntity, field: "date"},
		{name: "bad date", body: map[string]any{"date": "05/01/2024", "amount": 1, "details": "x"}, status: http.StatusUnprocessableEntity},
		{name: "negative amount", body: map[string]any{"date": "2024-01-05", "amount": "-1", "details": "x"}, status: http.StatusUnprocessableEntity},
		{name: "malformed json", body: "{", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/accounts/transactions", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.field != "" {
				problem := decode[problemDetail](t, rec)
				assert.Equal(t, "required", problem.Fields[tt.field])
			}
		})
	}
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t, Options{})
	for _, body := range []map[string]any{
		{"date": "2024-01-03", "amount": 10, "details": "market fresh"},
		{"date": "2024-01-02", "amount": 20, "details": "market"},
		{"date": "2024-01-04", "amount": 30, "details": "Market", "isInCome": true},
		{"date": "2024-02-20", "amount": 40, "details": "market"},
	} {
		require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/accounts/transactions", body).Code)
	}

	q := url.Values{"start": {"2024-01-01"}, "end": {"2024-01-31"}, "prefix": {"market"}, "order": {"desc"}}
	rec := ts.do(t, http.MethodGet, "/api/accounts/search?"+q.Encode(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	found := decode[[]transactionResponse](t, rec)
	require.Len(t, found, 2)
	assert.Equal(t, "market fresh", found[0].Details)
	assert.Equal(t, "market", found[1].Details)

	q = url.Values{"start": {"2024-01-01"}, "end": {"2024-01-31"}, "isInCome": {"true"}}
	found = decode[[]transactionResponse](t, ts.do(t, http.MethodGet, "/api/accounts/search?"+q.Encode(), nil))
	require.Len(t, found, 1)
	assert.Equal(t, "Market", found[0].Details)

	for _, bad := range []url.Values{
		{"start": {"2024-01-31"}, "end": {"2024-01-01"}},
		{"start": {"2024-01-01"}, "end": {"2024-01-01"}},
		{"start": {"2024-01-01"}},
		{"start": {"2024-01-01"}, "end": {"2024-01-31"}, "order": {"sideways"}},
	} {
		rec := ts.do(t, http.MethodGet, "/api/accounts/search?"+bad.Encode(), nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, bad.Encode())
	}
}

func TestReports(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(t, http.MethodPost, "/api/periods", map[string]any{
		"month": "มกราคม", "year": 2024, "periodStart": "2023-12-13", "periodEnd": "2024-01-12",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2567, decode[map[string]any](t, rec)["displayYear"])

	for _, body := range []map[string]any{
		{"date": "2023-12-20", "amount": 300, "details": "pay", "isInCome": true},
		{"date": "2024-01-10", "amount": 100, "details": "rent"},
		{"date": "2024-01-13", "amount": 999, "details": "next month"},
	} {
		require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/accounts/transactions", body).Code)
	}
	for _, body := range []map[string]any{
		{"date": "2023-12-13", "amount": 80, "details": "shop"},
		{"date": "2024-01-12", "amount": 5, "details": "cashback", "isCashback": true},
	} {
		require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/credit/transactions", body).Code)
	}

	t.Run("account year", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/accounts/summary/2567", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var summary struct {
			Year   int `json:"year"`
			Months []struct {
				Month   string `json:"month"`
				Income  string `json:"income"`
				Expense string `json:"expense"`
				Balance string `json:"balance"`
			} `json:"months"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
		assert.Equal(t, 2024, summary.Year)
		require.Len(t, summary.Months, 1)
		assert.Equal(t, "300", summary.Months[0].Income)
		assert.Equal(t, "100", summary.Months[0].Expense)
		assert.Equal(t, "200", summary.Months[0].Balance)
	})

	t.Run("account month", func(t *testing.T) {
		q := url.Values{"month": {"มกราคม"}, "year": {"2567"}}
		rec := ts.do(t, http.MethodGet, "/api/accounts/month?"+q.Encode(), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		got := decode[map[string]any](t, rec)
		assert.Equal(t, "200", got["balance"])
	})

	t.Run("credit month", func(t *testing.T) {
		q := url.Values{"month": {"มกราคม"}, "year": {"2567"}}
		rec := ts.do(t, http.MethodGet, "/api/credit/summary?"+q.Encode(), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		got := decode[creditMonthResponse](t, rec)
		assert.Equal(t, "80", got.Expense)
		assert.Equal(t, "5", got.Cashback)
		assert.Len(t, got.Transactions, 2)
		assert.Equal(t, "2023-12-13", got.Window.Start.String())
	})

	t.Run("credit year", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/credit/year/2567", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got struct {
			Months []struct {
				Month string `json:"month"`
			} `json:"months"`
			TotalExpense string `json:"totalExpenses"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got.Months, 12)
		assert.Equal(t, "80", got.TotalExpense)
	})

	t.Run("account range", func(t *testing.T) {
		q := url.Values{"start": {"2023-12-01"}, "end": {"2024-01-31"}}
		rec := ts.do(t, http.MethodGet, "/api/accounts/range?"+q.Encode(), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		got := decode[rangeResponse](t, rec)
		assert.Len(t, got.Incomes, 1)
		assert.Len(t, got.Expenses, 2)
		assert.Equal(t, "-799", got.Balance)
	})

	t.Run("unknown month", func(t *testing.T) {
		q := url.Values{"month": {"Smarch"}, "year": {"2567"}}
		rec := ts.do(t, http.MethodGet, "/api/credit/summary?"+q.Encode(), nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestPeriodsAndSuggest(t *testing.T) {
	ts := newTestServer(t, Options{})

	q := url.Values{"month": {"มกราคม"}, "year": {"2567"}}
	rec := ts.do(t, http.MethodGet, "/api/periods/suggest?"+q.Encode(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	suggested := decode[periodResponse](t, rec)
	assert.Equal(t, "2023-12-13", suggested.PeriodStart.String())
	assert.Equal(t, "2024-01-12", suggested.PeriodEnd.String())
	assert.Equal(t, 2024, suggested.Year)

	rec = ts.do(t, http.MethodPost, "/api/periods", map[string]any{
		"month": "มกราคม", "year": 2024, "periodStart": "2024-01-12", "periodEnd": "2023-12-13",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/periods", map[string]any{
		"month": "มกราคม", "year": 2024, "periodStart": "2023-12-13", "periodEnd": "2024-01-12",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[periodResponse](t, rec).ID

	rec = ts.do(t, http.MethodPut, "/api/periods/"+id, map[string]any{
		"month": "มกราคม", "year": 2024, "periodStart": "2023-12-15", "periodEnd": "2024-01-14",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	list := decode[[]periodResponse](t, ts.do(t, http.MethodGet, "/api/periods", nil))
	require.Len(t, list, 1)
	assert.Equal(t, "2023-12-15", list[0].PeriodStart.String())

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/periods/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/periods/"+id, nil).Code)
}

func TestBloodPressure(t *testing.T) {
	ts := newTestServer(t, Options{})

	reading := func(sys, dia, pulse int) map[string]int {
		return map[string]int{"systolic": sys, "diastolic": dia, "pulse": pulse}
	}
	rec := ts.do(t, http.MethodPost, "/api/blood-pressure", map[string]any{
		"date": "2024-01-05", "morning": reading(150, 85, 70), "evening": reading(120, 80, 65),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[bloodPressureResponse](t, rec)
	assert.True(t, created.MorningHigh)
	assert.False(t, created.EveningHigh)

	rec = ts.do(t, http.MethodPost, "/api/blood-pressure", map[string]any{
		"date": "2024-01-06", "morning": reading(0, 0, 0), "evening": reading(120, 80, 65),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	q := url.Values{"start": {"2024-01-01"}, "end": {"2024-01-31"}}
	items := decode[[]bloodPressureResponse](t, ts.do(t, http.MethodGet, "/api/blood-pressure/range?"+q.Encode(), nil))
	require.Len(t, items, 1)
	assert.Equal(t, created.ID, items[0].ID)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/blood-pressure/"+created.ID, nil).Code)
}

func TestSelectors(t *testing.T) {
	ts := newTestServer(t, Options{})

	monthsList := decode[[]core.Selection](t, ts.do(t, http.MethodGet, "/api/selectors/months", nil))
	require.Len(t, monthsList, 12)
	assert.Equal(t, 1, monthsList[0].Value)

	years := decode[[]core.Selection](t, ts.do(t, http.MethodGet, "/api/selectors/years", nil))
	require.Len(t, years, 11)
	assert.Equal(t, 2567-5, years[0].Value)
}

func TestSessions(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(t, http.MethodPost, "/api/sessions", map[string]string{"user": "somchai"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sess := decode[session.Session](t, rec)
	require.NotEmpty(t, sess.ID)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/periods", nil, sessionHeader, sess.ID).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/periods", nil, sessionHeader, "nope").Code)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/sessions/"+sess.ID, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/periods", nil, sessionHeader, sess.ID).Code)
}

func TestRunReportSupersedesOlderRequest(t *testing.T) {
	ts := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/api/accounts/summary/2567", nil)
	req.Header.Set(sessionHeader, "s-1")

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := runReport(ts.Server, req, reportAccountYear, func(ctx context.Context) (int, error) {
			close(started)
			<-ctx.Done()
			return 0, ctx.Err()
		})
		done <- err
	}()
	<-started

	v, err := runReport(ts.Server, req, reportAccountYear, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, session.ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("older report was not cancelled")
	}

	rec := httptest.NewRecorder()
	writeError(rec, req, session.ErrSuperseded)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

type brokenStore struct {
	*memory.Store
}

func (brokenStore) ListPeriods(context.Context) ([]core.Period, error) {
	return nil, errors.New("disk on fire")
}

func TestRepositoryFailureIsBadGateway(t *testing.T) {
	ts := newTestServer(t, Options{Services: backend.NewServices(brokenStore{memory.New()}, nil)})

	rec := ts.do(t, http.MethodGet, "/api/periods", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")

	rec = ts.do(t, http.MethodGet, "/api/accounts/summary/2567", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRateLimitAndSuspiciousRequests(t *testing.T) {
	ts := newTestServer(t, Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/selectors/months", nil).Code)
	}
	rec := ts.do(t, http.MethodGet, "/api/selectors/months", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = ts.do(t, http.MethodGet, "/healthz?f=../../etc/passwd", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/problem+json"))
}

func TestExtractClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2")
	assert.Equal(t, "203.0.113.9", extractClientIP(req))

	req.RemoteAddr = "198.51.100.4:1234"
	assert.Equal(t, "198.51.100.4", extractClientIP(req))
}
