package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecache/internal/history"
	"pricecache/internal/instrument"
	"pricecache/internal/reconcile"
	"pricecache/internal/storage/historical"
)

type fakeResolver struct {
	quotes map[string]reconcile.Quote
	calls  []string
	panic  bool
}

func (f *fakeResolver) Resolve(_ context.Context, ticker string, typ instrument.Type) (reconcile.Quote, error) {
	if f.panic {
		panic("boom")
	}
	t := instrument.NormalizeTicker(ticker)
	if t == "" {
		return reconcile.Quote{}, reconcile.ErrInvalidTicker
	}
	key := typ.Partition() + "/" + t
	f.calls = append(f.calls, key)
	q, ok := f.quotes[key]
	if !ok {
		return reconcile.Quote{}, reconcile.ErrNotAvailable
	}
	return q, nil
}

type fakeHistory struct {
	recs []historical.Record
	err  error
}

func (f *fakeHistory) Get(_ context.Context, _ string, start, end time.Time) ([]historical.Record, error) {
	if end.Before(start) {
		return nil, history.ErrInvalidRange
	}
	return f.recs, f.err
}

var updated = time.Date(2025, 6, 2, 15, 4, 5, 0, time.UTC)

func newTestServer(r *fakeResolver, h *fakeHistory) http.Handler {
	if r == nil {
		r = &fakeResolver{}
	}
	if h == nil {
		h = &fakeHistory{}
	}
	return New(r, h, time.Second, nil).Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestPrice_Untyped(t *testing.T) {
	r := &fakeResolver{quotes: map[string]reconcile.Quote{
		"none/AAPL": {Ticker: "AAPL", Price: 190.25, UpdatedAt: updated},
	}}
	rr := get(t, newTestServer(r, nil), "/price/aapl")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
	assert.Empty(t, rr.Header().Get(StaleHeader))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "AAPL", body["ticker"])
	assert.InDelta(t, 190.25, body["price"], 1e-9)
	assert.Equal(t, "2025-06-02T15:04:05Z", body["updated_at"])
}

func TestPrice_TypedAndBonosAlias(t *testing.T) {
	r := &fakeResolver{quotes: map[string]reconcile.Quote{
		"bonos/AL30":    {Ticker: "AL30", Price: 70, UpdatedAt: updated},
		"acciones/GGAL": {Ticker: "GGAL", Price: 5000, UpdatedAt: updated},
	}}
	h := newTestServer(r, nil)

	assert.Equal(t, http.StatusOK, get(t, h, "/price/acciones/ggal").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/price/BONOS/al30").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/bonos/al30").Code)
	assert.Equal(t, []string{"acciones/GGAL", "bonos/AL30", "bonos/AL30"}, r.calls)
}

func TestPrice_NotAvailable(t *testing.T) {
	rr := get(t, newTestServer(nil, nil), "/price/NOPE")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"detail":"Price not available"}`, rr.Body.String())
}

func TestPrice_UnknownType(t *testing.T) {
	r := &fakeResolver{}
	rr := get(t, newTestServer(r, nil), "/price/futuros/AAPL")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"detail":"Price not available"}`, rr.Body.String())
	assert.Empty(t, r.calls)
}

func TestPrice_StaleHeader(t *testing.T) {
	r := &fakeResolver{quotes: map[string]reconcile.Quote{
		"none/AAPL": {Ticker: "AAPL", Price: 50, UpdatedAt: updated.Add(-time.Hour), Stale: true},
	}}
	rr := get(t, newTestServer(r, nil), "/price/AAPL")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "true", rr.Header().Get(StaleHeader))
}

func TestHistory_OK(t *testing.T) {
	adj, vol := 149.5, int64(1000)
	h := &fakeHistory{recs: []historical.Record{
		{Ticker: "AAPL", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Price: 150, AdjPrice: &adj, Volume: &vol},
		{Ticker: "AAPL", Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Price: 151},
	}}
	rr := get(t, newTestServer(nil, h), "/historial/aapl?desde=2024-01-01&hasta=2024-01-03")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{
		"ticker": "AAPL",
		"history": [
			{"date": "2024-01-02", "price": 150, "adj_price": 149.5, "volume": 1000},
			{"date": "2024-01-03", "price": 151, "adj_price": null, "volume": null}
		]
	}`, rr.Body.String())
}

func TestHistory_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		hist   *fakeHistory
		status int
		detail string
	}{
		{"empty", "/historial/AAPL?desde=2024-02-01&hasta=2024-02-28", &fakeHistory{}, http.StatusNotFound, "History not available"},
		{"missing hasta", "/historial/AAPL?desde=2024-02-01", &fakeHistory{}, http.StatusBadRequest, "desde and hasta are required (YYYY-MM-DD)"},
		{"bad date", "/historial/AAPL?desde=02/01/2024&hasta=2024-02-28", &fakeHistory{}, http.StatusBadRequest, "invalid desde: 02/01/2024"},
		{"reversed", "/historial/AAPL?desde=2024-02-28&hasta=2024-02-01", &fakeHistory{}, http.StatusBadRequest, "invalid date range"},
		{"store error", "/historial/AAPL?desde=2024-02-01&hasta=2024-02-28", &fakeHistory{err: errors.New("db gone")}, http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(t, newTestServer(nil, tt.hist), tt.path)
			require.Equal(t, tt.status, rr.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.detail, body.Detail)
		})
	}
}

func TestHealthz(t *testing.T) {
	rr := get(t, newTestServer(nil, nil), "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestServer(nil, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/price/AAPL", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestMiddleware_RequestIDPropagated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	newTestServer(nil, nil).ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get(requestIDHeader))
}

func TestMiddleware_Gzip(t *testing.T) {
	r := &fakeResolver{quotes: map[string]reconcile.Quote{"none/AAPL": {Ticker: "AAPL", Price: 1, UpdatedAt: updated}}}
	req := httptest.NewRequest(http.MethodGet, "/price/AAPL", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	newTestServer(r, nil).ServeHTTP(rr, req)

	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	b, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"ticker":"AAPL"`)
}

func TestMiddleware_PreflightNotCompressed(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/price/AAPL", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	rr := httptest.NewRecorder()
	newTestServer(nil, nil).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Header().Get("Content-Encoding"))
	assert.Empty(t, rr.Body.Bytes())
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Expose-Headers"), StaleHeader)
}

func TestMiddleware_RecoverPanic(t *testing.T) {
	rr := get(t, newTestServer(&fakeResolver{panic: true}, nil), "/price/AAPL")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
