package dolarapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pricecache/internal/fetcher"
	"pricecache/internal/httpx"
	"pricecache/internal/instrument"
)

func TestPrice_Midpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"moneda":"USD","casa":"bolsa","compra":1180.35,"venta":1185.2,"fechaActualizacion":"2025-01-02T15:00:00.000Z"}`))
	}))
	defer srv.Close()

	f := New(Config{URL: srv.URL}, httpx.New(time.Second))
	price, err := f.Price(t.Context(), "usd", instrument.Monedas)
	require.NoError(t, err)
	require.InDelta(t, 1182.78, price, 1e-9)
}

func TestPrice_MissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"compra":1180}`))
	}))
	defer srv.Close()

	f := New(Config{URL: srv.URL}, httpx.New(time.Second))
	_, err := f.Price(t.Context(), "USD", instrument.Monedas)
	require.ErrorIs(t, err, fetcher.ErrNoPrice)
}

func TestPrice_OnlyUSDMonedas(t *testing.T) {
	f := New(Config{URL: "http://127.0.0.1:1"}, httpx.New(time.Second))

	_, err := f.Price(t.Context(), "EUR", instrument.Monedas)
	require.ErrorIs(t, err, fetcher.ErrNoPrice)

	_, err = f.Price(t.Context(), "USD", instrument.None)
	require.ErrorIs(t, err, fetcher.ErrUnsupportedType)
}
