package yahoo_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"pricecache/internal/fetcher"
	"pricecache/internal/fetcher/yahoo"
	"pricecache/internal/instrument"
)

func TestSymbol(t *testing.T) {
	t.Parallel()

	s, err := yahoo.Symbol("AAPL", instrument.None)
	require.NoError(t, err)
	require.Equal(t, "AAPL", s)

	s, err = yahoo.Symbol("GGAL", instrument.Acciones)
	require.NoError(t, err)
	require.Equal(t, "GGAL.BA", s)

	s, err = yahoo.Symbol("KO", instrument.Cedears)
	require.NoError(t, err)
	require.Equal(t, "KO.BA", s)

	_, err = yahoo.Symbol("AL30", instrument.Bonos)
	require.ErrorIs(t, err, fetcher.ErrUnsupportedType)
}

func TestFetcher_Price(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/v8/finance/chart/GGAL.BA", req.URL.Path)
			require.Equal(t, "1d", req.URL.Query().Get("range"))
			return okResponse(`{"chart":{"result":[{"meta":{"symbol":"GGAL.BA","regularMarketPrice":4210.5}}],"error":null}}`), nil
		}).
		Times(1)

	f := yahoo.New(yahoo.Config{}, yahoo.NewClient(yahoo.WithHTTPClient(httpClient)))
	require.Equal(t, "yahoo", f.Name())

	price, err := f.Price(t.Context(), "GGAL", instrument.Acciones)
	require.NoError(t, err)
	require.InEpsilon(t, 4210.5, price, 0.0001)
}

func TestFetcher_Price_NoMarketPrice(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Return(okResponse(emptyChart), nil).Times(1)

	f := yahoo.New(yahoo.Config{}, yahoo.NewClient(yahoo.WithHTTPClient(httpClient)))

	_, err := f.Price(t.Context(), "AAPL", instrument.None)
	require.ErrorIs(t, err, fetcher.ErrNoPrice)
}

func TestFetcher_Price_UnsupportedTypeSkipsUpstream(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Times(0)

	f := yahoo.New(yahoo.Config{}, yahoo.NewClient(yahoo.WithHTTPClient(httpClient)))

	_, err := f.Price(t.Context(), "USD", instrument.Monedas)
	require.ErrorIs(t, err, fetcher.ErrUnsupportedType)
}

func TestFetcher_History_SkipsNullCloses(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Return(okResponse(aaplHistory), nil).Times(1)

	f := yahoo.New(yahoo.Config{}, yahoo.NewClient(yahoo.WithHTTPClient(httpClient)))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	bars, err := f.History(t.Context(), "AAPL", start, end)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	require.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Date)
	require.InEpsilon(t, 150.0, bars[0].Price, 0.0001)
	require.InEpsilon(t, 149.5, *bars[0].AdjPrice, 0.0001)
	require.EqualValues(t, 1000, *bars[0].Volume)
}
