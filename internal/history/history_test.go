package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecache/internal/fetcher"
	"pricecache/internal/instrument"
	"pricecache/internal/storage/historical"
)

type stubFetcher struct {
	name  string
	bars  []fetcher.Bar
	err   error
	calls int
}

func (s *stubFetcher) Name() string                      { return s.name }
func (s *stubFetcher) SupportedTypes() []instrument.Type { return []instrument.Type{instrument.None} }
func (s *stubFetcher) Price(context.Context, string, instrument.Type) (float64, error) {
	return 0, fetcher.ErrNoPrice
}
func (s *stubFetcher) History(context.Context, string, time.Time, time.Time) ([]fetcher.Bar, error) {
	s.calls++
	return s.bars, s.err
}

func ptr[T any](v T) *T { return &v }

func day(s string) time.Time {
	d, _ := historical.ParseDate(s)
	return d
}

func openStore(t *testing.T) historical.Store {
	t.Helper()
	s, err := historical.OpenSQLite(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBackfill_SkipsUnsupportedAndStoresFirstAnswer(t *testing.T) {
	store := openStore(t)
	noHistory := &stubFetcher{name: "dolarapi", err: fetcher.ErrHistoryUnsupported}
	broken := &stubFetcher{name: "flaky", err: errors.New("timeout")}
	yahoo := &stubFetcher{name: "yahoo", bars: []fetcher.Bar{
		{Date: day("2024-01-02"), Price: 150, AdjPrice: ptr(149.5), Volume: ptr(int64(1000))},
		{Date: day("2024-01-03"), Price: 151},
	}}
	later := &stubFetcher{name: "later", bars: []fetcher.Bar{{Date: day("2024-01-02"), Price: 1}}}

	svc := New(store, []fetcher.Fetcher{noHistory, broken, yahoo, later}, nil)
	res, err := svc.Backfill(t.Context(), "aapl", day("2024-01-01"), day("2024-01-05"))
	require.NoError(t, err)

	assert.Equal(t, "yahoo", res.Source)
	assert.Equal(t, 2, res.Inserted)
	assert.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "dolarapi")
	assert.Zero(t, later.calls)

	got, err := svc.Get(t.Context(), "AAPL", day("2024-01-01"), day("2024-01-03"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 150.0, got[0].Price, 1e-9)
	assert.InDelta(t, 149.5, *got[0].AdjPrice, 1e-9)
}

func TestBackfill_Idempotent(t *testing.T) {
	store := openStore(t)
	f := &stubFetcher{name: "yahoo", bars: []fetcher.Bar{{Date: day("2024-01-02"), Price: 150}}}
	svc := New(store, []fetcher.Fetcher{f}, nil)

	for range 2 {
		_, err := svc.Backfill(t.Context(), "AAPL", day("2024-01-01"), day("2024-01-03"))
		require.NoError(t, err)
	}
	got, err := svc.Get(t.Context(), "AAPL", day("2024-01-01"), day("2024-01-03"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestBackfill_NothingAvailable(t *testing.T) {
	svc := New(openStore(t), []fetcher.Fetcher{&stubFetcher{name: "dummy", err: fetcher.ErrHistoryUnsupported}}, nil)
	res, err := svc.Backfill(t.Context(), "AAPL", day("2024-01-01"), day("2024-01-03"))
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)
	assert.Empty(t, res.Source)
	assert.Equal(t, []string{"dummy: history not supported"}, res.Warnings)
}

func TestGet_EmptyRange(t *testing.T) {
	svc := New(openStore(t), nil, nil)
	got, err := svc.Get(t.Context(), "AAPL", day("2024-02-01"), day("2024-02-28"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGet_InvalidRange(t *testing.T) {
	svc := New(openStore(t), nil, nil)
	_, err := svc.Get(t.Context(), "AAPL", day("2024-02-28"), day("2024-02-01"))
	require.ErrorIs(t, err, ErrInvalidRange)

	_, err = svc.Backfill(t.Context(), "", day("2024-02-01"), day("2024-02-28"))
	require.ErrorIs(t, err, ErrInvalidRange)
}
