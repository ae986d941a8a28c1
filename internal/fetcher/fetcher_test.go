package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pricecache/internal/instrument"
)

type stubFetcher struct {
	name  string
	types []instrument.Type
}

func (s stubFetcher) Name() string                      { return s.name }
func (s stubFetcher) SupportedTypes() []instrument.Type { return s.types }
func (s stubFetcher) Price(context.Context, string, instrument.Type) (float64, error) {
	return 0, ErrNoPrice
}
func (s stubFetcher) History(context.Context, string, time.Time, time.Time) ([]Bar, error) {
	return nil, ErrHistoryUnsupported
}

func TestEligible_ExactMatch(t *testing.T) {
	yahoo := stubFetcher{"yahoo", []instrument.Type{instrument.None, instrument.Acciones, instrument.Cedears}}
	bonds := stubFetcher{"bonds", []instrument.Type{instrument.Bonos}}
	fx := stubFetcher{"fx", []instrument.Type{instrument.Monedas}}
	all := []Fetcher{yahoo, bonds, fx}

	require.Equal(t, []string{"yahoo"}, Names(Eligible(all, instrument.None)))
	require.Equal(t, []string{"bonds"}, Names(Eligible(all, instrument.Bonos)))
	require.Equal(t, []string{"yahoo"}, Names(Eligible(all, instrument.Cedears)))
	require.Equal(t, []string{"fx"}, Names(Eligible(all, instrument.Monedas)))

	// None is not a wildcard in either direction.
	require.Empty(t, Eligible([]Fetcher{bonds}, instrument.None))
}

func TestList_DropsNil(t *testing.T) {
	f := stubFetcher{name: "a"}
	require.Len(t, List(f), 1)
	require.Len(t, List(nil, f, nil), 1)
	require.Empty(t, List())
}
