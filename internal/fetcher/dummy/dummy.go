package dummy

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"pricecache/internal/fetcher"
	"pricecache/internal/instrument"
)

// Fetcher returns a random price in [1, 100]. It is only wired when no real
// source is enabled, so a fresh checkout still answers requests.
type Fetcher struct{}

var _ fetcher.Fetcher = Fetcher{}

func New() Fetcher { return Fetcher{} }

func (Fetcher) Name() string { return "dummy" }

func (Fetcher) SupportedTypes() []instrument.Type {
	return []instrument.Type{instrument.None, instrument.Acciones, instrument.Cedears, instrument.Bonos}
}

func (Fetcher) Price(context.Context, string, instrument.Type) (float64, error) {
	v := 1 + rand.Float64()*99
	return decimal.NewFromFloat(v).Round(2).InexactFloat64(), nil
}

func (Fetcher) History(context.Context, string, time.Time, time.Time) ([]fetcher.Bar, error) {
	return nil, fetcher.ErrHistoryUnsupported
}
