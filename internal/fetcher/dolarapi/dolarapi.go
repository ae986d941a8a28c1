package dolarapi

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pricecache/internal/fetcher"
	"pricecache/internal/httpx"
	"pricecache/internal/instrument"
)

const defaultURL = "https://dolarapi.com/v1/dolares/bolsa"

type Config struct {
	Name string
	URL  string
}

// Fetcher quotes the MEP ("bolsa") dollar. It only knows USD.
type Fetcher struct {
	cfg    Config
	client *httpx.Client
}

var _ fetcher.Fetcher = (*Fetcher)(nil)

func New(cfg Config, hc *httpx.Client) *Fetcher {
	if cfg.Name == "" {
		cfg.Name = "dolarapi"
	}
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	return &Fetcher{cfg: cfg, client: hc}
}

func (f *Fetcher) Name() string { return f.cfg.Name }

func (f *Fetcher) SupportedTypes() []instrument.Type {
	return []instrument.Type{instrument.Monedas}
}

type quote struct {
	Compra *decimal.Decimal `json:"compra"`
	Venta  *decimal.Decimal `json:"venta"`
}

// Price returns the compra/venta midpoint rounded to cents.
func (f *Fetcher) Price(ctx context.Context, ticker string, typ instrument.Type) (float64, error) {
	if typ != instrument.Monedas {
		return 0, fmt.Errorf("%w: %s", fetcher.ErrUnsupportedType, typ)
	}
	if instrument.NormalizeTicker(ticker) != "USD" {
		return 0, fetcher.ErrNoPrice
	}
	var q quote
	if err := f.client.GetJSON(ctx, f.cfg.URL, &q); err != nil {
		return 0, err
	}
	if q.Compra == nil || q.Venta == nil {
		return 0, fetcher.ErrNoPrice
	}
	mid := q.Compra.Add(*q.Venta).Div(decimal.NewFromInt(2)).Round(2)
	return mid.InexactFloat64(), nil
}

func (f *Fetcher) History(context.Context, string, time.Time, time.Time) ([]fetcher.Bar, error) {
	return nil, fetcher.ErrHistoryUnsupported
}
