package yahoo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"pricecache/internal/fetcher"
	"pricecache/internal/instrument"
)

// buenosAiresSuffix routes local equities and CEDEARs to BYMA listings.
const buenosAiresSuffix = ".BA"

type Config struct {
	Name string // display name, default: yahoo
}

// Fetcher adapts the chart client to the fetcher contract.
type Fetcher struct {
	cfg    Config
	client *Client
}

var _ fetcher.Fetcher = (*Fetcher)(nil)

func New(cfg Config, client *Client) *Fetcher {
	if cfg.Name == "" {
		cfg.Name = "yahoo"
	}
	return &Fetcher{cfg: cfg, client: client}
}

func (f *Fetcher) Name() string { return f.cfg.Name }

func (f *Fetcher) SupportedTypes() []instrument.Type {
	return []instrument.Type{instrument.None, instrument.Acciones, instrument.Cedears}
}

// Symbol maps a ticker and classifier to the Yahoo symbol.
func Symbol(ticker string, typ instrument.Type) (string, error) {
	switch typ {
	case instrument.None:
		return ticker, nil
	case instrument.Acciones, instrument.Cedears:
		return ticker + buenosAiresSuffix, nil
	default:
		return "", fmt.Errorf("%w: %s", fetcher.ErrUnsupportedType, typ)
	}
}

func (f *Fetcher) Price(ctx context.Context, ticker string, typ instrument.Type) (float64, error) {
	sym, err := Symbol(ticker, typ)
	if err != nil {
		return 0, err
	}
	chart, err := f.client.GetChart(ctx, sym, ChartParams{Range: "1d", Interval: "1d"})
	if err != nil {
		return 0, err
	}
	p := chart.Meta.RegularMarketPrice
	if p == nil || math.IsNaN(*p) {
		return 0, fetcher.ErrNoPrice
	}
	return *p, nil
}

// History returns daily bars for [start, end]. Yahoo treats period2 as
// exclusive, so one day is added.
func (f *Fetcher) History(ctx context.Context, ticker string, start, end time.Time) ([]fetcher.Bar, error) {
	chart, err := f.client.GetChart(ctx, ticker, ChartParams{
		Interval: "1d",
		Period1:  start,
		Period2:  end.AddDate(0, 0, 1),
	})
	if errors.Is(err, ErrNoData) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	bars := make([]fetcher.Bar, 0, len(chart.Points))
	for _, p := range chart.Points {
		if p.Close == nil || math.IsNaN(*p.Close) {
			continue
		}
		d := p.Time
		bars = append(bars, fetcher.Bar{
			Date:     time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
			Price:    *p.Close,
			AdjPrice: p.AdjClose,
			Volume:   p.Volume,
		})
	}
	return bars, nil
}
