package data912

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"pricecache/internal/fetcher"
	"pricecache/internal/httpx"
	"pricecache/internal/instrument"
)

const defaultURL = "https://data912.com/live/arg_bonds"

// Sink receives every bond quote seen in a payload. The composition root
// wires it to the bonos partition so one request warms the whole table.
type Sink interface {
	Upsert(ctx context.Context, ticker string, price float64, at time.Time) error
}

type Config struct {
	Name string
	URL  string
}

// Fetcher reads Argentine bond prices from the public Data912 feed.
type Fetcher struct {
	cfg    Config
	client *httpx.Client
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

var _ fetcher.Fetcher = (*Fetcher)(nil)

// New returns a Data912 fetcher. sink may be nil.
func New(cfg Config, hc *httpx.Client, sink Sink, logger *slog.Logger) *Fetcher {
	if cfg.Name == "" {
		cfg.Name = "data912"
	}
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{cfg: cfg, client: hc, sink: sink, logger: logger, now: time.Now}
}

func (f *Fetcher) Name() string { return f.cfg.Name }

func (f *Fetcher) SupportedTypes() []instrument.Type {
	return []instrument.Type{instrument.Bonos}
}

type bond struct {
	Symbol *string      `json:"symbol"`
	Close  *json.Number `json:"c"`
}

func (f *Fetcher) Price(ctx context.Context, ticker string, typ instrument.Type) (float64, error) {
	if typ != instrument.Bonos {
		return 0, fmt.Errorf("%w: %s", fetcher.ErrUnsupportedType, typ)
	}

	b, err := f.client.GetBytes(ctx, f.cfg.URL, nil)
	if err != nil {
		return 0, err
	}
	var data []bond
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return 0, fmt.Errorf("decode: %w", err)
	}

	now := f.now().UTC()
	want := instrument.NormalizeTicker(ticker)
	var (
		result float64
		found  bool
	)
	for _, it := range data {
		if it.Symbol == nil || it.Close == nil {
			continue
		}
		price, err := it.Close.Float64()
		if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
			continue
		}
		sym := instrument.NormalizeTicker(*it.Symbol)
		if f.sink != nil {
			if err := f.sink.Upsert(ctx, sym, price, now); err != nil {
				f.logger.Warn("data912 sink upsert failed", "ticker", sym, "error", err)
			}
		}
		if sym == want {
			result, found = price, true
		}
	}
	if !found {
		return 0, fetcher.ErrNoPrice
	}
	return result, nil
}

func (f *Fetcher) History(context.Context, string, time.Time, time.Time) ([]fetcher.Bar, error) {
	return nil, fetcher.ErrHistoryUnsupported
}
