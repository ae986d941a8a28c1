package bancopiano

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pricecache/internal/fetcher"
	"pricecache/internal/httpx"
	"pricecache/internal/instrument"
)

const defaultURL = "https://www.bancopiano.com.ar/Inversiones/Cotizaciones/Bonos/"

// Config controls the Banco Piano scraper.
type Config struct {
	Name     string
	URL      string
	Attempts    int           // transport retries per page load, default 3
	TableTTL    time.Duration // how long a parsed table is reused, default 5m
	LoadTimeout time.Duration // bound on one shared page load, default 20s
}

// Fetcher scrapes bond quotes from Banco Piano's public table.
type Fetcher struct {
	cfg    Config
	client *httpx.Client
	logger *slog.Logger

	mu      sync.RWMutex
	tbl     *table
	expires time.Time

	// coalesce concurrent page loads
	sf singleflight.Group
}

var _ fetcher.Fetcher = (*Fetcher)(nil)

func New(cfg Config, hc *httpx.Client, logger *slog.Logger) *Fetcher {
	if cfg.Name == "" {
		cfg.Name = "bancopiano"
	}
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.TableTTL <= 0 {
		cfg.TableTTL = 5 * time.Minute
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := *hc
	c.Attempts = cfg.Attempts
	return &Fetcher{cfg: cfg, client: &c, logger: logger}
}

func (f *Fetcher) Name() string { return f.cfg.Name }

func (f *Fetcher) SupportedTypes() []instrument.Type {
	return []instrument.Type{instrument.Bonos}
}

func (f *Fetcher) Price(ctx context.Context, ticker string, typ instrument.Type) (float64, error) {
	if typ != instrument.None && typ != instrument.Bonos {
		return 0, fmt.Errorf("%w: %s", fetcher.ErrUnsupportedType, typ)
	}
	tbl, err := f.load(ctx)
	if err != nil {
		return 0, err
	}
	row := tbl.row(instrument.NormalizeTicker(ticker))
	if row == nil {
		f.logger.Debug("bancopiano: no row for ticker", "ticker", ticker)
		return 0, fetcher.ErrNoPrice
	}
	col := tbl.priceColumn()
	if col < 0 || col >= len(row) {
		f.logger.Debug("bancopiano: no price column in table", "header", tbl.header)
		return 0, fetcher.ErrNoPrice
	}
	v, err := parseARNumber(row[col])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", fetcher.ErrNoPrice, row[col])
	}
	return v.InexactFloat64(), nil
}

func (f *Fetcher) History(context.Context, string, time.Time, time.Time) ([]fetcher.Bar, error) {
	return nil, fetcher.ErrHistoryUnsupported
}

// load returns the cached table, refreshing it when expired. The page load is
// shared by every waiting caller and does not end when one of them gives up.
func (f *Fetcher) load(ctx context.Context) (*table, error) {
	f.mu.RLock()
	tbl, exp := f.tbl, f.expires
	f.mu.RUnlock()
	if tbl != nil && time.Now().Before(exp) {
		return tbl, nil
	}

	ch := f.sf.DoChan("table", func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.LoadTimeout)
		defer cancel()
		b, err := f.client.GetBytes(lctx, f.cfg.URL, nil)
		if err != nil {
			return nil, err
		}
		t, err := parseTable(b)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.tbl = t
		f.expires = time.Now().Add(f.cfg.TableTTL)
		f.mu.Unlock()
		return t, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*table), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
