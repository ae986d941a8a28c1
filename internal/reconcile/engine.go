// Package reconcile resolves a ticker to one trusted price. It serves the
// cached value while it is fresh and otherwise asks every eligible fetcher,
// takes the median of what comes back and writes it to the cache.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"pricecache/internal/aggregate"
	"pricecache/internal/fetcher"
	"pricecache/internal/instrument"
	"pricecache/internal/storage/live"
)

var (
	// ErrNotAvailable means no source produced a price and nothing is cached.
	ErrNotAvailable  = errors.New("price not available")
	ErrInvalidTicker = errors.New("invalid ticker")
)

// Quote is the outcome of Resolve.
type Quote struct {
	Ticker    string
	Type      instrument.Type
	Price     float64
	UpdatedAt time.Time
	// Stale is set when every source failed and the cached value was served.
	Stale bool
	// Sources counts the fetchers that contributed to a fresh price. It is
	// zero for cached answers.
	Sources int
}

type Config struct {
	// LockDuration is how long a cached price is served without asking the
	// fetchers. Zero refreshes on every call.
	LockDuration time.Duration
	FetchTimeout time.Duration // per fetcher, default 10s
	Deadline     time.Duration // whole upstream cycle, default 15s
	Concurrency  int           // parallel fetcher calls, default 4
}

func (c Config) withDefaults() Config {
	if c.LockDuration < 0 {
		c.LockDuration = 0
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.Deadline <= 0 {
		c.Deadline = 15 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return c
}

type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type Engine struct {
	stores   *live.Partitions
	fetchers []fetcher.Fetcher
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	flights  singleflight.Group
}

func New(stores *live.Partitions, fetchers []fetcher.Fetcher, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		stores:   stores,
		fetchers: fetcher.List(fetchers...),
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Fetchers() []fetcher.Fetcher { return e.fetchers }

func (e *Engine) Partitions() *live.Partitions { return e.stores }

// Resolve returns the price of ticker within the partition of typ. The only
// errors are ErrInvalidTicker and ErrNotAvailable.
func (e *Engine) Resolve(ctx context.Context, ticker string, typ instrument.Type) (Quote, error) {
	t := instrument.NormalizeTicker(ticker)
	if t == "" {
		return Quote{}, ErrInvalidTicker
	}
	store := e.stores.For(typ)
	if store == nil {
		return Quote{}, fmt.Errorf("%w: no partition for %q", ErrNotAvailable, string(typ))
	}

	rec, cached := e.lookup(ctx, store, t, typ)
	if cached && e.fresh(rec) {
		return fromRecord(rec, typ, false), nil
	}

	key := typ.Partition() + "/" + t
	ch := e.flights.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.Deadline)
		defer cancel()
		return e.refresh(fctx, store, t, typ)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Quote{}, res.Err
		}
		return res.Val.(Quote), nil
	case <-ctx.Done():
		if cached {
			return fromRecord(rec, typ, true), nil
		}
		return Quote{}, fmt.Errorf("%w: %w", ErrNotAvailable, ctx.Err())
	}
}

// refresh runs once per stale key at a time.
func (e *Engine) refresh(ctx context.Context, store live.Store, t string, typ instrument.Type) (Quote, error) {
	// A flight that just finished may have filled the cache.
	rec, cached := e.lookup(ctx, store, t, typ)
	if cached && e.fresh(rec) {
		return fromRecord(rec, typ, false), nil
	}

	prices := e.collect(ctx, fetcher.Eligible(e.fetchers, typ), t, typ)
	if median, ok := aggregate.Median(prices); ok {
		now := e.now().UTC()
		if err := store.Upsert(ctx, t, median, now); err != nil {
			e.logger.Error("cache write failed", "ticker", t, "partition", typ.Partition(), "error", err)
		}
		return Quote{Ticker: t, Type: typ, Price: median, UpdatedAt: now, Sources: len(prices)}, nil
	}

	if cached {
		e.logger.Info("stale price returned",
			"ticker", t,
			"partition", typ.Partition(),
			"updated_at", rec.UpdatedAt,
		)
		return fromRecord(rec, typ, true), nil
	}
	return Quote{}, ErrNotAvailable
}

// collect asks every fetcher in fs for a price and returns the valid answers
// that arrived before ctx expired.
func (e *Engine) collect(ctx context.Context, fs []fetcher.Fetcher, t string, typ instrument.Type) []float64 {
	var (
		mu     sync.Mutex
		prices = make([]float64, 0, len(fs))
		g      errgroup.Group
	)
	g.SetLimit(e.cfg.Concurrency)
	for _, f := range fs {
		g.Go(func() error {
			p, err := e.fetchOne(ctx, f, t, typ)
			if err != nil {
				e.logger.Debug("fetcher failed",
					"fetcher", f.Name(),
					"ticker", t,
					"partition", typ.Partition(),
					"error", err,
				)
				return nil
			}
			mu.Lock()
			prices = append(prices, p)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return prices
}

type priceResult struct {
	price float64
	err   error
}

// fetchOne calls f under FetchTimeout. It returns as soon as the timeout
// fires even if f ignores its context.
func (e *Engine) fetchOne(ctx context.Context, f fetcher.Fetcher, t string, typ instrument.Type) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	ch := make(chan priceResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- priceResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		p, err := f.Price(ctx, t, typ)
		ch <- priceResult{price: p, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return 0, r.err
		}
		if !aggregate.Valid(r.price) {
			return 0, fmt.Errorf("%w: invalid price %v", fetcher.ErrNoPrice, r.price)
		}
		return r.price, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (e *Engine) lookup(ctx context.Context, store live.Store, t string, typ instrument.Type) (live.Record, bool) {
	rec, ok, err := store.Get(ctx, t)
	if err != nil {
		e.logger.Warn("cache read failed", "ticker", t, "partition", typ.Partition(), "error", err)
		return live.Record{}, false
	}
	return rec, ok
}

func (e *Engine) fresh(rec live.Record) bool {
	return e.now().Sub(rec.UpdatedAt) < e.cfg.LockDuration
}

func fromRecord(rec live.Record, typ instrument.Type, stale bool) Quote {
	return Quote{Ticker: rec.Ticker, Type: typ, Price: rec.Price, UpdatedAt: rec.UpdatedAt, Stale: stale}
}
