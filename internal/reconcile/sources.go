package reconcile

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pricecache/internal/fetcher"
	"pricecache/internal/instrument"
)

// SourceResult is one fetcher's raw answer.
type SourceResult struct {
	Fetcher string
	Price   float64
	Err     error
	Took    time.Duration
}

// Sources queries every eligible fetcher directly, bypassing the cache.
// Results keep the fetcher order.
func (e *Engine) Sources(ctx context.Context, ticker string, typ instrument.Type) ([]SourceResult, error) {
	t := instrument.NormalizeTicker(ticker)
	if t == "" {
		return nil, ErrInvalidTicker
	}
	fs := fetcher.Eligible(e.fetchers, typ)
	out := make([]SourceResult, len(fs))

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Deadline)
	defer cancel()

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(e.cfg.Concurrency)
	for i, f := range fs {
		g.Go(func() error {
			start := time.Now()
			p, err := e.fetchOne(ctx, f, t, typ)
			mu.Lock()
			out[i] = SourceResult{Fetcher: f.Name(), Price: p, Err: err, Took: time.Since(start)}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}
