// Package refresh periodically walks every cached ticker and re-resolves it
// so that popular prices stay warm.
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"pricecache/internal/instrument"
	"pricecache/internal/reconcile"
	"pricecache/internal/storage/live"
)

// Resolver is satisfied by *reconcile.Engine.
type Resolver interface {
	Resolve(ctx context.Context, ticker string, typ instrument.Type) (reconcile.Quote, error)
}

type Config struct {
	Interval    time.Duration // default 15m
	Concurrency int           // default 4
}

// Stats summarises one sweep.
type Stats struct {
	Tickers  int
	Fresh    int
	Stale    int
	Failed   int
	Duration time.Duration
}

type Sweeper struct {
	cfg      Config
	parts    *live.Partitions
	resolver Resolver
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, parts *live.Partitions, resolver Resolver, logger *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{cfg: cfg, parts: parts, resolver: resolver, logger: logger}
}

// Start launches the sweep loop. The first sweep runs immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("refresh sweeper started",
		"interval", s.cfg.Interval,
		"concurrency", s.cfg.Concurrency,
	)
	return nil
}

// Stop cancels the loop and waits for the current sweep to end.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("refresh sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.SweepOnce(s.ctx)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(s.ctx)
		}
	}
}

// SweepOnce resolves every ticker of every partition. Fresh entries are
// served from cache by the resolver, so only stale keys reach upstream.
func (s *Sweeper) SweepOnce(ctx context.Context) Stats {
	start := time.Now()
	var (
		st            Stats
		fresh, stale  atomic.Int64
		failed, total atomic.Int64
		g             errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)

	for _, typ := range s.parts.Types() {
		tickers, err := s.parts.For(typ).ListTickers(ctx)
		if err != nil {
			s.logger.Warn("list tickers failed", "partition", typ.Partition(), "error", err)
			continue
		}
		for _, t := range tickers {
			if ctx.Err() != nil {
				break
			}
			total.Add(1)
			g.Go(func() error {
				q, err := s.resolver.Resolve(ctx, t, typ)
				switch {
				case err != nil:
					failed.Add(1)
					s.logger.Debug("refresh failed", "ticker", t, "partition", typ.Partition(), "error", err)
				case q.Stale:
					stale.Add(1)
				default:
					fresh.Add(1)
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	st.Tickers = int(total.Load())
	st.Fresh = int(fresh.Load())
	st.Stale = int(stale.Load())
	st.Failed = int(failed.Load())
	st.Duration = time.Since(start)

	s.logger.Info("refresh sweep complete",
		"tickers", st.Tickers,
		"fresh", st.Fresh,
		"stale", st.Stale,
		"failed", st.Failed,
		"duration", st.Duration,
	)
	return st
}
