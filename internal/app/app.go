// Package app wires config into stores, fetchers and services. Both binaries
// build their dependencies through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"pricecache/internal/config"
	"pricecache/internal/fetcher"
	"pricecache/internal/fetcher/bancopiano"
	"pricecache/internal/fetcher/data912"
	"pricecache/internal/fetcher/dolarapi"
	"pricecache/internal/fetcher/dummy"
	"pricecache/internal/fetcher/ratelimit"
	"pricecache/internal/fetcher/yahoo"
	"pricecache/internal/history"
	"pricecache/internal/httpx"
	"pricecache/internal/instrument"
	"pricecache/internal/reconcile"
	"pricecache/internal/refresh"
	"pricecache/internal/storage/historical"
	"pricecache/internal/storage/live"
)

// HistoryFile is the SQLite history database under storage.dir.
const HistoryFile = "history.db"

type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Live      *live.Partitions
	History   historical.Store
	Fetchers  []fetcher.Fetcher
	Engine    *reconcile.Engine
	Histories *history.Service

	redis redis.UniversalClient
}

// New opens every store and builds the engine. Close releases them.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	var err error
	if a.Live, a.redis, err = OpenLive(ctx, cfg.Storage); err != nil {
		return nil, err
	}
	if a.History, err = OpenHistory(ctx, cfg.Storage); err != nil {
		_ = a.Close()
		return nil, err
	}

	hc := httpx.New(time.Duration(cfg.Engine.FetchTimeoutSec) * time.Second)
	a.Fetchers = BuildFetchers(cfg.Fetchers, hc, a.Live.For(instrument.Bonos), logger)
	logger.Info("fetchers configured", "fetchers", fetcher.Names(a.Fetchers))

	a.Engine = reconcile.New(a.Live, a.Fetchers, reconcile.Config{
		LockDuration: cfg.LockDuration(),
		FetchTimeout: time.Duration(cfg.Engine.FetchTimeoutSec) * time.Second,
		Deadline:     time.Duration(cfg.Engine.DeadlineSec) * time.Second,
		Concurrency:  cfg.Engine.Concurrency,
	}, logger.With("component", "engine"))
	a.Histories = history.New(a.History, a.Fetchers, logger.With("component", "history"))
	return a, nil
}

// Sweeper builds the refresh loop over the live partitions.
func (a *App) Sweeper() *refresh.Sweeper {
	return refresh.New(refresh.Config{
		Interval:    time.Duration(a.Config.Refresh.IntervalMinutes) * time.Minute,
		Concurrency: a.Config.Refresh.Concurrency,
	}, a.Live, a.Engine, a.Logger.With("component", "refresh"))
}

func (a *App) Close() error {
	var errs []error
	if a.Live != nil {
		errs = append(errs, a.Live.Close())
	}
	if a.History != nil {
		errs = append(errs, a.History.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}

// OpenLive opens the live partitions for the configured backend. The redis
// client, when one is created, is returned so the caller can close it.
func OpenLive(ctx context.Context, cfg config.Storage) (*live.Partitions, redis.UniversalClient, error) {
	switch cfg.LiveBackend {
	case "memory":
		return live.NewMemoryPartitions(), nil, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		return live.NewRedisPartitions(client, cfg.Redis.Prefix), client, nil
	case "sqlite", "":
		p, err := live.OpenSQLitePartitions(cfg.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open live store: %w", err)
		}
		return p, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown live backend %q", cfg.LiveBackend)
	}
}

func OpenHistory(ctx context.Context, cfg config.Storage) (historical.Store, error) {
	switch cfg.HistoryBackend {
	case "postgres":
		s, err := historical.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		return s, nil
	case "sqlite", "":
		s, err := historical.OpenSQLite(filepath.Join(cfg.Dir, HistoryFile))
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.HistoryBackend)
	}
}

// BuildFetchers returns the enabled sources in a fixed order, each wrapped in
// its configured throttle. bonds receives every quote data912 downloads. The
// dummy source is added when enabled or when nothing else is.
func BuildFetchers(cfg config.Fetchers, hc *httpx.Client, bonds data912.Sink, logger *slog.Logger) []fetcher.Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	throttle := func(f fetcher.Fetcher, c config.Fetcher) fetcher.Fetcher {
		return ratelimit.Wrap(f, c.MaxRequestsPerMinute, c.Burst, c.MinInterval())
	}

	var fs []fetcher.Fetcher
	if c := cfg.Yahoo; c.Enabled {
		opts := []yahoo.ClientOption{yahoo.WithHTTPClient(hc)}
		if c.URL != "" {
			opts = append(opts, yahoo.WithBaseURL(c.URL))
		}
		fs = append(fs, throttle(yahoo.New(yahoo.Config{}, yahoo.NewClient(opts...)), c))
	}
	if c := cfg.Data912; c.Enabled {
		fs = append(fs, throttle(data912.New(data912.Config{URL: c.URL}, hc, bonds, logger), c))
	}
	if c := cfg.DolarAPI; c.Enabled {
		fs = append(fs, throttle(dolarapi.New(dolarapi.Config{URL: c.URL}, hc), c))
	}
	if c := cfg.BancoPiano; c.Enabled {
		f := bancopiano.New(bancopiano.Config{
			URL:      c.URL,
			TableTTL: time.Duration(c.TableTTLSec) * time.Second,
		}, hc, logger)
		fs = append(fs, throttle(f, c.Fetcher))
	}
	switch {
	case cfg.Dummy.Enabled:
		fs = append(fs, dummy.New())
	case len(fs) == 0:
		logger.Warn("no fetchers enabled, falling back to dummy prices")
		fs = append(fs, dummy.New())
	}
	return fetcher.List(fs...)
}
