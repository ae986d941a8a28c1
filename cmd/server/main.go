package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricecache/internal/api"
	"pricecache/internal/app"
	"pricecache/internal/config"
	"pricecache/internal/logging"
	"pricecache/internal/refresh"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var sweeper *refresh.Sweeper
	if cfg.Refresh.Enabled {
		sweeper = a.Sweeper()
		if err := sweeper.Start(ctx); err != nil {
			return err
		}
	}

	timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.New(a.Engine, a.Histories, timeout, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", srv.Addr,
			"lock_minutes", cfg.LockMinutes,
			"live_backend", cfg.Storage.LiveBackend,
			"history_backend", cfg.Storage.HistoryBackend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	// graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if sweeper != nil {
		if err := sweeper.Stop(shutdownCtx); err != nil {
			logger.Warn("refresh sweeper stop", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
