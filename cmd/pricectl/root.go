package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"pricecache/internal/app"
	"pricecache/internal/config"
	"pricecache/internal/instrument"
	"pricecache/internal/logging"
	"pricecache/internal/storage/historical"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "pricectl",
		Short: "Inspect and maintain the price cache",
		Long: `pricectl talks to the same stores and sources as the server.

It can resolve prices through the cache, query every source directly,
backfill and read daily history, and run a refresh sweep by hand.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ./config.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(
		newPriceCmd(opts),
		newSourcesCmd(opts),
		newHistoryCmd(opts),
		newBackfillCmd(opts),
		newRefreshCmd(opts),
		newInitDBCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.configPath)
}

// openApp loads config and builds the app. Logs go to stderr so stdout stays
// clean for results.
func (o *rootOptions) openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	logCfg := cfg.Log
	logCfg.Level = "warn"
	if o.verbose {
		logCfg.Level = "debug"
	}
	logger := slog.New(logging.NewHandler(cmd.ErrOrStderr(), logCfg))
	return app.New(cmd.Context(), cfg, logger)
}

func parseType(s string) (instrument.Type, error) {
	t, err := instrument.Parse(s)
	if err != nil {
		return t, fmt.Errorf("bad --type: %w", err)
	}
	return t, nil
}

// parseRange reads --from and --to as YYYY-MM-DD. An empty --to means today.
func parseRange(from, to string) (start, end time.Time, err error) {
	if from == "" {
		return start, end, fmt.Errorf("missing --from (YYYY-MM-DD)")
	}
	if start, err = historical.ParseDate(from); err != nil {
		return start, end, fmt.Errorf("bad --from: %w", err)
	}
	if to == "" {
		return start, historical.Day(time.Now()), nil
	}
	if end, err = historical.ParseDate(to); err != nil {
		return start, end, fmt.Errorf("bad --to: %w", err)
	}
	return start, end, nil
}
