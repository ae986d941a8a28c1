// Package history reads the historical store and fills it from fetchers.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pricecache/internal/fetcher"
	"pricecache/internal/instrument"
	"pricecache/internal/storage/historical"
)

var ErrInvalidRange = errors.New("invalid date range")

type Service struct {
	store    historical.Store
	fetchers []fetcher.Fetcher
	logger   *slog.Logger
}

func New(store historical.Store, fetchers []fetcher.Fetcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, fetchers: fetcher.List(fetchers...), logger: logger}
}

// Get returns the stored records of ticker within [start, end], ascending.
func (s *Service) Get(ctx context.Context, ticker string, start, end time.Time) ([]historical.Record, error) {
	t := instrument.NormalizeTicker(ticker)
	start, end = historical.Day(start), historical.Day(end)
	if t == "" || end.Before(start) {
		return nil, ErrInvalidRange
	}
	recs, err := s.store.Query(ctx, t, start, end)
	if err != nil {
		return nil, fmt.Errorf("query history %s: %w", t, err)
	}
	return recs, nil
}

// BackfillResult reports what Backfill did.
type BackfillResult struct {
	Source   string
	Inserted int
	// Warnings lists fetchers that could not supply history.
	Warnings []string
}

// Backfill asks the fetchers in order for daily bars of ticker and stores
// the first non-empty answer. Fetchers without history support are skipped
// with a warning.
func (s *Service) Backfill(ctx context.Context, ticker string, start, end time.Time) (BackfillResult, error) {
	var res BackfillResult
	t := instrument.NormalizeTicker(ticker)
	start, end = historical.Day(start), historical.Day(end)
	if t == "" || end.Before(start) {
		return res, ErrInvalidRange
	}

	for _, f := range s.fetchers {
		bars, err := f.History(ctx, t, start, end)
		switch {
		case errors.Is(err, fetcher.ErrHistoryUnsupported):
			s.warn(&res, f.Name(), "history not supported", t, nil)
			continue
		case err != nil:
			s.warn(&res, f.Name(), "history fetch failed", t, err)
			continue
		case len(bars) == 0:
			s.warn(&res, f.Name(), "no history returned", t, nil)
			continue
		}

		recs := make([]historical.Record, 0, len(bars))
		for _, b := range bars {
			recs = append(recs, historical.Record{
				Ticker:   t,
				Date:     b.Date,
				Price:    b.Price,
				AdjPrice: b.AdjPrice,
				Volume:   b.Volume,
			})
		}
		if err := s.store.InsertMany(ctx, recs); err != nil {
			return res, fmt.Errorf("store history %s: %w", t, err)
		}
		res.Source = f.Name()
		res.Inserted = len(recs)
		s.logger.Info("history backfilled",
			"ticker", t,
			"fetcher", f.Name(),
			"rows", len(recs),
			"from", start.Format(historical.DateLayout),
			"to", end.Format(historical.DateLayout),
		)
		return res, nil
	}
	return res, nil
}

func (s *Service) warn(res *BackfillResult, name, msg, ticker string, err error) {
	w := name + ": " + msg
	if err != nil {
		w += ": " + err.Error()
	}
	res.Warnings = append(res.Warnings, w)
	s.logger.Warn(msg, "fetcher", name, "ticker", ticker, "error", err)
}
