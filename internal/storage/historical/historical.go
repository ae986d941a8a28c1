// Package historical stores daily closing prices keyed by (ticker, date).
package historical

import (
	"context"
	"time"

	"pricecache/internal/instrument"
)

// DateLayout is the on-disk and wire format of a history date.
const DateLayout = "2006-01-02"

// Record is one trading day of a ticker.
type Record struct {
	Ticker   string
	Date     time.Time
	Price    float64
	AdjPrice *float64
	Volume   *int64
}

// Store persists history. (ticker, date) is unique: inserting an existing
// key replaces the row.
type Store interface {
	Insert(ctx context.Context, r Record) error
	InsertMany(ctx context.Context, rs []Record) error
	// Query returns records with start <= date <= end, ascending by date.
	Query(ctx context.Context, ticker string, start, end time.Time) ([]Record, error)
	Close() error
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

func normalize(r Record) Record {
	r.Ticker = instrument.NormalizeTicker(r.Ticker)
	r.Date = Day(r.Date)
	return r
}
