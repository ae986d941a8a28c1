package fetcher

import (
	"context"
	"errors"
	"slices"
	"time"

	"pricecache/internal/instrument"
)

// Sentinels used by adapters in place of a null price or empty history.
var (
	ErrNoPrice            = errors.New("no price")
	ErrUnsupportedType    = errors.New("unsupported instrument type")
	ErrHistoryUnsupported = errors.New("history not supported")
)

// Bar is one daily observation returned by History.
type Bar struct {
	Date     time.Time
	Price    float64
	AdjPrice *float64
	Volume   *int64
}

// Fetcher is implemented by every upstream price source. Implementations
// must not panic; failure is reported through the returned error.
type Fetcher interface {
	Name() string
	// SupportedTypes lists the classifiers the source answers for. None
	// means the source handles requests without a classifier.
	SupportedTypes() []instrument.Type
	Price(ctx context.Context, ticker string, typ instrument.Type) (float64, error)
	History(ctx context.Context, ticker string, start, end time.Time) ([]Bar, error)
}

// Supports reports whether f declares typ. Matching is exact: None is not a
// wildcard.
func Supports(f Fetcher, typ instrument.Type) bool {
	return slices.Contains(f.SupportedTypes(), typ)
}

// Eligible filters fs down to the fetchers supporting typ, preserving order.
func Eligible(fs []Fetcher, typ instrument.Type) []Fetcher {
	out := make([]Fetcher, 0, len(fs))
	for _, f := range fs {
		if f != nil && Supports(f, typ) {
			out = append(out, f)
		}
	}
	return out
}

// List normalizes one or many fetchers into a slice, dropping nils.
func List(fs ...Fetcher) []Fetcher {
	out := make([]Fetcher, 0, len(fs))
	for _, f := range fs {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

// Names returns the fetcher names, mostly for logging.
func Names(fs []Fetcher) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name()
	}
	return out
}
