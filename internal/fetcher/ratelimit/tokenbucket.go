package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"pricecache/internal/fetcher"
	"pricecache/internal/instrument"
)

// TokenBucketFetcher spends one token of Limiter per upstream call. Sources
// with a published per-minute quota, like Yahoo, sit behind it.
type TokenBucketFetcher struct {
	F       fetcher.Fetcher
	Limiter *rate.Limiter
}

var _ fetcher.Fetcher = (*TokenBucketFetcher)(nil)

// NewTokenBucket allows perMinute calls per minute after an initial burst.
func NewTokenBucket(f fetcher.Fetcher, perMinute, burst int) *TokenBucketFetcher {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucketFetcher{F: f, Limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst)}
}

func (t *TokenBucketFetcher) Name() string                      { return t.F.Name() }
func (t *TokenBucketFetcher) SupportedTypes() []instrument.Type { return t.F.SupportedTypes() }

func (t *TokenBucketFetcher) Price(ctx context.Context, ticker string, typ instrument.Type) (float64, error) {
	if err := t.wait(ctx); err != nil {
		return 0, err
	}
	return t.F.Price(ctx, ticker, typ)
}

func (t *TokenBucketFetcher) History(ctx context.Context, ticker string, start, end time.Time) ([]fetcher.Bar, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.F.History(ctx, ticker, start, end)
}

// wait reports a token that would arrive after the deadline as
// context.DeadlineExceeded, the same as a wait that ran out of time.
func (t *TokenBucketFetcher) wait(ctx context.Context) error {
	if t.Limiter == nil {
		return nil
	}
	if err := t.Limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s throttled: %w", t.F.Name(), context.DeadlineExceeded)
	}
	return nil
}

// Wrap applies the configured throttle to f. A non-positive perMinute falls
// back to minInterval; both zero returns f unchanged.
func Wrap(f fetcher.Fetcher, perMinute, burst int, minInterval time.Duration) fetcher.Fetcher {
	switch {
	case perMinute > 0:
		return NewTokenBucket(f, perMinute, burst)
	case minInterval > 0:
		return &MinInterval{F: f, Interval: minInterval}
	default:
		return f
	}
}
