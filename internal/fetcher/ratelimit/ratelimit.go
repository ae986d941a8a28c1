package ratelimit

import (
	"context"
	"sync"
	"time"

	"pricecache/internal/fetcher"
	"pricecache/internal/instrument"
)

// MinInterval wraps a fetcher and enforces a minimum time between upstream
// calls. Concurrent calls wait their turn, or return early if the context
// is canceled.
type MinInterval struct {
	F        fetcher.Fetcher
	Interval time.Duration

	mu   sync.Mutex
	next time.Time
}

var _ fetcher.Fetcher = (*MinInterval)(nil)

func (m *MinInterval) Name() string                      { return m.F.Name() }
func (m *MinInterval) SupportedTypes() []instrument.Type { return m.F.SupportedTypes() }

func (m *MinInterval) Price(ctx context.Context, ticker string, typ instrument.Type) (float64, error) {
	if err := m.wait(ctx); err != nil {
		return 0, err
	}
	return m.F.Price(ctx, ticker, typ)
}

func (m *MinInterval) History(ctx context.Context, ticker string, start, end time.Time) ([]fetcher.Bar, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.F.History(ctx, ticker, start, end)
}

// wait reserves the next slot and sleeps until it.
func (m *MinInterval) wait(ctx context.Context) error {
	if m.Interval <= 0 {
		return nil
	}
	m.mu.Lock()
	now := time.Now()
	slot := m.next
	if slot.Before(now) {
		slot = now
	}
	m.next = slot.Add(m.Interval)
	m.mu.Unlock()

	d := time.Until(slot)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
