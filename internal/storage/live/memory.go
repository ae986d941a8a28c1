package live

import (
	"context"
	"slices"
	"sync"
	"time"

	"pricecache/internal/instrument"
)

// Memory keeps a partition in a map. It backs tests and the "memory"
// backend; nothing survives a restart.
type Memory struct {
	mu    sync.RWMutex
	items map[string]Record
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]Record)}
}

// NewMemoryPartitions returns a Partitions made of Memory stores.
func NewMemoryPartitions() *Partitions {
	p, _ := NewPartitions(func(instrument.Type) (Store, error) { return NewMemory(), nil })
	return p
}

func (m *Memory) Get(_ context.Context, ticker string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.items[instrument.NormalizeTicker(ticker)]
	return r, ok, nil
}

func (m *Memory) Upsert(_ context.Context, ticker string, price float64, at time.Time) error {
	t := instrument.NormalizeTicker(ticker)
	m.mu.Lock()
	m.items[t] = Record{Ticker: t, Price: price, UpdatedAt: at.UTC()}
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListTickers(context.Context) ([]string, error) {
	m.mu.RLock()
	out := make([]string, 0, len(m.items))
	for k := range m.items {
		out = append(out, k)
	}
	m.mu.RUnlock()
	slices.Sort(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }
