// Package live is the last-known-price cache, one namespace per
// instrument type.
package live

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pricecache/internal/instrument"
)

// Record is the cached price of a ticker within one partition.
type Record struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a single partition. Upsert is last-write-wins keyed by ticker.
type Store interface {
	Get(ctx context.Context, ticker string) (Record, bool, error)
	Upsert(ctx context.Context, ticker string, price float64, at time.Time) error
	ListTickers(ctx context.Context) ([]string, error)
	Close() error
}

// Partitions holds one Store per instrument type. It is built once at
// start-up and handed to whoever needs it.
type Partitions struct {
	stores map[instrument.Type]Store
}

// NewPartitions opens a store for every instrument type using open. Stores
// opened before a failure are closed.
func NewPartitions(open func(instrument.Type) (Store, error)) (*Partitions, error) {
	p := &Partitions{stores: make(map[instrument.Type]Store, len(instrument.All))}
	for _, t := range instrument.All {
		s, err := open(t)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("open partition %s: %w", t.Partition(), err)
		}
		p.stores[t] = s
	}
	return p, nil
}

// For returns the store for typ. Unknown types map to nil.
func (p *Partitions) For(typ instrument.Type) Store {
	return p.stores[typ]
}

// Types lists the partitions in a stable order.
func (p *Partitions) Types() []instrument.Type {
	out := make([]instrument.Type, 0, len(p.stores))
	for _, t := range instrument.All {
		if _, ok := p.stores[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (p *Partitions) Close() error {
	var errs []error
	for _, s := range p.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
