package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"pricecache/internal/instrument"
)

// Redis keeps a partition in one hash: field = ticker, value = JSON
// {price, updated_at}. HSET gives the per-row atomic upsert we need.
type Redis struct {
	client redis.UniversalClient
	key    string
}

type redisValue struct {
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRedisPartitions maps every partition to <prefix>:live:<partition>.
// The caller owns client and closes it.
func NewRedisPartitions(client redis.UniversalClient, prefix string) *Partitions {
	if prefix == "" {
		prefix = "pricecache"
	}
	p, _ := NewPartitions(func(t instrument.Type) (Store, error) {
		return NewRedis(client, fmt.Sprintf("%s:live:%s", prefix, t.Partition())), nil
	})
	return p
}

func NewRedis(client redis.UniversalClient, key string) *Redis {
	return &Redis{client: client, key: key}
}

func (r *Redis) Get(ctx context.Context, ticker string) (Record, bool, error) {
	t := instrument.NormalizeTicker(ticker)
	data, err := r.client.HGet(ctx, r.key, t).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to get price from redis: %w", err)
	}
	var v redisValue
	if err := json.Unmarshal(data, &v); err != nil {
		return Record{}, false, fmt.Errorf("failed to unmarshal price: %w", err)
	}
	return Record{Ticker: t, Price: v.Price, UpdatedAt: v.UpdatedAt.UTC()}, true, nil
}

func (r *Redis) Upsert(ctx context.Context, ticker string, price float64, at time.Time) error {
	data, err := json.Marshal(redisValue{Price: price, UpdatedAt: at.UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal price: %w", err)
	}
	return r.client.HSet(ctx, r.key, instrument.NormalizeTicker(ticker), data).Err()
}

func (r *Redis) ListTickers(ctx context.Context) ([]string, error) {
	keys, err := r.client.HKeys(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tickers: %w", err)
	}
	slices.Sort(keys)
	return keys, nil
}

// Close is a no-op; the shared client is closed by its owner.
func (r *Redis) Close() error { return nil }
