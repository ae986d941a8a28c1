package historical

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pricecache/internal/instrument"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS history (
	id BIGSERIAL PRIMARY KEY,
	ticker TEXT NOT NULL,
	date DATE NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	adj_price DOUBLE PRECISION,
	volume BIGINT,
	UNIQUE (ticker, date)
)`

const postgresUpsert = `
INSERT INTO history (ticker, date, price, adj_price, volume)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (ticker, date) DO UPDATE SET
	price = EXCLUDED.price,
	adj_price = EXCLUDED.adj_price,
	volume = EXCLUDED.volume`

// Postgres is the history store on a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects, pings and creates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Insert(ctx context.Context, r Record) error {
	r = normalize(r)
	_, err := p.pool.Exec(ctx, postgresUpsert, r.Ticker, r.Date, r.Price, r.AdjPrice, r.Volume)
	return err
}

// InsertMany sends every row in one batch inside a transaction.
func (p *Postgres) InsertMany(ctx context.Context, rs []Record) error {
	if len(rs) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range rs {
			r = normalize(r)
			batch.Queue(postgresUpsert, r.Ticker, r.Date, r.Price, r.AdjPrice, r.Volume)
		}
		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for range rs {
			if _, err := results.Exec(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Postgres) Query(ctx context.Context, ticker string, start, end time.Time) ([]Record, error) {
	t := instrument.NormalizeTicker(ticker)
	rows, err := p.pool.Query(ctx, `
		SELECT date, price, adj_price, volume FROM history
		WHERE ticker = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`,
		t, Day(start), Day(end),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		r := Record{Ticker: t}
		if err := rows.Scan(&r.Date, &r.Price, &r.AdjPrice, &r.Volume); err != nil {
			return nil, err
		}
		r.Date = Day(r.Date)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
