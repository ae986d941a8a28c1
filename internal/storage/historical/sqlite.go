package historical

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pricecache/internal/instrument"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker TEXT NOT NULL,
	date TEXT NOT NULL,
	price REAL NOT NULL,
	adj_price REAL,
	volume INTEGER
);
CREATE UNIQUE INDEX IF NOT EXISTS history_ticker_date ON history (ticker, date);
`

const sqliteUpsert = `
INSERT INTO history (ticker, date, price, adj_price, volume)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(ticker, date) DO UPDATE SET
	price = excluded.price,
	adj_price = excluded.adj_price,
	volume = excluded.volume`

type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Insert(ctx context.Context, r Record) error {
	r = normalize(r)
	_, err := s.db.ExecContext(ctx, sqliteUpsert, r.Ticker, r.Date.Format(DateLayout), r.Price, r.AdjPrice, r.Volume)
	return err
}

func (s *SQLite) InsertMany(ctx context.Context, rs []Record) error {
	if len(rs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rs {
		r = normalize(r)
		if _, err := stmt.ExecContext(ctx, r.Ticker, r.Date.Format(DateLayout), r.Price, r.AdjPrice, r.Volume); err != nil {
			return fmt.Errorf("insert %s %s: %w", r.Ticker, r.Date.Format(DateLayout), err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) Query(ctx context.Context, ticker string, start, end time.Time) ([]Record, error) {
	t := instrument.NormalizeTicker(ticker)
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, price, adj_price, volume FROM history
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		t, Day(start).Format(DateLayout), Day(end).Format(DateLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			date string
			r    = Record{Ticker: t}
			adj  sql.NullFloat64
			vol  sql.NullInt64
		)
		if err := rows.Scan(&date, &r.Price, &adj, &vol); err != nil {
			return nil, err
		}
		if r.Date, err = ParseDate(date); err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		if adj.Valid {
			r.AdjPrice = &adj.Float64
		}
		if vol.Valid {
			r.Volume = &vol.Int64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
