package live

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pricecache/internal/instrument"
)

const schema = `
CREATE TABLE IF NOT EXISTS prices (
	ticker TEXT PRIMARY KEY,
	price REAL NOT NULL,
	updated_at TEXT NOT NULL
);
`

// SQLite is one partition stored in its own database file.
type SQLite struct {
	db *sql.DB
}

// FileName is the database file for a partition: live.db for None,
// live.<partition>.db otherwise.
func FileName(typ instrument.Type) string {
	if typ == instrument.None {
		return "live.db"
	}
	return "live." + typ.Partition() + ".db"
}

// OpenSQLitePartitions opens one database per partition under dir.
func OpenSQLitePartitions(dir string) (*Partitions, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return NewPartitions(func(t instrument.Type) (Store, error) {
		return OpenSQLite(filepath.Join(dir, FileName(t)))
	})
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// One connection serialises writers inside the process.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, ticker string) (Record, bool, error) {
	t := instrument.NormalizeTicker(ticker)
	var (
		price float64
		ts    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT price, updated_at FROM prices WHERE ticker = ?`, t,
	).Scan(&price, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Record{}, false, fmt.Errorf("parse updated_at %q: %w", ts, err)
	}
	return Record{Ticker: t, Price: price, UpdatedAt: at}, true, nil
}

func (s *SQLite) Upsert(ctx context.Context, ticker string, price float64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prices (ticker, price, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET price = excluded.price, updated_at = excluded.updated_at`,
		instrument.NormalizeTicker(ticker), price, at.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLite) ListTickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ticker FROM prices ORDER BY ticker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
