package collector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
  id      INTEGER PRIMARY KEY AUTOINCREMENT,
  ts      TEXT NOT NULL,
  remote  TEXT NOT NULL DEFAULT '',
  temp    REAL,
  hum     REAL
);
CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings(ts);
`

// SQLiteStore persists history across collector restarts. It keeps at most
// capacity rows, deleting the oldest on insert.
type SQLiteStore struct {
	db       *sql.DB
	capacity int
}

// OpenSQLite opens (creating if needed) the database at path. ":memory:" is
// accepted for tests.
func OpenSQLite(path string, capacity int) (*SQLiteStore, error) {
	if capacity <= 0 {
		capacity = 10000
	}
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// One writer; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db schema: %w", err)
	}
	return &SQLiteStore{db: db, capacity: capacity}, nil
}

func buildDSN(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	params := []string{"_busy_timeout=5000", "_journal_mode=WAL"}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

func (s *SQLiteStore) Add(ctx context.Context, smp Sample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO readings (ts, remote, temp, hum) VALUES (?, ?, ?, ?)`,
		smp.At.UTC().Format(time.RFC3339Nano), smp.Remote, smp.Temp, smp.Hum,
	); err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM readings WHERE id <= (SELECT MAX(id) FROM readings) - ?`, s.capacity,
	); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Latest(ctx context.Context) (Sample, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, remote, temp, hum FROM readings ORDER BY id DESC LIMIT 1`)
	if err != nil {
		return Sample{}, false, err
	}
	out, err := scanSamples(rows)
	if err != nil || len(out) == 0 {
		return Sample{}, false, err
	}
	return out[0], true, nil
}

func (s *SQLiteStore) History(ctx context.Context) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, remote, temp, hum FROM readings ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	return scanSamples(rows)
}

func scanSamples(rows *sql.Rows) ([]Sample, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close readings rows", "error", err)
		}
	}()
	var out []Sample
	for rows.Next() {
		var (
			smp      Sample
			ts       string
			temp, hu sql.NullFloat64
		)
		if err := rows.Scan(&ts, &smp.Remote, &temp, &hu); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		smp.At = t.Local()
		if temp.Valid {
			smp.Temp = &temp.Float64
		}
		if hu.Valid {
			smp.Hum = &hu.Float64
		}
		out = append(out, smp)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
