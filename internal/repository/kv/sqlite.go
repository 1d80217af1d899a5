package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite" // Registers the "sqlite" database/sql driver.
)

// sqlitePragmas is the query part of the connection URI.
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// sqliteSchema keeps key presence separately from the items so that an empty
// list and a missing key can be told apart.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv_keys (
  key        TEXT PRIMARY KEY,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS kv_items (
  key   TEXT NOT NULL REFERENCES kv_keys(key) ON DELETE CASCADE,
  pos   INTEGER NOT NULL,
  value TEXT NOT NULL,
  PRIMARY KEY (key, pos)
);
`

// SQLiteKV stores lists in a SQLite database, one row per element.
// Every SetList runs in a single transaction.
type SQLiteKV struct {
	db *sql.DB
}

// OpenSQLiteKV opens (creating if needed) the database at path and ensures the schema exists.
func OpenSQLiteKV(ctx context.Context, path string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	// A single connection keeps pragmas and transactions on one handle.
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}

	if _, err = db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	return &SQLiteKV{db: db}, nil
}

// sqliteDSN builds the connection URI for path. The path is percent-encoded
// so that "?", "#" and "%" in it are not read as URI syntax.
func sqliteDSN(path string) string {
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + sqlitePragmas
}

// Close releases the database handle.
func (s *SQLiteKV) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// GetList returns the list stored under key in insertion order.
func (s *SQLiteKV) GetList(ctx context.Context, key string) ([]string, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	var present int

	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM kv_keys WHERE key = ?", key).Scan(&present)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("lookup key %q: %w", key, err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT value FROM kv_items WHERE key = ? ORDER BY pos", key)
	if err != nil {
		return nil, false, fmt.Errorf("query items of %q: %w", key, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	values := make([]string, 0)

	for rows.Next() {
		var value string
		if err = rows.Scan(&value); err != nil {
			return nil, false, fmt.Errorf("scan item of %q: %w", key, err)
		}

		values = append(values, value)
	}

	if err = rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate items of %q: %w", key, err)
	}

	return values, true, nil
}

// SetList replaces the list stored under key in one transaction.
func (s *SQLiteKV) SetList(ctx context.Context, key string, values []string) (err error) {
	if key == "" {
		return ErrEmptyKey
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO kv_keys(key, updated_at) VALUES(?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET updated_at = CURRENT_TIMESTAMP`, key)
	if err != nil {
		return fmt.Errorf("upsert key %q: %w", key, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM kv_items WHERE key = ?", key); err != nil {
		return fmt.Errorf("clear items of %q: %w", key, err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO kv_items(key, pos, value) VALUES(?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}

	defer func() {
		_ = stmt.Close()
	}()

	for pos, value := range values {
		if _, err = stmt.ExecContext(ctx, key, pos, value); err != nil {
			return fmt.Errorf("insert item %d of %q: %w", pos, key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
