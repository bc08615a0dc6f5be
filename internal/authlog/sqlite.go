package authlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS auth_attempts (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	attempt_id TEXT NOT NULL UNIQUE,
	username TEXT NOT NULL,
	key_type TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	remote TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

// SQLiteStore persists attempts in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating when needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create auth log dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = db.Close()
		return nil, fmt.Errorf("chmod auth log: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate auth log: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, attempt Attempt) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO auth_attempts(attempt_id, username, key_type, fingerprint, remote, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		attempt.ID, attempt.Username, attempt.KeyType, attempt.Fingerprint, attempt.Remote,
		attempt.Time.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert auth attempt: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT attempt_id, username, key_type, fingerprint, remote, created_at
FROM auth_attempts ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query auth attempts: %w", err)
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		var (
			attempt Attempt
			created string
		)
		if err := rows.Scan(&attempt.ID, &attempt.Username, &attempt.KeyType, &attempt.Fingerprint, &attempt.Remote, &created); err != nil {
			return nil, fmt.Errorf("scan auth attempt: %w", err)
		}
		attempt.Time, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse auth attempt time: %w", err)
		}
		out = append(out, attempt)
	}
	return out, rows.Err()
}
