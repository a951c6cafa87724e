package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a key-value store kept in a local SQLite database. It lets several
// processes on the same host share notification state through a single file.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, enables WAL mode, and runs
// any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	wrapMsg := fmt.Sprintf("unable to open the SQLite store at `%s`", dbPath)

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// An in-memory database only exists for the connection that created it.
	db.SetMaxOpenConns(1)

	// Enable WAL mode so that other processes can read while we write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enabling WAL mode")
	}

	// Wait for locks held by other processes instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "setting the busy timeout")
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, wrapMsg)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any outstanding migrations
// in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if the schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return errors.Wrap(err, "checking the schema_version table")
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return errors.Wrap(err, "reading the schema version")
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return errors.Wrapf(err, "applying migration v%d", m.version)
		}
	}

	return nil
}

// Get returns the value stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM kv_entries WHERE key = ?", key)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "unable to get the value for `%s`", key)
	}
	return []byte(value), true, nil
}

// Set stores value under key, replacing any existing value.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value),
	)
	if err != nil {
		return errors.Wrapf(err, "unable to set the value for `%s`", key)
	}
	return nil
}

// Delete removes key from the store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv_entries WHERE key = ?", key)
	if err != nil {
		return errors.Wrapf(err, "unable to delete `%s`", key)
	}
	return nil
}

// Keys lists the keys beginning with prefix in lexical order.
func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)

	// LIKE is case insensitive in SQLite, so compare the leading characters directly.
	err := s.db.SelectContext(ctx, &keys,
		"SELECT key FROM kv_entries WHERE substr(key, 1, length(?)) = ? ORDER BY key",
		prefix, prefix,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to list keys with prefix `%s`", prefix)
	}
	return keys, nil
}
