package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	sq "github.com/Masterminds/squirrel"
)

// postgresSchema creates the key-value table if it doesn't exist yet.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        text PRIMARY KEY,
	value      text NOT NULL,
	updated_at timestamp with time zone NOT NULL DEFAULT now()
)`

// PostgresStore is a key-value store kept in a PostgreSQL table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a key-value store that uses the given database connection.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// psql returns a statement builder that uses PostgreSQL placeholders.
func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the key-value table if necessary.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, postgresSchema)
	if err != nil {
		return errors.Wrap(err, "unable to create the key-value table")
	}
	return nil
}

// Get returns the value stored under key.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	wrapMsg := fmt.Sprintf("unable to get the value for `%s`", key)

	// Build the query.
	query, args, err := psql().
		Select("value").
		From(kvTable).
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return nil, false, errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, wrapMsg)
	}

	return []byte(value), true, nil
}

// Set stores value under key, replacing any existing value.
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	wrapMsg := fmt.Sprintf("unable to set the value for `%s`", key)

	// Build the upsert statement.
	statement, args, err := psql().
		Insert(kvTable).
		Columns("key", "value", "updated_at").
		Values(key, string(value), sq.Expr("now()")).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	_, err = s.db.ExecContext(ctx, statement, args...)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}

// Delete removes key from the table.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	wrapMsg := fmt.Sprintf("unable to delete `%s`", key)

	// Build the delete statement.
	statement, args, err := psql().
		Delete(kvTable).
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	_, err = s.db.ExecContext(ctx, statement, args...)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}

// Keys lists the keys beginning with prefix in lexical order.
func (s *PostgresStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	wrapMsg := fmt.Sprintf("unable to list keys with prefix `%s`", prefix)

	// Build the query.
	query, args, err := psql().
		Select("key").
		From(kvTable).
		Where(sq.Like{"key": likePrefix(prefix)}).
		OrderBy("key").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.Wrap(err, wrapMsg)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return keys, nil
}
