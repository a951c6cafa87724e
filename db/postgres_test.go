package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestPostgresGet(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	ctx := context.Background()
	assert.NoError(err, "unable to open the mock database connection")
	defer db.Close()

	// Set up the expectations.
	rows := sqlmock.NewRows([]string{"value"}).AddRow(`{"enabled":true}`)
	mock.ExpectQuery("SELECT value FROM kv_entries WHERE key =").
		WithArgs("notification_settings").
		WillReturnRows(rows)

	// Look up the value.
	value, found, err := NewPostgresStore(db).Get(ctx, "notification_settings")
	assert.NoError(err, "unexpected error occurred while looking up the value")
	assert.True(found, "the value was not found")
	assert.Equal(`{"enabled":true}`, string(value))

	// Verify that all mock expectations were met.
	err = mock.ExpectationsWereMet()
	assert.NoError(err, "not all mock expectations were met")
}

func TestPostgresGetMissing(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	ctx := context.Background()
	assert.NoError(err, "unable to open the mock database connection")
	defer db.Close()

	// Set up the expectations.
	mock.ExpectQuery("SELECT value FROM kv_entries WHERE key =").
		WithArgs("notifications").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	// Look up the value.
	value, found, err := NewPostgresStore(db).Get(ctx, "notifications")
	assert.NoError(err, "a missing key should not produce an error")
	assert.False(found, "a missing key was reported as found")
	assert.Nil(value)

	// Verify that all mock expectations were met.
	err = mock.ExpectationsWereMet()
	assert.NoError(err, "not all mock expectations were met")
}

func TestPostgresSet(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	ctx := context.Background()
	assert.NoError(err, "unable to open the mock database connection")
	defer db.Close()

	// Set up the expectations.
	mock.ExpectExec("INSERT INTO kv_entries \\(key,value,updated_at\\) VALUES \\(\\$1,\\$2,now\\(\\)\\) ON CONFLICT").
		WithArgs("notifications", "[]").
		WillReturnResult(sqlmock.NewResult(1, 1))

	// Store the value.
	err = NewPostgresStore(db).Set(ctx, "notifications", []byte("[]"))
	assert.NoError(err, "unexpected error occurred while storing the value")

	// Verify that all mock expectations were met.
	err = mock.ExpectationsWereMet()
	assert.NoError(err, "not all mock expectations were met")
}

func TestPostgresDelete(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	ctx := context.Background()
	assert.NoError(err, "unable to open the mock database connection")
	defer db.Close()

	// Set up the expectations.
	mock.ExpectExec("DELETE FROM kv_entries WHERE key =").
		WithArgs("notification_broadcast_1_a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Delete the entry.
	err = NewPostgresStore(db).Delete(ctx, "notification_broadcast_1_a")
	assert.NoError(err, "unexpected error occurred while deleting the entry")

	// Verify that all mock expectations were met.
	err = mock.ExpectationsWereMet()
	assert.NoError(err, "not all mock expectations were met")
}

func TestPostgresKeys(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	ctx := context.Background()
	assert.NoError(err, "unable to open the mock database connection")
	defer db.Close()

	// Set up the expectations. Underscores in the prefix must be escaped.
	rows := sqlmock.NewRows([]string{"key"}).
		AddRow("notification_broadcast_1_a").
		AddRow("notification_broadcast_2_b")
	mock.ExpectQuery("SELECT key FROM kv_entries WHERE key LIKE \\$1 ORDER BY key").
		WithArgs(`notification\_broadcast\_%`).
		WillReturnRows(rows)

	// List the keys.
	keys, err := NewPostgresStore(db).Keys(ctx, "notification_broadcast_")
	assert.NoError(err, "unexpected error occurred while listing keys")
	assert.Equal([]string{"notification_broadcast_1_a", "notification_broadcast_2_b"}, keys)

	// Verify that all mock expectations were met.
	err = mock.ExpectationsWereMet()
	assert.NoError(err, "not all mock expectations were met")
}

func TestLikePrefix(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("abc%", likePrefix("abc"))
	assert.Equal(`a\_b\%c\\%`, likePrefix(`a_b%c\`))
}
