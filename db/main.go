package db

import (
	"database/sql"
	"strings"

	"github.com/cyverse-de/dbutil"
	"github.com/pkg/errors"
)

// kvTable is the name of the table that holds key-value entries.
const kvTable = "kv_entries"

// InitDatabase establishes a database connection and verifies tha the database can be reached.
func InitDatabase(driverName, databaseURI string) (*sql.DB, error) {
	wrapMsg := "unable to initialize the database"

	// Create a database connector to establish the connection.
	connector, err := dbutil.NewDefaultConnector("1m")
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Establish the database connection.
	db, err := connector.Connect(driverName, databaseURI)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return db, nil
}

// likePrefix returns a LIKE pattern matching every string that begins with prefix. Wildcard
// characters in the prefix are escaped with a backslash.
func likePrefix(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return escaped + "%"
}
