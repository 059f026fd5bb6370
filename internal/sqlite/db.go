package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "modernc.org/sqlite"
)

//go:embed schema/station.sql
var stationSchema string

//go:embed schema/registry.sql
var registrySchema string

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New opens a SQLite database. Every statement commits with a full fsync, so a
// mutation that returned is on disk.
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers from the live path and the drain
	// loop, and keeps ":memory:" databases from splitting per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return &DB{db}, nil
}

// MigrateStation creates the station tables if missing.
func (db *DB) MigrateStation() error {
	if _, err := db.Exec(stationSchema); err != nil {
		return fmt.Errorf("failed to run station migrations: %w", err)
	}
	return nil
}

// MigrateRegistry creates the registry tables if missing.
func (db *DB) MigrateRegistry() error {
	if _, err := db.Exec(registrySchema); err != nil {
		return fmt.Errorf("failed to run registry migrations: %w", err)
	}
	return nil
}
