// Package adapter connects to SQL databases and turns query results into
// datasets that can be attached to tree nodes.
package adapter

import (
	"context"
	"database/sql"
)

// Config holds the configuration for connecting to a database.
type Config struct {
	// Type selects the adapter ("duckdb", "sqlite", "postgres")
	Type string

	// DSN is passed to the driver verbatim when set
	DSN string

	// Path is the file path for file-based databases (DuckDB, SQLite).
	// Empty or ":memory:" opens an in-memory database.
	Path string

	// Host, Port, Database, Username and Password describe network databases
	Host     string
	Port     int
	Database string
	Username string
	Password string

	// Options contains additional driver-specific options
	Options map[string]string
}

// Adapter is a connection to a table source.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string, args ...any) error

	// Query executes a SQL statement that returns rows. The caller closes them.
	Query(ctx context.Context, sql string, args ...any) (*sql.Rows, error)

	// DialectName returns the SQL dialect name ("duckdb", "sqlite", "postgres").
	DialectName() string
}
