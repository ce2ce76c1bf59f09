package adapter

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "github.com/marcboeker/go-duckdb" // duckdb driver
	_ "modernc.org/sqlite"              // sqlite driver
)

func init() {
	Register("duckdb", func(l *slog.Logger) Adapter { return &DuckDBAdapter{BaseSQLAdapter: newBase(l)} })
	Register("sqlite", func(l *slog.Logger) Adapter { return &SQLiteAdapter{BaseSQLAdapter: newBase(l)} })
	Register("postgres", func(l *slog.Logger) Adapter { return &PostgresAdapter{BaseSQLAdapter: newBase(l)} })
}

// DuckDBAdapter reads tables from DuckDB.
type DuckDBAdapter struct {
	BaseSQLAdapter
}

// Connect opens cfg.DSN or cfg.Path; both empty means in-memory.
func (a *DuckDBAdapter) Connect(ctx context.Context, cfg Config) error {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = cfg.Path
	}
	if dsn == ":memory:" {
		dsn = ""
	}
	a.Logger.Debug("connecting to duckdb", slog.String("path", dsn))
	return a.open(ctx, "duckdb", dsn, cfg)
}

// DialectName returns "duckdb".
func (a *DuckDBAdapter) DialectName() string { return "duckdb" }

// SQLiteAdapter reads tables from SQLite.
type SQLiteAdapter struct {
	BaseSQLAdapter
}

// Connect opens cfg.DSN or cfg.Path; both empty means in-memory.
func (a *SQLiteAdapter) Connect(ctx context.Context, cfg Config) error {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = cfg.Path
	}
	if dsn == "" {
		dsn = ":memory:"
	}
	a.Logger.Debug("connecting to sqlite", slog.String("path", dsn))
	if err := a.open(ctx, "sqlite", dsn, cfg); err != nil {
		return err
	}
	// An in-memory database lives as long as its connection.
	a.DB.SetMaxOpenConns(1)
	return nil
}

// DialectName returns "sqlite".
func (a *SQLiteAdapter) DialectName() string { return "sqlite" }

// PostgresAdapter reads tables from PostgreSQL through pgx.
type PostgresAdapter struct {
	BaseSQLAdapter
}

// Connect opens cfg.DSN, or a DSN built from the host fields.
func (a *PostgresAdapter) Connect(ctx context.Context, cfg Config) error {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = buildPostgresDSN(cfg)
	}
	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))
	return a.open(ctx, "pgx", dsn, cfg)
}

// DialectName returns "postgres".
func (a *PostgresAdapter) DialectName() string { return "postgres" }

// buildPostgresDSN constructs a key=value PostgreSQL connection string.
func buildPostgresDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, cfg.Database, sslmode)
	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}
