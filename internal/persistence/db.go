package persistence

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config selects and tunes the database connection.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig opens a private in-memory sqlite database. It lives as long
// as its single connection.
func DefaultConfig() Config {
	return Config{
		Driver:       DriverSQLite,
		DSN:          ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
}

// Open connects to the configured database and verifies the connection.
func Open(cfg Config) (*bun.DB, error) {
	var (
		conn *sql.DB
		db   *bun.DB
		err  error
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		conn, err = sql.Open(DriverSQLite, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("sqlite connection failed: %w", err)
		}
		// In-memory databases exist per connection.
		if cfg.MaxOpenConns == 0 {
			cfg.MaxOpenConns = 1
		}
		db = bun.NewDB(conn, sqlitedialect.New())
	case DriverPostgres:
		conn, err = sql.Open(DriverPostgres, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres connection failed: %w", err)
		}
		db = bun.NewDB(conn, pgdialect.New())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}
