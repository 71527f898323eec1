package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/syssam/rhubarb/dialect"
	"github.com/syssam/rhubarb/dialect/sql"
)

// DB is an open database: the driver queries are issued through and
// the statistics of the statements issued so far.
type DB struct {
	dialect.Driver
	Stats *sql.QueryStats
}

// Open opens the configured database. Statements are counted, slow ones
// are logged as warnings and, in debug mode, every statement is logged.
// The database driver has to be registered by the caller, e.g. by
// importing github.com/lib/pq or modernc.org/sqlite.
func (c *Config) Open(logger *slog.Logger) (*DB, error) {
	if c.DSN == "" {
		return nil, errors.New("config: dsn is required to open a database")
	}
	if logger == nil {
		logger = slog.Default()
	}
	drv, err := sql.Open(c.Dialect, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", c.Dialect, err)
	}
	// Every connection to an in-memory SQLite database opens a new database.
	if c.Dialect == dialect.SQLite && strings.Contains(c.DSN, ":memory:") {
		drv.DB().SetMaxOpenConns(1)
	}
	stats := sql.NewStatsDriver(drv,
		sql.WithSlowThreshold(c.SlowQueryThreshold),
		sql.WithSlowQueryLog(logger),
	)
	db := &DB{Driver: stats, Stats: stats.QueryStats()}
	if c.Debug {
		db.Driver = sql.NewDebugDriver(stats, sql.DebugWithLog(func(ctx context.Context, v ...any) {
			logger.DebugContext(ctx, fmt.Sprint(v...))
		}))
	}
	return db, nil
}
