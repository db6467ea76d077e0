package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	_ "github.com/mattn/go-sqlite3"

	"github.com/eslsoft/studydeck/internal/infrastructure/config"
)

// NewPool creates a pgx connection pool. Only valid for the postgres driver.
func NewPool(cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if cfg.DatabaseDriver() != config.DriverPostgres {
		return nil, nil, fmt.Errorf("connection pool requires postgres, current driver: %s", cfg.DatabaseDriver())
	}

	dsn, err := cfg.DatabaseURL()
	if err != nil {
		return nil, nil, fmt.Errorf("determine database dsn: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("parse pool config: %w", err)
	}
	poolCfg.MaxConns = 10

	if cfg.Database.LogSQL {
		logger := log.New(log.Writer(), "pgx ", log.LstdFlags|log.Lmicroseconds)
		poolCfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger: tracelog.LoggerFunc(func(_ context.Context, lvl tracelog.LogLevel, msg string, data map[string]any) {
				logger.Printf("level=%s msg=%s data=%v", lvl, msg, data)
			}),
			LogLevel: tracelog.LogLevelTrace,
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, pool.Close, fmt.Errorf("ping db: %w", err)
	}

	return pool, pool.Close, nil
}

// OpenSQLite opens (creating if needed) the sqlite database file. Only
// valid for the sqlite driver. go-sqlite3 requires CGO_ENABLED=1 builds.
func OpenSQLite(cfg *config.Config) (*sql.DB, func(), error) {
	if cfg.DatabaseDriver() != config.DriverSQLite {
		return nil, nil, fmt.Errorf("sqlite open requires sqlite3, current driver: %s", cfg.DatabaseDriver())
	}

	dsn, err := cfg.DatabaseURL()
	if err != nil {
		return nil, nil, fmt.Errorf("determine database dsn: %w", err)
	}

	// The history table relies on ON DELETE CASCADE, which sqlite only
	// honors with foreign keys switched on per connection.
	db, err := sql.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent reviews.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	cleanup := func() { _ = db.Close() }
	return db, cleanup, nil
}
