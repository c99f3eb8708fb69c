// Package database owns the PostgreSQL connection pool and schema
// migrations for Strata.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool sizing: the server is a single process, so a small fixed pool with
// idle reclamation is enough.
const (
	maxConns        = 10
	minConns        = 2
	maxConnIdleTime = 5 * time.Minute
)

// DB wraps the pgx pool behind the handful of operations the rest of the
// application needs.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to the database at databaseURL and verifies the connection
// with a ping before returning.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	cfg.MaxConnIdleTime = maxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Pool exposes the underlying pool for queries and transactions.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Health verifies the database is reachable.
func (db *DB) Health(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Close drains the pool on shutdown.
func (db *DB) Close() {
	db.pool.Close()
}
