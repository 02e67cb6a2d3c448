// Package db is the PostgreSQL store for users, their biometric,
// transaction and intervention history.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/finsphere/finsphere/internal/breaker"
	"github.com/finsphere/finsphere/internal/metrics"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// DB wraps the PostgreSQL connection pool
type DB struct {
	pool     Pool
	breakers *breaker.Manager
	now      func() time.Time
}

// New creates a new database connection pool from a postgres:// URL.
// Reads run through the manager's database breaker.
func New(ctx context.Context, databaseURL string, breakers *breaker.Manager) (*DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is not set")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Int32("max_conns", config.MaxConns).Msg("Database connection pool created successfully")

	return NewWithPool(pool, breakers), nil
}

// NewWithPool wraps an existing pool. A nil breaker manager disables
// circuit breaking.
func NewWithPool(pool Pool, breakers *breaker.Manager) *DB {
	if breakers == nil {
		breakers = breaker.NewPassthroughManager()
	}
	return &DB{pool: pool, breakers: breakers, now: time.Now}
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
		log.Info().Msg("Database connection pool closed")
	}
}

// Pool returns the underlying pool for collaborators that share it
func (db *DB) Pool() Pool {
	return db.pool
}

// Health checks database connectivity
func (db *DB) Health(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Stats reports pool usage to the connection gauges. Only a real pgxpool
// has statistics.
func (db *DB) Stats() {
	if p, ok := db.pool.(*pgxpool.Pool); ok {
		s := p.Stat()
		metrics.UpdateDatabaseConnections(s.AcquiredConns(), s.IdleConns())
	}
}

// observe records query latency under queryType
func observe(queryType string, start time.Time) {
	metrics.RecordDatabaseQuery(queryType, float64(time.Since(start).Milliseconds()))
}

// guarded runs fn behind the database circuit breaker
func guarded[T any](db *DB, fn func() (T, error)) (T, error) {
	return breaker.Execute(db.breakers, db.breakers.Database(), breaker.ServiceDatabase, fn)
}
