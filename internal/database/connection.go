// Package database opens the PostgreSQL connection pool shared by the ledger
// store and the reset catalog.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultMaxConns = 5

type poolOptions struct {
	maxConns         int32
	lockTimeout      time.Duration
	statementTimeout time.Duration
}

// Option configures the pool created by NewPool.
type Option func(*poolOptions)

// WithMaxConns caps the number of pooled connections.
func WithMaxConns(n int32) Option {
	return func(o *poolOptions) { o.maxConns = n }
}

// WithLockTimeout sets lock_timeout on every connection. Zero leaves the server default.
func WithLockTimeout(d time.Duration) Option {
	return func(o *poolOptions) { o.lockTimeout = d }
}

// WithStatementTimeout sets statement_timeout on every connection. Zero leaves the server default.
func WithStatementTimeout(d time.Duration) Option {
	return func(o *poolOptions) { o.statementTimeout = d }
}

// NewPool creates a pgx connection pool for the given database URL.
// It parses the connection string, applies the session timeouts, and pings
// the database to verify connectivity.
func NewPool(ctx context.Context, databaseURL string, opts ...Option) (*pgxpool.Pool, error) {
	o := poolOptions{maxConns: defaultMaxConns}
	for _, opt := range opts {
		opt(&o)
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	poolCfg.MaxConns = o.maxConns

	for k, v := range runtimeParams(o) {
		poolCfg.ConnConfig.RuntimeParams[k] = v
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return pool, nil
}

// runtimeParams returns the session settings sent in the startup message.
func runtimeParams(o poolOptions) map[string]string {
	params := make(map[string]string)

	if o.lockTimeout > 0 {
		params["lock_timeout"] = fmt.Sprintf("%dms", o.lockTimeout.Milliseconds())
	}

	if o.statementTimeout > 0 {
		params["statement_timeout"] = fmt.Sprintf("%dms", o.statementTimeout.Milliseconds())
	}

	return params
}
