// Package store persists traceroutes, their hops and hosts, and the
// IP-info cache (prefix, origin ASNs, IXP membership) to Postgres.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// NewPool opens a connection pool against dsn, retrying with doubling
// backoff (starting at 1s, capped at 60s) until ctx is done. Unlike a
// plain pgxpool.New, which only pools already-open connections, this
// covers the initial connect-or-fail window at process start, matching
// the original project's ReconnectMySQLDatabase loop.
func NewPool(ctx context.Context, dsn string, maxConns, minConns int32, logger *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	backoff := time.Second
	const maxBackoff = 60 * time.Second

	for {
		pool, connectErr := pgxpool.NewWithConfig(ctx, cfg)
		if connectErr == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				return pool, nil
			} else {
				pool.Close()
				connectErr = pingErr
			}
		}

		logger.Warn("database connection attempt failed, retrying",
			zap.Duration("backoff", backoff), zap.Error(connectErr))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connecting to database: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Ping checks pool connectivity.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	return pool.Ping(ctx)
}
