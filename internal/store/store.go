package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/richtraceroute/enrichmentd/internal/metrics"
)

// Store is the persistence layer for traceroutes, hops, hosts, and the
// shared IP-info cache. All writes go through a transaction per logical
// operation.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func New(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// PurgeOldTraceroutes deletes every traceroute (cascading to its hops and
// hosts) whose last_seen_at is older than before, for the housekeeper.
func (s *Store) PurgeOldTraceroutes(ctx context.Context, before time.Time) (int64, error) {
	start := time.Now()
	tag, err := s.pool.Exec(ctx, `DELETE FROM traceroutes WHERE last_seen_at < $1`, before)
	metrics.DBWriteDuration.WithLabelValues("purge_traceroutes").Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("purging old traceroutes: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeOldIPInfo deletes every cached IP-info prefix (cascading to its
// origins and IXP row) whose last_updated is older than before.
func (s *Store) PurgeOldIPInfo(ctx context.Context, before time.Time) (int64, error) {
	start := time.Now()
	tag, err := s.pool.Exec(ctx, `DELETE FROM ip_info_prefixes WHERE last_updated < $1`, before)
	metrics.DBWriteDuration.WithLabelValues("purge_ip_info").Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("purging old ip info: %w", err)
	}
	return tag.RowsAffected(), nil
}
