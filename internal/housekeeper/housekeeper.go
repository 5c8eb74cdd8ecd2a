// Package housekeeper periodically purges expired traceroutes and cached
// IP-info prefixes that have outlived their retention window.
package housekeeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/richtraceroute/enrichmentd/internal/iptrie"
	"github.com/richtraceroute/enrichmentd/internal/metrics"
	"github.com/richtraceroute/enrichmentd/internal/schedule"
	"github.com/richtraceroute/enrichmentd/internal/traceroute"
)

const (
	// StartupDelay is how soon after process start the first sweep fires.
	StartupDelay = 1 * time.Second
	// SweepInterval is the recurring purge period (spec.md §6:
	// HOUSEKEEPER_INTERVAL = 6h).
	SweepInterval = 6 * time.Hour
)

// Store is the purge surface the housekeeper needs, satisfied by
// *store.Store.
type Store interface {
	PurgeOldTraceroutes(ctx context.Context, before time.Time) (int64, error)
	PurgeOldIPInfo(ctx context.Context, before time.Time) (int64, error)
}

// Housekeeper purges expired rows on a schedule.
type Housekeeper struct {
	store  Store
	logger *zap.Logger
}

// New builds a Housekeeper.
func New(store Store, logger *zap.Logger) *Housekeeper {
	return &Housekeeper{store: store, logger: logger}
}

// Run blocks, sweeping shortly after start and then every SweepInterval,
// until ctx is cancelled.
func (h *Housekeeper) Run(ctx context.Context) {
	schedule.Periodic(ctx, StartupDelay, SweepInterval, h.Sweep)
}

// Sweep performs a single purge pass, for callers (such as a one-shot CLI
// subcommand) that want one run without the recurring schedule.
func (h *Housekeeper) Sweep(ctx context.Context) {
	now := time.Now()

	tracerouteCutoff := now.Add(-traceroute.TracerouteExpiry)
	nTraceroutes, err := h.store.PurgeOldTraceroutes(ctx, tracerouteCutoff)
	if err != nil {
		h.logger.Error("purging old traceroutes", zap.Error(err))
	} else {
		metrics.HousekeeperPurgedTotal.WithLabelValues("traceroutes").Add(float64(nTraceroutes))
	}

	ipInfoCutoff := now.Add(-iptrie.Expiry)
	nIPInfo, err := h.store.PurgeOldIPInfo(ctx, ipInfoCutoff)
	if err != nil {
		h.logger.Error("purging old ip info", zap.Error(err))
	} else {
		metrics.HousekeeperPurgedTotal.WithLabelValues("ip_info").Add(float64(nIPInfo))
	}

	h.logger.Info("housekeeper sweep complete",
		zap.Int64("traceroutes_purged", nTraceroutes),
		zap.Int64("ip_info_purged", nIPInfo))
}
