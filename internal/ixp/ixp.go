// Package ixp periodically rebuilds the IXP-network facts published to the
// enricher fleet: it fetches PeeringDB's ix/ixlan/ixpfx tables, joins them
// into one IPDBInfo per exchange prefix, and persists + fans each one out.
package ixp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/richtraceroute/enrichmentd/internal/extsource"
	"github.com/richtraceroute/enrichmentd/internal/ipinfo"
	"github.com/richtraceroute/enrichmentd/internal/metrics"
	"github.com/richtraceroute/enrichmentd/internal/schedule"
)

const (
	// StartupDelay is how soon after process start the first run fires.
	StartupDelay = 1 * time.Second
	// UpdateInterval is the recurring refresh period.
	UpdateInterval = 3 * time.Hour
)

// Store is the persistence surface the updater needs, satisfied by
// *store.Store.
type Store interface {
	SaveIPInfo(ctx context.Context, info ipinfo.IPDBInfo) error
}

// Dispatcher is the fan-out surface the updater needs, satisfied by
// *dispatch.IPInfoDispatcher.
type Dispatcher interface {
	Dispatch(info ipinfo.IPDBInfo)
}

// Updater rebuilds IXP prefix facts from PeeringDB on a schedule.
type Updater struct {
	client    *extsource.PeeringDBClient
	store     Store
	dispatchr Dispatcher
	logger    *zap.Logger
}

// New builds an Updater.
func New(client *extsource.PeeringDBClient, store Store, dispatchr Dispatcher, logger *zap.Logger) *Updater {
	return &Updater{client: client, store: store, dispatchr: dispatchr, logger: logger}
}

// Run blocks, invoking Update shortly after start and then every
// UpdateInterval, until ctx is cancelled.
func (u *Updater) Run(ctx context.Context) {
	schedule.Periodic(ctx, StartupDelay, UpdateInterval, u.update)
}

// Update performs a single fetch-join-publish pass, for callers (such as a
// one-shot CLI subcommand) that want one run without the recurring schedule.
func (u *Updater) Update(ctx context.Context) error {
	return metrics.TimeCtx(ctx, metrics.IXPUpdateDuration.WithLabelValues(), u.build)
}

type pdbIX struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	NameLong string `json:"name_long"`
}

type pdbIXLan struct {
	ID    int    `json:"id"`
	IXID  int    `json:"ix_id"`
	Name  string `json:"name"`
}

type pdbIXPfx struct {
	IXLanID int    `json:"ixlan_id"`
	Prefix  string `json:"prefix"`
}

// update runs one fetch-join-publish pass on the ticker, logging rather
// than propagating failure so the schedule keeps running.
func (u *Updater) update(ctx context.Context) {
	if err := u.Update(ctx); err != nil {
		u.logger.Warn("ixp update failed", zap.Error(err))
	}
}

// build fetches ix/ixlan/ixpfx and performs the nested join. A failed
// fetch aborts the whole pass, leaving the next scheduled run to retry;
// an individual save failure is logged and skipped so one bad row
// doesn't block the rest of the prefix set.
func (u *Updater) build(ctx context.Context) error {
	ixRaw, err := u.client.IXData(ctx)
	if err != nil {
		return fmt.Errorf("fetch ix data: %w", err)
	}
	ixlanRaw, err := u.client.IXLANData(ctx)
	if err != nil {
		return fmt.Errorf("fetch ixlan data: %w", err)
	}
	ixpfxRaw, err := u.client.IXPFXData(ctx)
	if err != nil {
		return fmt.Errorf("fetch ixpfx data: %w", err)
	}

	ixList := decodeAll[pdbIX](ixRaw, u.logger)
	ixlanList := decodeAll[pdbIXLan](ixlanRaw, u.logger)
	ixpfxList := decodeAll[pdbIXPfx](ixpfxRaw, u.logger)

	published := 0
	for _, ix := range ixList {
		var ixName, ixDescription *string
		if ix.Name != "" {
			ixName = &ix.Name
		}
		if ix.NameLong != "" {
			ixDescription = &ix.NameLong
		}

		for _, lan := range lookupIXLans(ixlanList, ix.ID) {
			var lanName *string
			if lan.Name != "" {
				lanName = &lan.Name
			}

			for _, pfx := range lookupIXLanPrefixes(ixpfxList, lan.ID) {
				info := ipinfo.IPDBInfo{
					Prefix: pfx.Prefix,
					IXPNetwork: &ipinfo.IXPNetwork{
						LANName:       lanName,
						IXName:        ixName,
						IXDescription: ixDescription,
					},
				}

				if err := u.store.SaveIPInfo(ctx, info); err != nil {
					u.logger.Error("save ixp prefix", zap.String("prefix", info.Prefix), zap.Error(err))
					continue
				}

				u.dispatchr.Dispatch(info)
				published++
			}
		}
	}

	metrics.IXPPrefixesPublishedTotal.WithLabelValues().Add(float64(published))
	return nil
}

func lookupIXLans(all []pdbIXLan, ixID int) []pdbIXLan {
	var res []pdbIXLan
	for _, lan := range all {
		if lan.IXID == ixID {
			res = append(res, lan)
		}
	}
	return res
}

func lookupIXLanPrefixes(all []pdbIXPfx, ixlanID int) []pdbIXPfx {
	var res []pdbIXPfx
	for _, pfx := range all {
		if pfx.IXLanID == ixlanID {
			res = append(res, pfx)
		}
	}
	return res
}

func decodeAll[T any](raw []json.RawMessage, logger *zap.Logger) []T {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			logger.Warn("skipping malformed peeringdb record", zap.Error(err))
			continue
		}
		out = append(out, v)
	}
	return out
}
