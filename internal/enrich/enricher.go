package enrich

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/richtraceroute/enrichmentd/internal/dispatch"
	"github.com/richtraceroute/enrichmentd/internal/errs"
	"github.com/richtraceroute/enrichmentd/internal/extsource"
	"github.com/richtraceroute/enrichmentd/internal/ipinfo"
	"github.com/richtraceroute/enrichmentd/internal/iptrie"
	"github.com/richtraceroute/enrichmentd/internal/metrics"
	"github.com/richtraceroute/enrichmentd/internal/traceroute"
)

// Store is the persistence surface an Enricher needs; satisfied by
// *internal/store.Store.
type Store interface {
	MarkEnrichmentStarted(ctx context.Context, tracerouteID string, at time.Time) error
	MarkEnrichmentCompleted(ctx context.Context, tracerouteID string, at time.Time) error
	GetTraceroute(ctx context.Context, id string) (*traceroute.Traceroute, error)
	UpdateHostEnrichment(ctx context.Context, hostID string, ip, name *string, origins []ipinfo.Origin, ixp *ipinfo.IXPNetwork) error
	SaveIPInfo(ctx context.Context, info ipinfo.IPDBInfo) error
	LoadAllIPInfo(ctx context.Context) ([]ipinfo.IPDBInfo, []time.Time, error)
}

// Notifier is the client-facing event emission surface; satisfied by
// *internal/notify.Emitter.
type Notifier interface {
	EmitHostEnriched(ctx context.Context, tracerouteID string, host *traceroute.Host) error
	EmitHostEnrichmentError(ctx context.Context, tracerouteID string, hopN int, hostID, errMsg string) error
	EmitEnrichmentCompleted(ctx context.Context, tr *traceroute.Traceroute) error
}

// Enricher performs the full per-job enrichment algorithm: DNS, trie
// lookup with external-source fallback, persistence, and event emission.
// Several Enrichers within a consumer process share one Trie.
type Enricher struct {
	Name string

	trie      *iptrie.Trie
	resolver  *Resolver
	ripestat  *extsource.RIPEStatClient
	store     Store
	ipDispatc *dispatch.IPInfoDispatcher
	notifier  Notifier
	logger    *zap.Logger
}

// New builds an Enricher sharing trie with its sibling enrichers in the
// same consumer.
func New(name string, trie *iptrie.Trie, resolver *Resolver, ripestat *extsource.RIPEStatClient, store Store, ipDispatcher *dispatch.IPInfoDispatcher, notifier Notifier, logger *zap.Logger) *Enricher {
	return &Enricher{
		Name:      name,
		trie:      trie,
		resolver:  resolver,
		ripestat:  ripestat,
		store:     store,
		ipDispatc: ipDispatcher,
		notifier:  notifier,
		logger:    logger.With(zap.String("enricher", name)),
	}
}

// WarmUpTrie schedules a one-shot load of every persisted IP-info prefix
// into the shared trie after a random 1..120s delay, spreading the load
// across enrichers that all start around the same time instead of every
// one of them hitting the store simultaneously.
func (e *Enricher) WarmUpTrie(ctx context.Context) {
	delay := time.Duration(1+rand.Intn(120)) * time.Second
	timer := time.NewTimer(delay)
	go func() {
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			e.loadTrieFromStore(ctx)
		}
	}()
}

func (e *Enricher) loadTrieFromStore(ctx context.Context) {
	infos, updated, err := e.store.LoadAllIPInfo(ctx)
	if err != nil {
		e.logger.Error("loading ip info entries from store failed", zap.Error(err))
		return
	}
	for i, info := range infos {
		if err := e.trie.Add(info, updated[i]); err != nil {
			e.logger.Warn("warm-up add failed", zap.String("prefix", info.Prefix), zap.Error(err))
		}
	}
	e.logger.Info("ip info entries loaded", zap.Int("count", len(infos)))
}

// AddIPInfoToLocalCache upserts an IP-info fact into the shared trie,
// optionally dispatching it to every other consumer's trie.
func (e *Enricher) AddIPInfoToLocalCache(info ipinfo.IPDBInfo, dispatchToOthers bool, lastUpdated time.Time) error {
	if err := e.trie.Add(info, lastUpdated); err != nil {
		return err
	}
	if dispatchToOthers {
		e.ipDispatc.Dispatch(info)
	}
	return nil
}

// ProcessJob runs the full per-job enrichment algorithm against a single
// EnricherJob, matching process_traceroute_enrichment_job's step order.
func (e *Enricher) ProcessJob(ctx context.Context, job ipinfo.EnricherJob) {
	err := metrics.TimeCtx(ctx, metrics.EnrichmentDuration.WithLabelValues(e.Name), func(ctx context.Context) error {
		now := time.Now()
		if err := e.store.MarkEnrichmentStarted(ctx, job.TracerouteID, now); err != nil {
			return fmt.Errorf("mark enrichment started: %w", err)
		}

		for _, host := range job.Hosts {
			e.enrichHostSafely(ctx, job.TracerouteID, host)
		}

		if err := e.store.MarkEnrichmentCompleted(ctx, job.TracerouteID, time.Now()); err != nil {
			return fmt.Errorf("mark enrichment completed: %w", err)
		}

		tr, err := e.store.GetTraceroute(ctx, job.TracerouteID)
		if err != nil {
			return fmt.Errorf("reload traceroute: %w", err)
		}
		if err := e.notifier.EmitEnrichmentCompleted(ctx, tr); err != nil {
			e.logger.Warn("emit enrichment completed failed", zap.String("traceroute_id", job.TracerouteID), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		metrics.EnrichmentErrorsTotal.WithLabelValues("job").Inc()
		e.logger.Error("unhandled exception processing job", zap.String("traceroute_id", job.TracerouteID), zap.Error(err))
	}
}

// enrichHostSafely enriches one host, converting any panic or error into
// a host-level error event so one bad host never aborts the job.
func (e *Enricher) enrichHostSafely(ctx context.Context, tracerouteID string, h ipinfo.EnricherJobHost) {
	defer func() {
		if r := recover(); r != nil {
			metrics.EnrichmentErrorsTotal.WithLabelValues("host").Inc()
			e.logger.Error("panic enriching host", zap.String("host_id", h.HostID), zap.Any("recover", r))
			_ = e.notifier.EmitHostEnrichmentError(ctx, tracerouteID, h.HopN, h.HostID, "An error occurred while enriching the information for this host.")
		}
	}()

	host, err := e.enrichHost(ctx, h)
	if err != nil {
		metrics.EnrichmentErrorsTotal.WithLabelValues("host").Inc()
		e.logger.Error("enrich host failed", zap.String("host_id", h.HostID), zap.Error(err))
		_ = e.notifier.EmitHostEnrichmentError(ctx, tracerouteID, h.HopN, h.HostID, "An error occurred while enriching the information for this host.")
		return
	}

	if err := e.notifier.EmitHostEnriched(ctx, tracerouteID, host); err != nil {
		e.logger.Warn("emit host enriched failed", zap.String("host_id", h.HostID), zap.Error(err))
	}
}

func (e *Enricher) enrichHost(ctx context.Context, h ipinfo.EnricherJobHost) (*traceroute.Host, error) {
	var hostIP *string
	var hostName *string

	if addr, err := netip.ParseAddr(h.Host); err == nil {
		s := addr.String()
		hostIP = &s
	} else {
		s := h.Host
		hostName = &s
	}

	if hostIP != nil && isGlobalString(*hostIP) {
		if name := e.resolver.IPToName(ctx, *hostIP); name != "" {
			hostName = &name
		}
	} else if hostName != nil {
		if ip := e.resolver.NameToIP(ctx, *hostName); ip != "" {
			hostIP = &ip
		}
	}

	var info *ipinfo.IPDBInfo
	if hostIP != nil && isGlobalString(*hostIP) {
		var err error
		info, err = e.lookupIPInfo(ctx, *hostIP)
		if err != nil {
			return nil, err
		}
	}

	var origins []ipinfo.Origin
	var ixp *ipinfo.IXPNetwork
	if info != nil {
		origins = info.Origins
		ixp = info.IXPNetwork
	}

	if err := e.store.UpdateHostEnrichment(ctx, h.HostID, hostIP, hostName, origins, ixp); err != nil {
		return nil, fmt.Errorf("persist host %s: %w", h.HostID, err)
	}

	return &traceroute.Host{
		ID:           h.HostID,
		HopNumber:    h.HopN,
		OriginalHost: h.Host,
		IP:           hostIP,
		Name:         hostName,
		Enriched:     true,
		Origins:      origins,
		IXPNetwork:   ixp,
	}, nil
}

// lookupIPInfo checks the shared trie first; on a miss it queries
// RIPEstat, caching and dispatching anything found.
func (e *Enricher) lookupIPInfo(ctx context.Context, ip string) (*ipinfo.IPDBInfo, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return nil, nil
	}

	if info, ok := e.trie.Lookup(addr); ok {
		metrics.TrieCacheResultsTotal.WithLabelValues("hit").Inc()
		return &info, nil
	}
	metrics.TrieCacheResultsTotal.WithLabelValues("miss").Inc()

	info, err := e.ripestat.PrefixOverview(ctx, ip)
	if err != nil {
		var extErr *errs.ExternalSourceError
		if errors.As(err, &extErr) {
			return nil, nil
		}
		return nil, err
	}
	if info == nil {
		return nil, nil
	}

	if err := e.AddIPInfoToLocalCache(*info, true, time.Now()); err != nil {
		e.logger.Warn("add ip info to local cache failed", zap.String("prefix", info.Prefix), zap.Error(err))
	}
	if err := e.store.SaveIPInfo(ctx, *info); err != nil {
		e.logger.Error("save ip info failed", zap.String("prefix", info.Prefix), zap.Error(err))
	}

	return info, nil
}

func isGlobalString(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return traceroute.IsGloballyRoutable(addr)
}
