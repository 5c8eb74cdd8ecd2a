package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ParseErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichmentd_parse_errors_total",
			Help: "Parser-registry failures by parser name.",
		},
		[]string{"parser"},
	)

	ParserSelectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichmentd_parser_selected_total",
			Help: "Traceroutes successfully parsed, by winning parser.",
		},
		[]string{"parser"},
	)

	DBWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrichmentd_db_write_duration_seconds",
			Help:    "DB write latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"op"},
	)

	EnrichmentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrichmentd_enrichment_job_duration_seconds",
			Help:    "Time to process a full EnricherJob.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"consumer"},
	)

	EnrichmentErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichmentd_enrichment_errors_total",
			Help: "Unhandled enrichment errors, by stage (host or job).",
		},
		[]string{"stage"},
	)

	DNSLookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrichmentd_dns_lookup_duration_seconds",
			Help:    "DNS forward/reverse lookup latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"direction"},
	)

	DNSCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichmentd_dns_cache_hits_total",
			Help: "DNS in-memory TTL cache hits/misses.",
		},
		[]string{"direction", "result"},
	)

	TrieCacheResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichmentd_trie_cache_results_total",
			Help: "LPM trie lookups, by hit/miss (an expired entry counts as a miss).",
		},
		[]string{"result"},
	)

	ExternalSourceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrichmentd_external_source_duration_seconds",
			Help:    "RIPEstat/PeeringDB call latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	ExternalSourceErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichmentd_external_source_errors_total",
			Help: "RIPEstat/PeeringDB failures.",
		},
		[]string{"source"},
	)

	BrokerReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichmentd_broker_reconnects_total",
			Help: "Broker connection (re)establishments.",
		},
		[]string{"reason"},
	)

	ConsumerNacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichmentd_consumer_nacks_total",
			Help: "Jobs nack'd with requeue due to busy enrichers.",
		},
		[]string{"consumer"},
	)

	IXPUpdateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrichmentd_ixp_update_duration_seconds",
			Help:    "IXP networks updater run duration.",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{},
	)

	IXPPrefixesPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichmentd_ixp_prefixes_published_total",
			Help: "IXP prefixes saved and fanned out per updater run.",
		},
		[]string{},
	)

	HousekeeperPurgedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichmentd_housekeeper_purged_total",
			Help: "Rows purged by the housekeeper, by table.",
		},
		[]string{"table"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default Prometheus registry. Only
// the first call registers; later calls are no-ops.
func Register() {
	registerOnce.Do(register)
}

func register() {
	prometheus.MustRegister(
		ParseErrorsTotal,
		ParserSelectedTotal,
		DBWriteDuration,
		EnrichmentDuration,
		EnrichmentErrorsTotal,
		DNSLookupDuration,
		DNSCacheHitsTotal,
		TrieCacheResultsTotal,
		ExternalSourceDuration,
		ExternalSourceErrorsTotal,
		BrokerReconnectsTotal,
		ConsumerNacksTotal,
		IXPUpdateDuration,
		IXPPrefixesPublishedTotal,
		HousekeeperPurgedTotal,
	)
}

// Time runs fn, observing its wall-clock duration on obs. It mirrors the
// original project's log_execution_time context manager, upgraded from a
// debug-log timer into a real Prometheus histogram observation.
func Time(obs prometheus.Observer, fn func() error) error {
	start := time.Now()
	err := fn()
	obs.Observe(time.Since(start).Seconds())
	return err
}

// TimeCtx is the context-aware variant used for calls that accept a
// context.Context (DNS, HTTP, DB).
func TimeCtx(ctx context.Context, obs prometheus.Observer, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	obs.Observe(time.Since(start).Seconds())
	return err
}
