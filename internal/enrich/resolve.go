// Package enrich implements the per-host enrichment algorithm: DNS
// resolution, LPM trie lookup backed by external-source fallback, and
// persistence + event emission for each host in an EnricherJob.
package enrich

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/richtraceroute/enrichmentd/internal/metrics"
)

// dnsQueryTimeout mirrors DNS_QUERY_TIMEOUT.
const dnsQueryTimeout = 5 * time.Second

// Resolver performs forward and reverse DNS lookups with two independent
// TTL caches, swallowing every failure into an empty result rather than
// propagating an error: a host that fails to resolve is still enriched
// with whatever else is known about it.
type Resolver struct {
	client      *dns.Client
	nameservers []string

	forward *dnsCache
	reverse *dnsCache

	logger *zap.Logger
}

// NewResolver builds a resolver against the given nameservers (host:port
// form, e.g. "1.1.1.1:53"). If nameservers is nil it falls back to the
// system's /etc/resolv.conf; pass an empty non-nil slice to force "no
// nameservers" regardless of the host's resolv.conf.
func NewResolver(nameservers []string, logger *zap.Logger) *Resolver {
	if nameservers == nil {
		if cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil {
			for _, s := range cfg.Servers {
				nameservers = append(nameservers, fmt.Sprintf("%s:%s", s, cfg.Port))
			}
		}
	}
	return &Resolver{
		client:      &dns.Client{Timeout: dnsQueryTimeout},
		nameservers: nameservers,
		forward:     newDNSCache(),
		reverse:     newDNSCache(),
		logger:      logger,
	}
}

// NameToIP resolves fqdn to its first A/AAAA answer, or "" on any failure
// (NXDOMAIN, timeout, no nameservers configured, ...).
func (r *Resolver) NameToIP(ctx context.Context, fqdn string) string {
	if v, ok := r.forward.get(fqdn); ok {
		metrics.DNSCacheHitsTotal.WithLabelValues("forward", "hit").Inc()
		return v
	}
	metrics.DNSCacheHitsTotal.WithLabelValues("forward", "miss").Inc()

	var result string
	_ = metrics.TimeCtx(ctx, metrics.DNSLookupDuration.WithLabelValues("forward"), func(ctx context.Context) error {
		result = r.queryFirstAddress(fqdn)
		return nil
	})

	r.forward.set(fqdn, result)
	return result
}

// IPToName resolves ip's PTR record, or "" on any failure.
func (r *Resolver) IPToName(ctx context.Context, ip string) string {
	if v, ok := r.reverse.get(ip); ok {
		metrics.DNSCacheHitsTotal.WithLabelValues("reverse", "hit").Inc()
		return v
	}
	metrics.DNSCacheHitsTotal.WithLabelValues("reverse", "miss").Inc()

	var result string
	_ = metrics.TimeCtx(ctx, metrics.DNSLookupDuration.WithLabelValues("reverse"), func(ctx context.Context) error {
		result = r.queryPTR(ip)
		return nil
	})

	r.reverse.set(ip, result)
	return result
}

func (r *Resolver) queryFirstAddress(fqdn string) string {
	if len(r.nameservers) == 0 {
		return ""
	}
	qname := dns.Fqdn(fqdn)

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		m := new(dns.Msg)
		m.SetQuestion(qname, qtype)
		m.RecursionDesired = true

		resp, _, err := r.client.Exchange(m, r.nameservers[0])
		if err != nil || resp == nil || resp.Rcode != dns.RcodeSuccess {
			continue
		}
		for _, rr := range resp.Answer {
			switch a := rr.(type) {
			case *dns.A:
				return a.A.String()
			case *dns.AAAA:
				return a.AAAA.String()
			}
		}
	}
	return ""
}

func (r *Resolver) queryPTR(ip string) string {
	if len(r.nameservers) == 0 {
		return ""
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}
	qname, err := dns.ReverseAddr(addr.String())
	if err != nil {
		return ""
	}

	m := new(dns.Msg)
	m.SetQuestion(qname, dns.TypePTR)
	m.RecursionDesired = true

	resp, _, err := r.client.Exchange(m, r.nameservers[0])
	if err != nil || resp == nil || resp.Rcode != dns.RcodeSuccess {
		return ""
	}
	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			name := ptr.Ptr
			if len(name) > 0 && name[len(name)-1] == '.' {
				name = name[:len(name)-1]
			}
			return name
		}
	}
	return ""
}
