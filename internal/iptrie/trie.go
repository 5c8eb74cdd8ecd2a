// Package iptrie implements the shared, longest-prefix-match IP-info cache
// described in spec.md §4.5: a mutex-guarded trie keyed by CIDR prefix,
// where each entry carries an IPDBInfo and the timestamp it was last
// refreshed. Entries older than IP_INFO_EXPIRY are treated as a miss and
// evicted on next lookup.
package iptrie

import (
	"net/netip"
	"sync"
	"time"

	"github.com/richtraceroute/enrichmentd/internal/ipinfo"
)

// Expiry is the default entry lifetime (spec.md §6: IP_INFO_EXPIRY = 7d).
const Expiry = 7 * 24 * time.Hour

type entry struct {
	info        ipinfo.IPDBInfo
	lastUpdated time.Time
}

// Trie is a longest-prefix-match cache over netip.Prefix keys. It is safe
// for concurrent use by multiple enrichers sharing one consumer process, as
// required by spec.md §5 ("The IP-info trie is shared across enrichers
// within a consumer; every access takes the trie mutex.").
//
// Internally it buckets entries by prefix length rather than implementing a
// true bit-level radix tree: lookups walk length buckets from longest to
// shortest doing an O(1) map probe per length, which is simple, correct,
// and fast enough for this cache's scale (bounded by what a live
// traceroute causes to be looked up, plus the full IXP prefix set — see
// spec.md §1's non-goals). See DESIGN.md for why no pack library replaces
// this.
type Trie struct {
	mu      sync.RWMutex
	byLen   [129]map[netip.Prefix]*entry
	expiry  time.Duration
	nowFunc func() time.Time
}

// New creates an empty trie with the default expiry.
func New() *Trie {
	return &Trie{expiry: Expiry, nowFunc: time.Now}
}

func (t *Trie) now() time.Time {
	if t.nowFunc != nil {
		return t.nowFunc()
	}
	return time.Now()
}

// Add inserts or refreshes the entry for info.Prefix. lastUpdated is the
// timestamp recorded for expiry purposes; callers loading from the IP-info
// store pass the row's stored last_updated, while callers learning a fresh
// fact pass the current time.
func (t *Trie) Add(info ipinfo.IPDBInfo, lastUpdated time.Time) error {
	p, err := netip.ParsePrefix(info.Prefix)
	if err != nil {
		return err
	}
	p = p.Masked()

	t.mu.Lock()
	defer t.mu.Unlock()

	b := p.Bits()
	if t.byLen[b] == nil {
		t.byLen[b] = make(map[netip.Prefix]*entry)
	}
	t.byLen[b][p] = &entry{info: info, lastUpdated: lastUpdated}
	return nil
}

// Lookup performs a longest-prefix-match for ip. It returns (info, true) on
// a fresh hit. An entry older than the trie's expiry is evicted and treated
// as a miss, matching the original _get_ip_info_from_db behavior.
func (t *Trie) Lookup(ip netip.Addr) (ipinfo.IPDBInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	maxBits := 32
	if ip.Is6() {
		maxBits = 128
	}

	for bits := maxBits; bits >= 0; bits-- {
		m := t.byLen[bits]
		if m == nil {
			continue
		}
		p, err := ip.Prefix(bits)
		if err != nil {
			continue
		}
		e, ok := m[p]
		if !ok {
			continue
		}
		if t.now().Sub(e.lastUpdated) > t.expiry {
			delete(m, p)
			return ipinfo.IPDBInfo{}, false
		}
		return e.info, true
	}
	return ipinfo.IPDBInfo{}, false
}

// Len reports the number of entries currently cached, for tests and metrics.
func (t *Trie) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, m := range t.byLen {
		n += len(m)
	}
	return n
}
