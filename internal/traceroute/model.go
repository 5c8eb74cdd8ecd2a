// Package traceroute holds the core domain model: a submitted traceroute's
// hops and hosts, its enrichment lifecycle, and the deterministic text
// renderer used for the terminal notification event. Parsing strategies
// live in the parsers subpackage.
package traceroute

import (
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/richtraceroute/enrichmentd/internal/ipinfo"
)

// Status is the derived lifecycle state of a Traceroute (spec.md §3).
type Status string

const (
	StatusNotParsed Status = "not_parsed"
	StatusWIP       Status = "wip"
	StatusTimeout   Status = "timeout"
	StatusEnriched  Status = "enriched"
)

// Traceroute is a submitted traceroute result and its enrichment state.
type Traceroute struct {
	ID                  string
	Raw                 string
	Created             time.Time
	LastSeen            time.Time
	Parsed              bool
	Enriched            bool
	EnrichmentStarted   *time.Time
	EnrichmentCompleted *time.Time

	Hops []*Hop
}

// NewID generates the opaque 40-hex-char token used as a Traceroute's
// primary key, matching the original project's record_uid() (sha1 of a
// fresh uuid4).
func NewID() string {
	return sha1Hex(uuid.NewString())
}

// Status computes the lifecycle state relative to now.
func (t *Traceroute) Status(now time.Time) Status {
	if !t.Parsed {
		return StatusNotParsed
	}
	if t.Enriched {
		return StatusEnriched
	}
	if now.Sub(t.Created) > MaxEnrichmentTime {
		return StatusTimeout
	}
	return StatusWIP
}

// Hop is one TTL step of a traceroute; its hosts are the distinct replies
// observed at that TTL (zero if none responded).
type Hop struct {
	TracerouteID string
	HopNumber    int
	Hosts        []*Host
}

// Host is a single reply (or non-reply) within a hop.
type Host struct {
	ID           string
	HopNumber    int
	OriginalHost string

	AvgRTT *float64
	MinRTT *float64
	MaxRTT *float64
	Loss   *float64

	IP   *string
	Name *string

	Enriched bool

	Origins    []ipinfo.Origin
	IXPNetwork *ipinfo.IXPNetwork
}

// NewHostID generates a Host's primary key the same way Traceroute IDs are
// generated (the original project reuses record_uid() for both).
func NewHostID() string {
	return sha1Hex(uuid.NewString())
}

// IsGlobal reports whether the host's resolved IP (if any) is globally
// routable: not private, loopback, link-local, multicast, or unspecified.
func (h *Host) IsGlobal() bool {
	if h.IP == nil {
		return false
	}
	addr, err := netip.ParseAddr(*h.IP)
	if err != nil {
		return false
	}
	return IsGloballyRoutable(addr)
}

// IsGloballyRoutable approximates Python's ipaddress is_global: it rejects
// private, loopback, link-local, multicast and unspecified addresses. Other
// special-purpose ranges (documentation, shared address space, reserved)
// are not rejected.
func IsGloballyRoutable(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	return !addr.IsPrivate() &&
		!addr.IsLoopback() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsLinkLocalMulticast() &&
		!addr.IsMulticast() &&
		!addr.IsUnspecified() &&
		!addr.IsInterfaceLocalMulticast()
}

// Dict is the JSON-friendly projection of a Host, matching the original
// project's Host.to_dict() (used both for the enrichment event payload and
// for the traceroute detail view).
type Dict struct {
	HopNumber    int             `json:"hop_number"`
	OriginalHost string          `json:"original_host"`
	AvgRTT       *float64        `json:"avg_rtt"`
	MinRTT       *float64        `json:"min_rtt"`
	MaxRTT       *float64        `json:"max_rtt"`
	Loss         *float64        `json:"loss"`
	IP           *string         `json:"ip"`
	IsGlobal     bool            `json:"is_global"`
	Name         *string         `json:"name"`
	Enriched     bool            `json:"enriched"`
	IXPNetwork   *ipinfo.IXPNetwork `json:"ixp_network"`
	Origins      [][2]any        `json:"origins"`
}

// ToDict projects a Host into its wire representation.
func (h *Host) ToDict() Dict {
	d := Dict{
		HopNumber:    h.HopNumber,
		OriginalHost: h.OriginalHost,
		AvgRTT:       h.AvgRTT,
		MinRTT:       h.MinRTT,
		MaxRTT:       h.MaxRTT,
		Loss:         h.Loss,
		IP:           h.IP,
		IsGlobal:     h.IsGlobal(),
		Name:         h.Name,
		Enriched:     h.Enriched,
		IXPNetwork:   h.IXPNetwork,
	}
	if len(h.Origins) > 0 {
		d.Origins = make([][2]any, len(h.Origins))
		for i, o := range h.Origins {
			d.Origins[i] = [2]any{o.ASN, o.Holder}
		}
	}
	return d
}

// TracerouteDict is the JSON-friendly projection of a whole Traceroute,
// embedded in the terminal enrichment-completed event and served to the
// detail view.
type TracerouteDict struct {
	ID                  string     `json:"id"`
	Created             time.Time  `json:"created"`
	LastSeen            time.Time  `json:"last_seen"`
	Parsed              bool       `json:"parsed"`
	Enriched            bool       `json:"enriched"`
	EnrichmentStarted   *time.Time `json:"enrichment_started"`
	EnrichmentCompleted *time.Time `json:"enrichment_completed"`
	Status              Status     `json:"status"`
	Hops                [][]Dict   `json:"hops"`
}

// ToDict projects a Traceroute into its wire representation, one Dict
// slice per hop (empty for a hop with no replies).
func (t *Traceroute) ToDict() TracerouteDict {
	hops := make([][]Dict, len(t.Hops))
	for i, hop := range t.Hops {
		hostDicts := make([]Dict, len(hop.Hosts))
		for j, h := range hop.Hosts {
			hostDicts[j] = h.ToDict()
		}
		hops[i] = hostDicts
	}
	return TracerouteDict{
		ID:                  t.ID,
		Created:             t.Created,
		LastSeen:            t.LastSeen,
		Parsed:              t.Parsed,
		Enriched:            t.Enriched,
		EnrichmentStarted:   t.EnrichmentStarted,
		EnrichmentCompleted: t.EnrichmentCompleted,
		Status:              t.Status(time.Now()),
		Hops:                hops,
	}
}
