// Package ipinfo holds the wire/in-memory value types shared between the
// Enricher, the IP-Info Store, and the IP-info fan-out exchange: IPDBInfo
// and its canonical JSON form, and the Origin/IXPNetwork facts it carries.
package ipinfo

import (
	"encoding/json"
	"fmt"
)

// Origin is an (ASN, holder) pair: the Autonomous System announcing a
// prefix and the registered name of its holder.
type Origin struct {
	ASN    int64
	Holder string
}

// IXPNetwork describes the IX LAN a prefix belongs to.
type IXPNetwork struct {
	LANName        *string `json:"lan_name"`
	IXName         *string `json:"ix_name"`
	IXDescription  *string `json:"ix_description"`
}

// IPDBInfo is the canonical enrichment fact attached to a CIDR prefix: its
// origin ASNs (if it's a routed prefix looked up via RIPEstat) or its IXP
// LAN membership (if it came from the IXP updater). A prefix is never both.
type IPDBInfo struct {
	Prefix     string
	Origins    []Origin
	IXPNetwork *IXPNetwork
}

// MarshalJSON produces the exact wire shape from spec.md §6:
//
//	{"prefix": "<CIDR>", "origins": [[asn, holder], ...] | null,
//	 "ixp_network": {...} | null}
func (i IPDBInfo) MarshalJSON() ([]byte, error) {
	out := struct {
		Prefix     string      `json:"prefix"`
		Origins    [][]any     `json:"origins"`
		IXPNetwork *IXPNetwork `json:"ixp_network"`
	}{
		Prefix:     i.Prefix,
		IXPNetwork: i.IXPNetwork,
	}
	if len(i.Origins) > 0 {
		out.Origins = make([][]any, len(i.Origins))
		for idx, o := range i.Origins {
			out.Origins[idx] = []any{o.ASN, o.Holder}
		}
	}
	return json.Marshal(out)
}

func (i *IPDBInfo) UnmarshalJSON(data []byte) error {
	var raw struct {
		Prefix     string          `json:"prefix"`
		Origins    [][]any         `json:"origins"`
		IXPNetwork *IXPNetwork     `json:"ixp_network"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("ipdbinfo: %w", err)
	}

	i.Prefix = raw.Prefix
	i.IXPNetwork = raw.IXPNetwork
	i.Origins = nil

	for _, pair := range raw.Origins {
		if len(pair) != 2 {
			return fmt.Errorf("ipdbinfo: origin entry must be [asn, holder], got %d elements", len(pair))
		}
		asnF, ok := pair[0].(float64)
		if !ok {
			return fmt.Errorf("ipdbinfo: origin asn must be a number")
		}
		holder, ok := pair[1].(string)
		if !ok {
			return fmt.Errorf("ipdbinfo: origin holder must be a string")
		}
		i.Origins = append(i.Origins, Origin{ASN: int64(asnF), Holder: holder})
	}

	return nil
}

// EnricherJobHost identifies one host within an EnricherJob: its hop
// position, its persisted Host row ID, and the original (unresolved)
// host string as it appeared in the traceroute text.
type EnricherJobHost struct {
	HopN   int    `json:"hop_n"`
	HostID string `json:"host_id"`
	Host   string `json:"host"`
}

// EnricherJob is the message published to the enrichment_jobs queue: the
// traceroute to enrich and the flattened list of hosts across all its hops.
type EnricherJob struct {
	TracerouteID string            `json:"traceroute_id"`
	Hosts        []EnricherJobHost `json:"hosts"`
}
