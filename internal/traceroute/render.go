package traceroute

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// maxHolderLen is the width of the origin/IXP detail column, matching the
// original report's MAX_LEN_FOR_IP_DETAILS.
const maxHolderLen = 25

// ToText renders the traceroute as the same fixed-width tabular report the
// original project's Traceroute.to_text() produces: a header row, then one
// line per hop per host, columns for hop number, IP (or original host),
// loss%, RTT, AS origin + shortened holder, and reverse hostname. Multi-host
// hops print the hop number only on the first host and indent the rest;
// within a hop, hosts sort by IP (falling back to the original host text).
// Rendering is pure and deterministic given the traceroute's current state,
// so it can be called at any point in the enrichment lifecycle (including
// before enrichment completes, when origin/IXP columns are simply empty).
func (t *Traceroute) ToText() string {
	hasLoss, hasRTT, maxIPLen := scanColumns(t.Hops)

	hopWidth := maxIPLen + 2
	var b strings.Builder

	writeHeadLine(&b, hopWidth, hasLoss, hasRTT)

	for _, hop := range t.Hops {
		if len(hop.Hosts) == 0 {
			fmt.Fprintf(&b, "%4s %-*s\n", strconv.Itoa(hop.HopNumber)+".", hopWidth, "*")
			continue
		}

		hosts := sortedHosts(hop.Hosts)
		for i, host := range hosts {
			hopLabel := ""
			if i == 0 {
				hopLabel = strconv.Itoa(hop.HopNumber) + "."
			}
			writeHostLines(&b, hopLabel, hopWidth, hasLoss, hasRTT, host)
		}
	}

	return b.String()
}

// scanColumns determines which optional columns (loss, RTT) this report
// needs, and the widest IP/host text, so the leftmost column can be sized
// to fit every row without per-row padding surprises.
func scanColumns(hops []*Hop) (hasLoss, hasRTT bool, maxIPLen int) {
	for _, hop := range hops {
		for _, host := range hop.Hosts {
			if host.Loss != nil {
				hasLoss = true
			}
			if host.AvgRTT != nil {
				hasRTT = true
			}
			if l := len(hostAddr(host)); l > maxIPLen {
				maxIPLen = l
			}
		}
	}
	return
}

func sortedHosts(hosts []*Host) []*Host {
	sorted := make([]*Host, len(hosts))
	copy(sorted, hosts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return hostAddr(sorted[i]) < hostAddr(sorted[j])
	})
	return sorted
}

func hostAddr(h *Host) string {
	if h.IP != nil {
		return *h.IP
	}
	return h.OriginalHost
}

func writeHeadLine(b *strings.Builder, hopWidth int, hasLoss, hasRTT bool) {
	fmt.Fprintf(b, "%4s %-*s", "Hop", hopWidth, "IP")
	if hasLoss {
		fmt.Fprintf(b, " %4s", "Loss")
	}
	if hasRTT {
		if hasLoss {
			b.WriteString("  ")
		}
		fmt.Fprintf(b, "%10s", "RTT")
	}
	fmt.Fprintf(b, "   %-8s %-*s   %s\n", "Origin", maxHolderLen, "", "Reverse")
}

func writeHostLines(b *strings.Builder, hopLabel string, hopWidth int, hasLoss, hasRTT bool, h *Host) {
	line := fmt.Sprintf("%4s %-*s", hopLabel, hopWidth, hostAddr(h))
	if hasLoss {
		loss := ""
		if h.Loss != nil {
			loss = strconv.Itoa(int(*h.Loss + 0.5))
		}
		line += fmt.Sprintf(" %3s%%", loss)
	}
	if hasRTT {
		if hasLoss {
			line += "  "
		}
		rtt := ""
		if h.AvgRTT != nil {
			rtt = strconv.FormatFloat(*h.AvgRTT, 'f', 2, 64)
		}
		line += fmt.Sprintf("%7s ms", rtt)
	}
	b.WriteString(line)

	lineN := 0
	name := ""
	if h.Name != nil {
		name = *h.Name
	}

	for _, origin := range h.Origins {
		lineN++
		if lineN > 1 {
			b.WriteByte('\n')
			b.WriteString(strings.Repeat(" ", len(line)))
		}
		reverse := ""
		if name != "" && lineN == 1 {
			reverse = name
		}
		fmt.Fprintf(b, "   %-8s %-*s   %s", fmt.Sprintf("AS%d", origin.ASN), maxHolderLen, shorten(origin.Holder, maxHolderLen), reverse)
	}

	if h.IXPNetwork != nil {
		lineN++
		if lineN > 1 {
			b.WriteByte('\n')
			b.WriteString(strings.Repeat(" ", len(line)))
		}
		reverse := ""
		if name != "" && lineN == 1 {
			reverse = name
		}
		ixName := ""
		if h.IXPNetwork.IXName != nil {
			ixName = *h.IXPNetwork.IXName
		}
		fmt.Fprintf(b, "   %-*s   %s", maxHolderLen+9, shorten("IX: "+ixName, maxHolderLen+9), reverse)
	}

	// No origins and no IXP membership: just print the reverse, if any.
	if lineN == 0 && name != "" {
		fmt.Fprintf(b, "   %-8s %-*s   %s", "", maxHolderLen, "", name)
	}

	b.WriteByte('\n')
}

// shorten truncates s to width, appending "..." when it doesn't fit,
// matching Python's textwrap.shorten used by the original report.
func shorten(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}
