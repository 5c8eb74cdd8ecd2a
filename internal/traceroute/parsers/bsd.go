package parsers

import (
	"net/netip"
	"strings"
)

// BSDParser understands the traceroute format produced by BSD/macOS
// traceroute(8): a hop number in the line's first 3 columns followed by
// one or more "host (ip)  rtt ms" groups, or "*" for a missing reply.
type BSDParser struct{}

func (BSDParser) Name() string { return "bsd" }

func (p BSDParser) Parse(raw string) (map[int][]HopHost, error) {
	b := newLineByLineBuilder()
	if err := buildBSDLike(p.Name(), raw, b); err != nil {
		return nil, err
	}
	return b.finish(p.Name())
}

// buildBSDLike implements the shared BSD/IOS-XR column layout: the hop
// number occupies the first 3 characters of a hop's first line, subsequent
// lines for the same hop leave it blank, and every remaining token is
// either an (ip), an rtt, the "ms" unit, "*", or "^C" noise to strip.
func buildBSDLike(parserName, raw string, b *lineByLineBuilder) error {
	lastHopN := 0

	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "traceroute to ") {
			continue
		}

		head := strings.TrimSpace(line[:min(3, len(line))])

		var thisHopN int
		if head != "" && isAllDigits(head) {
			thisHopN = atoiMust(head)
			if thisHopN == 0 {
				continue
			}
			if thisHopN != lastHopN+1 {
				return parseErr(parserName, "unexpected hop n.: found %d, previous was %d", thisHopN, lastHopN)
			}
		} else {
			thisHopN = lastHopN
		}

		cols := strings.Fields(safeSlice(line, 3))

		var ip netip.Addr
		ipFound := false
		var rtts []float64
		missing := 0

		for _, col := range cols {
			val := stripNoise(col)
			switch val {
			case "ms":
				continue
			case "*":
				missing++
				continue
			}

			if addr, err := netip.ParseAddr(val); err == nil {
				ip = addr
				ipFound = true
				continue
			}
			if rtt, err := ExtractRTT(val); err == nil {
				rtts = append(rtts, rtt)
			}
		}

		if thisHopN == 0 {
			continue
		}

		if ipFound {
			if len(rtts) == 0 && missing == 0 {
				return parseErr(parserName, "ip %s found on line %q but with no missing replies nor rtt values", ip, line)
			}
		} else if missing == 0 {
			return parseErr(parserName, "no ip found on line %q, but also no missing replies", line)
		}

		var err error
		if ipFound {
			err = b.addHostInfo(parserName, thisHopN, ip.String(), rtts)
		} else {
			err = b.addHostInfo(parserName, thisHopN, "", nil)
		}
		if err != nil {
			return err
		}
		lastHopN = thisHopN
	}
	return nil
}
