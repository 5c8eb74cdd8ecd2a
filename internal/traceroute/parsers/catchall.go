package parsers

import (
	"net/netip"
	"strings"
)

// CatchAllParser is the fallback for the "N: host XXXms" style produced by
// a handful of lesser-known traceroute tools. It is deliberately the
// loosest parser in the registry and is registered last, so any other
// parser that extracts as many hosts wins over it.
type CatchAllParser struct{}

func (CatchAllParser) Name() string { return "other" }

func (p CatchAllParser) Parse(raw string) (map[int][]HopHost, error) {
	b := newLineByLineBuilder()
	processingHops := false
	lastHopN := 0

	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		hopNRaw := strings.TrimSpace(fields[0])
		if hopNRaw == "1:" {
			processingHops = true
		}
		if !processingHops {
			continue
		}
		if !strings.HasSuffix(hopNRaw, ":") {
			return nil, parseErr(p.Name(), "hop n. does not end with ':': %s", hopNRaw)
		}

		thisHopN := atoiMust(strings.TrimSuffix(hopNRaw, ":"))
		if thisHopN != lastHopN && thisHopN != lastHopN+1 {
			return nil, parseErr(p.Name(), "unexpected hop n.: found %d, previous was %d", thisHopN, lastHopN)
		}

		if len(fields) < 3 {
			return nil, parseErr(p.Name(), "expected host and rtt fields on line %q", line)
		}

		host := fields[1]
		if _, err := netip.ParseAddr(host); err != nil && !LooksLikeHostname(host) {
			return nil, parseErr(p.Name(), "can't determine the host from line %q", line)
		}

		rttRaw := fields[2]
		if !strings.HasSuffix(rttRaw, "ms") {
			return nil, parseErr(p.Name(), "rtt does not end with 'ms': %s", rttRaw)
		}
		rtt, err := ExtractRTT(strings.TrimSuffix(rttRaw, "ms"))
		if err != nil {
			return nil, parseErr(p.Name(), "can't convert string %q into float", rttRaw)
		}

		if err := b.addHostInfo(p.Name(), thisHopN, host, []float64{rtt}); err != nil {
			return nil, err
		}
		lastHopN = thisHopN
	}

	return b.finish(p.Name())
}
