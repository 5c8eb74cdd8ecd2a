package parsers

import (
	"net/netip"
	"strings"
)

// WinMTRParser understands WinMTR's exported text report: a title line,
// a "|----" rule, then one fixed-width row per hop (WinMTR numbers hops by
// their row order rather than printing the number itself).
type WinMTRParser struct{}

func (WinMTRParser) Name() string { return "winmtr" }

func (p WinMTRParser) Parse(raw string) (map[int][]HopHost, error) {
	hops := make(map[int][]HopHost)
	titleFound := false
	processingHops := false

	addHop := func(host string, loss, minRTT, avgRTT, maxRTT *float64) {
		hopN := len(hops) + 1
		hosts := []HopHost{}
		if host != "" {
			hosts = append(hosts, HopHost{Host: host, Loss: loss, MinRTT: minRTT, AvgRTT: avgRTT, MaxRTT: maxRTT})
		}
		hops[hopN] = hosts
	}

	for _, rawLine := range strings.Split(raw, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		if strings.Contains(line, "WinMTR statistics") {
			titleFound = true
			continue
		}
		if !titleFound {
			continue
		}
		if strings.Contains(line, "----") {
			processingHops = true
			continue
		}
		if !processingHops {
			continue
		}
		if strings.Contains(line, "____") {
			continue
		}

		line = strings.ReplaceAll(line, "|", "")
		line = strings.ReplaceAll(line, "-", "")
		line = strings.ReplaceAll(line, "No response from host", "?")
		fields := strings.Fields(line)

		if len(fields) < 8 {
			return nil, parseErr(p.Name(), "was expecting to find 8 parts: %q", line)
		}

		host := fields[0]
		if host == "?" {
			addHop("", nil, nil, nil, nil)
			continue
		}

		if _, err := netip.ParseAddr(host); err != nil && !LooksLikeHostname(host) {
			return nil, parseErr(p.Name(), "can't determine the host from line %q", line)
		}

		loss, err := ExtractRTT(fields[1])
		if err != nil {
			return nil, parseErr(p.Name(), "can't convert loss from %s", fields[1])
		}
		minRTT, err := ExtractRTT(fields[4])
		if err != nil {
			return nil, parseErr(p.Name(), "can't convert min_rtt from %s", fields[4])
		}
		avgRTT, err := ExtractRTT(fields[5])
		if err != nil {
			return nil, parseErr(p.Name(), "can't convert avg_rtt from %s", fields[5])
		}
		maxRTT, err := ExtractRTT(fields[6])
		if err != nil {
			return nil, parseErr(p.Name(), "can't convert max_rtt from %s", fields[6])
		}

		addHop(host, floatPtr(loss), floatPtr(minRTT), floatPtr(avgRTT), floatPtr(maxRTT))
	}

	if len(hops) == 0 {
		return nil, parseErr(p.Name(), "no hops found")
	}
	return hops, nil
}
