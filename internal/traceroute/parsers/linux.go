package parsers

import (
	"net/netip"
	"strings"
)

// LinuxParser understands Linux traceroute(8) output: like BSD, but a
// single line can carry more than one IP/RTT group, and a bare hostname
// label can precede the parenthesized IP.
type LinuxParser struct{}

func (LinuxParser) Name() string { return "linux" }

func (p LinuxParser) Parse(raw string) (map[int][]HopHost, error) {
	b := newLineByLineBuilder()
	lastHopN := 0

	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "traceroute to ") || strings.HasPrefix(line, "traceroute6 to ") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 || !isAllDigits(fields[0]) {
			continue
		}

		thisHopN := atoiMust(fields[0])
		if thisHopN == 0 {
			continue
		}
		if thisHopN != lastHopN && thisHopN != lastHopN+1 {
			return nil, parseErr(p.Name(), "unexpected hop n.: found %d, previous was %d", thisHopN, lastHopN)
		}

		var lastIP netip.Addr
		ipFound := false
		var hostname string
		hostnameFound := false
		var rtts []float64
		missing := 0

		for _, tok := range fields[1:] {
			val := stripNoise(tok)
			switch val {
			case "ms":
				continue
			case "*":
				missing++
				continue
			}

			if addr, err := netip.ParseAddr(val); err == nil {
				lastIP = addr
				ipFound = true
				continue
			}

			if rtt, err := ExtractRTT(val); err == nil {
				rtts = append(rtts, rtt)
				if !ipFound && !hostnameFound {
					return nil, parseErr(p.Name(), "rtt %v found but last host not determined", rtt)
				}
				var err2 error
				if ipFound {
					err2 = b.addHostInfo(p.Name(), thisHopN, lastIP.String(), []float64{rtt})
				} else {
					err2 = b.addHostInfo(p.Name(), thisHopN, hostname, []float64{rtt})
				}
				if err2 != nil {
					return nil, err2
				}
				continue
			}

			if LooksLikeHostname(val) && !hostnameFound {
				hostname = val
				hostnameFound = true
			}
		}

		switch {
		case ipFound:
			if len(rtts) == 0 && missing == 0 {
				return nil, parseErr(p.Name(), "ip %s found on line %q but with no missing replies nor rtt values", lastIP, line)
			}
		case hostnameFound:
			if len(rtts) == 0 && missing == 0 {
				return nil, parseErr(p.Name(), "host %s found on line %q but with no missing replies nor rtt values", hostname, line)
			}
		default:
			if missing == 0 {
				return nil, parseErr(p.Name(), "no ip found on line %q, but also no missing replies", line)
			}
			if err := b.addHostInfo(p.Name(), thisHopN, "", nil); err != nil {
				return nil, err
			}
		}

		lastHopN = thisHopN
	}

	return b.finish(p.Name())
}
