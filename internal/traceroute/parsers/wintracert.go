package parsers

import (
	"net/netip"
	"strings"
)

// WindowsTracertParser understands the output of Windows' tracert.exe: a
// hop number followed by up to three RTT samples ("15 ms", "<1 ms", "*")
// and a trailing IP, or a resolved name followed by its bracketed IP.
type WindowsTracertParser struct{}

func (WindowsTracertParser) Name() string { return "win-tracert" }

func (p WindowsTracertParser) Parse(raw string) (map[int][]HopHost, error) {
	b := newLineByLineBuilder()
	lastHopN := 0

	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 || !isAllDigits(fields[0]) {
			continue
		}

		thisHopN := atoiMust(fields[0])
		if thisHopN != lastHopN+1 {
			return nil, parseErr(p.Name(), "unexpected hop n.: found %d, previous was %d", thisHopN, lastHopN)
		}

		var rtts []float64
		missing := 0

		for _, tok := range fields[1:] {
			val := strings.TrimSpace(stripBrackets(tok))
			switch val {
			case "ms":
				continue
			case "*":
				missing++
				continue
			}

			if _, err := netip.ParseAddr(val); err == nil {
				if len(rtts) == 0 {
					return nil, parseErr(p.Name(), "ip %s found on line %q but no rtts were gathered", val, line)
				}
				if err := b.addHostInfo(p.Name(), thisHopN, val, rtts); err != nil {
					return nil, err
				}
				rtts = nil
				missing = 0
				continue
			}

			var rtt float64
			var err error
			if tok == "<1" {
				rtt = 0
			} else {
				rtt, err = ExtractRTT(val)
			}
			if err == nil {
				rtts = append(rtts, rtt)
			}
		}

		if len(rtts) > 0 {
			return nil, parseErr(p.Name(), "rtts were found on line %q but no ip address is associated with them", line)
		}
		if missing > 0 {
			if err := b.addHostInfo(p.Name(), thisHopN, "", nil); err != nil {
				return nil, err
			}
		}

		lastHopN = thisHopN
	}

	return b.finish(p.Name())
}

func stripBrackets(s string) string {
	s = strings.ReplaceAll(s, "[", "")
	s = strings.ReplaceAll(s, "]", "")
	s = strings.ReplaceAll(s, "^C", "")
	return s
}
