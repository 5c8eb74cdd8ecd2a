package parsers

import "strings"

// JunosParser understands Junos traceroute's report format, which shares
// MTR's per-hop column layout but marks the hop number with a trailing dot
// instead of a "|--" separator (e.g. "1.  192.168.1.1  0.0%  ...").
type JunosParser struct{}

func (JunosParser) Name() string { return "junos" }

func (p JunosParser) Parse(raw string) (map[int][]HopHost, error) {
	hops := make(map[int][]HopHost)

	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		hopN, lineInfo, err := junosGetHopN(p.Name(), line)
		if err != nil {
			return nil, err
		}

		if err := mtrAddHopLine(p.Name(), hops, hopN, lineInfo); err != nil {
			return nil, err
		}
	}

	if len(hops) == 0 {
		return nil, parseErr(p.Name(), "no hops found")
	}
	return hops, nil
}

func junosGetHopN(parserName, line string) (int, string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, "", parseErr(parserName, "empty line")
	}

	first := fields[0]
	if !strings.HasSuffix(first, ".") {
		return 0, "", parseErr(parserName, "a dot was expected at the end of the first part (%s)", first)
	}

	raw := strings.TrimSuffix(first, ".")
	if !isAllDigits(raw) {
		return 0, "", parseErr(parserName, "the parsed hop is not numeric: %s", raw)
	}

	return atoiMust(raw), strings.Join(fields[1:], " "), nil
}
