package parsers

import "strings"

// MTRParser understands MTR's plain-text report (`mtr --report`) and its
// interactive-mode screen capture, which share the same per-hop column
// layout once the "HOST:"/"Host" header line is found; the two were kept
// as separate formats upstream even though nothing in the per-hop line
// grammar differs, so one parser here covers both.
type MTRParser struct{}

func (MTRParser) Name() string { return "mtr" }

func (p MTRParser) Parse(raw string) (map[int][]HopHost, error) {
	hops := make(map[int][]HopHost)
	processingHops := false

	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(line, "HOST:") || strings.HasPrefix(line, "Host") {
			processingHops = true
			continue
		}
		if !processingHops {
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		hopN, lineInfo, err := mtrGetHopN(p.Name(), line)
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

// mtrGetHopN splits a "N.|-- rest-of-line" line into its hop number and
// the remaining column text. It is overridden by JunosParser, whose hop
// marker drops the "|--" separator.
func mtrGetHopN(parserName, line string) (int, string, error) {
	if !strings.Contains(line, "|--") {
		return 0, "", parseErr(parserName, "'|--' marker not found")
	}
	parts := strings.SplitN(line, "|--", 2)
	raw := strings.TrimSpace(parts[0])
	raw = strings.TrimSuffix(raw, ".")
	if !isAllDigits(raw) {
		return 0, "", parseErr(parserName, "the parsed hop is not numeric: %s", raw)
	}
	return atoiMust(raw), strings.TrimSpace(parts[1]), nil
}

// mtrAddHopLine parses the fixed-width fields that follow the hop marker:
// host, loss%, sent count (ignored), last (ignored), avg, best, worst.
func mtrAddHopLine(parserName string, hops map[int][]HopHost, hopN int, lineInfo string) error {
	if _, ok := hops[hopN]; !ok {
		hops[hopN] = []HopHost{}
	}

	fields := strings.Fields(lineInfo)
	if len(fields) == 0 {
		return parseErr(parserName, "empty hop line for hop %d", hopN)
	}

	host := fields[0]
	if strings.Contains(host, "?") {
		return nil
	}

	if len(fields) < 7 {
		return parseErr(parserName, "expected at least 7 fields on hop %d line, got %d", hopN, len(fields))
	}

	loss, err := parsePercent(fields[1])
	if err != nil {
		return parseErr(parserName, "can't parse the loss value %s: %v", fields[1], err)
	}

	avg, err := parseFloatField(parserName, "avg_rtt", fields[4])
	if err != nil {
		return err
	}
	best, err := parseFloatField(parserName, "min_rtt", fields[5])
	if err != nil {
		return err
	}
	worst, err := parseFloatField(parserName, "max_rtt", fields[6])
	if err != nil {
		return err
	}

	hops[hopN] = append(hops[hopN], HopHost{
		Host:   host,
		Loss:   floatPtr(loss),
		AvgRTT: floatPtr(avg),
		MinRTT: floatPtr(best),
		MaxRTT: floatPtr(worst),
	})
	return nil
}

func parsePercent(s string) (float64, error) {
	return ExtractRTT(strings.TrimSuffix(s, "%"))
}

func parseFloatField(parserName, what, s string) (float64, error) {
	v, err := ExtractRTT(s)
	if err != nil {
		return 0, parseErr(parserName, "can't parse the %s rtt value %s, it doesn't look like a float", what, s)
	}
	return v, nil
}
