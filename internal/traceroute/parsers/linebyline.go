package parsers

// lineByLineBuilder accumulates per-hop, per-host RTT samples incrementally
// while a format-specific parser walks the raw text line by line, then
// validates and converts the result in one place (finish). Sharing this
// accumulation logic is what lets BSD, IOS-XR, Linux, Windows tracert, and
// the catch-all parser differ only in how they tokenize a line.
type lineByLineBuilder struct {
	order     []int
	hostOrder map[int][]string
	samples   map[int]map[string][]float64
	noReply   map[int]bool
	present   map[int]bool
}

func newLineByLineBuilder() *lineByLineBuilder {
	return &lineByLineBuilder{
		hostOrder: make(map[int][]string),
		samples:   make(map[int]map[string][]float64),
		noReply:   make(map[int]bool),
		present:   make(map[int]bool),
	}
}

// addHostInfo incrementally records rtts observed for host at hopN. Passing
// an empty host records "no reply observed" for that hop; calling it again
// afterwards with a host is an error, since a hop is either a total
// timeout or a set of replies, never both.
func (b *lineByLineBuilder) addHostInfo(parserName string, hopN int, host string, rtts []float64) error {
	if !b.present[hopN] {
		b.present[hopN] = true
		b.order = append(b.order, hopN)
		if host == "" {
			b.noReply[hopN] = true
			return nil
		}
		b.samples[hopN] = make(map[string][]float64)
	}

	if host == "" {
		return parseErr(parserName, "hop %d: a total absence of replies is observed, but a record already exists", hopN)
	}
	if b.noReply[hopN] {
		return parseErr(parserName, "hop %d: host %s found but hop was already recorded as unanswered", hopN, host)
	}

	if _, ok := b.samples[hopN][host]; !ok {
		b.hostOrder[hopN] = append(b.hostOrder[hopN], host)
	}
	b.samples[hopN][host] = append(b.samples[hopN][host], rtts...)
	return nil
}

// finish validates hop-number contiguity starting at 1 and converts the
// accumulated per-host RTT samples into the registry's HopHost shape.
func (b *lineByLineBuilder) finish(parserName string) (map[int][]HopHost, error) {
	if len(b.order) == 0 {
		return nil, parseErr(parserName, "no hops found")
	}

	hops := make(map[int][]HopHost)
	lastHopN := 0
	for _, hopN := range b.order {
		if hopN != lastHopN+1 {
			return nil, parseErr(parserName, "hop n. %d was expected, but %d was found", lastHopN+1, hopN)
		}
		lastHopN = hopN

		hosts := []HopHost{}
		if !b.noReply[hopN] {
			for _, host := range b.hostOrder[hopN] {
				rtts := b.samples[hopN][host]
				if len(rtts) == 0 {
					return nil, parseErr(parserName, "host %s at hop %d has no rtts", host, hopN)
				}
				hosts = append(hosts, HopHost{
					Host:   host,
					AvgRTT: floatPtr(average(rtts)),
					MinRTT: floatPtr(minOf(rtts)),
					MaxRTT: floatPtr(maxOf(rtts)),
				})
			}
		}
		hops[hopN] = hosts
	}
	return hops, nil
}

func average(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return round3(sum / float64(len(xs)))
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func round3(f float64) float64 {
	const scale = 1000
	if f < 0 {
		return -round3(-f)
	}
	return float64(int64(f*scale+0.5)) / scale
}
