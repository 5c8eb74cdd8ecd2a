package parsers

import "encoding/json"

// MTRJSONParser understands MTR's `--json` output, which comes in two
// shapes depending on MTR version: an older {"report":{"hubs":[...]}} and
// a newer top-level {"hops":[...]}. Both carry the same fields under
// different keys.
type MTRJSONParser struct{}

func (MTRJSONParser) Name() string { return "mtr-json" }

type mtrJSONHubsDoc struct {
	Report struct {
		Hubs []map[string]any `json:"hubs"`
	} `json:"report"`
}

type mtrJSONHopsDoc struct {
	Hops []map[string]any `json:"hops"`
}

func (p MTRJSONParser) Parse(raw string) (map[int][]HopHost, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, parseErr(p.Name(), "not a valid JSON: %v", err)
	}

	var records []map[string]any
	var hopKey, hostKey, lossKey, avgKey, minKey, maxKey string

	switch {
	case probe["report"] != nil:
		var doc mtrJSONHubsDoc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, parseErr(p.Name(), "report.hubs was expected, but was not found: %v", err)
		}
		records = doc.Report.Hubs
		hopKey, hostKey, lossKey, avgKey, minKey, maxKey = "count", "host", "Loss%", "Avg", "Best", "Wrst"

	case probe["hops"] != nil:
		var doc mtrJSONHopsDoc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, parseErr(p.Name(), "hops was expected, but was not found: %v", err)
		}
		records = doc.Hops
		hopKey, hostKey, lossKey, avgKey, minKey, maxKey = "hop", "ipaddr", "losspercent", "avg", "best", "worst"

	default:
		return nil, parseErr(p.Name(), "couldn't find hops/hubs")
	}

	hops := make(map[int][]HopHost)
	for _, rec := range records {
		hopNF, ok := rec[hopKey].(float64)
		if !ok {
			return nil, parseErr(p.Name(), "missing or non-numeric %s field", hopKey)
		}
		hopN := int(hopNF)
		if _, ok := hops[hopN]; !ok {
			hops[hopN] = []HopHost{}
		}

		host, _ := rec[hostKey].(string)
		if host == "???" || host == "" {
			continue
		}

		loss, err := jsonNumber(rec, lossKey)
		if err != nil {
			return nil, parseErr(p.Name(), "hop %d: %v", hopN, err)
		}
		avg, err := jsonNumber(rec, avgKey)
		if err != nil {
			return nil, parseErr(p.Name(), "hop %d: %v", hopN, err)
		}
		best, err := jsonNumber(rec, minKey)
		if err != nil {
			return nil, parseErr(p.Name(), "hop %d: %v", hopN, err)
		}
		worst, err := jsonNumber(rec, maxKey)
		if err != nil {
			return nil, parseErr(p.Name(), "hop %d: %v", hopN, err)
		}

		hops[hopN] = append(hops[hopN], HopHost{
			Host:   host,
			Loss:   floatPtr(loss),
			AvgRTT: floatPtr(avg),
			MinRTT: floatPtr(best),
			MaxRTT: floatPtr(worst),
		})
	}

	if len(hops) == 0 {
		return nil, parseErr(p.Name(), "no hops found")
	}
	return hops, nil
}

func jsonNumber(rec map[string]any, key string) (float64, error) {
	v, ok := rec[key]
	if !ok {
		return 0, errMissingField(key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		return ExtractRTT(n)
	default:
		return 0, errMissingField(key)
	}
}

type missingFieldErr string

func (e missingFieldErr) Error() string { return "missing or unparseable field: " + string(e) }

func errMissingField(key string) error { return missingFieldErr(key) }
