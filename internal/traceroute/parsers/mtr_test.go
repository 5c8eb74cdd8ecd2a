package parsers

import "testing"

const mtrSample = `HOST: localhost                   Loss%   Snt   Last   Avg  Best  Wrst StDev
  1.|-- 192.168.1.254              0.0%     2    3.8   6.4   3.8   9.1   3.7
  2.|-- 10.1.131.181               0.0%     2    9.0   9.2   9.0   9.5   0.4
  3.|-- ???                       100.0%     2    0.0   0.0   0.0   0.0   0.0
`

func TestMTRParser_Basic(t *testing.T) {
	var p MTRParser
	hops, err := p.Parse(mtrSample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hops) != 3 {
		t.Fatalf("expected 3 hops, got %d", len(hops))
	}
	if len(hops[1]) != 1 || hops[1][0].Host != "192.168.1.254" {
		t.Errorf("unexpected hop 1: %+v", hops[1])
	}
	if *hops[1][0].AvgRTT != 6.4 || *hops[1][0].MinRTT != 3.8 || *hops[1][0].MaxRTT != 9.1 {
		t.Errorf("unexpected rtt stats: %+v", hops[1][0])
	}
	if len(hops[3]) != 0 {
		t.Errorf("expected hop 3 unresolved (???), got %+v", hops[3])
	}
}

const junosSample = `1.  192.168.1.1   0.0%   2   3.8   6.4   3.8   9.1   3.7
2.  10.0.0.1      0.0%   2   9.0   9.2   9.0   9.5   0.4
`

func TestJunosParser_Basic(t *testing.T) {
	var p JunosParser
	hops, err := p.Parse(junosSample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hops) != 2 || hops[1][0].Host != "192.168.1.1" {
		t.Errorf("unexpected hops: %+v", hops)
	}
}

const mtrJSONHubsSample = `{"report":{"hubs":[
  {"count":1,"host":"192.168.1.1","Loss%":0,"Avg":3.5,"Best":3.0,"Wrst":4.0},
  {"count":2,"host":"8.8.8.8","Loss%":0,"Avg":12.5,"Best":10.0,"Wrst":15.0}
]}}`

func TestMTRJSONParser_HubsSchema(t *testing.T) {
	var p MTRJSONParser
	hops, err := p.Parse(mtrJSONHubsSample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hops) != 2 || hops[2][0].Host != "8.8.8.8" {
		t.Errorf("unexpected hops: %+v", hops)
	}
}

const mtrJSONHopsSample = `{"hops":[
  {"hop":1,"ipaddr":"192.168.1.1","losspercent":0,"avg":3.5,"best":3.0,"worst":4.0},
  {"hop":2,"ipaddr":"8.8.8.8","losspercent":0,"avg":12.5,"best":10.0,"worst":15.0}
]}`

func TestMTRJSONParser_HopsSchema(t *testing.T) {
	var p MTRJSONParser
	hops, err := p.Parse(mtrJSONHopsSample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hops) != 2 || hops[1][0].Host != "192.168.1.1" {
		t.Errorf("unexpected hops: %+v", hops)
	}
}

func TestMTRJSONParser_RejectsInvalidJSON(t *testing.T) {
	var p MTRJSONParser
	if _, err := p.Parse("not json"); err == nil {
		t.Fatal("expected error for invalid json")
	}
}
