package parsers

import "testing"

const bsdSample = `traceroute to 8.8.8.8 (8.8.8.8), 64 hops max, 52 byte packets
 1  10.254.0.217 (10.254.0.217)  15.234 ms  15.081 ms
 2  10.254.0.221 (10.254.0.221)  13.549 ms
 3  * * *
 4  8.8.8.8 (8.8.8.8)  20.012 ms
`

func TestBSDParser_Basic(t *testing.T) {
	var p BSDParser
	hops, err := p.Parse(bsdSample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hops) != 4 {
		t.Fatalf("expected 4 hops, got %d", len(hops))
	}
	if len(hops[3]) != 0 {
		t.Errorf("expected hop 3 to have no replies, got %+v", hops[3])
	}
	if len(hops[1]) != 1 || hops[1][0].Host != "10.254.0.217" {
		t.Errorf("unexpected hop 1: %+v", hops[1])
	}
	if *hops[1][0].AvgRTT != 15.157 {
		t.Errorf("expected averaged rtt, got %v", *hops[1][0].AvgRTT)
	}
}

func TestBSDParser_RejectsNonContiguousHops(t *testing.T) {
	var p BSDParser
	bad := " 1  10.0.0.1 (10.0.0.1)  1.0 ms\n 3  10.0.0.3 (10.0.0.3)  2.0 ms\n"
	if _, err := p.Parse(bad); err == nil {
		t.Fatal("expected an error for a hop-number gap")
	}
}

func TestIOSXRParser_StripsMPLSLabel(t *testing.T) {
	var p IOSXRParser
	sample := " 1  10.0.0.1 (10.0.0.1) [MPLS: Label 16001 Exp 0]  1.234 ms\n"
	hops, err := p.Parse(sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hops[1]) != 1 || hops[1][0].Host != "10.0.0.1" {
		t.Errorf("unexpected hop 1: %+v", hops[1])
	}
}
