package traceroute

import (
	"strings"
	"testing"

	"github.com/richtraceroute/enrichmentd/internal/ipinfo"
)

func TestToText_HeaderRowAlwaysPresent(t *testing.T) {
	tr := &Traceroute{Hops: []*Hop{{HopNumber: 1, Hosts: nil}}}
	got := tr.ToText()
	lines := strings.Split(got, "\n")
	if !strings.Contains(lines[0], "Hop") || !strings.Contains(lines[0], "Origin") || !strings.Contains(lines[0], "Reverse") {
		t.Errorf("expected header row with Hop/Origin/Reverse columns, got %q", lines[0])
	}
}

func TestToText_UnresolvedHopRendersStar(t *testing.T) {
	tr := &Traceroute{Hops: []*Hop{{HopNumber: 4, Hosts: nil}}}
	got := tr.ToText()
	if !strings.Contains(got, "4.") || !strings.Contains(got, "*") {
		t.Errorf("expected hop 4 star line, got %q", got)
	}
}

func TestToText_ResolvedHostWithRTT(t *testing.T) {
	tr := &Traceroute{
		Hops: []*Hop{
			{
				HopNumber: 1,
				Hosts: []*Host{
					{
						HopNumber:    1,
						OriginalHost: "8.8.8.8",
						IP:           s("8.8.8.8"),
						Name:         s("dns.google"),
						AvgRTT:       f(12.345),
					},
				},
			},
		},
	}
	got := tr.ToText()
	if !strings.Contains(got, "8.8.8.8") {
		t.Errorf("expected resolved ip, got %q", got)
	}
	if !strings.Contains(got, "12.35 ms") {
		t.Errorf("expected fixed 2-decimal avg rtt, got %q", got)
	}
	if !strings.Contains(got, "dns.google") {
		t.Errorf("expected reverse name column, got %q", got)
	}
}

// TestToText_MOASRendersTwoLinesReverseOnFirstOnly covers §8 scenario 6: a
// host with two origins prints two origin lines, the reverse name only on
// the first.
func TestToText_MOASRendersTwoLinesReverseOnFirstOnly(t *testing.T) {
	tr := &Traceroute{
		Hops: []*Hop{
			{
				HopNumber: 5,
				Hosts: []*Host{
					{
						HopNumber:    5,
						OriginalHost: "62.101.124.1",
						IP:           s("62.101.124.1"),
						Name:         s("some.host.example"),
						Origins: []ipinfo.Origin{
							{ASN: 12874, Holder: "FASTWEB SpA"},
							{ASN: 3269, Holder: "Telecom Italia"},
						},
					},
				},
			},
		},
	}
	got := tr.ToText()
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")

	var originLines []string
	for _, l := range lines {
		if strings.Contains(l, "AS12874") || strings.Contains(l, "AS3269") {
			originLines = append(originLines, l)
		}
	}
	if len(originLines) != 2 {
		t.Fatalf("expected 2 origin lines, got %d: %v", len(originLines), originLines)
	}
	if !strings.Contains(originLines[0], "AS12874") || !strings.Contains(originLines[0], "some.host.example") {
		t.Errorf("expected first origin line to carry the reverse name, got %q", originLines[0])
	}
	if !strings.Contains(originLines[1], "AS3269") || strings.Contains(originLines[1], "some.host.example") {
		t.Errorf("expected second origin line to omit the reverse name, got %q", originLines[1])
	}
}

// TestToText_IXPMembershipUsesIXPrefix covers §8 scenario 5: an IXP-member
// hop's origin column reads "IX: <name>".
func TestToText_IXPMembershipUsesIXPrefix(t *testing.T) {
	tr := &Traceroute{
		Hops: []*Hop{
			{
				HopNumber: 7,
				Hosts: []*Host{
					{
						HopNumber:    7,
						OriginalHost: "217.29.66.1",
						IP:           s("217.29.66.1"),
						IXPNetwork: &ipinfo.IXPNetwork{
							IXName: s("MIX-IT"),
						},
					},
				},
			},
		},
	}
	got := tr.ToText()
	if !strings.Contains(got, "IX: MIX-IT") {
		t.Errorf("expected IX: prefix in origin column, got %q", got)
	}
}

func TestToText_MultiHostHopNumbersOnlyFirst(t *testing.T) {
	tr := &Traceroute{
		Hops: []*Hop{
			{
				HopNumber: 3,
				Hosts: []*Host{
					{HopNumber: 3, OriginalHost: "10.0.0.1", IP: s("10.0.0.1")},
					{HopNumber: 3, OriginalHost: "10.0.0.2", IP: s("10.0.0.2")},
				},
			},
		},
	}
	got := tr.ToText()
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	var hostLines []string
	for _, l := range lines {
		if strings.Contains(l, "10.0.0.1") || strings.Contains(l, "10.0.0.2") {
			hostLines = append(hostLines, l)
		}
	}
	if len(hostLines) != 2 {
		t.Fatalf("expected 2 host lines, got %d", len(hostLines))
	}
	if !strings.HasPrefix(strings.TrimLeft(hostLines[0], " "), "3.") {
		t.Errorf("expected hop number on first host line, got %q", hostLines[0])
	}
	if strings.Contains(hostLines[1][:4], "3.") {
		t.Errorf("expected no hop number on second host line, got %q", hostLines[1])
	}
}

func TestToText_WithinHopSortedByIP(t *testing.T) {
	tr := &Traceroute{
		Hops: []*Hop{
			{
				HopNumber: 2,
				Hosts: []*Host{
					{HopNumber: 2, OriginalHost: "b", IP: s("10.0.0.2")},
					{HopNumber: 2, OriginalHost: "a", IP: s("10.0.0.1")},
				},
			},
		},
	}
	got := tr.ToText()
	i1 := strings.Index(got, "10.0.0.1")
	i2 := strings.Index(got, "10.0.0.2")
	if i1 == -1 || i2 == -1 || i1 > i2 {
		t.Errorf("expected hosts sorted by ip, got %q", got)
	}
}

func TestToText_LossAndFallbackToOriginalHost(t *testing.T) {
	tr := &Traceroute{
		Hops: []*Hop{
			{
				HopNumber: 2,
				Hosts: []*Host{
					{HopNumber: 2, OriginalHost: "some-host.example", Loss: f(50)},
				},
			},
		},
	}
	got := tr.ToText()
	if !strings.Contains(got, "some-host.example") {
		t.Errorf("expected original host fallback, got %q", got)
	}
	if !strings.Contains(got, "50%") {
		t.Errorf("expected loss percentage, got %q", got)
	}
}
