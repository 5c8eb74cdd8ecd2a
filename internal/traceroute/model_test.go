package traceroute

import (
	"net/netip"
	"testing"
	"time"
)

func f(v float64) *float64 { return &v }
func s(v string) *string   { return &v }

func TestStatus_NotParsed(t *testing.T) {
	tr := &Traceroute{Parsed: false}
	if got := tr.Status(time.Now()); got != StatusNotParsed {
		t.Errorf("got %q want %q", got, StatusNotParsed)
	}
}

func TestStatus_WIPWithinWindow(t *testing.T) {
	now := time.Now()
	tr := &Traceroute{Parsed: true, Created: now.Add(-30 * time.Second)}
	if got := tr.Status(now); got != StatusWIP {
		t.Errorf("got %q want %q", got, StatusWIP)
	}
}

func TestStatus_TimeoutPastWindow(t *testing.T) {
	now := time.Now()
	tr := &Traceroute{Parsed: true, Created: now.Add(-3 * time.Minute)}
	if got := tr.Status(now); got != StatusTimeout {
		t.Errorf("got %q want %q", got, StatusTimeout)
	}
}

func TestStatus_EnrichedOverridesTimeout(t *testing.T) {
	now := time.Now()
	tr := &Traceroute{Parsed: true, Enriched: true, Created: now.Add(-24 * time.Hour)}
	if got := tr.Status(now); got != StatusEnriched {
		t.Errorf("got %q want %q", got, StatusEnriched)
	}
}

func TestIsGloballyRoutable(t *testing.T) {
	cases := []struct {
		addr string
		want bool
	}{
		{"8.8.8.8", true},
		{"10.0.0.1", false},
		{"192.168.1.1", false},
		{"127.0.0.1", false},
		{"169.254.1.1", false},
		{"224.0.0.1", false},
		{"217.29.66.1", true},
		{"2001:4860:4860::8888", true},
		{"fe80::1", false},
		{"::1", false},
	}
	for _, c := range cases {
		addr := netip.MustParseAddr(c.addr)
		if got := IsGloballyRoutable(addr); got != c.want {
			t.Errorf("IsGloballyRoutable(%s) = %v, want %v", c.addr, got, c.want)
		}
	}
}

func TestHost_IsGlobal_NilIP(t *testing.T) {
	h := &Host{}
	if h.IsGlobal() {
		t.Error("expected false for host with no resolved IP")
	}
}

func TestHost_ToDict_OmitsOriginsWhenEmpty(t *testing.T) {
	h := &Host{HopNumber: 1, OriginalHost: "10.0.0.1", IP: s("10.0.0.1")}
	d := h.ToDict()
	if d.Origins != nil {
		t.Errorf("expected nil origins, got %+v", d.Origins)
	}
	if d.IsGlobal {
		t.Error("private address should not be global")
	}
}

func TestNewID_Returns40CharHex(t *testing.T) {
	id := NewID()
	if len(id) != 40 {
		t.Errorf("expected 40-char id, got %d chars: %q", len(id), id)
	}
	if id == NewHostID() {
		t.Error("expected distinct ids across calls")
	}
}

func TestHop_ContiguityInvariant(t *testing.T) {
	tr := &Traceroute{
		Parsed: true,
		Hops: []*Hop{
			{HopNumber: 1},
			{HopNumber: 2},
			{HopNumber: 3},
		},
	}
	for i, hop := range tr.Hops {
		if hop.HopNumber != i+1 {
			t.Errorf("hop contiguity violated at index %d: hop_number=%d", i, hop.HopNumber)
		}
	}
}

func TestHost_ToDict_CarriesRTTStats(t *testing.T) {
	h := &Host{HopNumber: 1, OriginalHost: "8.8.8.8", IP: s("8.8.8.8"), AvgRTT: f(12.5), MinRTT: f(10), MaxRTT: f(15)}
	d := h.ToDict()
	if *d.AvgRTT != 12.5 || *d.MinRTT != 10 || *d.MaxRTT != 15 {
		t.Errorf("unexpected RTT stats in dict: %+v", d)
	}
	if !d.IsGlobal {
		t.Error("8.8.8.8 should be global")
	}
}
