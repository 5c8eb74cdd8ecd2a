package parsers

import "testing"

func TestLooksLikeHostname(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"dns.google", true},
		{"a.b", false}, // too short
		{"ms", false},
		{"msec", false},
		{"10.0.0.1", true}, // the heuristic doesn't exclude dotted numerics
		{"router-1.example.net.", true},
		{"under_score.example.com", true},
		{"bad..label", false},
		{"", false},
	}
	for _, c := range cases {
		if got := LooksLikeHostname(c.in); got != c.want {
			t.Errorf("LooksLikeHostname(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestExtractRTT(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"12.5 ms", 12.5, false},
		{"12.5ms", 12.5, false},
		{"8msec", 8, false},
		{"3.14", 3.14, false},
		{"not-a-number", 0, true},
	}
	for _, c := range cases {
		got, err := ExtractRTT(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("ExtractRTT(%q) error = %v, wantErr %v", c.in, err, c.wantErr)
			continue
		}
		if !c.wantErr && got != c.want {
			t.Errorf("ExtractRTT(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
