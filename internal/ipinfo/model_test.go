package ipinfo

import (
	"encoding/json"
	"testing"
)

func strp(s string) *string { return &s }

func TestIPDBInfo_RoundTrip_WithOriginsNoIXP(t *testing.T) {
	in := IPDBInfo{
		Prefix: "62.101.124.0/22",
		Origins: []Origin{
			{ASN: 12874, Holder: "FASTWEB - Fastweb SpA"},
		},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out IPDBInfo
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if out.Prefix != in.Prefix {
		t.Errorf("prefix mismatch: got %q want %q", out.Prefix, in.Prefix)
	}
	if len(out.Origins) != 1 || out.Origins[0] != in.Origins[0] {
		t.Errorf("origins mismatch: got %+v want %+v", out.Origins, in.Origins)
	}
	if out.IXPNetwork != nil {
		t.Errorf("expected nil ixp_network, got %+v", out.IXPNetwork)
	}
}

func TestIPDBInfo_RoundTrip_WithIXPNoOrigins(t *testing.T) {
	in := IPDBInfo{
		Prefix: "217.29.66.0/24",
		IXPNetwork: &IXPNetwork{
			IXName:        strp("MIX-IT"),
			IXDescription: strp("Milan Internet eXchange"),
		},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out IPDBInfo
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if out.Origins != nil {
		t.Errorf("expected nil origins, got %+v", out.Origins)
	}
	if out.IXPNetwork == nil || *out.IXPNetwork.IXName != "MIX-IT" {
		t.Errorf("ixp_network mismatch: got %+v", out.IXPNetwork)
	}
}

func TestIPDBInfo_MarshalsNullOriginsAndIXPWhenAbsent(t *testing.T) {
	in := IPDBInfo{Prefix: "10.0.0.0/8"}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal to map: %v", err)
	}
	if raw["origins"] != nil {
		t.Errorf("expected origins to marshal as null, got %v", raw["origins"])
	}
	if raw["ixp_network"] != nil {
		t.Errorf("expected ixp_network to marshal as null, got %v", raw["ixp_network"])
	}
}

func TestEnricherJob_RoundTrip(t *testing.T) {
	in := EnricherJob{
		TracerouteID: "abc123",
		Hosts: []EnricherJobHost{
			{HopN: 1, HostID: "h1", Host: "10.0.0.1"},
			{HopN: 2, HostID: "h2", Host: "example.net"},
		},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out EnricherJob
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if out.TracerouteID != in.TracerouteID {
		t.Errorf("traceroute_id mismatch: got %q want %q", out.TracerouteID, in.TracerouteID)
	}
	if len(out.Hosts) != 2 || out.Hosts[0] != in.Hosts[0] || out.Hosts[1] != in.Hosts[1] {
		t.Errorf("hosts mismatch: got %+v want %+v", out.Hosts, in.Hosts)
	}
}

func TestIPDBInfo_RejectsMalformedOriginPair(t *testing.T) {
	bad := `{"prefix":"1.2.3.0/24","origins":[[1]],"ixp_network":null}`
	var out IPDBInfo
	if err := json.Unmarshal([]byte(bad), &out); err == nil {
		t.Fatal("expected error for malformed origin pair")
	}
}
