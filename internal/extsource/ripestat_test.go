package extsource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestRIPEStatClient_PrefixOverview_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","data":{"resource":"8.8.8.0/24","asns":[{"asn":15169,"holder":"GOOGLE"}]}}`))
	}))
	defer ts.Close()

	c := NewRIPEStatClient(zap.NewNop())
	c.baseURL = ts.URL

	info, err := c.PrefixOverview(context.Background(), "8.8.8.8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Prefix != "8.8.8.0/24" {
		t.Errorf("expected prefix 8.8.8.0/24, got %s", info.Prefix)
	}
	if len(info.Origins) != 1 || info.Origins[0].ASN != 15169 || info.Origins[0].Holder != "GOOGLE" {
		t.Errorf("unexpected origins: %+v", info.Origins)
	}
}

func TestRIPEStatClient_PrefixOverview_NonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","data":{}}`))
	}))
	defer ts.Close()

	c := NewRIPEStatClient(zap.NewNop())
	c.baseURL = ts.URL

	_, err := c.PrefixOverview(context.Background(), "10.0.0.1")
	if err == nil {
		t.Fatal("expected error for non-ok status")
	}
}

func TestRIPEStatClient_PrefixOverview_HTTPFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewRIPEStatClient(zap.NewNop())
	c.baseURL = ts.URL

	_, err := c.PrefixOverview(context.Background(), "10.0.0.1")
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}
