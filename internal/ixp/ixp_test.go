package ixp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/richtraceroute/enrichmentd/internal/extsource"
	"github.com/richtraceroute/enrichmentd/internal/ipinfo"
)

type fakeStore struct {
	saved []ipinfo.IPDBInfo
}

func (s *fakeStore) SaveIPInfo(ctx context.Context, info ipinfo.IPDBInfo) error {
	s.saved = append(s.saved, info)
	return nil
}

type fakeDispatcher struct {
	dispatched []ipinfo.IPDBInfo
}

func (d *fakeDispatcher) Dispatch(info ipinfo.IPDBInfo) {
	d.dispatched = append(d.dispatched, info)
}

func newTestClient(t *testing.T, ixBody, ixlanBody, ixpfxBody string) *extsource.PeeringDBClient {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ix", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(ixBody)) })
	mux.HandleFunc("/ixlan", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(ixlanBody)) })
	mux.HandleFunc("/ixpfx", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(ixpfxBody)) })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return extsource.NewTestPeeringDBClient(zap.NewNop(), srv.URL+"/ix", srv.URL+"/ixlan", srv.URL+"/ixpfx", time.Millisecond)
}

func TestUpdater_BuildsIXPNetworksFromNestedJoin(t *testing.T) {
	client := newTestClient(t,
		`{"data":[{"id":1,"name":"MIX-IT","name_long":"Milan Internet eXchange"}]}`,
		`{"data":[{"id":10,"ix_id":1,"name":"MIX-IT LAN"}]}`,
		`{"data":[{"ixlan_id":10,"prefix":"217.29.66.0/24"}]}`,
	)

	store := &fakeStore{}
	dispatcher := &fakeDispatcher{}
	u := New(client, store, dispatcher, zap.NewNop())

	if err := u.build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}

	if len(store.saved) != 1 {
		t.Fatalf("expected 1 prefix saved, got %d", len(store.saved))
	}
	got := store.saved[0]
	if got.Prefix != "217.29.66.0/24" {
		t.Errorf("unexpected prefix: %q", got.Prefix)
	}
	if got.IXPNetwork == nil || *got.IXPNetwork.IXName != "MIX-IT" {
		t.Errorf("unexpected ixp_network: %+v", got.IXPNetwork)
	}
	if len(dispatcher.dispatched) != 1 {
		t.Fatalf("expected 1 prefix dispatched, got %d", len(dispatcher.dispatched))
	}
}

func TestUpdater_SkipsPrefixesForUnmatchedLans(t *testing.T) {
	client := newTestClient(t,
		`{"data":[{"id":1,"name":"MIX-IT","name_long":"Milan Internet eXchange"}]}`,
		`{"data":[{"id":10,"ix_id":2,"name":"UNRELATED-LAN"}]}`,
		`{"data":[{"ixlan_id":10,"prefix":"217.29.66.0/24"}]}`,
	)

	store := &fakeStore{}
	dispatcher := &fakeDispatcher{}
	u := New(client, store, dispatcher, zap.NewNop())

	if err := u.build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(store.saved) != 0 {
		t.Errorf("expected no prefixes saved when ix_id doesn't match, got %d", len(store.saved))
	}
}

func TestUpdater_AbortsOnQueryFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ix", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })
	mux.HandleFunc("/ixlan", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"data":[]}`)) })
	mux.HandleFunc("/ixpfx", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"data":[]}`)) })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := extsource.NewTestPeeringDBClient(zap.NewNop(), srv.URL+"/ix", srv.URL+"/ixlan", srv.URL+"/ixpfx", time.Millisecond)

	store := &fakeStore{}
	dispatcher := &fakeDispatcher{}
	u := New(client, store, dispatcher, zap.NewNop())

	if err := u.build(context.Background()); err == nil {
		t.Fatal("expected build to fail when ix query fails")
	}
	if len(store.saved) != 0 {
		t.Errorf("expected nothing saved on aborted run, got %d", len(store.saved))
	}
}
