package extsource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestPeeringDBClient(ixURL, ixlanURL, ixpfxURL string) *PeeringDBClient {
	c := NewPeeringDBClient(zap.NewNop())
	c.ixURL = ixURL
	c.ixlanURL = ixlanURL
	c.ixpfxURL = ixpfxURL
	c.minBackoff = time.Millisecond
	return c
}

func TestPeeringDBClient_IXData_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": 1, "name": "DE-CIX", "name_long": "DE-CIX Frankfurt"}},
		})
	}))
	defer ts.Close()

	c := newTestPeeringDBClient(ts.URL, ts.URL, ts.URL)
	data, err := c.IXData(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(data))
	}
}

func TestPeeringDBClient_RetriesOnRetryableStatus(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"id": 1}}})
	}))
	defer ts.Close()

	c := newTestPeeringDBClient(ts.URL, ts.URL, ts.URL)
	data, err := c.IXLANData(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != 1 {
		t.Fatalf("expected 1 entry after retries, got %d", len(data))
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestPeeringDBClient_ExhaustsRetriesOnPersistentFailure(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := newTestPeeringDBClient(ts.URL, ts.URL, ts.URL)
	_, err := c.IXPFXData(context.Background())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if atomic.LoadInt32(&calls) != peeringDBMaxRetries+1 {
		t.Errorf("expected %d calls, got %d", peeringDBMaxRetries+1, calls)
	}
}

func TestPeeringDBClient_NonRetryableStatusFailsImmediately(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := newTestPeeringDBClient(ts.URL, ts.URL, ts.URL)
	_, err := c.IXData(context.Background())
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected exactly 1 call for non-retryable status, got %d", calls)
	}
}
