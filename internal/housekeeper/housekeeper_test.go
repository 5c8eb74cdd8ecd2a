package housekeeper

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeStore struct {
	tracerouteBefore time.Time
	ipInfoBefore     time.Time
	tracerouteResult int64
	ipInfoResult     int64
	tracerouteErr    error
	ipInfoErr        error
}

func (s *fakeStore) PurgeOldTraceroutes(ctx context.Context, before time.Time) (int64, error) {
	s.tracerouteBefore = before
	return s.tracerouteResult, s.tracerouteErr
}

func (s *fakeStore) PurgeOldIPInfo(ctx context.Context, before time.Time) (int64, error) {
	s.ipInfoBefore = before
	return s.ipInfoResult, s.ipInfoErr
}

func TestSweep_PurgesBothTablesWithExpiryCutoffs(t *testing.T) {
	st := &fakeStore{tracerouteResult: 3, ipInfoResult: 5}
	h := New(st, zap.NewNop())

	now := time.Now()
	h.Sweep(context.Background())

	wantCutoff := now.Add(-7 * 24 * time.Hour)
	if diff := st.tracerouteBefore.Sub(wantCutoff); diff < -time.Second || diff > time.Second {
		t.Errorf("traceroute cutoff not ~7d before now: got %v, want near %v", st.tracerouteBefore, wantCutoff)
	}
	if !st.ipInfoBefore.Equal(st.tracerouteBefore) {
		t.Errorf("expected both cutoffs to use the same 7d expiry, traceroute=%v ipinfo=%v", st.tracerouteBefore, st.ipInfoBefore)
	}
}

func TestSweep_ContinuesAfterTracerouteError(t *testing.T) {
	st := &fakeStore{tracerouteErr: context.DeadlineExceeded, ipInfoResult: 2}
	h := New(st, zap.NewNop())

	h.Sweep(context.Background())

	if st.ipInfoBefore.IsZero() {
		t.Error("expected ip-info purge to still run after traceroute purge failed")
	}
}
