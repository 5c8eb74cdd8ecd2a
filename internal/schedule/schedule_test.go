package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPeriodic_RunsOnStartupThenOnInterval(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Periodic(ctx, time.Millisecond, 5*time.Millisecond, func(context.Context) {
			atomic.AddInt32(&calls, 1)
		})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if atomic.LoadInt32(&calls) < 2 {
		t.Errorf("expected at least 2 calls (startup + at least one interval), got %d", calls)
	}
}

func TestPeriodic_StopsImmediatelyWhenContextAlreadyCancelled(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	Periodic(ctx, time.Second, time.Second, func(context.Context) {
		atomic.AddInt32(&calls, 1)
	})

	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("expected no calls when context is already cancelled, got %d", calls)
	}
}
