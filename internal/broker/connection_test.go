package broker

import "testing"

func TestOnReconnect_FiresAllRegisteredCallbacksInOrder(t *testing.T) {
	c := &Connection{}

	var calls []int
	c.OnReconnect(func() { calls = append(calls, 1) })
	c.OnReconnect(func() { calls = append(calls, 2) })
	c.OnReconnect(func() { calls = append(calls, 3) })

	c.fireReconnectCbs()

	if len(calls) != 3 || calls[0] != 1 || calls[1] != 2 || calls[2] != 3 {
		t.Errorf("expected callbacks to fire once each in registration order, got %v", calls)
	}
}

func TestOnReconnect_NoCallbacksIsANoop(t *testing.T) {
	c := &Connection{}
	c.fireReconnectCbs()
}
