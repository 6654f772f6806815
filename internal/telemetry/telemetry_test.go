package telemetry

import (
	"sync"
	"testing"
)

// TestCountersConcurrent verifies counters tolerate concurrent increments.
func TestCountersConcurrent(t *testing.T) {
	c := NewCounters()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.SyncPass()
				c.ItemDelivered()
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.SyncPasses != 1000 {
		t.Errorf("SyncPasses = %d, want 1000", snap.SyncPasses)
	}
	if snap.ItemsDelivered != 1000 {
		t.Errorf("ItemsDelivered = %d, want 1000", snap.ItemsDelivered)
	}
	if snap.ItemsFailed != 0 || snap.AlertsDispatched != 0 || snap.SMSComposed != 0 {
		t.Errorf("untouched counters moved: %+v", snap)
	}
}

// TestNilCountersSafe verifies a nil counter set is a no-op everywhere.
func TestNilCountersSafe(t *testing.T) {
	var c *Counters

	c.SyncPass()
	c.ItemFailed()
	c.AlertDispatched()
	c.SMSComposed()

	if snap := c.Snapshot(); snap != (Snapshot{}) {
		t.Errorf("nil Snapshot = %+v, want zero", snap)
	}
}
