// Package telemetry provides in-process operational counters.
// Counters are local only; nothing is transmitted off-device. They exist
// so the status surface and tests can observe sync and dispatch activity.
package telemetry

import "sync/atomic"

// Counters holds monotonic counters for the sync and dispatch paths.
type Counters struct {
	syncPasses       atomic.Int64
	itemsDelivered   atomic.Int64
	itemsFailed      atomic.Int64
	alertsDispatched atomic.Int64
	smsComposed      atomic.Int64
}

// NewCounters creates a zeroed counter set.
func NewCounters() *Counters {
	return &Counters{}
}

// SyncPass records one completed drain pass.
func (c *Counters) SyncPass() {
	if c == nil {
		return
	}
	c.syncPasses.Add(1)
}

// ItemDelivered records one queue item confirmed by the backend.
func (c *Counters) ItemDelivered() {
	if c == nil {
		return
	}
	c.itemsDelivered.Add(1)
}

// ItemFailed records one queue item that stayed queued after a failed attempt.
func (c *Counters) ItemFailed() {
	if c == nil {
		return
	}
	c.itemsFailed.Add(1)
}

// AlertDispatched records one emergency alert trigger.
func (c *Counters) AlertDispatched() {
	if c == nil {
		return
	}
	c.alertsDispatched.Add(1)
}

// SMSComposed records one SMS fallback composition.
func (c *Counters) SMSComposed() {
	if c == nil {
		return
	}
	c.smsComposed.Add(1)
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	SyncPasses       int64 `json:"sync_passes"`
	ItemsDelivered   int64 `json:"items_delivered"`
	ItemsFailed      int64 `json:"items_failed"`
	AlertsDispatched int64 `json:"alerts_dispatched"`
	SMSComposed      int64 `json:"sms_composed"`
}

// Snapshot returns a consistent-enough copy for status reporting.
func (c *Counters) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		SyncPasses:       c.syncPasses.Load(),
		ItemsDelivered:   c.itemsDelivered.Load(),
		ItemsFailed:      c.itemsFailed.Load(),
		AlertsDispatched: c.alertsDispatched.Load(),
		SMSComposed:      c.smsComposed.Load(),
	}
}
