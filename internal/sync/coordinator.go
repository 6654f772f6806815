// Package sync drives eventual consistency between the local queue and the
// remote backend. The Coordinator owns the queue drain lifecycle, the
// auto-sync timer and the observable status feed.
package sync

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jayaraj-kannan/nalam-sub001/internal/connectivity"
	"github.com/jayaraj-kannan/nalam-sub001/internal/db"
	"github.com/jayaraj-kannan/nalam-sub001/internal/models"
	"github.com/jayaraj-kannan/nalam-sub001/internal/sync/conflict"
	"github.com/jayaraj-kannan/nalam-sub001/internal/sync/queue"
	"github.com/jayaraj-kannan/nalam-sub001/internal/telemetry"
)

// DefaultAutoSyncInterval is the period between background drain passes.
const DefaultAutoSyncInterval = 5 * time.Minute

// Deliverer sends one queued payload to the backend. A nil return means the
// backend durably accepted the payload; anything else leaves the item queued.
type Deliverer interface {
	Deliver(ctx context.Context, kind models.QueueKind, payload json.RawMessage) error
}

// subscriber is one status listener. The pointer identifies the function so
// registering the same listener twice does not double its notifications.
type subscriber struct {
	ptr uintptr
	fn  func(models.SyncState)
}

// Coordinator drains the durable queue against the backend. Exactly one drain
// pass may be in flight at a time; concurrent triggers are no-ops.
type Coordinator struct {
	store    *db.Store
	queue    *queue.Queue
	net      connectivity.Source
	deliver  Deliverer
	counters *telemetry.Counters
	log      *zap.Logger
	interval time.Duration

	syncing atomic.Bool

	mu          sync.Mutex
	state       models.SyncState
	subscribers []subscriber

	autoMu   sync.Mutex
	autoStop chan struct{}
	autoWG   sync.WaitGroup

	netStop func()
}

// NewCoordinator wires a coordinator over an initialized store. The pending
// count is rebuilt from the persisted queue, and a connectivity subscription
// is installed so regaining the network triggers an immediate drain.
func NewCoordinator(ctx context.Context, store *db.Store, q *queue.Queue, net connectivity.Source, deliverer Deliverer, counters *telemetry.Counters, interval time.Duration, logger *zap.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultAutoSyncInterval
	}

	pending, err := q.Len(ctx)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		store:    store,
		queue:    q,
		net:      net,
		deliver:  deliverer,
		counters: counters,
		log:      logger,
		interval: interval,
		state: models.SyncState{
			Status:       models.SyncStatusIdle,
			PendingItems: pending,
		},
	}

	c.netStop = net.Subscribe(func(online bool) {
		if online {
			go func() {
				if err := c.SyncAll(context.Background()); err != nil {
					c.log.Warn("connectivity-triggered sync failed", zap.Error(err))
				}
			}()
			return
		}
		c.setState(func(st *models.SyncState) {
			st.Status = models.SyncStatusIdle
		})
	})

	return c, nil
}

// State returns a copy of the current coordinator status.
func (c *Coordinator) State() models.SyncState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// snapshotLocked copies the state, including the last-sync pointer target,
// so subscribers never share mutable memory with the coordinator.
func (c *Coordinator) snapshotLocked() models.SyncState {
	st := c.state
	if c.state.LastSyncTime != nil {
		t := *c.state.LastSyncTime
		st.LastSyncTime = &t
	}
	return st
}

// setState applies a mutation and notifies subscribers in subscription order.
func (c *Coordinator) setState(mutate func(*models.SyncState)) {
	c.mu.Lock()
	mutate(&c.state)
	snapshot := c.snapshotLocked()
	subs := make([]subscriber, len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(snapshot)
	}
}

// Subscribe registers a status listener. The listener is invoked once
// immediately with the current state, then on every transition. Registering
// the same function again does not duplicate notifications. The returned
// function removes the listener and is safe to call more than once.
func (c *Coordinator) Subscribe(listener func(models.SyncState)) func() {
	ptr := reflect.ValueOf(listener).Pointer()

	c.mu.Lock()
	known := false
	for _, s := range c.subscribers {
		if s.ptr == ptr {
			known = true
			break
		}
	}
	if !known {
		c.subscribers = append(c.subscribers, subscriber{ptr: ptr, fn: listener})
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	listener(snapshot)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subscribers {
			if s.ptr == ptr {
				c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Enqueue appends a typed payload to the durable queue and refreshes the
// published pending count. The emergency dispatcher uses this so queued
// alerts are visible on the status feed immediately.
func (c *Coordinator) Enqueue(ctx context.Context, payload models.QueuePayload) (*models.QueueItem, error) {
	item, err := c.queue.Put(ctx, payload)
	if err != nil {
		return nil, err
	}
	if pending, lenErr := c.queue.Len(ctx); lenErr == nil {
		c.setState(func(st *models.SyncState) {
			st.PendingItems = pending
		})
	}
	return item, nil
}

// SaveVitals persists a vitals reading locally and queues it for delivery.
// The record is written first so the data survives even if enqueueing fails.
func (c *Coordinator) SaveVitals(ctx context.Context, userID string, reading json.RawMessage) (*models.HealthRecord, error) {
	record := &models.HealthRecord{
		UserID:    userID,
		Type:      models.RecordTypeVitals,
		Payload:   reading,
		CreatedAt: time.Now().Unix(),
	}
	if _, err := c.store.PutRecord(ctx, record); err != nil {
		return nil, err
	}

	_, err := c.Enqueue(ctx, models.VitalsPayload{
		UserID:   userID,
		RecordID: record.ID,
		Type:     models.RecordTypeVitals,
		Reading:  reading,
		TakenAt:  record.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// SyncAll drains the queue in enqueue order. It is a no-op while offline or
// while another pass is in flight. A single item's failure never aborts the
// batch; the item stays queued with its attempt counter bumped. The returned
// error is non-nil only when the pass itself could not run, such as a queue
// read failure.
func (c *Coordinator) SyncAll(ctx context.Context) error {
	if !c.net.Current() {
		c.log.Debug("skipping sync, offline")
		return nil
	}
	if !c.syncing.CompareAndSwap(false, true) {
		c.log.Debug("skipping sync, pass already in flight")
		return nil
	}
	defer c.syncing.Store(false)

	c.setState(func(st *models.SyncState) {
		st.Status = models.SyncStatusSyncing
		st.Error = ""
	})

	items, err := c.queue.Items(ctx)
	if err != nil {
		c.setState(func(st *models.SyncState) {
			st.Status = models.SyncStatusError
			st.Error = err.Error()
		})
		return err
	}

	delivered := 0
	for _, item := range items {
		if err := c.deliver.Deliver(ctx, item.Kind, item.Payload); err != nil {
			c.log.Warn("queue item delivery failed",
				zap.Int64("item_id", item.ID),
				zap.String("kind", string(item.Kind)),
				zap.Int("attempts", item.Attempts+1),
				zap.Error(err))
			c.recordFailure(ctx, item)
			continue
		}
		c.recordSuccess(ctx, item)
		delivered++
	}

	pending := len(items) - delivered
	if n, lenErr := c.queue.Len(ctx); lenErr == nil {
		pending = n
	}

	now := time.Now().Unix()
	c.setState(func(st *models.SyncState) {
		st.Status = models.SyncStatusSuccess
		st.LastSyncTime = &now
		st.PendingItems = pending
		st.Error = ""
	})
	c.counters.SyncPass()

	c.log.Info("sync pass completed",
		zap.Int("delivered", delivered),
		zap.Int("pending", pending))
	return nil
}

// recordSuccess removes the delivered item and flips the linked health
// record's synced flag when the payload carries one.
func (c *Coordinator) recordSuccess(ctx context.Context, item models.QueueItem) {
	if err := c.queue.Remove(ctx, item.ID); err != nil {
		c.log.Error("failed to remove delivered queue item",
			zap.Int64("item_id", item.ID), zap.Error(err))
	}
	c.counters.ItemDelivered()

	if recordID, ok := linkedRecordID(item); ok {
		if err := c.store.MarkRecordSynced(ctx, recordID); err != nil {
			c.log.Error("failed to mark record synced",
				zap.Int64("record_id", recordID), zap.Error(err))
		}
	}
}

// recordFailure bumps the queue attempt counter and mirrors it onto the
// linked health record so its retry history stays visible.
func (c *Coordinator) recordFailure(ctx context.Context, item models.QueueItem) {
	if err := c.queue.Fail(ctx, item.ID); err != nil {
		c.log.Error("failed to record queue attempt",
			zap.Int64("item_id", item.ID), zap.Error(err))
	}
	c.counters.ItemFailed()

	if recordID, ok := linkedRecordID(item); ok {
		if err := c.store.IncrementRecordAttempts(ctx, recordID); err != nil {
			c.log.Error("failed to record sync attempt",
				zap.Int64("record_id", recordID), zap.Error(err))
		}
	}
}

// linkedRecordID extracts the local health record id a queue item refers to,
// when its payload kind carries one.
func linkedRecordID(item models.QueueItem) (int64, bool) {
	if item.Kind != models.QueueKindHealthData {
		return 0, false
	}
	decoded, err := models.DecodePayload(item.Kind, item.Payload)
	if err != nil {
		return 0, false
	}
	vitals, ok := decoded.(models.VitalsPayload)
	if !ok || vitals.RecordID == 0 {
		return 0, false
	}
	return vitals.RecordID, true
}

// StartAutoSync installs the periodic drain timer. Starting twice is a
// no-op; there is never more than one timer handle.
func (c *Coordinator) StartAutoSync(ctx context.Context) {
	c.autoMu.Lock()
	defer c.autoMu.Unlock()
	if c.autoStop != nil {
		return
	}
	stop := make(chan struct{})
	c.autoStop = stop

	c.autoWG.Add(1)
	go func() {
		defer c.autoWG.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if err := c.SyncAll(ctx); err != nil {
					c.log.Warn("periodic sync failed", zap.Error(err))
				}
			}
		}
	}()

	c.log.Info("auto sync started", zap.Duration("interval", c.interval))
}

// StopAutoSync removes the periodic timer. Stopping twice is a no-op.
func (c *Coordinator) StopAutoSync() {
	c.autoMu.Lock()
	defer c.autoMu.Unlock()
	if c.autoStop == nil {
		return
	}
	close(c.autoStop)
	c.autoStop = nil
	c.autoWG.Wait()

	c.log.Info("auto sync stopped")
}

// ResolveConflict picks the winning candidate under the given strategy. It is
// pure; callers decide when to apply the result.
func (c *Coordinator) ResolveConflict(local, server conflict.Candidate, strategy conflict.Strategy) conflict.Candidate {
	return conflict.Resolve(local, server, strategy, conflict.DefaultStaleness)
}

// Close stops the timer and detaches from the connectivity feed.
func (c *Coordinator) Close() {
	c.StopAutoSync()
	if c.netStop != nil {
		c.netStop()
	}
}
