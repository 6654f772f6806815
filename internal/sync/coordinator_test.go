package sync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jayaraj-kannan/nalam-sub001/internal/connectivity"
	"github.com/jayaraj-kannan/nalam-sub001/internal/db"
	"github.com/jayaraj-kannan/nalam-sub001/internal/models"
	"github.com/jayaraj-kannan/nalam-sub001/internal/sync/conflict"
	"github.com/jayaraj-kannan/nalam-sub001/internal/sync/queue"
	"github.com/jayaraj-kannan/nalam-sub001/internal/telemetry"
)

// fakeDeliverer records delivery attempts and fails on demand.
type fakeDeliverer struct {
	mu      sync.Mutex
	calls   []models.QueueKind
	fail    func(kind models.QueueKind, payload json.RawMessage) error
	entered chan struct{}
	release chan struct{}
}

func (d *fakeDeliverer) Deliver(ctx context.Context, kind models.QueueKind, payload json.RawMessage) error {
	if d.entered != nil {
		d.entered <- struct{}{}
	}
	if d.release != nil {
		<-d.release
	}
	d.mu.Lock()
	d.calls = append(d.calls, kind)
	d.mu.Unlock()
	if d.fail != nil {
		return d.fail(kind, payload)
	}
	return nil
}

func (d *fakeDeliverer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type testRig struct {
	coord *Coordinator
	queue *queue.Queue
	store *db.Store
	net   *connectivity.Manual
}

func newTestRig(t *testing.T, online bool, d Deliverer) *testRig {
	t.Helper()

	conn, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	store := db.NewStore(conn, nil)
	t.Cleanup(func() { store.Close() })

	q := queue.New(store, nil)
	net := connectivity.NewManual(online)

	coord, err := NewCoordinator(context.Background(), store, q, net, d, telemetry.NewCounters(), time.Minute, nil)
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}
	t.Cleanup(coord.Close)

	return &testRig{coord: coord, queue: q, store: store, net: net}
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// TestSyncAllOfflineNoOp verifies an offline drain attempt leaves the queue
// and status untouched.
func TestSyncAllOfflineNoOp(t *testing.T) {
	d := &fakeDeliverer{}
	rig := newTestRig(t, false, d)
	ctx := context.Background()

	if _, err := rig.queue.Put(ctx, models.VitalsPayload{UserID: "u1"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := rig.coord.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll errored: %v", err)
	}

	if d.callCount() != 0 {
		t.Errorf("deliverer called %d times while offline", d.callCount())
	}
	n, err := rig.queue.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 1 {
		t.Errorf("queue length = %d, want 1", n)
	}
	if st := rig.coord.State(); st.Status != models.SyncStatusIdle {
		t.Errorf("status = %s, want idle", st.Status)
	}
}

// TestSyncAllDrainsInOrder verifies a full drain delivers items in enqueue
// order and ends with a success status.
func TestSyncAllDrainsInOrder(t *testing.T) {
	d := &fakeDeliverer{}
	rig := newTestRig(t, true, d)
	ctx := context.Background()

	payloads := []models.QueuePayload{
		models.VitalsPayload{UserID: "u1"},
		models.AlertPayload{AlertID: "a1", UserID: "u1", Severity: models.SeverityCritical},
		models.MedicationConfirmation{UserID: "u1", MedicationID: "m1"},
	}
	for _, p := range payloads {
		if _, err := rig.queue.Put(ctx, p); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	if err := rig.coord.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll errored: %v", err)
	}

	want := []models.QueueKind{
		models.QueueKindHealthData,
		models.QueueKindEmergencyAlert,
		models.QueueKindMedicationConfirmation,
	}
	d.mu.Lock()
	got := append([]models.QueueKind(nil), d.calls...)
	d.mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("delivered %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d = %s, want %s", i, got[i], want[i])
		}
	}

	st := rig.coord.State()
	if st.Status != models.SyncStatusSuccess {
		t.Errorf("status = %s, want success", st.Status)
	}
	if st.LastSyncTime == nil {
		t.Error("LastSyncTime not set after successful pass")
	}
	if st.PendingItems != 0 {
		t.Errorf("PendingItems = %d, want 0", st.PendingItems)
	}
}

// TestPartialFailureContinuation verifies one failing item does not abort the
// batch: items around it drain, and only it remains with one extra attempt.
func TestPartialFailureContinuation(t *testing.T) {
	d := &fakeDeliverer{
		fail: func(kind models.QueueKind, payload json.RawMessage) error {
			if kind == models.QueueKindEmergencyAlert {
				return errors.New("backend rejected alert")
			}
			return nil
		},
	}
	rig := newTestRig(t, true, d)
	ctx := context.Background()

	if _, err := rig.queue.Put(ctx, models.VitalsPayload{UserID: "u1"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	stuck, err := rig.queue.Put(ctx, models.AlertPayload{AlertID: "a1", UserID: "u1"})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := rig.queue.Put(ctx, models.MedicationConfirmation{UserID: "u1", MedicationID: "m1"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := rig.coord.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll errored: %v", err)
	}

	items, err := rig.queue.Items(ctx)
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("queue has %d items, want 1", len(items))
	}
	if items[0].ID != stuck.ID {
		t.Errorf("remaining item id = %d, want %d", items[0].ID, stuck.ID)
	}
	if items[0].Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", items[0].Attempts)
	}
	if st := rig.coord.State(); st.Status != models.SyncStatusSuccess {
		t.Errorf("status = %s, want success despite leftover item", st.Status)
	}
}

// TestAtMostOneConcurrentSync verifies a second trigger while a pass is in
// flight returns immediately without duplicating remote calls.
func TestAtMostOneConcurrentSync(t *testing.T) {
	d := &fakeDeliverer{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	rig := newTestRig(t, true, d)
	ctx := context.Background()

	if _, err := rig.queue.Put(ctx, models.VitalsPayload{UserID: "u1"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- rig.coord.SyncAll(ctx) }()

	<-d.entered // first pass is mid-delivery

	if err := rig.coord.SyncAll(ctx); err != nil {
		t.Errorf("concurrent SyncAll errored: %v", err)
	}
	if got := rig.coord.State().Status; got != models.SyncStatusSyncing {
		t.Errorf("status during in-flight pass = %s, want syncing", got)
	}

	close(d.release)
	if err := <-done; err != nil {
		t.Fatalf("first SyncAll errored: %v", err)
	}

	if d.callCount() != 1 {
		t.Errorf("deliverer called %d times, want 1", d.callCount())
	}
}

// TestSaveVitalsRoundTrip verifies a reading is persisted, queued, marked
// synced after a successful drain, and attempt-counted after a failed one.
func TestSaveVitalsRoundTrip(t *testing.T) {
	failing := true
	d := &fakeDeliverer{
		fail: func(kind models.QueueKind, payload json.RawMessage) error {
			if failing {
				return errors.New("transport down")
			}
			return nil
		},
	}
	rig := newTestRig(t, true, d)
	ctx := context.Background()

	record, err := rig.coord.SaveVitals(ctx, "u1", json.RawMessage(`{"hr":72}`))
	if err != nil {
		t.Fatalf("SaveVitals failed: %v", err)
	}
	if record.ID == 0 {
		t.Fatal("record has no id")
	}

	if err := rig.coord.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll errored: %v", err)
	}

	records, err := rig.store.Records(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Synced {
		t.Error("record marked synced after failed delivery")
	}
	if records[0].SyncAttempts != 1 {
		t.Errorf("SyncAttempts = %d, want 1", records[0].SyncAttempts)
	}

	failing = false
	if err := rig.coord.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll errored: %v", err)
	}

	records, err = rig.store.Records(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if !records[0].Synced {
		t.Error("record not marked synced after successful delivery")
	}
	n, err := rig.queue.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 0 {
		t.Errorf("queue length = %d, want 0", n)
	}
}

// TestSubscribeSemantics verifies the immediate snapshot, notification order,
// duplicate registration and unsubscription behavior of the status feed.
func TestSubscribeSemantics(t *testing.T) {
	d := &fakeDeliverer{}
	rig := newTestRig(t, true, d)
	ctx := context.Background()

	var mu sync.Mutex
	var order []string
	first := func(st models.SyncState) {
		mu.Lock()
		order = append(order, "first:"+string(st.Status))
		mu.Unlock()
	}
	second := func(st models.SyncState) {
		mu.Lock()
		order = append(order, "second:"+string(st.Status))
		mu.Unlock()
	}

	stopFirst := rig.coord.Subscribe(first)
	rig.coord.Subscribe(second)
	rig.coord.Subscribe(second) // duplicate, must not double notifications

	mu.Lock()
	if len(order) != 3 {
		t.Fatalf("immediate invocations = %d, want 3", len(order))
	}
	if order[0] != "first:idle" || order[1] != "second:idle" {
		t.Errorf("unexpected immediate order: %v", order)
	}
	order = nil
	mu.Unlock()

	if err := rig.coord.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll errored: %v", err)
	}

	mu.Lock()
	// One syncing and one success transition, each fanned out to two
	// listeners in subscription order.
	want := []string{"first:syncing", "second:syncing", "first:success", "second:success"}
	if len(order) != len(want) {
		t.Fatalf("notifications = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("notification %d = %s, want %s", i, order[i], want[i])
		}
	}
	order = nil
	mu.Unlock()

	stopFirst()
	stopFirst() // second call is a no-op

	if err := rig.coord.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll errored: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, entry := range order {
		if entry[:5] == "first" {
			t.Errorf("unsubscribed listener still notified: %v", order)
			break
		}
	}
}

// TestSubscriberStateIsCopy verifies mutating a received snapshot cannot
// affect the coordinator's own state.
func TestSubscriberStateIsCopy(t *testing.T) {
	d := &fakeDeliverer{}
	rig := newTestRig(t, true, d)
	ctx := context.Background()

	if err := rig.coord.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll errored: %v", err)
	}

	st := rig.coord.State()
	if st.LastSyncTime == nil {
		t.Fatal("LastSyncTime not set")
	}
	*st.LastSyncTime = 0
	st.Status = models.SyncStatusError

	fresh := rig.coord.State()
	if fresh.LastSyncTime == nil || *fresh.LastSyncTime == 0 {
		t.Error("snapshot mutation leaked into coordinator state")
	}
	if fresh.Status != models.SyncStatusSuccess {
		t.Errorf("status = %s, want success", fresh.Status)
	}
}

// TestConnectivityRestoreTriggersSync verifies going online drains the queue
// without an explicit trigger, and going offline resets status to idle.
func TestConnectivityRestoreTriggersSync(t *testing.T) {
	d := &fakeDeliverer{}
	rig := newTestRig(t, false, d)
	ctx := context.Background()

	if _, err := rig.queue.Put(ctx, models.AlertPayload{AlertID: "a1", UserID: "u1"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rig.net.Set(true)

	waitFor(t, func() bool {
		n, err := rig.queue.Len(ctx)
		return err == nil && n == 0
	})

	rig.net.Set(false)
	waitFor(t, func() bool {
		return rig.coord.State().Status == models.SyncStatusIdle
	})
}

// TestAutoSyncLifecycle verifies the periodic timer drains the queue and that
// start and stop are both idempotent.
func TestAutoSyncLifecycle(t *testing.T) {
	d := &fakeDeliverer{}

	conn, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	store := db.NewStore(conn, nil)
	t.Cleanup(func() { store.Close() })

	q := queue.New(store, nil)
	net := connectivity.NewManual(true)
	ctx := context.Background()

	coord, err := NewCoordinator(ctx, store, q, net, d, telemetry.NewCounters(), 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}
	t.Cleanup(coord.Close)

	if _, err := q.Put(ctx, models.VitalsPayload{UserID: "u1"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	coord.StartAutoSync(ctx)
	coord.StartAutoSync(ctx) // second start is a no-op

	waitFor(t, func() bool {
		n, err := q.Len(ctx)
		return err == nil && n == 0
	})

	coord.StopAutoSync()
	coord.StopAutoSync() // second stop is a no-op
}

// TestResolveConflictStrategies verifies the strategy passthrough against the
// documented resolution laws.
func TestResolveConflictStrategies(t *testing.T) {
	d := &fakeDeliverer{}
	rig := newTestRig(t, true, d)

	base := time.Now().Unix()
	local := conflict.Candidate{Value: "local", Timestamp: base + 2*3600}
	server := conflict.Candidate{Value: "server", Timestamp: base}

	if got := rig.coord.ResolveConflict(local, server, conflict.StrategyLocal); got.Value != "local" {
		t.Errorf("local strategy returned %v", got.Value)
	}
	if got := rig.coord.ResolveConflict(local, server, conflict.StrategyServer); got.Value != "server" {
		t.Errorf("server strategy returned %v", got.Value)
	}
	if got := rig.coord.ResolveConflict(local, server, conflict.StrategyMerge); got.Value != "local" {
		t.Errorf("merge with stale server returned %v", got.Value)
	}

	recent := conflict.Candidate{Value: "server", Timestamp: base + 2*3600 - 60}
	if got := rig.coord.ResolveConflict(local, recent, conflict.StrategyMerge); got.Value != "server" {
		t.Errorf("merge with recent server returned %v", got.Value)
	}
}
