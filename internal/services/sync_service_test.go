package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Jos-zenith/uzhavan-sub000/internal/connectivity"
	"github.com/Jos-zenith/uzhavan-sub000/internal/domain"
	"github.com/Jos-zenith/uzhavan-sub000/internal/repo"
)

func TestDrain_OfflineIsNoOp(t *testing.T) {
	h := newHarness(t, false, defaultTestPolicy())
	ctx := context.Background()

	if err := h.drafts.UpsertField(ctx, 1, "k", "f", "v"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	state, err := h.sync.Drain(ctx, false)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if state != connectivity.StateOffline {
		t.Fatalf("state = %q, want offline", state)
	}
	if h.executor.callCount() != 0 {
		t.Fatalf("executor invoked while offline")
	}
}

func TestDrain_NilExecutor(t *testing.T) {
	h := newHarness(t, true, defaultTestPolicy())
	h.sync.Execute = nil

	if _, err := h.sync.Drain(context.Background(), false); !errors.Is(err, ErrNoRemoteExecutor) {
		t.Fatalf("expected ErrNoRemoteExecutor, got %v", err)
	}
}

func TestDrain_OfflineThenOnlineEndToEnd(t *testing.T) {
	h := newHarness(t, false, defaultTestPolicy())
	ctx := context.Background()

	// Work accumulates while offline.
	if err := h.drafts.UpsertField(ctx, 1, "farmer-1", "name", "x"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if h.executor.callCount() != 0 {
		t.Fatalf("remote call while offline")
	}

	h.signal.SetOnline(true)
	state, err := h.sync.Drain(ctx, false)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if state != connectivity.StateFullySynced {
		t.Fatalf("state = %q, want fully_synced", state)
	}
	if h.signal.Last() != connectivity.StateFullySynced {
		t.Fatalf("signal last = %q", h.signal.Last())
	}
	if h.executor.callCount() != 1 {
		t.Fatalf("executor calls = %d", h.executor.callCount())
	}

	// The entry is terminal and the draft followed it.
	snap, err := h.sync.Snapshot(ctx, 0)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.QueueCounts[domain.StatusSynced] != 1 || snap.QueueCounts[domain.StatusQueued] != 0 {
		t.Fatalf("counts = %v", snap.QueueCounts)
	}
	if snap.LastSuccessfulSyncAt == nil {
		t.Fatalf("last successful sync not recorded")
	}
	if len(snap.Actions) != 1 {
		t.Fatalf("actions = %d", len(snap.Actions))
	}

	d, err := repo.GetDraft(ctx, h.db, 1, "farmer-1")
	if err != nil {
		t.Fatalf("get draft: %v", err)
	}
	if d.SyncState != domain.StateSynced {
		t.Fatalf("draft sync_state = %q", d.SyncState)
	}

	// Draining an empty queue is a harmless no-op.
	state, err = h.sync.Drain(ctx, false)
	if err != nil || state != connectivity.StateFullySynced {
		t.Fatalf("idempotent drain: state=%q err=%v", state, err)
	}
	if h.executor.callCount() != 1 {
		t.Fatalf("synced entry re-dispatched")
	}
}

func TestDrain_BackoffDoublesUntilTerminalFailure(t *testing.T) {
	h := newHarness(t, true, defaultTestPolicy())
	ctx := context.Background()

	h.executor.failures = -1 // fail forever
	h.executor.err = errors.New("remote down")

	entry, err := h.sync.Enqueue(ctx, 1, nil, domain.OpSubsidySubmit, []byte("{}"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	current := time.Now().UTC().Add(time.Minute)
	h.sync.now = func() time.Time { return current }

	wantDelays := []time.Duration{
		60 * time.Second,  // retry 1: 30s * 2
		120 * time.Second, // retry 2
		240 * time.Second, // retry 3
		480 * time.Second, // retry 4
	}

	for i, want := range wantDelays {
		attemptAt := current
		state, err := h.sync.Drain(ctx, false)
		if err != nil {
			t.Fatalf("drain %d: %v", i+1, err)
		}
		if state != connectivity.StateSyncing {
			t.Fatalf("drain %d state = %q, want syncing", i+1, state)
		}

		var got domain.SyncQueueEntry
		if err := h.db.First(&got, entry.ID).Error; err != nil {
			t.Fatalf("reload %d: %v", i+1, err)
		}
		if got.Status != domain.StatusQueued || got.RetryCount != i+1 {
			t.Fatalf("after attempt %d: status=%q retry=%d", i+1, got.Status, got.RetryCount)
		}
		delay := got.NextAttemptAt.Sub(attemptAt)
		if delay < want-time.Second || delay > want+time.Second {
			t.Fatalf("attempt %d backoff = %v, want ~%v", i+1, delay, want)
		}

		// Before the backoff expires the entry is not retried.
		before := h.executor.callCount()
		if _, err := h.sync.Drain(ctx, false); err != nil {
			t.Fatalf("early drain: %v", err)
		}
		if h.executor.callCount() != before {
			t.Fatalf("entry dispatched before its backoff expired")
		}

		current = got.NextAttemptAt.Add(time.Second)
	}

	// Fifth attempt hits the ceiling.
	state, err := h.sync.Drain(ctx, false)
	if err != nil {
		t.Fatalf("final drain: %v", err)
	}
	if state != connectivity.StateSyncFailed {
		t.Fatalf("state = %q, want sync_failed", state)
	}
	if h.signal.Last() != connectivity.StateSyncFailed {
		t.Fatalf("signal last = %q", h.signal.Last())
	}

	var got domain.SyncQueueEntry
	if err := h.db.First(&got, entry.ID).Error; err != nil {
		t.Fatalf("reload terminal: %v", err)
	}
	if got.Status != domain.StatusFailed || got.RetryCount != 5 {
		t.Fatalf("terminal: status=%q retry=%d", got.Status, got.RetryCount)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "remote down" {
		t.Fatalf("error message = %v", got.ErrorMessage)
	}
	if h.executor.callCount() != 5 {
		t.Fatalf("executor calls = %d, want 5", h.executor.callCount())
	}

	// forceAll never resurrects a terminally failed entry.
	if _, err := h.sync.Drain(ctx, true); err != nil {
		t.Fatalf("forced drain: %v", err)
	}
	if h.executor.callCount() != 5 {
		t.Fatalf("terminal entry re-dispatched under forceAll")
	}
}

func TestDrain_ForceAllBypassesBackoffGateOnly(t *testing.T) {
	h := newHarness(t, true, defaultTestPolicy())
	ctx := context.Background()

	h.executor.failures = 1
	h.executor.err = errors.New("flaky")

	entry, err := h.sync.Enqueue(ctx, 1, nil, domain.OpSubsidySubmit, []byte("{}"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	current := time.Now().UTC().Add(time.Minute)
	h.sync.now = func() time.Time { return current }

	// First attempt fails and backs off into the future.
	if _, err := h.sync.Drain(ctx, false); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if _, err := h.sync.Drain(ctx, false); err != nil {
		t.Fatalf("gated drain: %v", err)
	}
	if h.executor.callCount() != 1 {
		t.Fatalf("backoff gate not applied: %d calls", h.executor.callCount())
	}

	// forceAll retries immediately, and this time the remote accepts.
	state, err := h.sync.Drain(ctx, true)
	if err != nil {
		t.Fatalf("forced drain: %v", err)
	}
	if state != connectivity.StateFullySynced {
		t.Fatalf("state = %q", state)
	}

	var got domain.SyncQueueEntry
	if err := h.db.First(&got, entry.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != domain.StatusSynced {
		t.Fatalf("status = %q", got.Status)
	}
	if got.RetryCount != 1 {
		t.Fatalf("forceAll must not reset retry counts: %d", got.RetryCount)
	}
}

func TestDrain_PriorityOrderThenFIFO(t *testing.T) {
	policy := defaultTestPolicy()
	policy.PriorityOverrides = map[int]int{2: 90}
	h := newHarness(t, true, policy)
	ctx := context.Background()

	if _, err := h.sync.Enqueue(ctx, 1, nil, "op_low_first", []byte("{}")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := h.sync.Enqueue(ctx, 2, nil, "op_high", []byte("{}")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := h.sync.Enqueue(ctx, 1, nil, "op_low_second", []byte("{}")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := h.sync.Drain(ctx, false); err != nil {
		t.Fatalf("drain: %v", err)
	}

	ops := h.executor.operations()
	if len(ops) != 3 {
		t.Fatalf("executor calls = %d", len(ops))
	}
	if ops[0] != "op_high" || ops[1] != "op_low_first" || ops[2] != "op_low_second" {
		t.Fatalf("dispatch order = %v", ops)
	}
}

func TestDrain_ReplaysEventStoreFirst(t *testing.T) {
	h := newHarness(t, true, defaultTestPolicy())
	ctx := context.Background()

	// An event without a directly materialized queue entry, as left behind
	// by a crash between append and enqueue.
	if _, err := h.events.Append(ctx, 1, "k", domain.OpSubsidySubmit, []byte("{}")); err != nil {
		t.Fatalf("append: %v", err)
	}

	state, err := h.sync.Drain(ctx, false)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if state != connectivity.StateFullySynced {
		t.Fatalf("state = %q", state)
	}
	if h.executor.callCount() != 1 {
		t.Fatalf("replayed entry not dispatched in the same pass: %d calls", h.executor.callCount())
	}
}

func TestMaybeDrain_RequiresOnline(t *testing.T) {
	h := newHarness(t, false, defaultTestPolicy())
	ctx := context.Background()

	if _, err := h.sync.Enqueue(ctx, 1, nil, domain.OpSubsidySubmit, []byte("{}")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	h.sync.MaybeDrain(ctx)
	if h.executor.callCount() != 0 {
		t.Fatalf("MaybeDrain dispatched while offline")
	}

	h.signal.SetOnline(true)
	h.sync.MaybeDrain(ctx)
	if h.executor.callCount() != 1 {
		t.Fatalf("MaybeDrain did not dispatch while online: %d calls", h.executor.callCount())
	}
}

func TestSnapshot_ClampsLimit(t *testing.T) {
	h := newHarness(t, false, defaultTestPolicy())
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		if _, err := h.sync.Enqueue(ctx, 1, nil, domain.OpSubsidySubmit, []byte("{}")); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	snap, err := h.sync.Snapshot(ctx, 0)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Actions) != 20 {
		t.Fatalf("default page size = %d, want 20", len(snap.Actions))
	}
	if snap.QueueCounts[domain.StatusQueued] != 25 {
		t.Fatalf("queued count = %d", snap.QueueCounts[domain.StatusQueued])
	}

	snap, err = h.sync.Snapshot(ctx, 5)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Actions) != 5 {
		t.Fatalf("explicit page size = %d, want 5", len(snap.Actions))
	}
}
