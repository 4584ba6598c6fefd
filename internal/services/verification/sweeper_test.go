package verification

import (
	"context"
	"testing"
	"time"
)

func TestSweepDisabledByDefault(t *testing.T) {
	fx := newServiceFixture(t, Config{})
	initiation, _ := fx.initiate(t)
	fx.clock.Advance(24 * time.Hour)

	stats, err := fx.svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats != (SweepStats{}) {
		t.Fatalf("expected no work, got %+v", stats)
	}
	stored, _ := fx.store.Get(context.Background(), initiation.State)
	if stored.Status != StatusPending {
		t.Fatalf("pending attempts never expire without a timeout: %+v", stored)
	}
}

func TestSweepExpiresStalePendingAttempts(t *testing.T) {
	fx := newServiceFixture(t, Config{PendingTimeout: time.Minute, PollWait: 2 * time.Second})
	stale, staleStream := fx.initiate(t)
	fx.clock.Advance(50 * time.Second)
	fresh, freshStream := fx.initiate(t)
	fx.clock.Advance(20 * time.Second)

	stats, err := fx.svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.Expired != 1 {
		t.Fatalf("expected one expiry, got %+v", stats)
	}

	view := fx.svc.CheckStatus(context.Background(), stale.State)
	if view.Status != string(StatusError) || view.Error != ErrorMessageTimedOut {
		t.Fatalf("unexpected stale view %+v", view)
	}
	waitFor(t, "stale stream close", staleStream.isClosed)

	stored, _ := fx.store.Get(context.Background(), fresh.State)
	if stored.Status != StatusPending {
		t.Fatalf("fresh attempt must stay pending: %+v", stored)
	}
	if freshStream.isClosed() {
		t.Fatal("fresh stream must stay open")
	}
}

func TestSweepExpiresOrphanedPendingRecord(t *testing.T) {
	fx := newServiceFixture(t, Config{PendingTimeout: time.Minute})
	orphan := newPendingAttempt("orphan", "fairdrop", fx.clock.Now())
	if err := fx.store.Put(context.Background(), orphan); err != nil {
		t.Fatalf("put: %v", err)
	}
	fx.clock.Advance(2 * time.Minute)

	stats, err := fx.svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.Expired != 1 {
		t.Fatalf("expected one expiry, got %+v", stats)
	}
	stored, _ := fx.store.Get(context.Background(), "orphan")
	if stored.Status != StatusError || stored.Error != ErrorMessageTimedOut {
		t.Fatalf("unexpected record %+v", stored)
	}
}

func TestSweepEvictsOldTerminalRecords(t *testing.T) {
	fx := newServiceFixture(t, Config{Retention: time.Hour, PollWait: 2 * time.Second})
	initiation, stream := fx.initiate(t)
	stream.message(t, `{"verification_status":"verified","result":true}`)
	if view := fx.svc.CheckStatus(context.Background(), initiation.State); view.Status != string(StatusCompleted) {
		t.Fatalf("unexpected view %+v", view)
	}

	fx.clock.Advance(30 * time.Minute)
	if stats, _ := fx.svc.Sweep(context.Background()); stats.Evicted != 0 {
		t.Fatalf("record evicted before retention: %+v", stats)
	}

	fx.clock.Advance(31 * time.Minute)
	stats, err := fx.svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.Evicted != 1 {
		t.Fatalf("expected one eviction, got %+v", stats)
	}
	if view := fx.svc.CheckStatus(context.Background(), initiation.State); view.Status != StatusNotFound {
		t.Fatalf("expected not_found after eviction, got %+v", view)
	}
}

func TestRunSweeperStopsWithContext(t *testing.T) {
	fx := newServiceFixture(t, Config{PendingTimeout: time.Minute, SweepInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fx.svc.RunSweeper(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run sweeper: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
