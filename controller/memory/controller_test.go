package memory

import (
	"context"
	"testing"
	"time"

	"github.com/ericsun2/hark-lang/code"
	"github.com/ericsun2/hark-lang/controller"
	"github.com/ericsun2/hark-lang/value"
)

func seedSimple(t *testing.T, c *Controller) {
	t.Helper()
	model := code.NewCodeModel()
	model.Functions["main"] = code.FunctionEntry{Entry: 0, Arity: 0}
	if err := c.SeedCode(context.Background(), model); err != nil {
		t.Fatalf("SeedCode: %v", err)
	}
}

func TestNewThreadThenLease(t *testing.T) {
	ctx := context.Background()
	c := New()
	seedSimple(t, c)

	threadID, futureID, err := c.NewThread(ctx, "main", nil)
	if err != nil {
		t.Fatalf("NewThread: %v", err)
	}
	if threadID == 0 || futureID == 0 {
		t.Fatalf("expected nonzero ids, got thread=%d future=%d", threadID, futureID)
	}

	leased, ok, err := c.LeaseReady(ctx, time.Second)
	if err != nil || !ok {
		t.Fatalf("LeaseReady: ok=%v err=%v", ok, err)
	}
	if leased.Snapshot.ID != threadID {
		t.Fatalf("leased wrong thread: %d", leased.Snapshot.ID)
	}
	if leased.Snapshot.State != controller.Running {
		t.Fatalf("leased thread should read Running, got %s", leased.Snapshot.State)
	}

	// A second lease attempt must find nothing ready.
	if _, ok, _ := c.LeaseReady(ctx, time.Second); ok {
		t.Fatal("expected no ready thread while the only thread is leased")
	}
}

func TestCommitStepRejectsWithoutLease(t *testing.T) {
	ctx := context.Background()
	c := New()
	seedSimple(t, c)

	threadID, _, _ := c.NewThread(ctx, "main", nil)
	snap, _ := c.ReadThread(ctx, threadID)
	snap.State = controller.Finished

	err := c.CommitStep(ctx, "tok", "not-a-real-lease", snap, controller.Outbox{})
	if err == nil {
		t.Fatal("expected LeaseLost error when committing without a valid lease")
	}
	rerr, ok := err.(*value.RuntimeError)
	if !ok || rerr.Code != value.LeaseLost {
		t.Fatalf("expected LeaseLost, got %v", err)
	}
}

func TestCommitStepIdempotentUnderRetry(t *testing.T) {
	ctx := context.Background()
	c := New()
	seedSimple(t, c)

	threadID, futureID, _ := c.NewThread(ctx, "main", nil)
	leased, _, _ := c.LeaseReady(ctx, time.Second)

	snap := leased.Snapshot
	snap.State = controller.Finished
	snap.FinishedValue = value.NewInt(42)

	outbox := controller.Outbox{Resolutions: []controller.Resolution{{FutureID: futureID, Value: value.NewInt(42)}}}

	if err := c.CommitStep(ctx, "step-1", leased.LeaseToken, snap, outbox); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	// P5: replaying the same token after success must be a no-op, not an
	// error and not a second resolution.
	if err := c.CommitStep(ctx, "step-1", leased.LeaseToken, snap, outbox); err != nil {
		t.Fatalf("replayed commit should be a no-op, got error: %v", err)
	}

	f, err := c.ReadFuture(ctx, futureID)
	if err != nil {
		t.Fatalf("ReadFuture: %v", err)
	}
	if !f.Resolved || !f.Value.Equal(value.NewInt(42)) {
		t.Fatalf("future should be resolved to 42 exactly once, got %+v", f)
	}

	th, _ := c.ReadThread(ctx, threadID)
	if th.State != controller.Finished {
		t.Fatalf("thread should be Finished, got %s", th.State)
	}
}

func TestDoubleResolveIsRejected(t *testing.T) {
	ctx := context.Background()
	c := New()
	seedSimple(t, c)

	_, futureID, _ := c.NewThread(ctx, "main", nil)

	if _, err := c.Resolve(ctx, futureID, value.NewInt(1)); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	_, err := c.Resolve(ctx, futureID, value.NewInt(2))
	if err == nil {
		t.Fatal("expected DoubleResolve on second resolution")
	}
	rerr, ok := err.(*value.RuntimeError)
	if !ok || rerr.Code != value.DoubleResolve {
		t.Fatalf("expected DoubleResolve, got %v", err)
	}

	f, _ := c.ReadFuture(ctx, futureID)
	if !f.Value.Equal(value.NewInt(1)) {
		t.Fatalf("second resolve must not mutate state, future value = %v", f.Value)
	}
}

func TestBlockAndResolveInvariant(t *testing.T) {
	// P1: every thread in Waiting(f) is present exactly once in
	// futures[f].Chain, and vice versa.
	ctx := context.Background()
	c := New()
	seedSimple(t, c)

	waiterID, _, _ := c.NewThread(ctx, "main", nil)
	_, producerFuture, _ := c.NewThread(ctx, "main", nil)

	if err := c.Block(ctx, waiterID, producerFuture); err != nil {
		t.Fatalf("Block: %v", err)
	}

	f, _ := c.ReadFuture(ctx, producerFuture)
	if len(f.Chain) != 1 || f.Chain[0] != waiterID {
		t.Fatalf("chain should contain exactly the waiter, got %v", f.Chain)
	}

	woken, err := c.Resolve(ctx, producerFuture, value.NewInt(7))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(woken) != 1 || woken[0] != waiterID {
		t.Fatalf("resolve should report the waiter as woken, got %v", woken)
	}

	f, _ = c.ReadFuture(ctx, producerFuture)
	if len(f.Chain) != 0 {
		t.Fatalf("chain must be empty after resolution, got %v", f.Chain)
	}
}

func TestReserveIDsAreMonotonicAndGapTolerant(t *testing.T) {
	ctx := context.Background()
	c := New()
	seedSimple(t, c)

	a, _ := c.ReserveThreadID(ctx)
	b, _ := c.ReserveThreadID(ctx)
	if b != a+1 {
		t.Fatalf("reservations should be strictly increasing: %d then %d", a, b)
	}
	// A reservation that is never materialized into a thread is fine: ids
	// are allowed to have gaps (spec.md §9).
}
