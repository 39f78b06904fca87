// Package conformance holds a Controller implementation's behavior tests
// once, so controller/memory and controller/remote both prove the same
// properties (spec.md §9: "the same sequence of API calls must produce
// identical program results in either mode") instead of maintaining two
// copies of the same assertions.
package conformance

import (
	"context"
	"testing"
	"time"

	"github.com/ericsun2/hark-lang/code"
	"github.com/ericsun2/hark-lang/controller"
	"github.com/ericsun2/hark-lang/value"
)

// Factory returns a fresh, empty Controller of the implementation under test.
type Factory func() controller.Controller

func seed(t *testing.T, ctx context.Context, c controller.Controller) {
	t.Helper()
	model := code.NewCodeModel()
	model.Functions["main"] = code.FunctionEntry{Entry: 0, Arity: 0}
	if err := c.SeedCode(ctx, model); err != nil {
		t.Fatalf("SeedCode: %v", err)
	}
}

// Run exercises every Controller implementation against the same sequence
// of API calls, run as subtests so a failure names which property broke.
func Run(t *testing.T, newController Factory) {
	t.Run("NewThreadThenLease", func(t *testing.T) { testNewThreadThenLease(t, newController) })
	t.Run("CommitStepIdempotentUnderRetry", func(t *testing.T) { testCommitStepIdempotentUnderRetry(t, newController) })
	t.Run("DoubleResolveIsRejected", func(t *testing.T) { testDoubleResolveIsRejected(t, newController) })
	t.Run("BlockAndResolveInvariant", func(t *testing.T) { testBlockAndResolveInvariant(t, newController) })
	t.Run("LeaseTimeoutReturnsThreadToReady", func(t *testing.T) { testLeaseTimeoutReturnsThreadToReady(t, newController) })
	t.Run("WaitOnErroredFutureErrorsWaiter", func(t *testing.T) { testWaitOnErroredFutureErrorsWaiter(t, newController) })
}

func testNewThreadThenLease(t *testing.T, newController Factory) {
	ctx := context.Background()
	c := newController()
	seed(t, ctx, c)

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
	if _, ok, _ := c.LeaseReady(ctx, time.Second); ok {
		t.Fatal("expected no ready thread while the only thread is leased")
	}
}

// testCommitStepIdempotentUnderRetry is P5: committing the same stepToken
// twice must resolve the future exactly once.
func testCommitStepIdempotentUnderRetry(t *testing.T, newController Factory) {
	ctx := context.Background()
	c := newController()
	seed(t, ctx, c)

	threadID, futureID, _ := c.NewThread(ctx, "main", nil)
	leased, _, err := c.LeaseReady(ctx, time.Second)
	if err != nil {
		t.Fatalf("LeaseReady: %v", err)
	}

	snap := leased.Snapshot
	snap.State = controller.Finished
	snap.FinishedValue = value.NewInt(42)

	outbox := controller.Outbox{Resolutions: []controller.Resolution{{FutureID: futureID, Value: value.NewInt(42)}}}

	if err := c.CommitStep(ctx, "step-1", leased.LeaseToken, snap, outbox); err != nil {
		t.Fatalf("first commit: %v", err)
	}
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

// testDoubleResolveIsRejected is P2.
func testDoubleResolveIsRejected(t *testing.T, newController Factory) {
	ctx := context.Background()
	c := newController()
	seed(t, ctx, c)

	_, futureID, _ := c.NewThread(ctx, "main", nil)

	if _, err := c.Resolve(ctx, futureID, value.NewInt(1)); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	_, err := c.Resolve(ctx, futureID, value.NewInt(2))
	rerr, ok := err.(*value.RuntimeError)
	if !ok || rerr.Code != value.DoubleResolve {
		t.Fatalf("expected DoubleResolve, got %v", err)
	}

	f, _ := c.ReadFuture(ctx, futureID)
	if !f.Value.Equal(value.NewInt(1)) {
		t.Fatalf("second resolve must not mutate state, future value = %v", f.Value)
	}
}

// testBlockAndResolveInvariant is P1.
func testBlockAndResolveInvariant(t *testing.T, newController Factory) {
	ctx := context.Background()
	c := newController()
	seed(t, ctx, c)

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
}

// testLeaseTimeoutReturnsThreadToReady exercises lease reclamation: a
// leased-but-never-committed thread must become leasable again once its
// timeout passes, so a crashed executor cannot strand work forever.
func testLeaseTimeoutReturnsThreadToReady(t *testing.T, newController Factory) {
	ctx := context.Background()
	c := newController()
	seed(t, ctx, c)

	threadID, _, _ := c.NewThread(ctx, "main", nil)

	first, ok, err := c.LeaseReady(ctx, 10*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("first lease: ok=%v err=%v", ok, err)
	}
	if first.Snapshot.ID != threadID {
		t.Fatalf("leased wrong thread: %d", first.Snapshot.ID)
	}

	time.Sleep(20 * time.Millisecond)

	second, ok, err := c.LeaseReady(ctx, time.Second)
	if err != nil || !ok {
		t.Fatalf("expected thread to be reclaimed after timeout: ok=%v err=%v", ok, err)
	}
	if second.Snapshot.ID != threadID {
		t.Fatalf("reclaimed wrong thread: %d", second.Snapshot.ID)
	}

	// The original lease token must no longer be honored.
	stale := first.Snapshot
	stale.State = controller.Finished
	err = c.CommitStep(ctx, "stale-commit", first.LeaseToken, stale, controller.Outbox{})
	if rerr, ok := err.(*value.RuntimeError); !ok || rerr.Code != value.LeaseLost {
		t.Fatalf("expected the expired lease token to be rejected with LeaseLost, got %v", err)
	}
}

// testWaitOnErroredFutureErrorsWaiter exercises spec.md §7/§8 scenario 6's
// "a thread awaiting a future whose producer errored itself becomes errored
// on Wait": a thread blocked on a future must turn Errored (with the
// producer's code) the moment that future resolves to an ErrorValue,
// without ever being rescheduled Ready to mis-handle the value as ordinary
// data. The waiter's own terminal future must also resolve to the same
// error, cascading to anything awaiting the waiter in turn.
func testWaitOnErroredFutureErrorsWaiter(t *testing.T, newController Factory) {
	ctx := context.Background()
	c := newController()
	seed(t, ctx, c)

	waiterID, waiterFuture, _ := c.NewThread(ctx, "main", nil)
	_, producerFuture, _ := c.NewThread(ctx, "main", nil)

	// Put the waiter into the same Waiting+blocked state executor.doWait
	// leaves it in after a real Wait instruction suspends: lease it, mark
	// it Waiting on the producer's future, and commit.
	leased, ok, err := c.LeaseReady(ctx, time.Second)
	if err != nil || !ok {
		t.Fatalf("LeaseReady: ok=%v err=%v", ok, err)
	}
	if leased.Snapshot.ID != waiterID {
		t.Fatalf("expected to lease the waiter first, got thread %d", leased.Snapshot.ID)
	}
	snap := leased.Snapshot
	snap.State = controller.Waiting
	snap.WaitingOn = producerFuture
	if err := c.CommitStep(ctx, "block-step", leased.LeaseToken, snap, controller.Outbox{}); err != nil {
		t.Fatalf("CommitStep: %v", err)
	}

	producerErr := value.NewError(value.DivisionByZero, "division by zero")
	if _, err := c.Resolve(ctx, producerFuture, producerErr); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	waiter, err := c.ReadThread(ctx, waiterID)
	if err != nil {
		t.Fatalf("ReadThread: %v", err)
	}
	if waiter.State != controller.Errored {
		t.Fatalf("waiter should be Errored, got %s", waiter.State)
	}
	if waiter.ErrorReason == nil || waiter.ErrorReason.Code != value.DivisionByZero {
		t.Fatalf("waiter should carry the producer's error code, got %v", waiter.ErrorReason)
	}

	wf, err := c.ReadFuture(ctx, waiterFuture)
	if err != nil {
		t.Fatalf("ReadFuture: %v", err)
	}
	if !wf.Resolved {
		t.Fatal("waiter's own terminal future should resolve once the waiter errors")
	}
	ev, ok := wf.Value.(value.ErrorValue)
	if !ok || ev.Code != value.DivisionByZero {
		t.Fatalf("waiter's terminal future should carry the cascaded error, got %v", wf.Value)
	}
}
