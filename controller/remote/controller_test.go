package remote

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

func TestCommitStepRejectsWithoutLease(t *testing.T) {
	ctx := context.Background()
	c := New()
	seedSimple(t, c)

	threadID, _, _ := c.NewThread(ctx, "main", nil)
	snap, _ := c.ReadThread(ctx, threadID)
	snap.State = controller.Finished

	err := c.CommitStep(ctx, "tok", "not-a-real-lease", snap, controller.Outbox{})
	rerr, ok := err.(*value.RuntimeError)
	if !ok || rerr.Code != value.LeaseLost {
		t.Fatalf("expected LeaseLost, got %v", err)
	}
}

// TestCommitStepRejectsStaleVersion exercises the CAS path a real remote
// store's conditional write would enforce: if a thread's record version has
// advanced past what the caller's lease observed, the commit is rejected
// even though the lease token itself is still technically valid. This is
// the one property that distinguishes controller/remote from
// controller/memory, so it lives here rather than in the shared
// conformance suite.
func TestCommitStepRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	c := New()
	seedSimple(t, c)

	threadID, _, _ := c.NewThread(ctx, "main", nil)
	leased, _, _ := c.LeaseReady(ctx, time.Second)

	// Simulate another writer advancing the record's version out from
	// under this lease, the way a concurrent session on a real store
	// could in principle race a stale client.
	c.mu.Lock()
	c.threads[threadID].version++
	c.mu.Unlock()

	snap := leased.Snapshot
	snap.State = controller.Finished

	err := c.CommitStep(ctx, "tok", leased.LeaseToken, snap, controller.Outbox{})
	rerr, ok := err.(*value.RuntimeError)
	if !ok || rerr.Code != value.VersionConflict {
		t.Fatalf("expected VersionConflict, got %v", err)
	}
}

func TestReserveIDsAreMonotonicAndGapTolerant(t *testing.T) {
	ctx := context.Background()
	c := New()
	seedSimple(t, c)

	a, err := c.ReserveThreadID(ctx)
	if err != nil {
		t.Fatalf("ReserveThreadID: %v", err)
	}
	b, err := c.ReserveThreadID(ctx)
	if err != nil {
		t.Fatalf("ReserveThreadID: %v", err)
	}
	if b <= a {
		t.Fatalf("reserved ids must be strictly increasing, got %d then %d", a, b)
	}

	threadID, _, err := c.NewThread(ctx, "main", nil)
	if err != nil {
		t.Fatalf("NewThread: %v", err)
	}
	if threadID == a || threadID == b {
		t.Fatalf("NewThread reused a reserved-but-discarded id: %d", threadID)
	}
}
