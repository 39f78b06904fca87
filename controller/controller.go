// Package controller defines the data controller: the sole authority over
// threads, futures, activation frames, and the code model (spec.md §4.4).
// Controller is specified once as an interface with two implementations —
// controller/memory (mutex-protected, single process) and controller/remote
// (simulated durable transactional store with conditional writes) — so the
// executor and scheduler are written once and tested against both
// (spec.md §9 "Controller abstraction").
package controller

import (
	"context"
	"time"

	"github.com/ericsun2/hark-lang/code"
	"github.com/ericsun2/hark-lang/value"
)

// NewThreadRequest is one entry of an Outbox: a request (already bearing
// reserved ids) to materialize a new thread and its terminal future when
// the enclosing commit_step is applied.
type NewThreadRequest struct {
	ThreadID     int64
	FutureID     int64
	FunctionName string
	Args         []value.Value
}

// Resolution is an Outbox entry resolving a future as part of the producing
// thread's own commit.
type Resolution struct {
	FutureID int64
	Value    value.Value
}

// Outbox carries the side effects a step produced beyond its own thread's
// state: new threads spawned by ACall, and futures resolved by a root
// Return. commit_step applies these atomically with the thread's new
// snapshot (spec.md §4.4).
type Outbox struct {
	NewThreads  []NewThreadRequest
	Resolutions []Resolution
}

// LeasedThread is what lease_ready hands an executor: a thread snapshot
// plus the token proving the caller holds its lease.
type LeasedThread struct {
	Snapshot   *Thread
	LeaseToken string
}

// Controller is the transactional API every runtime operation goes through.
// Every operation appears atomic to other operations; no other locking is
// permitted in core components (spec.md §5).
type Controller interface {
	// SeedCode installs the immutable code model for this session. Called
	// once, before any threads run.
	SeedCode(ctx context.Context, model *code.CodeModel) error
	GetCode(ctx context.Context) (*code.CodeModel, error)

	// NewThread allocates a future, creates a thread at the function entry
	// with args pre-bound, and sets it Ready.
	NewThread(ctx context.Context, functionName string, args []value.Value) (threadID, futureID int64, err error)

	// ReserveThreadID and ReserveFutureID hand out unique, monotonically
	// increasing ids for a thread an executor is about to spawn via ACall,
	// without yet creating any record. Reservations are gap-tolerant: a
	// step that reserves ids and is then discarded (lease lost) simply
	// burns them (spec.md §9 open-question resolution, SPEC_FULL.md §9).
	ReserveThreadID(ctx context.Context) (int64, error)
	ReserveFutureID(ctx context.Context) (int64, error)

	// LeaseReady atomically picks a ready thread, flips it to Running, and
	// returns a snapshot plus lease token. ok is false if no thread is
	// ready.
	LeaseReady(ctx context.Context, leaseTimeout time.Duration) (leased *LeasedThread, ok bool, err error)

	// CommitStep writes back a stepped thread's new state and applies its
	// outbox atomically. It is rejected with LeaseLost if the caller no
	// longer holds the lease (timed out and reassigned). Replaying the
	// same stepToken after a first success is a no-op (spec.md P5).
	CommitStep(ctx context.Context, stepToken, leaseToken string, snapshot *Thread, outbox Outbox) error

	// Block transitions a thread Running -> Waiting(futureID) and appends
	// it to that future's chain. Exposed standalone for testability of P1;
	// CommitStep calls it internally when a snapshot's State is Waiting.
	Block(ctx context.Context, threadID, futureID int64) error

	// Resolve sets a future's value and returns (and clears) its chain. A
	// second resolution of the same future returns DoubleResolve and
	// mutates nothing (spec.md P2).
	Resolve(ctx context.Context, futureID int64, val value.Value) (woken []int64, err error)

	// Wake transitions each thread from Waiting to Ready, injecting the
	// resolved value onto its operand stack at the point Wait suspended. If
	// the value is an ErrorValue the thread becomes Errored instead, and its
	// terminal future is resolved with the same error.
	Wake(ctx context.Context, threadIDs []int64, val value.Value) error

	ReadFuture(ctx context.Context, futureID int64) (*Future, error)
	ReadThread(ctx context.Context, threadID int64) (*Thread, error)
}
