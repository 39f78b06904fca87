// Package remote implements controller.Controller as a simulated durable,
// transactional store: every record (thread, future) carries a version, and
// commit_step only applies if the version a lease observed still holds,
// mirroring the conditional (compare-and-swap) writes a real remote store
// would require instead of a single in-process mutex being enough on its
// own. Grounded on the teacher's db.Store for the table shape (threads,
// futures, counters) and db/checkpoint.go's CheckpointManager for periodic
// durability snapshots (see checkpoint.go in this package).
package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ericsun2/hark-lang/code"
	"github.com/ericsun2/hark-lang/controller"
	"github.com/ericsun2/hark-lang/value"
)

type lease struct {
	token       string
	expires     time.Time
	baseVersion int64
}

type threadRecord struct {
	thread  *controller.Thread
	version int64
}

type futureRecord struct {
	future  *controller.Future
	version int64
}

// Controller is the simulated-remote implementation of controller.Controller.
type Controller struct {
	mu sync.Mutex

	code *code.CodeModel

	threads map[int64]*threadRecord
	futures map[int64]*futureRecord

	nextThreadID int64
	nextFutureID int64

	leases map[int64]lease

	// ledger records, per thread, the last stepToken committed for it —
	// the durable record that makes commit_step idempotent under at-
	// least-once retry (spec.md P5).
	ledger map[int64]string

	readyQueue []int64

	tokenSeq int64
}

// New returns an empty remote-simulation controller.
func New() *Controller {
	return &Controller{
		threads: make(map[int64]*threadRecord),
		futures: make(map[int64]*futureRecord),
		leases:  make(map[int64]lease),
		ledger:  make(map[int64]string),
	}
}

func (c *Controller) SeedCode(_ context.Context, model *code.CodeModel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.code = model
	return nil
}

func (c *Controller) GetCode(_ context.Context) (*code.CodeModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.code == nil {
		return nil, value.NewRuntimeError(value.ControllerUnavailable, "code model not seeded")
	}
	return c.code, nil
}

func (c *Controller) ReserveThreadID(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextThreadID++
	return c.nextThreadID, nil
}

func (c *Controller) ReserveFutureID(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextFutureID++
	return c.nextFutureID, nil
}

func (c *Controller) NewThread(_ context.Context, functionName string, args []value.Value) (int64, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.code == nil {
		return 0, 0, value.NewRuntimeError(value.ControllerUnavailable, "code model not seeded")
	}
	entry, ok := c.code.EntryPoint(functionName)
	if !ok {
		return 0, 0, value.NewRuntimeError(value.UndefinedFunction, functionName)
	}
	fn := c.code.Functions[functionName]
	if len(args) != fn.Arity {
		return 0, 0, value.NewRuntimeError(value.ArityMismatch, fmt.Sprintf("%s expects %d args, got %d", functionName, fn.Arity, len(args)))
	}

	c.nextThreadID++
	c.nextFutureID++
	threadID, futureID := c.nextThreadID, c.nextFutureID

	c.createThreadLocked(threadID, futureID, functionName, entry, args)
	c.futures[futureID] = &futureRecord{future: &controller.Future{ID: futureID}}
	c.readyQueue = append(c.readyQueue, threadID)

	return threadID, futureID, nil
}

func (c *Controller) createThreadLocked(threadID, futureID int64, functionName string, entry int, args []value.Value) {
	locals := make(map[value.Symbol]value.Value, len(args))
	fn := c.code.Functions[functionName]
	for i, p := range fn.Params {
		if i < len(args) {
			locals[value.Symbol(p)] = args[i]
		}
	}
	c.threads[threadID] = &threadRecord{thread: &controller.Thread{
		ID:             threadID,
		State:          controller.Ready,
		FunctionName:   functionName,
		IP:             entry,
		Locals:         locals,
		TerminalFuture: futureID,
	}}
}

func (c *Controller) LeaseReady(_ context.Context, leaseTimeout time.Duration) (*controller.LeasedThread, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.reclaimExpiredLeasesLocked(now)

	for len(c.readyQueue) > 0 {
		id := c.readyQueue[0]
		c.readyQueue = c.readyQueue[1:]

		rec, ok := c.threads[id]
		if !ok || rec.thread.State != controller.Ready {
			continue
		}

		c.tokenSeq++
		token := fmt.Sprintf("lease-%d-%d", id, c.tokenSeq)
		c.leases[id] = lease{token: token, expires: now.Add(leaseTimeout), baseVersion: rec.version}
		rec.thread.State = controller.Running
		return &controller.LeasedThread{Snapshot: rec.thread.Clone(), LeaseToken: token}, true, nil
	}
	return nil, false, nil
}

func (c *Controller) reclaimExpiredLeasesLocked(now time.Time) {
	for id, l := range c.leases {
		if l.expires.After(now) {
			continue
		}
		delete(c.leases, id)
		if rec, ok := c.threads[id]; ok && rec.thread.State == controller.Running {
			rec.thread.State = controller.Ready
			c.readyQueue = append(c.readyQueue, id)
		}
	}
}

// CommitStep applies a stepped thread's snapshot only if three conditions
// hold: the stepToken has not already been applied (P5), the caller still
// holds the thread's lease, and the thread's record version has not moved
// past the version the lease observed (the CAS a real remote store would
// enforce via a conditional write).
func (c *Controller) CommitStep(_ context.Context, stepToken, leaseToken string, snapshot *controller.Thread, outbox controller.Outbox) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ledger[snapshot.ID] == stepToken {
		return nil
	}

	held, ok := c.leases[snapshot.ID]
	if !ok || held.token != leaseToken {
		return value.NewRuntimeError(value.LeaseLost, fmt.Sprintf("thread %d", snapshot.ID))
	}

	rec, ok := c.threads[snapshot.ID]
	if !ok {
		return value.NewRuntimeError(value.UnboundName, fmt.Sprintf("thread %d", snapshot.ID))
	}
	if rec.version != held.baseVersion {
		return value.NewRuntimeError(value.VersionConflict, fmt.Sprintf("thread %d: expected version %d, found %d", snapshot.ID, held.baseVersion, rec.version))
	}

	for _, req := range outbox.NewThreads {
		if _, exists := c.threads[req.ThreadID]; exists {
			continue
		}
		entry, ok := c.code.EntryPoint(req.FunctionName)
		if !ok {
			return value.NewRuntimeError(value.UndefinedFunction, req.FunctionName)
		}
		c.createThreadLocked(req.ThreadID, req.FutureID, req.FunctionName, entry, req.Args)
		if _, exists := c.futures[req.FutureID]; !exists {
			c.futures[req.FutureID] = &futureRecord{future: &controller.Future{ID: req.FutureID}}
		}
		c.readyQueue = append(c.readyQueue, req.ThreadID)
	}

	for _, res := range outbox.Resolutions {
		if _, err := c.resolveLocked(res.FutureID, res.Value); err != nil {
			return err
		}
	}

	stored := snapshot.Clone()
	rec.thread = stored
	rec.version++

	if stored.State == controller.Waiting {
		if f, ok := c.futures[stored.WaitingOn]; ok && f.future.Resolved {
			// Resolved after the step read it: wake now instead of blocking.
			if err := c.wakeLocked([]int64{stored.ID}, f.future.Value); err != nil {
				return err
			}
		} else if err := c.blockLocked(stored.ID, stored.WaitingOn); err != nil {
			return err
		}
	} else if stored.State == controller.Ready {
		c.readyQueue = append(c.readyQueue, stored.ID)
	}

	delete(c.leases, stored.ID)
	c.ledger[stored.ID] = stepToken
	return nil
}

func (c *Controller) Block(_ context.Context, threadID, futureID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockLocked(threadID, futureID)
}

func (c *Controller) blockLocked(threadID, futureID int64) error {
	rec, ok := c.futures[futureID]
	if !ok {
		return value.NewRuntimeError(value.UnboundName, fmt.Sprintf("future %d", futureID))
	}
	for _, id := range rec.future.Chain {
		if id == threadID {
			return nil
		}
	}
	rec.future.Chain = append(rec.future.Chain, threadID)
	if t, ok := c.threads[threadID]; ok {
		t.thread.State = controller.Waiting
		t.thread.WaitingOn = futureID
		t.version++
	}
	return nil
}

func (c *Controller) Resolve(_ context.Context, futureID int64, val value.Value) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolveLocked(futureID, val)
}

func (c *Controller) resolveLocked(futureID int64, val value.Value) ([]int64, error) {
	rec, ok := c.futures[futureID]
	if !ok {
		return nil, value.NewRuntimeError(value.UnboundName, fmt.Sprintf("future %d", futureID))
	}
	if rec.future.Resolved {
		return nil, value.NewRuntimeError(value.DoubleResolve, fmt.Sprintf("future %d", futureID))
	}
	rec.future.Resolved = true
	rec.future.Value = val
	chain := rec.future.Chain
	rec.future.Chain = nil
	rec.version++

	if err := c.wakeLocked(chain, val); err != nil {
		return nil, err
	}
	return chain, nil
}

func (c *Controller) Wake(_ context.Context, threadIDs []int64, val value.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wakeLocked(threadIDs, val)
}

// wakeLocked resumes threads waiting on a just-resolved future. Wait already
// advanced IP past itself before suspending, so there is no instruction left
// to re-inspect the injected value on resume: a future that resolved to an
// ErrorValue must mark the waiter Errored with the producer's code right
// here, rather than push the ErrorValue and let the next opcode mis-report
// it (spec.md §7, §8 scenario 6).
func (c *Controller) wakeLocked(threadIDs []int64, val value.Value) error {
	for _, id := range threadIDs {
		rec, ok := c.threads[id]
		if !ok {
			return value.NewRuntimeError(value.UnboundName, fmt.Sprintf("thread %d", id))
		}
		if rec.thread.State != controller.Waiting {
			continue
		}
		rec.thread.WaitingOn = 0
		if ev, isErr := val.(value.ErrorValue); isErr {
			rec.thread.State = controller.Errored
			rec.thread.ErrorReason = value.NewRuntimeError(ev.Code, ev.Reason)
			rec.version++
			// The thread never runs again to resolve its own terminal
			// future the way RunOnce normally would, so do it here,
			// cascading the same error to anything awaiting this thread.
			if _, err := c.resolveLocked(rec.thread.TerminalFuture, ev); err != nil {
				return err
			}
			continue
		}
		rec.thread.Stack = append(rec.thread.Stack, val)
		rec.thread.State = controller.Ready
		rec.version++
		c.readyQueue = append(c.readyQueue, id)
	}
	return nil
}

func (c *Controller) ReadFuture(_ context.Context, futureID int64) (*controller.Future, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.futures[futureID]
	if !ok {
		return nil, value.NewRuntimeError(value.UnboundName, fmt.Sprintf("future %d", futureID))
	}
	return rec.future.Clone(), nil
}

func (c *Controller) ReadThread(_ context.Context, threadID int64) (*controller.Thread, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.threads[threadID]
	if !ok {
		return nil, value.NewRuntimeError(value.UnboundName, fmt.Sprintf("thread %d", threadID))
	}
	return rec.thread.Clone(), nil
}
