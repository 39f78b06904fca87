// Package memory implements controller.Controller as a single mutex-
// protected in-process store, grounded on the teacher's db.Store: one lock
// guards every table, and every public method takes it for its entire
// duration so operations appear atomic (spec.md §4.4, §5).
package memory

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
	token   string
	expires time.Time
}

// Controller is the in-memory reference implementation of controller.Controller.
type Controller struct {
	mu sync.Mutex

	code *code.CodeModel

	threads map[int64]*controller.Thread
	futures map[int64]*controller.Future

	nextThreadID int64
	nextFutureID int64

	leases map[int64]lease

	// lastStepToken bounds P5's idempotency check to the single token that
	// can plausibly be retried for a given thread (the one most recently
	// committed), rather than an unbounded history.
	lastStepToken map[int64]string

	// readyQueue holds ids of Ready, unleased threads in the order they
	// became ready, giving lease_ready FIFO fairness for debuggability
	// (spec.md §4.6) without requiring priority ordering.
	readyQueue []int64

	tokenSeq int64 // source for lease tokens
}

// New returns an empty controller ready for SeedCode and NewThread.
func New() *Controller {
	return &Controller{
		threads:       make(map[int64]*controller.Thread),
		futures:       make(map[int64]*controller.Future),
		leases:        make(map[int64]lease),
		lastStepToken: make(map[int64]string),
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
	c.futures[futureID] = &controller.Future{ID: futureID}
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
	c.threads[threadID] = &controller.Thread{
		ID:             threadID,
		State:          controller.Ready,
		FunctionName:   functionName,
		IP:             entry,
		Stack:          nil,
		Locals:         locals,
		Frames:         nil,
		TerminalFuture: futureID,
	}
}

func (c *Controller) LeaseReady(_ context.Context, leaseTimeout time.Duration) (*controller.LeasedThread, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.reclaimExpiredLeasesLocked(now)

	for len(c.readyQueue) > 0 {
		id := c.readyQueue[0]
		c.readyQueue = c.readyQueue[1:]

		t, ok := c.threads[id]
		if !ok || t.State != controller.Ready {
			continue // stale entry: thread since progressed past Ready
		}

		c.tokenSeq++
		token := fmt.Sprintf("lease-%d-%d", id, c.tokenSeq)
		c.leases[id] = lease{token: token, expires: now.Add(leaseTimeout)}
		t.State = controller.Running
		return &controller.LeasedThread{Snapshot: t.Clone(), LeaseToken: token}, true, nil
	}
	return nil, false, nil
}

// reclaimExpiredLeasesLocked voids leases past their timeout, returning
// their threads to Ready so a crashed or hung executor cannot starve a
// thread forever (spec.md §5). A subsequent commit_step from the original
// lease holder then fails with LeaseLost rather than applying twice.
func (c *Controller) reclaimExpiredLeasesLocked(now time.Time) {
	for id, l := range c.leases {
		if l.expires.After(now) {
			continue
		}
		delete(c.leases, id)
		if t, ok := c.threads[id]; ok && t.State == controller.Running {
			t.State = controller.Ready
			c.readyQueue = append(c.readyQueue, id)
		}
	}
}

func (c *Controller) CommitStep(_ context.Context, stepToken, leaseToken string, snapshot *controller.Thread, outbox controller.Outbox) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastStepToken[snapshot.ID] == stepToken {
		return nil // P5: replaying a committed token is a no-op
	}

	held, ok := c.leases[snapshot.ID]
	if !ok || held.token != leaseToken {
		return value.NewRuntimeError(value.LeaseLost, fmt.Sprintf("thread %d", snapshot.ID))
	}

	for _, req := range outbox.NewThreads {
		if _, exists := c.threads[req.ThreadID]; exists {
			continue // idempotent: already materialized by a prior (lost) commit attempt
		}
		entry, ok := c.code.EntryPoint(req.FunctionName)
		if !ok {
			return value.NewRuntimeError(value.UndefinedFunction, req.FunctionName)
		}
		c.createThreadLocked(req.ThreadID, req.FutureID, req.FunctionName, entry, req.Args)
		if _, exists := c.futures[req.FutureID]; !exists {
			c.futures[req.FutureID] = &controller.Future{ID: req.FutureID}
		}
		c.readyQueue = append(c.readyQueue, req.ThreadID)
	}

	for _, res := range outbox.Resolutions {
		if _, err := c.resolveLocked(res.FutureID, res.Value); err != nil {
			return err
		}
	}

	stored := snapshot.Clone()
	c.threads[stored.ID] = stored

	if stored.State == controller.Waiting {
		if f, ok := c.futures[stored.WaitingOn]; ok && f.Resolved {
			// Resolved after the step read it: wake now instead of blocking.
			if err := c.wakeLocked([]int64{stored.ID}, f.Value); err != nil {
				return err
			}
		} else if err := c.blockLocked(stored.ID, stored.WaitingOn); err != nil {
			return err
		}
	} else if stored.State == controller.Ready {
		c.readyQueue = append(c.readyQueue, stored.ID) // step-budget expiry: still runnable
	}

	delete(c.leases, stored.ID)
	c.lastStepToken[stored.ID] = stepToken
	return nil
}

func (c *Controller) Block(_ context.Context, threadID, futureID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockLocked(threadID, futureID)
}

func (c *Controller) blockLocked(threadID, futureID int64) error {
	f, ok := c.futures[futureID]
	if !ok {
		return value.NewRuntimeError(value.UnboundName, fmt.Sprintf("future %d", futureID))
	}
	for _, id := range f.Chain {
		if id == threadID {
			return nil // already present: invariant I2 holds, nothing to do
		}
	}
	f.Chain = append(f.Chain, threadID)
	if t, ok := c.threads[threadID]; ok {
		t.State = controller.Waiting
		t.WaitingOn = futureID
	}
	return nil
}

func (c *Controller) Resolve(_ context.Context, futureID int64, val value.Value) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolveLocked(futureID, val)
}

func (c *Controller) resolveLocked(futureID int64, val value.Value) ([]int64, error) {
	f, ok := c.futures[futureID]
	if !ok {
		return nil, value.NewRuntimeError(value.UnboundName, fmt.Sprintf("future %d", futureID))
	}
	if f.Resolved {
		return nil, value.NewRuntimeError(value.DoubleResolve, fmt.Sprintf("future %d", futureID))
	}
	f.Resolved = true
	f.Value = val
	chain := f.Chain
	f.Chain = nil

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
		t, ok := c.threads[id]
		if !ok {
			return value.NewRuntimeError(value.UnboundName, fmt.Sprintf("thread %d", id))
		}
		if t.State != controller.Waiting {
			continue
		}
		t.WaitingOn = 0
		if ev, isErr := val.(value.ErrorValue); isErr {
			t.State = controller.Errored
			t.ErrorReason = value.NewRuntimeError(ev.Code, ev.Reason)
			// The thread never runs again to resolve its own terminal
			// future the way RunOnce normally would, so do it here,
			// cascading the same error to anything awaiting this thread.
			if _, err := c.resolveLocked(t.TerminalFuture, ev); err != nil {
				return err
			}
			continue
		}
		t.Stack = append(t.Stack, val)
		t.State = controller.Ready
		c.readyQueue = append(c.readyQueue, id)
	}
	return nil
}

func (c *Controller) ReadFuture(_ context.Context, futureID int64) (*controller.Future, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.futures[futureID]
	if !ok {
		return nil, value.NewRuntimeError(value.UnboundName, fmt.Sprintf("future %d", futureID))
	}
	return f.Clone(), nil
}

func (c *Controller) ReadThread(_ context.Context, threadID int64) (*controller.Thread, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.threads[threadID]
	if !ok {
		return nil, value.NewRuntimeError(value.UnboundName, fmt.Sprintf("thread %d", threadID))
	}
	return t.Clone(), nil
}
