// Package scheduler runs a pool of Invokers against a shared controller,
// the "N concurrent executors" of spec.md §8's concurrency stress property.
// Grounded on the teacher's server.Scheduler: a ticker-driven run loop per
// worker, coordinated by a context and a sync.WaitGroup, started and
// stopped as a unit.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/ericsun2/hark-lang/controller"
	"github.com/ericsun2/hark-lang/trace"
	"github.com/ericsun2/hark-lang/value"
)

// DefaultPollInterval is how long an idle worker waits before checking
// lease_ready again, matching the teacher's 10ms scheduler tick.
const DefaultPollInterval = 10 * time.Millisecond

// Scheduler owns a fixed pool of Invokers, each run on its own goroutine,
// and the data controller programs are spawned against.
type Scheduler struct {
	Controller   controller.Controller
	Invokers     []Invoker
	PollInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Scheduler over ctrl with one worker per invoker.
func New(ctrl controller.Controller, invokers []Invoker) *Scheduler {
	return &Scheduler{
		Controller:   ctrl,
		Invokers:     invokers,
		PollInterval: DefaultPollInterval,
	}
}

// Start launches one goroutine per invoker. Each repeatedly steps until its
// invoker reports nothing was ready, then waits PollInterval before trying
// again, until Stop is called.
func (s *Scheduler) Start() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	for i, inv := range s.Invokers {
		s.wg.Add(1)
		go s.runWorker(i, inv)
	}
}

// Stop signals every worker to exit and waits for them to drain.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) runWorker(id int, inv Invoker) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		ran, err := inv.Step(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			trace.Thread("worker_error", int64(id), err.Error())
			continue
		}
		if ran {
			continue // keep draining while work is available
		}

		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Spawn creates a new root thread for functionName and returns its
// terminal future id, a thin convenience wrapper over Controller.NewThread
// for callers that don't otherwise touch the controller directly.
func (s *Scheduler) Spawn(ctx context.Context, functionName string, args []value.Value) (threadID, futureID int64, err error) {
	return s.Controller.NewThread(ctx, functionName, args)
}

// Await blocks the calling goroutine (not a Hark thread) until futureID
// resolves or ctx is cancelled, polling at PollInterval. It exists for
// hosts embedding the runtime that need a synchronous result — e.g. cmd/hark
// — and is not part of the instruction set itself.
func (s *Scheduler) Await(ctx context.Context, futureID int64) (value.Value, error) {
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		f, err := s.Controller.ReadFuture(ctx, futureID)
		if err != nil {
			return nil, err
		}
		if f.Resolved {
			return f.Value, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
