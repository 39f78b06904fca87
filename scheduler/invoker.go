package scheduler

import (
	"context"
	"math/rand"
	"time"

	"github.com/ericsun2/hark-lang/executor"
)

// Invoker performs one executor cycle: lease a ready thread if one exists,
// step it, commit. It is the seam between the scheduler's worker pool and
// where the stepping actually happens — in-process today, but the
// interface is what would let a real deployment dispatch a step to a
// remote worker instead (spec.md §9 "Controller abstraction" applies
// equally to the executor side: the scheduler is written once against this
// interface).
type Invoker interface {
	Step(ctx context.Context) (ran bool, err error)
}

// LocalInvoker runs an Executor directly in the calling goroutine.
type LocalInvoker struct {
	Executor *executor.Executor
}

func (l *LocalInvoker) Step(ctx context.Context) (bool, error) {
	return l.Executor.RunOnce(ctx)
}

// SimulatedRemoteInvoker wraps an Executor with an artificial network hop
// and an artificial dispatch failure rate, so tests can exercise lease loss
// and commit_step's retry idempotence (spec.md P5) without standing up a
// real distributed worker. A "lost" step still leases and runs the thread
// (the simulated remote worker did the work) but never calls CommitStep —
// modeling a response that never made it back — leaving the lease to
// expire and the thread to be reclaimed by lease_ready's next caller.
type SimulatedRemoteInvoker struct {
	Executor *executor.Executor
	Latency  time.Duration
	DropRate float64 // fraction of steps whose commit is dropped, in [0,1)
	rng      *rand.Rand
}

// NewSimulatedRemoteInvoker seeds its own rand.Rand so drop decisions are
// reproducible across runs given the same seed, independent of any other
// package's use of math/rand.
func NewSimulatedRemoteInvoker(ex *executor.Executor, latency time.Duration, dropRate float64, seed int64) *SimulatedRemoteInvoker {
	return &SimulatedRemoteInvoker{
		Executor: ex,
		Latency:  latency,
		DropRate: dropRate,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (s *SimulatedRemoteInvoker) Step(ctx context.Context) (bool, error) {
	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	if s.DropRate > 0 && s.rng.Float64() < s.DropRate {
		return s.Executor.RunAndDiscard(ctx)
	}
	return s.Executor.RunOnce(ctx)
}
