package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/ericsun2/hark-lang/code"
	"github.com/ericsun2/hark-lang/compiler"
	"github.com/ericsun2/hark-lang/controller"
	"github.com/ericsun2/hark-lang/executor"
	"github.com/ericsun2/hark-lang/foreign"
	"github.com/ericsun2/hark-lang/foreign/stdhost"
	"github.com/ericsun2/hark-lang/scheduler"
	"github.com/ericsun2/hark-lang/value"
)

// maxDrainSteps bounds a single-invoker drain loop so a bug that leaves a
// thread perpetually Ready fails a test instead of hanging it.
const maxDrainSteps = 100000

// ControllerFactory returns a fresh, empty Controller, letting a Runner be
// exercised against both controller/memory and controller/remote without
// duplicating any scenario logic (spec.md §9).
type ControllerFactory func() controller.Controller

// Result is the outcome of one TestCase.
type Result struct {
	Suite   string
	Test    string
	Passed  bool
	Skipped bool
	Err     error
}

func (r Result) String() string {
	if r.Skipped {
		return fmt.Sprintf("%s/%s: SKIP", r.Suite, r.Test)
	}
	if r.Passed {
		return fmt.Sprintf("%s/%s: PASS", r.Suite, r.Test)
	}
	return fmt.Sprintf("%s/%s: FAIL (%v)", r.Suite, r.Test, r.Err)
}

// Runner compiles and executes TestSuite fixtures against a Controller
// implementation supplied by NewController, the same way the teacher's
// conformance.Runner owns one evaluator and walks LoadedTests against it.
type Runner struct {
	NewController ControllerFactory
}

// NewRunner returns a Runner over the given controller constructor.
func NewRunner(factory ControllerFactory) *Runner {
	return &Runner{NewController: factory}
}

// RunSuite compiles suite's program once and runs every test case against
// its own fresh controller instance, so test cases never share thread/future
// id space.
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) ([]Result, error) {
	prog, err := toProgram(suite.Program)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", suite.Name, err)
	}
	model, err := compiler.Compile(prog)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: compile: %w", suite.Name, err)
	}

	results := make([]Result, 0, len(suite.Tests))
	for _, tc := range suite.Tests {
		results = append(results, r.runCase(ctx, suite.Name, model, tc))
	}
	return results, nil
}

func (r *Runner) runCase(ctx context.Context, suiteName string, model *code.CodeModel, tc TestCase) Result {
	ctrl := r.NewController()
	if err := ctrl.SeedCode(ctx, model); err != nil {
		return Result{Suite: suiteName, Test: tc.Name, Err: fmt.Errorf("seed: %w", err)}
	}

	args := make([]value.Value, len(tc.Args))
	for i, a := range tc.Args {
		args[i] = toValue(a)
	}

	if tc.Concurrency != nil {
		return r.runConcurrency(ctx, suiteName, ctrl, tc, args)
	}

	reg := foreign.NewRegistry()
	stdhost.Register(reg)
	ex := executor.New(ctrl, reg)

	_, futureID, err := ctrl.NewThread(ctx, tc.Entry, args)
	if err != nil {
		return Result{Suite: suiteName, Test: tc.Name, Err: fmt.Errorf("spawn: %w", err)}
	}
	if err := drainExecutor(ctx, ex); err != nil {
		return Result{Suite: suiteName, Test: tc.Name, Err: err}
	}

	f, err := ctrl.ReadFuture(ctx, futureID)
	if err != nil {
		return Result{Suite: suiteName, Test: tc.Name, Err: fmt.Errorf("read future: %w", err)}
	}
	return checkExpectation(suiteName, tc.Name, f, tc.Expect)
}

// runConcurrency spawns tc.Concurrency.SpawnCount copies of tc.Entry(args)
// and drives them with a worker pool, requiring every one to resolve to the
// expected outcome — the "N concurrent executors agree" property.
func (r *Runner) runConcurrency(ctx context.Context, suiteName string, ctrl controller.Controller, tc TestCase, args []value.Value) Result {
	cc := tc.Concurrency
	workers := cc.Workers
	if workers <= 0 {
		workers = 4
	}

	reg := foreign.NewRegistry()
	stdhost.Register(reg)

	invokers := make([]scheduler.Invoker, workers)
	for i := range invokers {
		ex := executor.New(ctrl, reg)
		if cc.DropRate > 0 {
			invokers[i] = scheduler.NewSimulatedRemoteInvoker(ex, time.Millisecond, cc.DropRate, int64(i+1))
			ex.LeaseTimeout = 50 * time.Millisecond
		} else {
			invokers[i] = &scheduler.LocalInvoker{Executor: ex}
		}
	}

	sched := scheduler.New(ctrl, invokers)
	sched.PollInterval = time.Millisecond
	sched.Start()
	defer sched.Stop()

	futureIDs := make([]int64, cc.SpawnCount)
	for i := 0; i < cc.SpawnCount; i++ {
		_, futureID, err := sched.Spawn(ctx, tc.Entry, args)
		if err != nil {
			return Result{Suite: suiteName, Test: tc.Name, Err: fmt.Errorf("spawn %d: %w", i, err)}
		}
		futureIDs[i] = futureID
	}

	awaitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for i, futureID := range futureIDs {
		val, err := sched.Await(awaitCtx, futureID)
		if err != nil {
			return Result{Suite: suiteName, Test: tc.Name, Err: fmt.Errorf("spawn %d await: %w", i, err)}
		}
		f := &controller.Future{Resolved: true, Value: val}
		if res := checkExpectation(suiteName, tc.Name, f, tc.Expect); !res.Passed {
			res.Err = fmt.Errorf("spawn %d: %w", i, res.Err)
			return res
		}
	}
	return Result{Suite: suiteName, Test: tc.Name, Passed: true}
}

// drainExecutor runs ex.RunOnce until no thread is ready.
func drainExecutor(ctx context.Context, ex *executor.Executor) error {
	for i := 0; i < maxDrainSteps; i++ {
		ran, err := ex.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if !ran {
			return nil
		}
	}
	return fmt.Errorf("exceeded %d steps without draining all ready threads", maxDrainSteps)
}

func checkExpectation(suiteName, testName string, f *controller.Future, expect ExpectSpec) Result {
	if !f.Resolved {
		return Result{Suite: suiteName, Test: testName, Err: fmt.Errorf("terminal future never resolved")}
	}

	if expect.Error != "" {
		ev, ok := f.Value.(value.ErrorValue)
		if !ok {
			return Result{Suite: suiteName, Test: testName, Err: fmt.Errorf("want error %s, got value %s", expect.Error, f.Value)}
		}
		if ev.Code.String() != expect.Error {
			return Result{Suite: suiteName, Test: testName, Err: fmt.Errorf("want error %s, got %s", expect.Error, ev.Code)}
		}
		return Result{Suite: suiteName, Test: testName, Passed: true}
	}

	if expect.Value != nil {
		want := toValue(*expect.Value)
		if !f.Value.Equal(want) {
			return Result{Suite: suiteName, Test: testName, Err: fmt.Errorf("want %s, got %s", want, f.Value)}
		}
		return Result{Suite: suiteName, Test: testName, Passed: true}
	}

	return Result{Suite: suiteName, Test: testName, Err: fmt.Errorf("test case declares neither expect.value nor expect.error")}
}
