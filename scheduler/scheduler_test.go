package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/ericsun2/hark-lang/ast"
	"github.com/ericsun2/hark-lang/compiler"
	"github.com/ericsun2/hark-lang/controller/memory"
	"github.com/ericsun2/hark-lang/executor"
	"github.com/ericsun2/hark-lang/foreign"
	"github.com/ericsun2/hark-lang/value"
)

func addOneProgram() *ast.Program {
	return &ast.Program{Functions: []ast.FunctionDef{
		{Name: "add_one", Params: []string{"x"}, Body: &ast.Primitive{
			Op:   ast.OpAdd,
			Args: []ast.Node{&ast.Var{Name: "x"}, &ast.Literal{Value: value.NewInt(1)}},
		}},
	}}
}

func TestSchedulerRunsSpawnedThreadToCompletion(t *testing.T) {
	model, err := compiler.Compile(addOneProgram())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	ctx := context.Background()
	ctrl := memory.New()
	if err := ctrl.SeedCode(ctx, model); err != nil {
		t.Fatalf("SeedCode: %v", err)
	}

	ex := executor.New(ctrl, foreign.NewRegistry())
	sched := New(ctrl, []Invoker{&LocalInvoker{Executor: ex}})
	sched.PollInterval = time.Millisecond
	sched.Start()
	defer sched.Stop()

	_, futureID, err := sched.Spawn(ctx, "add_one", []value.Value{value.NewInt(41)})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	awaitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	result, err := sched.Await(awaitCtx, futureID)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if !result.Equal(value.NewInt(42)) {
		t.Fatalf("got %v, want 42", result)
	}
}

func TestSimulatedRemoteInvokerEventuallyCompletesUnderDrops(t *testing.T) {
	model, err := compiler.Compile(addOneProgram())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	ctx := context.Background()
	ctrl := memory.New()
	if err := ctrl.SeedCode(ctx, model); err != nil {
		t.Fatalf("SeedCode: %v", err)
	}

	ex := executor.New(ctrl, foreign.NewRegistry())
	ex.LeaseTimeout = 20 * time.Millisecond
	inv := NewSimulatedRemoteInvoker(ex, time.Millisecond, 0.5, 7)
	sched := New(ctrl, []Invoker{inv})
	sched.PollInterval = time.Millisecond
	sched.Start()
	defer sched.Stop()

	_, futureID, err := sched.Spawn(ctx, "add_one", []value.Value{value.NewInt(1)})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	awaitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	result, err := sched.Await(awaitCtx, futureID)
	if err != nil {
		t.Fatalf("Await: %v (dropped steps should eventually be reclaimed and retried)", err)
	}
	if !result.Equal(value.NewInt(2)) {
		t.Fatalf("got %v, want 2", result)
	}
}
