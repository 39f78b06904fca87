// Package stdhost registers the small set of foreign procedures the
// end-to-end scenarios in spec.md §8 exercise, plus a real wall-clock sleep
// for programs run outside the conformance harness. Grounded on the
// teacher's builtins package, where each host procedure is a plain Go
// function of (context, args) registered under a name.
package stdhost

import (
	"context"
	"fmt"
	"time"

	"github.com/ericsun2/hark-lang/foreign"
	"github.com/ericsun2/hark-lang/value"
)

// Register installs every standard host procedure into r.
func Register(r *foreign.Registry) {
	r.Register("pysrc.main/random_sleep", randomSleep)
	r.Register("stdhost.sleep", sleep)
}

// randomSleep implements the scenario fixture's `rs(a, b)`: deterministic
// and returns 0 regardless of its arguments, so concurrency-stress tests get
// reproducible results (spec.md §8).
func randomSleep(_ context.Context, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, value.NewRuntimeError(value.ArityMismatch, fmt.Sprintf("random_sleep expects 2 args, got %d", len(args)))
	}
	return value.NewInt(0), nil
}

// sleep blocks the calling executor goroutine for the given number of
// milliseconds. Foreign calls are synchronous and must not re-enter the
// controller (spec.md §4.7), so this is a real, bounded wait rather than a
// suspension — callers needing concurrency should wrap it in `async`.
func sleep(ctx context.Context, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, value.NewRuntimeError(value.ArityMismatch, fmt.Sprintf("sleep expects 1 arg, got %d", len(args)))
	}
	ms, ok := args[0].(value.Integer)
	if !ok {
		return nil, value.NewRuntimeError(value.TypeMismatch, "sleep expects an Integer of milliseconds")
	}
	select {
	case <-time.After(time.Duration(ms.Val) * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return value.Null{}, nil
}
