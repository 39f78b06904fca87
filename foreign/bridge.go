// Package foreign is the host callable registry: the single point through
// which compiled code invokes synchronous, non-Hark functionality (spec.md
// §4.2, §6 "Import"). Grounded on the teacher's builtins.Registry, which
// maps a name to a Go function and dispatches by name at call time.
package foreign

import (
	"context"
	"fmt"

	"github.com/ericsun2/hark-lang/value"
)

// Func is one host-provided procedure. It is always synchronous: a foreign
// binding can never itself suspend a thread (spec.md §4.5 — async of a
// foreign function is rejected at compile time for the same reason).
type Func func(ctx context.Context, args []value.Value) (value.Value, error)

// Bridge resolves a qualified foreign target name to a callable.
type Bridge interface {
	Call(ctx context.Context, target string, args []value.Value) (value.Value, error)
}

// Registry is the in-process Bridge implementation: a name-to-Func table
// populated at startup, grounded on builtins.Registry's Register/dispatch
// pattern.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register installs fn under target, the qualified name an Import declares
// (e.g. "stdhost.sleep"). Registering the same target twice overwrites the
// previous entry.
func (r *Registry) Register(target string, fn Func) {
	r.funcs[target] = fn
}

func (r *Registry) Call(ctx context.Context, target string, args []value.Value) (value.Value, error) {
	fn, ok := r.funcs[target]
	if !ok {
		return nil, value.NewRuntimeError(value.UndefinedFunction, fmt.Sprintf("foreign target %q not registered", target))
	}
	val, err := fn(ctx, args)
	if err != nil {
		if rerr, ok := err.(*value.RuntimeError); ok {
			return nil, rerr
		}
		return nil, value.NewRuntimeError(value.ForeignError, err.Error())
	}
	return val, nil
}
