package foreign

import (
	"context"
	"errors"
	"testing"

	"github.com/ericsun2/hark-lang/value"
)

func TestRegistryDispatchesByTarget(t *testing.T) {
	r := NewRegistry()
	r.Register("test.double", func(_ context.Context, args []value.Value) (value.Value, error) {
		n := args[0].(value.Integer)
		return value.NewInt(n.Val * 2), nil
	})

	got, err := r.Call(context.Background(), "test.double", []value.Value{value.NewInt(21)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !got.Equal(value.NewInt(42)) {
		t.Fatalf("got %v, want 42", got)
	}
}

func TestRegistryUnknownTargetIsUndefinedFunction(t *testing.T) {
	r := NewRegistry()
	_, err := r.Call(context.Background(), "nope", nil)
	if err == nil {
		t.Fatal("expected error for unregistered target")
	}
	rerr, ok := err.(*value.RuntimeError)
	if !ok || rerr.Code != value.UndefinedFunction {
		t.Fatalf("expected UndefinedFunction, got %v", err)
	}
}

func TestRegistryWrapsPlainErrorsAsForeignError(t *testing.T) {
	r := NewRegistry()
	r.Register("test.fail", func(_ context.Context, args []value.Value) (value.Value, error) {
		return nil, errors.New("boom")
	})
	_, err := r.Call(context.Background(), "test.fail", nil)
	rerr, ok := err.(*value.RuntimeError)
	if !ok || rerr.Code != value.ForeignError {
		t.Fatalf("expected ForeignError, got %v", err)
	}
}
