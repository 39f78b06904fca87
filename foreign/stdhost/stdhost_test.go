package stdhost

import (
	"context"
	"testing"

	"github.com/ericsun2/hark-lang/foreign"
	"github.com/ericsun2/hark-lang/value"
)

func TestRandomSleepIsDeterministicallyZero(t *testing.T) {
	r := foreign.NewRegistry()
	Register(r)

	got, err := r.Call(context.Background(), "pysrc.main/random_sleep", []value.Value{value.NewInt(5), value.NewInt(5)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !got.Equal(value.NewInt(0)) {
		t.Fatalf("random_sleep should deterministically return 0, got %v", got)
	}
}

func TestSleepReturnsNull(t *testing.T) {
	r := foreign.NewRegistry()
	Register(r)

	got, err := r.Call(context.Background(), "stdhost.sleep", []value.Value{value.NewInt(1)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if _, ok := got.(value.Null); !ok {
		t.Fatalf("expected Null, got %v", got)
	}
}

func TestSleepRejectsWrongArity(t *testing.T) {
	r := foreign.NewRegistry()
	Register(r)

	_, err := r.Call(context.Background(), "stdhost.sleep", nil)
	if err == nil {
		t.Fatal("expected arity error")
	}
}
