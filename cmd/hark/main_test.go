package main

import (
	"testing"

	"github.com/ericsun2/hark-lang/value"
)

func TestParseArgs(t *testing.T) {
	got, err := parseArgs([]string{"42", "3.5", "true", "false", "null", "hello"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	want := []value.Value{
		value.NewInt(42),
		value.NewFloat(3.5),
		value.NewBool(true),
		value.NewBool(false),
		value.Null{},
		value.NewString("hello"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("arg %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
