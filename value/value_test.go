package value

import "testing"

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		code ErrorCode
		name string
	}{
		{E_NONE, "E_NONE"},
		{TypeMismatch, "TypeMismatch"},
		{ArityMismatch, "ArityMismatch"},
		{UnboundName, "UnboundName"},
		{UndefinedFunction, "UndefinedFunction"},
		{DivisionByZero, "DivisionByZero"},
		{ForeignError, "ForeignError"},
		{DoubleResolve, "DoubleResolve"},
		{LeaseLost, "LeaseLost"},
		{ControllerUnavailable, "ControllerUnavailable"},
		{MalformedCode, "MalformedCode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code.String() != tt.name {
				t.Errorf("String() = %q, want %q", tt.code.String(), tt.name)
			}
		})
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"zero int", NewInt(0), false},
		{"nonzero int", NewInt(-1), true},
		{"zero float", NewFloat(0), false},
		{"false bool", NewBool(false), false},
		{"true bool", NewBool(true), true},
		{"empty string", NewString(""), false},
		{"nonempty string", NewString("x"), true},
		{"empty list", NewList(nil), false},
		{"nonempty list", NewList([]Value{NewInt(1)}), true},
		{"null", Null{}, false},
		{"symbol", NewSymbol("x"), true},
		{"future ref", NewFutureRef(1), true},
		{"error value", NewError(DivisionByZero, ""), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Truthy(); got != tt.want {
				t.Errorf("Truthy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEquality(t *testing.T) {
	if !NewInt(5).Equal(NewInt(5)) {
		t.Error("5 should equal 5")
	}
	if NewInt(5).Equal(NewFloat(5)) {
		t.Error("int and float of the same magnitude are distinct variants")
	}

	l1 := NewList([]Value{NewInt(1), NewString("a")})
	l2 := NewList([]Value{NewInt(1), NewString("a")})
	l3 := NewList([]Value{NewInt(1), NewString("b")})
	if !l1.Equal(l2) {
		t.Error("structurally identical lists should be equal")
	}
	if l1.Equal(l3) {
		t.Error("structurally different lists should not be equal")
	}

	r1 := NewRecord([]RecordPair{{Key: "a", Val: NewInt(1)}, {Key: "b", Val: NewInt(2)}})
	r2 := NewRecord([]RecordPair{{Key: "b", Val: NewInt(2)}, {Key: "a", Val: NewInt(1)}})
	if !r1.Equal(r2) {
		t.Error("records should compare equal regardless of insertion order")
	}
}

func TestListAppendedIsImmutable(t *testing.T) {
	original := NewList([]Value{NewInt(1)})
	appended := original.Appended(NewInt(2))

	if len(original.Items) != 1 {
		t.Fatalf("original list mutated: len = %d", len(original.Items))
	}
	if len(appended.Items) != 2 {
		t.Fatalf("appended list should have 2 items, got %d", len(appended.Items))
	}
}

func TestRecordWithIsImmutable(t *testing.T) {
	original := NewRecord([]RecordPair{{Key: "a", Val: NewInt(1)}})
	updated := original.With("a", NewInt(2))

	v, _ := original.Get("a")
	if !v.Equal(NewInt(1)) {
		t.Fatalf("original record mutated: a = %v", v)
	}
	v, _ = updated.Get("a")
	if !v.Equal(NewInt(2)) {
		t.Fatalf("updated record should have a = 2, got %v", v)
	}
}

func TestStringRepresentation(t *testing.T) {
	if NewFloat(3).String() != "3.0" {
		t.Errorf("whole floats should print with .0, got %q", NewFloat(3).String())
	}
	if NewInt(42).String() != "42" {
		t.Errorf("got %q", NewInt(42).String())
	}
	if NewFunctionRef("a", 1).String() != "function:a/1" {
		t.Errorf("got %q", NewFunctionRef("a", 1).String())
	}
}
