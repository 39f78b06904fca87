package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Integer is a 64-bit signed whole number.
type Integer struct {
	Val int64
}

func NewInt(v int64) Integer { return Integer{Val: v} }

func (i Integer) Type() TypeCode { return TypeInt }
func (i Integer) String() string { return fmt.Sprintf("%d", i.Val) }
func (i Integer) Truthy() bool   { return i.Val != 0 }

func (i Integer) Equal(other Value) bool {
	o, ok := other.(Integer)
	return ok && i.Val == o.Val
}

// Float is a double-precision floating point number.
type Float struct {
	Val float64
}

func NewFloat(v float64) Float { return Float{Val: v} }

func (f Float) Type() TypeCode { return TypeFloat }

func (f Float) String() string {
	if math.IsNaN(f.Val) {
		return "NaN"
	}
	if math.IsInf(f.Val, 1) {
		return "Inf"
	}
	if math.IsInf(f.Val, -1) {
		return "-Inf"
	}
	s := strconv.FormatFloat(f.Val, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func (f Float) Truthy() bool { return f.Val != 0 }

func (f Float) Equal(other Value) bool {
	o, ok := other.(Float)
	return ok && f.Val == o.Val
}

// Boolean is a true/false value.
type Boolean struct {
	Val bool
}

func NewBool(v bool) Boolean { return Boolean{Val: v} }

func (b Boolean) Type() TypeCode { return TypeBool }

func (b Boolean) String() string {
	if b.Val {
		return "true"
	}
	return "false"
}

func (b Boolean) Truthy() bool { return b.Val }

func (b Boolean) Equal(other Value) bool {
	o, ok := other.(Boolean)
	return ok && b.Val == o.Val
}

// Str is a UTF-8 string.
type Str struct {
	Val string
}

func NewString(v string) Str { return Str{Val: v} }

func (s Str) Type() TypeCode { return TypeString }
func (s Str) String() string { return s.Val }
func (s Str) Truthy() bool   { return s.Val != "" }

func (s Str) Equal(other Value) bool {
	o, ok := other.(Str)
	return ok && s.Val == o.Val
}

// SymbolValue is an interned name carried as a first-class value.
type SymbolValue struct {
	Val Symbol
}

func NewSymbol(v Symbol) SymbolValue { return SymbolValue{Val: v} }

func (s SymbolValue) Type() TypeCode { return TypeSymbol }
func (s SymbolValue) String() string { return string(s.Val) }
func (s SymbolValue) Truthy() bool   { return true }

func (s SymbolValue) Equal(other Value) bool {
	o, ok := other.(SymbolValue)
	return ok && s.Val == o.Val
}

// Null is the unit value.
type Null struct{}

func (Null) Type() TypeCode { return TypeNull }
func (Null) String() string { return "null" }
func (Null) Truthy() bool   { return false }

func (n Null) Equal(other Value) bool {
	_, ok := other.(Null)
	return ok
}
