// Package value defines the tagged, immutable value model shared by the
// compiler, the data controller, and the thread executor. A value's storage
// is opaque to callers: FutureRef, FunctionRef, and ForeignRef carry only
// identifiers, never direct pointers into executor or controller state, so
// they stay valid across suspension and across the wire in distributed mode.
package value

// TypeCode tags the runtime variant of a Value.
type TypeCode int

const (
	TypeInt TypeCode = iota
	TypeFloat
	TypeBool
	TypeString
	TypeSymbol
	TypeList
	TypeRecord
	TypeFunctionRef
	TypeForeignRef
	TypeFutureRef
	TypeNull
	TypeError
)

var typeNames = map[TypeCode]string{
	TypeInt:         "int",
	TypeFloat:       "float",
	TypeBool:        "bool",
	TypeString:      "string",
	TypeSymbol:      "symbol",
	TypeList:        "list",
	TypeRecord:      "record",
	TypeFunctionRef: "function",
	TypeForeignRef:  "foreign",
	TypeFutureRef:   "future",
	TypeNull:        "null",
	TypeError:       "error",
}

func (t TypeCode) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Symbol is an interned name: a variable, function parameter, or record key.
type Symbol string

// Value is the tagged union every runtime datum implements. Values are
// immutable; "mutation" (e.g. list append) produces a new Value.
type Value interface {
	Type() TypeCode
	String() string
	Truthy() bool
	Equal(other Value) bool
}
