package value

import "fmt"

// FunctionRef names a compiled function by its symbol-table entry. It
// resolves against the code model's function table; it carries no pointer
// into compiled code so it remains valid across suspension and transport.
type FunctionRef struct {
	Name  string
	Arity int
}

func NewFunctionRef(name string, arity int) FunctionRef {
	return FunctionRef{Name: name, Arity: arity}
}

func (f FunctionRef) Type() TypeCode { return TypeFunctionRef }
func (f FunctionRef) String() string { return fmt.Sprintf("function:%s/%d", f.Name, f.Arity) }
func (f FunctionRef) Truthy() bool   { return true }

func (f FunctionRef) Equal(other Value) bool {
	o, ok := other.(FunctionRef)
	return ok && f.Name == o.Name && f.Arity == o.Arity
}

// ForeignRef names a host-registered procedure by its qualified name and
// declared arity. It resolves via the foreign bridge at call time.
type ForeignRef struct {
	Name  string
	Arity int
}

func NewForeignRef(name string, arity int) ForeignRef {
	return ForeignRef{Name: name, Arity: arity}
}

func (f ForeignRef) Type() TypeCode { return TypeForeignRef }
func (f ForeignRef) String() string { return fmt.Sprintf("foreign:%s/%d", f.Name, f.Arity) }
func (f ForeignRef) Truthy() bool   { return true }

func (f ForeignRef) Equal(other Value) bool {
	o, ok := other.(ForeignRef)
	return ok && f.Name == o.Name && f.Arity == o.Arity
}

// FutureRef is an opaque handle into the data controller's future table. It
// carries only an identifier, never a pointer to executor or controller
// state, so it remains valid across suspension, resumption, and — in
// distributed mode — the wire.
type FutureRef struct {
	ID int64
}

func NewFutureRef(id int64) FutureRef { return FutureRef{ID: id} }

func (f FutureRef) Type() TypeCode { return TypeFutureRef }
func (f FutureRef) String() string { return fmt.Sprintf("future:%d", f.ID) }
func (f FutureRef) Truthy() bool   { return true }

func (f FutureRef) Equal(other Value) bool {
	o, ok := other.(FutureRef)
	return ok && f.ID == o.ID
}
