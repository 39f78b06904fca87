// Package ast defines the program tree contract the external parser/checker
// collaborator hands to the compiler (spec.md §6). The node kinds here are
// exactly {Literal, Var, Let, If, Call, AsyncCall, Await, Primitive, Import}
// plus the top-level FunctionDef/Program wrappers; the compiler rejects any
// other kind.
package ast

import "github.com/ericsun2/hark-lang/value"

// Node is the base interface every expression-tree node implements.
type Node interface {
	node()
}

// Literal is a constant value appearing directly in source.
type Literal struct {
	Value value.Value
}

func (*Literal) node() {}

// Var is a reference to a local binding or a top-level function/import name.
type Var struct {
	Name string
}

func (*Var) node() {}

// Let binds Name to the value of Value within the scope of Body.
type Let struct {
	Name  string
	Value Node
	Body  Node
}

func (*Let) node() {}

// If evaluates Cond and continues into Then or Else.
type If struct {
	Cond Node
	Then Node
	Else Node
}

func (*If) node() {}

// Call is a synchronous application of a named function or foreign
// procedure to Args, evaluated left to right.
type Call struct {
	Callee string
	Args   []Node
}

func (*Call) node() {}

// AsyncCall spawns a new thread running Callee(Args...) and evaluates to a
// FutureRef for the spawned thread's terminal future. Callee must name a
// local function, never a foreign binding (spec.md §8: "async of a foreign
// function is rejected").
type AsyncCall struct {
	Callee string
	Args   []Node
}

func (*AsyncCall) node() {}

// Await evaluates Value (expected to produce a FutureRef) and blocks the
// calling thread, if necessary, until it resolves.
type Await struct {
	Value Node
}

func (*Await) node() {}

// PrimitiveOp names one of the built-in arithmetic, comparison, logical, or
// collection operators (spec.md §4.3).
type PrimitiveOp string

const (
	OpAdd       PrimitiveOp = "add"
	OpSub       PrimitiveOp = "sub"
	OpMul       PrimitiveOp = "mul"
	OpDiv       PrimitiveOp = "div"
	OpNeg       PrimitiveOp = "neg"
	OpEq        PrimitiveOp = "eq"
	OpLt        PrimitiveOp = "lt"
	OpGt        PrimitiveOp = "gt"
	OpAnd       PrimitiveOp = "and"
	OpOr        PrimitiveOp = "or"
	OpNot       PrimitiveOp = "not"
	OpListNew   PrimitiveOp = "list_new"
	OpListGet   PrimitiveOp = "list_get"
	OpRecordNew PrimitiveOp = "record_new"
	OpRecordGet PrimitiveOp = "record_get"
	OpPrint     PrimitiveOp = "print"
)

// Primitive applies a built-in operator to Args. For OpRecordNew, Keys holds
// the field name for each positional argument in Args.
type Primitive struct {
	Op   PrimitiveOp
	Args []Node
	Keys []string
}

func (*Primitive) node() {}

// Import registers Name as a foreign binding resolving to ForeignTarget with
// the given Arity. Import nodes appear among a Program's top-level
// declarations, not inside a function body.
type Import struct {
	Name          string
	ForeignTarget string
	Arity         int
}

// FunctionDef is a top-level function: a name, ordered parameter list, and a
// single body expression (Hark has no statement sequencing beyond Let).
type FunctionDef struct {
	Name   string
	Params []string
	Body   Node
}

// Program is the full input to the compiler: the foreign bindings a program
// declares plus its function definitions.
type Program struct {
	Imports   []Import
	Functions []FunctionDef
}
