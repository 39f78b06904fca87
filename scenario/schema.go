// Package scenario loads YAML-described Hark programs and runs them to a
// terminal future, asserting the expected value or error. Grounded on the
// teacher's conformance package (TestSuite/TestCase/Expectation loaded from
// YAML fixtures and executed by a Runner), adapted from MOO source text and
// property-set expectations to Hark's AST-as-data programs and
// value/error-code expectations.
package scenario

// ExprSpec is a YAML encoding of one ast.Node, tagged by Kind. Only the
// fields relevant to Kind are populated; toNode (build.go) interprets them.
type ExprSpec struct {
	Kind string `yaml:"kind"`

	// literal
	Int   *int64   `yaml:"int,omitempty"`
	Float *float64 `yaml:"float,omitempty"`
	Bool  *bool    `yaml:"bool,omitempty"`
	Str   *string  `yaml:"str,omitempty"`
	Null  bool     `yaml:"null,omitempty"`

	// var
	Name string `yaml:"name,omitempty"`

	// let
	Value *ExprSpec `yaml:"value,omitempty"`
	Body  *ExprSpec `yaml:"body,omitempty"`

	// if
	Cond *ExprSpec `yaml:"cond,omitempty"`
	Then *ExprSpec `yaml:"then,omitempty"`
	Else *ExprSpec `yaml:"else,omitempty"`

	// call / async_call
	Callee string     `yaml:"callee,omitempty"`
	Args   []ExprSpec `yaml:"args,omitempty"`

	// await
	Await *ExprSpec `yaml:"await,omitempty"`

	// primitive
	Op   string   `yaml:"op,omitempty"`
	Keys []string `yaml:"keys,omitempty"`
}

// ImportSpec declares one foreign binding, mirroring ast.Import.
type ImportSpec struct {
	Name          string `yaml:"name"`
	ForeignTarget string `yaml:"foreign_target"`
	Arity         int    `yaml:"arity"`
}

// FunctionSpec declares one top-level function, mirroring ast.FunctionDef.
type FunctionSpec struct {
	Name   string   `yaml:"name"`
	Params []string `yaml:"params"`
	Body   ExprSpec `yaml:"body"`
}

// ProgramSpec is the whole program a suite's test cases run against.
type ProgramSpec struct {
	Imports   []ImportSpec   `yaml:"imports"`
	Functions []FunctionSpec `yaml:"functions"`
}

// ValueSpec encodes an expected or argument runtime value.
type ValueSpec struct {
	Int   *int64   `yaml:"int,omitempty"`
	Float *float64 `yaml:"float,omitempty"`
	Bool  *bool    `yaml:"bool,omitempty"`
	Str   *string  `yaml:"str,omitempty"`
	Null  bool     `yaml:"null,omitempty"`
}

// ExpectSpec is a test case's expected terminal-future outcome. Exactly one
// of Value or Error should be set; Error names a value.ErrorCode by its
// String() spelling (e.g. "DivisionByZero").
type ExpectSpec struct {
	Value *ValueSpec `yaml:"value,omitempty"`
	Error string     `yaml:"error,omitempty"`
}

// ConcurrencyStress spawns the same entry call N times concurrently and
// requires every run to resolve to the expected outcome, exercising
// spec.md §8's "N concurrent executors produce the same result" property.
type ConcurrencyStress struct {
	SpawnCount int     `yaml:"spawn_count"`
	Workers    int     `yaml:"workers"`
	DropRate   float64 `yaml:"drop_rate"`
}

// TestCase is one entry-function invocation and its expected outcome.
type TestCase struct {
	Name        string             `yaml:"name"`
	Entry       string             `yaml:"entry"`
	Args        []ValueSpec        `yaml:"args"`
	Expect      ExpectSpec         `yaml:"expect"`
	Concurrency *ConcurrencyStress `yaml:"concurrency,omitempty"`
}

// TestSuite is a YAML fixture file: one program and the cases run against it.
type TestSuite struct {
	Name    string       `yaml:"name"`
	Program ProgramSpec  `yaml:"program"`
	Tests   []TestCase   `yaml:"tests"`
}
