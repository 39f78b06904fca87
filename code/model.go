package code

import "github.com/ericsun2/hark-lang/value"

// Instruction is one decoded step of the instruction stream. Operand is
// interpreted according to Op: a name-pool index for PushV/Bind, a
// const-pool index for PushL, an absolute target instruction index for
// Jump/JumpIfNot, or an argument count for Call/CallF/ACall/ListNew/
// RecordNew. It is unused (zero) for opcodes that take none.
type Instruction struct {
	Op      OpCode
	Operand int
}

// FunctionEntry is a code model's symbol-table record for one function:
// where its body starts, how many parameters it declares, and which
// enclosing names (if any) it closes over.
type FunctionEntry struct {
	Entry    int
	Arity    int
	Params   []string
	FreeVars []string
}

// ForeignEntry is a code model's symbol-table record for one Import
// declaration.
type ForeignEntry struct {
	Target string
	Arity  int
}

// CodeModel is the compiler's output: a flat instruction stream shared by
// every function (each function occupies a contiguous block ending in
// OpReturn), a constant pool, a name pool for variable/parameter
// references, and symbol tables resolving function and foreign names.
// CodeModel is immutable after it is seeded into a data controller.
type CodeModel struct {
	Instructions []Instruction
	Constants    []value.Value
	Names        []string
	Functions    map[string]FunctionEntry
	Foreigns     map[string]ForeignEntry
}

// NewCodeModel returns an empty, ready-to-populate CodeModel.
func NewCodeModel() *CodeModel {
	return &CodeModel{
		Functions: make(map[string]FunctionEntry),
		Foreigns:  make(map[string]ForeignEntry),
	}
}

// Lookup resolves a name against the function and foreign symbol tables,
// in that order, returning the Value a PushV of a bare top-level name
// should push.
func (m *CodeModel) Lookup(name string) (value.Value, bool) {
	if fn, ok := m.Functions[name]; ok {
		return value.NewFunctionRef(name, fn.Arity), true
	}
	if fr, ok := m.Foreigns[name]; ok {
		return value.NewForeignRef(name, fr.Arity), true
	}
	return nil, false
}

// EntryPoint returns the first instruction index of the named function.
func (m *CodeModel) EntryPoint(name string) (int, bool) {
	fn, ok := m.Functions[name]
	if !ok {
		return 0, false
	}
	return fn.Entry, true
}
