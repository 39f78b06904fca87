package compiler

import (
	"testing"

	"github.com/ericsun2/hark-lang/ast"
	"github.com/ericsun2/hark-lang/code"
	"github.com/ericsun2/hark-lang/value"
)

func TestCompileSimpleFunction(t *testing.T) {
	prog := &ast.Program{
		Functions: []ast.FunctionDef{
			{Name: "add_one", Params: []string{"x"}, Body: &ast.Primitive{
				Op:   ast.OpAdd,
				Args: []ast.Node{&ast.Var{Name: "x"}, &ast.Literal{Value: value.NewInt(1)}},
			}},
		},
	}

	model, err := Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	fn, ok := model.Functions["add_one"]
	if !ok {
		t.Fatal("add_one missing from symbol table")
	}
	if fn.Arity != 1 || len(fn.Params) != 1 || fn.Params[0] != "x" {
		t.Fatalf("unexpected function entry: %+v", fn)
	}

	ops := opSequence(model, fn.Entry)
	want := []code.OpCode{code.OpPushV, code.OpPushL, code.OpAdd, code.OpReturn}
	assertOps(t, ops, want)
}

func TestCompileCallResolvesLocalVsForeign(t *testing.T) {
	prog := &ast.Program{
		Imports: []ast.Import{{Name: "log", ForeignTarget: "stdhost.log", Arity: 1}},
		Functions: []ast.FunctionDef{
			{Name: "helper", Params: nil, Body: &ast.Literal{Value: value.NewInt(0)}},
			{Name: "main", Params: nil, Body: &ast.Call{Callee: "helper", Args: nil}},
			{Name: "logs", Params: nil, Body: &ast.Call{Callee: "log", Args: []ast.Node{&ast.Literal{Value: value.NewString("hi")}}}},
		},
	}

	model, err := Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	mainFn := model.Functions["main"]
	ops := opSequence(model, mainFn.Entry)
	assertOps(t, ops, []code.OpCode{code.OpPushV, code.OpCall, code.OpReturn})

	logsFn := model.Functions["logs"]
	ops = opSequence(model, logsFn.Entry)
	assertOps(t, ops, []code.OpCode{code.OpPushV, code.OpPushL, code.OpCallF, code.OpReturn})
}

func TestCompileRejectsAsyncOfForeign(t *testing.T) {
	prog := &ast.Program{
		Imports: []ast.Import{{Name: "log", ForeignTarget: "stdhost.log", Arity: 1}},
		Functions: []ast.FunctionDef{
			{Name: "main", Params: nil, Body: &ast.AsyncCall{Callee: "log", Args: []ast.Node{&ast.Literal{Value: value.NewInt(1)}}}},
		},
	}

	_, err := Compile(prog)
	if err == nil {
		t.Fatal("expected compile error for async of foreign binding")
	}
	rerr, ok := err.(*value.RuntimeError)
	if !ok || rerr.Code != value.MalformedCode {
		t.Fatalf("expected MalformedCode, got %v", err)
	}
}

func TestCompileRejectsUndefinedCallee(t *testing.T) {
	prog := &ast.Program{
		Functions: []ast.FunctionDef{
			{Name: "main", Params: nil, Body: &ast.Call{Callee: "nope", Args: nil}},
		},
	}

	_, err := Compile(prog)
	if err == nil {
		t.Fatal("expected compile error for undefined callee")
	}
	rerr, ok := err.(*value.RuntimeError)
	if !ok || rerr.Code != value.UndefinedFunction {
		t.Fatalf("expected UndefinedFunction, got %v", err)
	}
}

func TestCompileIfPatchesBothBranches(t *testing.T) {
	prog := &ast.Program{
		Functions: []ast.FunctionDef{
			{Name: "choose", Params: []string{"c"}, Body: &ast.If{
				Cond: &ast.Var{Name: "c"},
				Then: &ast.Literal{Value: value.NewInt(1)},
				Else: &ast.Literal{Value: value.NewInt(2)},
			}},
		},
	}

	model, err := Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	fn := model.Functions["choose"]
	ops := opSequence(model, fn.Entry)
	assertOps(t, ops, []code.OpCode{code.OpPushV, code.OpJumpIfNot, code.OpPushL, code.OpJump, code.OpPushL, code.OpReturn})

	jumpIfNot := model.Instructions[fn.Entry+1]
	if jumpIfNot.Operand != fn.Entry+4 {
		t.Fatalf("JumpIfNot should target the else branch at %d, got %d", fn.Entry+4, jumpIfNot.Operand)
	}
	jumpEnd := model.Instructions[fn.Entry+3]
	if jumpEnd.Operand != fn.Entry+5 {
		t.Fatalf("Jump should target the return at %d, got %d", fn.Entry+5, jumpEnd.Operand)
	}
}

func TestCompileRecordNewEmitsKeyValuePairs(t *testing.T) {
	prog := &ast.Program{
		Functions: []ast.FunctionDef{
			{Name: "mk", Params: nil, Body: &ast.Primitive{
				Op:   ast.OpRecordNew,
				Args: []ast.Node{&ast.Literal{Value: value.NewInt(1)}},
				Keys: []string{"x"},
			}},
		},
	}

	model, err := Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	fn := model.Functions["mk"]
	ops := opSequence(model, fn.Entry)
	assertOps(t, ops, []code.OpCode{code.OpPushL, code.OpPushL, code.OpRecordNew, code.OpReturn})

	keyConstIdx := model.Instructions[fn.Entry].Operand
	sym, ok := model.Constants[keyConstIdx].(value.SymbolValue)
	if !ok || sym.Val != "x" {
		t.Fatalf("expected key constant symbol x, got %v", model.Constants[keyConstIdx])
	}
}

func opSequence(model *code.CodeModel, from int) []code.OpCode {
	var ops []code.OpCode
	for i := from; i < len(model.Instructions); i++ {
		ops = append(ops, model.Instructions[i].Op)
		if model.Instructions[i].Op == code.OpReturn {
			break
		}
	}
	return ops
}

func assertOps(t *testing.T, got []code.OpCode, want []code.OpCode) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("opcode count mismatch: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("opcode %d: got %s want %s (full got=%v want=%v)", i, got[i], want[i], got, want)
		}
	}
}
