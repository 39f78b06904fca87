// Package compiler lowers an ast.Program into a code.CodeModel: a flat
// instruction stream plus the symbol tables the controller and executor
// share (spec.md §4.1, §6). Compilation is a single pass per function body;
// the only two-pass feature is If, whose jump targets are patched once the
// branch lengths are known.
package compiler

import (
	"fmt"

	"github.com/ericsun2/hark-lang/ast"
	"github.com/ericsun2/hark-lang/code"
	"github.com/ericsun2/hark-lang/value"
)

type scope struct {
	locals map[string]bool
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{locals: make(map[string]bool), parent: parent}
}

func (s *scope) has(name string) bool {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.locals[name] {
			return true
		}
	}
	return false
}

// compiler accumulates the shared instruction stream, constant pool, and
// name pool across every function in a Program.
type compiler struct {
	model     *code.CodeModel
	nameIndex map[string]int
	functions map[string]bool // declared local function names
	foreigns  map[string]bool // declared import names
}

// Compile lowers prog into an immutable CodeModel, or returns an error
// describing the first static violation found: UndefinedFunction for an
// undefined callee, MalformedCode for async applied to a foreign binding.
func Compile(prog *ast.Program) (*code.CodeModel, error) {
	c := &compiler{
		model:     code.NewCodeModel(),
		nameIndex: make(map[string]int),
		functions: make(map[string]bool),
		foreigns:  make(map[string]bool),
	}

	for _, imp := range prog.Imports {
		c.foreigns[imp.Name] = true
		c.model.Foreigns[imp.Name] = code.ForeignEntry{Target: imp.ForeignTarget, Arity: imp.Arity}
	}
	for _, fn := range prog.Functions {
		if c.foreigns[fn.Name] {
			return nil, value.NewRuntimeError(value.MalformedCode, fmt.Sprintf("%s declared as both function and import", fn.Name))
		}
		c.functions[fn.Name] = true
	}

	for _, fn := range prog.Functions {
		entry := len(c.model.Instructions)
		top := newScope(nil)
		for _, p := range fn.Params {
			top.locals[p] = true
		}
		if err := c.compileNode(fn.Body, top); err != nil {
			return nil, err
		}
		c.emit(code.OpReturn, 0)
		c.model.Functions[fn.Name] = code.FunctionEntry{
			Entry:  entry,
			Arity:  len(fn.Params),
			Params: append([]string(nil), fn.Params...),
		}
	}

	return c.model, nil
}

func (c *compiler) emit(op code.OpCode, operand int) int {
	c.model.Instructions = append(c.model.Instructions, code.Instruction{Op: op, Operand: operand})
	return len(c.model.Instructions) - 1
}

func (c *compiler) patch(at int, target int) {
	c.model.Instructions[at].Operand = target
}

func (c *compiler) internName(name string) int {
	if idx, ok := c.nameIndex[name]; ok {
		return idx
	}
	idx := len(c.model.Names)
	c.model.Names = append(c.model.Names, name)
	c.nameIndex[name] = idx
	return idx
}

func (c *compiler) internConst(v value.Value) int {
	idx := len(c.model.Constants)
	c.model.Constants = append(c.model.Constants, v)
	return idx
}

func (c *compiler) compileNode(n ast.Node, sc *scope) error {
	switch node := n.(type) {
	case *ast.Literal:
		c.emit(code.OpPushL, c.internConst(node.Value))
		return nil

	case *ast.Var:
		c.emit(code.OpPushV, c.internName(node.Name))
		return nil

	case *ast.Let:
		if err := c.compileNode(node.Value, sc); err != nil {
			return err
		}
		c.emit(code.OpBind, c.internName(node.Name))
		inner := newScope(sc)
		inner.locals[node.Name] = true
		return c.compileNode(node.Body, inner)

	case *ast.If:
		if err := c.compileNode(node.Cond, sc); err != nil {
			return err
		}
		jumpIfNot := c.emit(code.OpJumpIfNot, 0)
		if err := c.compileNode(node.Then, sc); err != nil {
			return err
		}
		jumpEnd := c.emit(code.OpJump, 0)
		c.patch(jumpIfNot, len(c.model.Instructions))
		if err := c.compileNode(node.Else, sc); err != nil {
			return err
		}
		c.patch(jumpEnd, len(c.model.Instructions))
		return nil

	case *ast.Call:
		return c.compileCall(node.Callee, node.Args, sc, false)

	case *ast.AsyncCall:
		return c.compileCall(node.Callee, node.Args, sc, true)

	case *ast.Await:
		if err := c.compileNode(node.Value, sc); err != nil {
			return err
		}
		c.emit(code.OpWait, 0)
		return nil

	case *ast.Primitive:
		return c.compilePrimitive(node, sc)

	default:
		return value.NewRuntimeError(value.MalformedCode, fmt.Sprintf("unknown node type %T", n))
	}
}

func (c *compiler) compileCall(callee string, args []ast.Node, sc *scope, async bool) error {
	isLocal := c.functions[callee]
	isForeign := c.foreigns[callee]

	if !isLocal && !isForeign {
		return value.NewRuntimeError(value.UndefinedFunction, callee)
	}
	if async && isForeign {
		return value.NewRuntimeError(value.MalformedCode, fmt.Sprintf("async applied to foreign binding %q", callee))
	}

	c.emit(code.OpPushV, c.internName(callee))
	for _, arg := range args {
		if err := c.compileNode(arg, sc); err != nil {
			return err
		}
	}

	switch {
	case async:
		c.emit(code.OpACall, len(args))
	case isForeign:
		c.emit(code.OpCallF, len(args))
	default:
		c.emit(code.OpCall, len(args))
	}
	return nil
}

var primitiveOpcodes = map[ast.PrimitiveOp]code.OpCode{
	ast.OpAdd:  code.OpAdd,
	ast.OpSub:  code.OpSub,
	ast.OpMul:  code.OpMul,
	ast.OpDiv:  code.OpDiv,
	ast.OpNeg:  code.OpNeg,
	ast.OpEq:   code.OpEq,
	ast.OpLt:   code.OpLt,
	ast.OpGt:   code.OpGt,
	ast.OpAnd:  code.OpAnd,
	ast.OpOr:   code.OpOr,
	ast.OpNot:  code.OpNot,
	ast.OpPrint: code.OpPrint,
}

func (c *compiler) compilePrimitive(node *ast.Primitive, sc *scope) error {
	switch node.Op {
	case ast.OpListNew:
		for _, a := range node.Args {
			if err := c.compileNode(a, sc); err != nil {
				return err
			}
		}
		c.emit(code.OpListNew, len(node.Args))
		return nil

	case ast.OpListGet:
		if len(node.Args) != 2 {
			return value.NewRuntimeError(value.MalformedCode, "list_get expects (list, index)")
		}
		if err := c.compileNode(node.Args[0], sc); err != nil {
			return err
		}
		if err := c.compileNode(node.Args[1], sc); err != nil {
			return err
		}
		c.emit(code.OpListGet, 0)
		return nil

	case ast.OpRecordNew:
		if len(node.Keys) != len(node.Args) {
			return value.NewRuntimeError(value.MalformedCode, "record_new keys/args length mismatch")
		}
		for i, a := range node.Args {
			c.emit(code.OpPushL, c.internConst(value.NewSymbol(value.Symbol(node.Keys[i]))))
			if err := c.compileNode(a, sc); err != nil {
				return err
			}
		}
		c.emit(code.OpRecordNew, len(node.Args))
		return nil

	case ast.OpRecordGet:
		if len(node.Args) != 2 {
			return value.NewRuntimeError(value.MalformedCode, "record_get expects (record, key)")
		}
		if err := c.compileNode(node.Args[0], sc); err != nil {
			return err
		}
		if err := c.compileNode(node.Args[1], sc); err != nil {
			return err
		}
		c.emit(code.OpRecordGet, 0)
		return nil

	default:
		op, ok := primitiveOpcodes[node.Op]
		if !ok {
			return value.NewRuntimeError(value.MalformedCode, fmt.Sprintf("unknown primitive op %q", node.Op))
		}
		for _, a := range node.Args {
			if err := c.compileNode(a, sc); err != nil {
				return err
			}
		}
		c.emit(op, 0)
		return nil
	}
}
