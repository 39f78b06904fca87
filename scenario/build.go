package scenario

import (
	"fmt"

	"github.com/ericsun2/hark-lang/ast"
	"github.com/ericsun2/hark-lang/value"
)

// toValue converts a ValueSpec into a concrete value.Value. Exactly one
// field of spec is expected to be set; Null (or an entirely empty spec)
// yields value.Null{}.
func toValue(spec ValueSpec) value.Value {
	switch {
	case spec.Int != nil:
		return value.NewInt(*spec.Int)
	case spec.Float != nil:
		return value.NewFloat(*spec.Float)
	case spec.Bool != nil:
		return value.NewBool(*spec.Bool)
	case spec.Str != nil:
		return value.NewString(*spec.Str)
	default:
		return value.Null{}
	}
}

// BuildProgram builds an ast.Program from a ProgramSpec, exported so hosts
// like cmd/hark can load a YAML-described program without duplicating the
// decoding this package already does for fixtures.
func BuildProgram(spec ProgramSpec) (*ast.Program, error) {
	return toProgram(spec)
}

// BuildValue converts a ValueSpec into a value.Value, exported for the same
// reason as BuildProgram.
func BuildValue(spec ValueSpec) value.Value {
	return toValue(spec)
}

// toProgram builds an ast.Program from a ProgramSpec.
func toProgram(spec ProgramSpec) (*ast.Program, error) {
	prog := &ast.Program{}
	for _, imp := range spec.Imports {
		prog.Imports = append(prog.Imports, ast.Import{
			Name:          imp.Name,
			ForeignTarget: imp.ForeignTarget,
			Arity:         imp.Arity,
		})
	}
	for _, fn := range spec.Functions {
		body, err := toNode(fn.Body)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", fn.Name, err)
		}
		prog.Functions = append(prog.Functions, ast.FunctionDef{
			Name:   fn.Name,
			Params: append([]string(nil), fn.Params...),
			Body:   body,
		})
	}
	return prog, nil
}

// toNode recursively converts an ExprSpec into an ast.Node.
func toNode(spec ExprSpec) (ast.Node, error) {
	switch spec.Kind {
	case "int":
		if spec.Int == nil {
			return nil, fmt.Errorf("kind int requires int field")
		}
		return &ast.Literal{Value: value.NewInt(*spec.Int)}, nil
	case "float":
		if spec.Float == nil {
			return nil, fmt.Errorf("kind float requires float field")
		}
		return &ast.Literal{Value: value.NewFloat(*spec.Float)}, nil
	case "bool":
		if spec.Bool == nil {
			return nil, fmt.Errorf("kind bool requires bool field")
		}
		return &ast.Literal{Value: value.NewBool(*spec.Bool)}, nil
	case "str":
		if spec.Str == nil {
			return nil, fmt.Errorf("kind str requires str field")
		}
		return &ast.Literal{Value: value.NewString(*spec.Str)}, nil
	case "null":
		return &ast.Literal{Value: value.Null{}}, nil
	case "var":
		if spec.Name == "" {
			return nil, fmt.Errorf("kind var requires name")
		}
		return &ast.Var{Name: spec.Name}, nil
	case "let":
		if spec.Value == nil || spec.Body == nil {
			return nil, fmt.Errorf("kind let requires value and body")
		}
		val, err := toNode(*spec.Value)
		if err != nil {
			return nil, err
		}
		body, err := toNode(*spec.Body)
		if err != nil {
			return nil, err
		}
		return &ast.Let{Name: spec.Name, Value: val, Body: body}, nil
	case "if":
		if spec.Cond == nil || spec.Then == nil || spec.Else == nil {
			return nil, fmt.Errorf("kind if requires cond, then, else")
		}
		cond, err := toNode(*spec.Cond)
		if err != nil {
			return nil, err
		}
		then, err := toNode(*spec.Then)
		if err != nil {
			return nil, err
		}
		els, err := toNode(*spec.Else)
		if err != nil {
			return nil, err
		}
		return &ast.If{Cond: cond, Then: then, Else: els}, nil
	case "call", "async_call":
		args, err := toNodes(spec.Args)
		if err != nil {
			return nil, err
		}
		if spec.Kind == "async_call" {
			return &ast.AsyncCall{Callee: spec.Callee, Args: args}, nil
		}
		return &ast.Call{Callee: spec.Callee, Args: args}, nil
	case "await":
		if spec.Await == nil {
			return nil, fmt.Errorf("kind await requires await field")
		}
		inner, err := toNode(*spec.Await)
		if err != nil {
			return nil, err
		}
		return &ast.Await{Value: inner}, nil
	case "primitive":
		args, err := toNodes(spec.Args)
		if err != nil {
			return nil, err
		}
		return &ast.Primitive{Op: ast.PrimitiveOp(spec.Op), Args: args, Keys: spec.Keys}, nil
	default:
		return nil, fmt.Errorf("unknown expr kind %q", spec.Kind)
	}
}

func toNodes(specs []ExprSpec) ([]ast.Node, error) {
	nodes := make([]ast.Node, len(specs))
	for i, s := range specs {
		n, err := toNode(s)
		if err != nil {
			return nil, err
		}
		nodes[i] = n
	}
	return nodes, nil
}
