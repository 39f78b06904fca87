package remote

import (
	"fmt"

	"github.com/ericsun2/hark-lang/value"
)

// wireValue is a JSON-safe encoding of a value.Value, tagged by Kind. It
// exists because a real remote store only ever sees bytes on the wire, so a
// checkpoint snapshot must serialize the tagged union explicitly rather than
// relying on the interface's concrete Go type (spec.md §6 persisted state
// layout: threads and futures are data, not live objects).
type wireValue struct {
	Kind  string      `json:"kind"`
	Int   int64       `json:"int,omitempty"`
	Float float64     `json:"float,omitempty"`
	Bool  bool        `json:"bool,omitempty"`
	Str   string      `json:"str,omitempty"`
	Name  string      `json:"name,omitempty"`
	Arity int         `json:"arity,omitempty"`
	ID    int64       `json:"id,omitempty"`
	Items []wireValue `json:"items,omitempty"`
	Keys  []string    `json:"keys,omitempty"`
	Code  int         `json:"code,omitempty"`
	Reason string     `json:"reason,omitempty"`
}

func encodeValue(v value.Value) (wireValue, error) {
	switch n := v.(type) {
	case value.Integer:
		return wireValue{Kind: "int", Int: n.Val}, nil
	case value.Float:
		return wireValue{Kind: "float", Float: n.Val}, nil
	case value.Boolean:
		return wireValue{Kind: "bool", Bool: n.Val}, nil
	case value.Str:
		return wireValue{Kind: "str", Str: n.Val}, nil
	case value.SymbolValue:
		return wireValue{Kind: "symbol", Str: string(n.Val)}, nil
	case value.Null:
		return wireValue{Kind: "null"}, nil
	case value.FunctionRef:
		return wireValue{Kind: "function_ref", Name: n.Name, Arity: n.Arity}, nil
	case value.ForeignRef:
		return wireValue{Kind: "foreign_ref", Name: n.Name, Arity: n.Arity}, nil
	case value.FutureRef:
		return wireValue{Kind: "future_ref", ID: n.ID}, nil
	case value.ErrorValue:
		return wireValue{Kind: "error", Code: int(n.Code), Reason: n.Reason}, nil
	case value.List:
		items := make([]wireValue, len(n.Items))
		for i, item := range n.Items {
			w, err := encodeValue(item)
			if err != nil {
				return wireValue{}, err
			}
			items[i] = w
		}
		return wireValue{Kind: "list", Items: items}, nil
	case value.Record:
		keys := n.Keys()
		items := make([]wireValue, len(keys))
		names := make([]string, len(keys))
		for i, k := range keys {
			val, _ := n.Get(k)
			w, err := encodeValue(val)
			if err != nil {
				return wireValue{}, err
			}
			items[i] = w
			names[i] = string(k)
		}
		return wireValue{Kind: "record", Keys: names, Items: items}, nil
	case nil:
		return wireValue{Kind: "null"}, nil
	default:
		return wireValue{}, fmt.Errorf("remote: cannot encode value of type %T", v)
	}
}

func decodeValue(w wireValue) (value.Value, error) {
	switch w.Kind {
	case "int":
		return value.NewInt(w.Int), nil
	case "float":
		return value.NewFloat(w.Float), nil
	case "bool":
		return value.NewBool(w.Bool), nil
	case "str":
		return value.NewString(w.Str), nil
	case "symbol":
		return value.NewSymbol(value.Symbol(w.Str)), nil
	case "null", "":
		return value.Null{}, nil
	case "function_ref":
		return value.NewFunctionRef(w.Name, w.Arity), nil
	case "foreign_ref":
		return value.NewForeignRef(w.Name, w.Arity), nil
	case "future_ref":
		return value.NewFutureRef(w.ID), nil
	case "error":
		return value.NewError(value.ErrorCode(w.Code), w.Reason), nil
	case "list":
		items := make([]value.Value, len(w.Items))
		for i, iw := range w.Items {
			v, err := decodeValue(iw)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return value.NewList(items), nil
	case "record":
		pairs := make([]value.RecordPair, len(w.Items))
		for i, iw := range w.Items {
			v, err := decodeValue(iw)
			if err != nil {
				return nil, err
			}
			key := ""
			if i < len(w.Keys) {
				key = w.Keys[i]
			}
			pairs[i] = value.RecordPair{Key: value.Symbol(key), Val: v}
		}
		return value.NewRecord(pairs), nil
	default:
		return nil, fmt.Errorf("remote: cannot decode unknown value kind %q", w.Kind)
	}
}

func encodeValues(vs []value.Value) ([]wireValue, error) {
	out := make([]wireValue, len(vs))
	for i, v := range vs {
		w, err := encodeValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

func decodeValues(ws []wireValue) ([]value.Value, error) {
	out := make([]value.Value, len(ws))
	for i, w := range ws {
		v, err := decodeValue(w)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
