package value

import "strings"

// List is an ordered, immutable sequence of values.
type List struct {
	Items []Value
}

func NewList(items []Value) List {
	cp := make([]Value, len(items))
	copy(cp, items)
	return List{Items: cp}
}

func (l List) Type() TypeCode { return TypeList }

func (l List) String() string {
	parts := make([]string, len(l.Items))
	for i, v := range l.Items {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (l List) Truthy() bool { return len(l.Items) > 0 }

func (l List) Equal(other Value) bool {
	o, ok := other.(List)
	if !ok || len(l.Items) != len(o.Items) {
		return false
	}
	for i, v := range l.Items {
		if !v.Equal(o.Items[i]) {
			return false
		}
	}
	return true
}

// Appended returns a new List with v appended; List is immutable.
func (l List) Appended(v Value) List {
	items := make([]Value, len(l.Items)+1)
	copy(items, l.Items)
	items[len(l.Items)] = v
	return List{Items: items}
}

// Get returns the element at idx (0-based) and whether idx was in range.
func (l List) Get(idx int) (Value, bool) {
	if idx < 0 || idx >= len(l.Items) {
		return nil, false
	}
	return l.Items[idx], true
}

// Record is an immutable mapping from Symbol to Value. Insertion order is
// not significant to equality or lookup, but String() is deterministic by
// insertion order for reproducible traces.
type Record struct {
	keys   []Symbol
	values map[Symbol]Value
}

func NewRecord(pairs []RecordPair) Record {
	keys := make([]Symbol, 0, len(pairs))
	values := make(map[Symbol]Value, len(pairs))
	for _, p := range pairs {
		if _, exists := values[p.Key]; !exists {
			keys = append(keys, p.Key)
		}
		values[p.Key] = p.Val
	}
	return Record{keys: keys, values: values}
}

// RecordPair is a single key/value entry used to build a Record.
type RecordPair struct {
	Key Symbol
	Val Value
}

func (r Record) Type() TypeCode { return TypeRecord }

func (r Record) String() string {
	parts := make([]string, len(r.keys))
	for i, k := range r.keys {
		parts[i] = string(k) + ": " + r.values[k].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (r Record) Truthy() bool { return len(r.keys) > 0 }

func (r Record) Equal(other Value) bool {
	o, ok := other.(Record)
	if !ok || len(r.values) != len(o.values) {
		return false
	}
	for k, v := range r.values {
		ov, exists := o.values[k]
		if !exists || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Get looks up a field by key.
func (r Record) Get(key Symbol) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// With returns a new Record with key set to v; Record is immutable.
func (r Record) With(key Symbol, v Value) Record {
	pairs := make([]RecordPair, 0, len(r.keys)+1)
	for _, k := range r.keys {
		if k == key {
			continue
		}
		pairs = append(pairs, RecordPair{Key: k, Val: r.values[k]})
	}
	pairs = append(pairs, RecordPair{Key: key, Val: v})
	return NewRecord(pairs)
}

// Keys returns the record's keys in insertion order.
func (r Record) Keys() []Symbol {
	out := make([]Symbol, len(r.keys))
	copy(out, r.keys)
	return out
}
