package controller

import "github.com/ericsun2/hark-lang/value"

// Future is a write-once cell referenced by identifier, produced by async
// and consumed by await (spec.md §3). It transitions exactly once from
// unresolved to resolved; a second resolution is a DoubleResolve error.
type Future struct {
	ID       int64
	Resolved bool
	Value    value.Value
	Chain    []int64 // threads blocked awaiting this future
}

// Clone returns a copy safe for a caller to inspect without racing the
// controller's own mutations.
func (f *Future) Clone() *Future {
	cp := &Future{ID: f.ID, Resolved: f.Resolved, Value: f.Value}
	cp.Chain = append([]int64(nil), f.Chain...)
	return cp
}
