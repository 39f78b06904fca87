package controller

import "github.com/ericsun2/hark-lang/value"

// ThreadState is one of the five states a thread occupies (spec.md §3).
type ThreadState int

const (
	Ready ThreadState = iota
	Running
	Waiting
	Finished
	Errored
)

var threadStateNames = map[ThreadState]string{
	Ready:    "ready",
	Running:  "running",
	Waiting:  "waiting",
	Finished: "finished",
	Errored:  "errored",
}

func (s ThreadState) String() string {
	if name, ok := threadStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// ActivationFrame is a snapshot sufficient to resume a suspended call: the
// caller's function, instruction pointer, operand stack, and local bindings
// at the moment a nested Call pushed it. Frames are never
// mutated after capture (spec.md §3).
type ActivationFrame struct {
	ID           int64
	FunctionName string
	ReturnIP     int
	Stack        []value.Value
	Locals       map[value.Symbol]value.Value
	CallerFrame  int64 // ID of the frame below this one, or RootFrame
}

// RootFrame is the sentinel CallerFrame value for a thread's initial call.
const RootFrame int64 = -1

// Thread is one lightweight, independently schedulable interpreter state
// (spec.md §3). Exactly one executor may hold a thread `Running` at a time;
// the controller enforces this via a lease.
type Thread struct {
	ID             int64
	State          ThreadState
	FunctionName   string
	IP             int
	Stack          []value.Value
	Locals         map[value.Symbol]value.Value
	Frames         []ActivationFrame // caller frames, innermost last
	WaitingOn      int64             // future id, valid when State == Waiting
	TerminalFuture int64             // resolved when the thread finishes or errors
	FinishedValue  value.Value
	ErrorReason    *value.RuntimeError
	nextFrameID    int64
}

// Clone returns a deep copy of the thread suitable for handing to an
// executor as a local, mutation-safe snapshot.
func (t *Thread) Clone() *Thread {
	cp := &Thread{
		ID:             t.ID,
		State:          t.State,
		FunctionName:   t.FunctionName,
		IP:             t.IP,
		WaitingOn:      t.WaitingOn,
		TerminalFuture: t.TerminalFuture,
		FinishedValue:  t.FinishedValue,
		ErrorReason:    t.ErrorReason,
		nextFrameID:    t.nextFrameID,
	}
	cp.Stack = append([]value.Value(nil), t.Stack...)
	cp.Locals = make(map[value.Symbol]value.Value, len(t.Locals))
	for k, v := range t.Locals {
		cp.Locals[k] = v
	}
	cp.Frames = append([]ActivationFrame(nil), t.Frames...)
	return cp
}

// NextFrameID mints a fresh activation-frame identifier unique within this
// thread's call chain.
func (t *Thread) NextFrameID() int64 {
	t.nextFrameID++
	return t.nextFrameID
}
