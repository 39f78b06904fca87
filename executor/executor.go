// Package executor advances one leased thread at a time through the
// instruction stream: the Thread Step of spec.md §4.5. An executor owns no
// state of its own beyond its step budget and its collaborators (the data
// controller and the foreign bridge); any number of executors can run
// concurrently against the same controller (spec.md §4.6).
//
// Grounded on the teacher's vm.VM.executeLoop/Step pair: a tick-budget-
// bounded fetch/decode/execute loop over a flat instruction stream and an
// explicit call-frame stack, generalized from MOO verb frames to Hark
// activation frames.
package executor

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ericsun2/hark-lang/code"
	"github.com/ericsun2/hark-lang/controller"
	"github.com/ericsun2/hark-lang/foreign"
	"github.com/ericsun2/hark-lang/trace"
	"github.com/ericsun2/hark-lang/value"

	"golang.org/x/crypto/ripemd160"
)

// DefaultStepBudget bounds how many instructions a single lease executes
// before yielding the thread back to Ready, so one executor cannot starve
// others even on a non-suspending, non-terminating program (spec.md §4.6
// "Cancellation and timeouts").
const DefaultStepBudget = 10000

// Executor runs the fetch/decode/execute loop for threads it leases from a
// Controller, dispatching CallF instructions through a Bridge.
type Executor struct {
	Controller  controller.Controller
	Bridge      foreign.Bridge
	StepBudget  int
	LeaseTimeout time.Duration
}

// New returns an Executor with the given collaborators and default budget
// and lease timeout.
func New(ctrl controller.Controller, bridge foreign.Bridge) *Executor {
	return &Executor{
		Controller:   ctrl,
		Bridge:       bridge,
		StepBudget:   DefaultStepBudget,
		LeaseTimeout: 5 * time.Second,
	}
}

// RunOnce leases one ready thread (if any), steps it, and commits the
// result. It returns ran=false when there was nothing ready to lease.
func (e *Executor) RunOnce(ctx context.Context) (ran bool, err error) {
	leased, ok, err := e.Controller.LeaseReady(ctx, e.LeaseTimeout)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	model, err := e.Controller.GetCode(ctx)
	if err != nil {
		return false, err
	}

	thread := leased.Snapshot
	var outbox controller.Outbox
	e.run(ctx, model, thread, &outbox)

	switch thread.State {
	case controller.Finished:
		trace.Thread("finished", thread.ID, thread.FinishedValue.String())
		outbox.Resolutions = append(outbox.Resolutions, controller.Resolution{
			FutureID: thread.TerminalFuture, Value: thread.FinishedValue,
		})
	case controller.Errored:
		trace.Exception(thread.ID, thread.FunctionName, thread.ErrorReason.Code)
		outbox.Resolutions = append(outbox.Resolutions, controller.Resolution{
			FutureID: thread.TerminalFuture, Value: thread.ErrorReason.AsErrorValue(),
		})
	}

	token := stepToken(thread)
	if err := e.Controller.CommitStep(ctx, token, leased.LeaseToken, thread, outbox); err != nil {
		return false, err
	}
	return true, nil
}

// RunAndDiscard leases and steps a thread exactly like RunOnce but never
// calls CommitStep, modeling a dispatched step whose result never made it
// back to the controller. The thread's lease is left to expire naturally
// and lease_ready reclaims it for another executor; any side effects
// computed here (the local snapshot and outbox) are simply dropped, since
// nothing but CommitStep can make them visible.
func (e *Executor) RunAndDiscard(ctx context.Context) (ran bool, err error) {
	leased, ok, err := e.Controller.LeaseReady(ctx, e.LeaseTimeout)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	model, err := e.Controller.GetCode(ctx)
	if err != nil {
		return false, err
	}
	var outbox controller.Outbox
	e.run(ctx, model, leased.Snapshot, &outbox)
	return true, nil
}

// stepToken derives a stable idempotency fingerprint from a thread's
// post-step snapshot, used so a retried commit_step after a dropped
// response is recognized as the same step rather than reapplied (spec.md
// P5). A content hash (rather than a random token) means genuinely
// identical retries collapse to the same token even if the executor itself
// forgot it already tried.
func stepToken(t *controller.Thread) string {
	h := ripemd160.New()
	fmt.Fprintf(h, "%d|%s|%d|%d|%v", t.ID, t.State, t.IP, len(t.Frames), t.Stack)
	return hex.EncodeToString(h.Sum(nil))
}

// run executes instructions from thread.IP until the thread suspends
// (Wait on an unresolved future), finishes (Return from the root frame),
// errors, or exhausts its step budget — whichever comes first. It mutates
// thread in place and appends a NewThreadRequest to outbox for each ACall.
func (e *Executor) run(ctx context.Context, model *code.CodeModel, thread *controller.Thread, outbox *controller.Outbox) {
	for i := 0; i < e.StepBudget; i++ {
		if thread.IP < 0 || thread.IP >= len(model.Instructions) {
			e.fail(thread, value.MalformedCode, "instruction pointer out of range")
			return
		}
		instr := model.Instructions[thread.IP]

		if done := e.execute(ctx, model, thread, outbox, instr); done {
			return
		}
	}
	// Budget exhausted mid-flight: leave the thread Running's work undone
	// but the state Ready so lease_ready can hand it to another executor.
	thread.State = controller.Ready
}

// execute dispatches a single instruction. It returns true once the thread
// has reached a terminal state (Finished/Errored) or suspended (Waiting) —
// in every such case the run loop must stop without advancing further.
func (e *Executor) execute(ctx context.Context, model *code.CodeModel, thread *controller.Thread, outbox *controller.Outbox, instr code.Instruction) bool {
	switch instr.Op {
	case code.OpPushV:
		name := model.Names[instr.Operand]
		if v, ok := thread.Locals[value.Symbol(name)]; ok {
			thread.Stack = append(thread.Stack, v)
		} else if v, ok := model.Lookup(name); ok {
			thread.Stack = append(thread.Stack, v)
		} else {
			e.fail(thread, value.UnboundName, name)
			return true
		}
		thread.IP++

	case code.OpPushL:
		thread.Stack = append(thread.Stack, model.Constants[instr.Operand])
		thread.IP++

	case code.OpBind:
		name := model.Names[instr.Operand]
		v, ok := e.pop(thread)
		if !ok {
			return true
		}
		thread.Locals[value.Symbol(name)] = v
		thread.IP++

	case code.OpPop:
		if _, ok := e.pop(thread); !ok {
			return true
		}
		thread.IP++

	case code.OpJump:
		thread.IP = instr.Operand

	case code.OpJumpIfNot:
		v, ok := e.pop(thread)
		if !ok {
			return true
		}
		if v.Truthy() {
			thread.IP++
		} else {
			thread.IP = instr.Operand
		}

	case code.OpReturn:
		return e.doReturn(thread)

	case code.OpCall:
		return e.doCall(thread, model, instr.Operand)

	case code.OpCallF:
		return e.doCallF(ctx, thread, model, instr.Operand)

	case code.OpACall:
		return e.doACall(ctx, thread, model, outbox, instr.Operand)

	case code.OpWait:
		return e.doWait(ctx, thread, outbox)

	case code.OpPrint:
		v, ok := e.pop(thread)
		if !ok {
			return true
		}
		trace.Print(thread.ID, v.String())
		fmt.Println(v.String())
		thread.Stack = append(thread.Stack, value.Null{})
		thread.IP++

	default:
		return e.execPrimitive(thread, instr)
	}
	return false
}

func (e *Executor) execPrimitive(thread *controller.Thread, instr code.Instruction) bool {
	switch instr.Op {
	case code.OpAdd, code.OpSub, code.OpMul, code.OpDiv, code.OpLt, code.OpGt:
		return e.binaryArith(thread, instr.Op)
	case code.OpNeg:
		return e.unaryNeg(thread)
	case code.OpEq:
		b, ok := e.pop(thread)
		if !ok {
			return true
		}
		a, ok := e.pop(thread)
		if !ok {
			return true
		}
		thread.Stack = append(thread.Stack, value.NewBool(a.Equal(b)))
		thread.IP++
		return false
	case code.OpAnd, code.OpOr:
		b, ok := e.pop(thread)
		if !ok {
			return true
		}
		a, ok := e.pop(thread)
		if !ok {
			return true
		}
		var result bool
		if instr.Op == code.OpAnd {
			result = a.Truthy() && b.Truthy()
		} else {
			result = a.Truthy() || b.Truthy()
		}
		thread.Stack = append(thread.Stack, value.NewBool(result))
		thread.IP++
		return false
	case code.OpNot:
		a, ok := e.pop(thread)
		if !ok {
			return true
		}
		thread.Stack = append(thread.Stack, value.NewBool(!a.Truthy()))
		thread.IP++
		return false
	case code.OpListNew:
		return e.doListNew(thread, instr.Operand)
	case code.OpListGet:
		return e.doListGet(thread)
	case code.OpRecordNew:
		return e.doRecordNew(thread, instr.Operand)
	case code.OpRecordGet:
		return e.doRecordGet(thread)
	default:
		e.fail(thread, value.MalformedCode, fmt.Sprintf("unknown opcode %s", instr.Op))
		return true
	}
}

func (e *Executor) pop(thread *controller.Thread) (value.Value, bool) {
	n := len(thread.Stack)
	if n == 0 {
		e.fail(thread, value.MalformedCode, "stack underflow")
		return nil, false
	}
	v := thread.Stack[n-1]
	thread.Stack = thread.Stack[:n-1]
	return v, true
}

func (e *Executor) fail(thread *controller.Thread, errCode value.ErrorCode, reason string) {
	thread.State = controller.Errored
	thread.ErrorReason = value.NewRuntimeError(errCode, reason)
}

func asNumber(v value.Value) (float64, bool, bool) {
	switch n := v.(type) {
	case value.Integer:
		return float64(n.Val), true, true
	case value.Float:
		return n.Val, false, true
	default:
		return 0, false, false
	}
}

func (e *Executor) binaryArith(thread *controller.Thread, op code.OpCode) bool {
	b, ok := e.pop(thread)
	if !ok {
		return true
	}
	a, ok := e.pop(thread)
	if !ok {
		return true
	}

	af, aInt, aOK := asNumber(a)
	bf, bInt, bOK := asNumber(b)
	if !aOK || !bOK {
		e.fail(thread, value.TypeMismatch, "arithmetic on non-numeric operand")
		return true
	}

	bothInt := aInt && bInt
	var result value.Value
	switch op {
	case code.OpAdd:
		result = numResult(af+bf, bothInt)
	case code.OpSub:
		result = numResult(af-bf, bothInt)
	case code.OpMul:
		result = numResult(af*bf, bothInt)
	case code.OpDiv:
		if bf == 0 {
			e.fail(thread, value.DivisionByZero, "")
			return true
		}
		result = numResult(af/bf, bothInt && isExactDiv(af, bf))
	case code.OpLt:
		result = value.NewBool(af < bf)
	case code.OpGt:
		result = value.NewBool(af > bf)
	}
	thread.Stack = append(thread.Stack, result)
	thread.IP++
	return false
}

func isExactDiv(a, b float64) bool {
	if b == 0 {
		return false
	}
	q := a / b
	return q == float64(int64(q))
}

func numResult(f float64, asInt bool) value.Value {
	if asInt {
		return value.NewInt(int64(f))
	}
	return value.NewFloat(f)
}

func (e *Executor) unaryNeg(thread *controller.Thread) bool {
	a, ok := e.pop(thread)
	if !ok {
		return true
	}
	switch n := a.(type) {
	case value.Integer:
		thread.Stack = append(thread.Stack, value.NewInt(-n.Val))
	case value.Float:
		thread.Stack = append(thread.Stack, value.NewFloat(-n.Val))
	default:
		e.fail(thread, value.TypeMismatch, "negation of non-numeric operand")
		return true
	}
	thread.IP++
	return false
}

func (e *Executor) doListNew(thread *controller.Thread, n int) bool {
	items := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		v, ok := e.pop(thread)
		if !ok {
			return true
		}
		items[i] = v
	}
	thread.Stack = append(thread.Stack, value.NewList(items))
	thread.IP++
	return false
}

func (e *Executor) doListGet(thread *controller.Thread) bool {
	idxV, ok := e.pop(thread)
	if !ok {
		return true
	}
	listV, ok := e.pop(thread)
	if !ok {
		return true
	}
	idx, ok := idxV.(value.Integer)
	if !ok {
		e.fail(thread, value.TypeMismatch, "list_get index must be Integer")
		return true
	}
	list, ok := listV.(value.List)
	if !ok {
		e.fail(thread, value.TypeMismatch, "list_get target must be List")
		return true
	}
	v, inRange := list.Get(int(idx.Val))
	if !inRange {
		e.fail(thread, value.TypeMismatch, "list_get index out of range")
		return true
	}
	thread.Stack = append(thread.Stack, v)
	thread.IP++
	return false
}

func (e *Executor) doRecordNew(thread *controller.Thread, nPairs int) bool {
	pairs := make([]value.RecordPair, nPairs)
	for i := nPairs - 1; i >= 0; i-- {
		v, ok := e.pop(thread)
		if !ok {
			return true
		}
		k, ok := e.pop(thread)
		if !ok {
			return true
		}
		sym, ok := k.(value.SymbolValue)
		if !ok {
			e.fail(thread, value.TypeMismatch, "record_new key must be Symbol")
			return true
		}
		pairs[i] = value.RecordPair{Key: sym.Val, Val: v}
	}
	thread.Stack = append(thread.Stack, value.NewRecord(pairs))
	thread.IP++
	return false
}

func (e *Executor) doRecordGet(thread *controller.Thread) bool {
	keyV, ok := e.pop(thread)
	if !ok {
		return true
	}
	recV, ok := e.pop(thread)
	if !ok {
		return true
	}
	sym, ok := keyV.(value.SymbolValue)
	if !ok {
		e.fail(thread, value.TypeMismatch, "record_get key must be Symbol")
		return true
	}
	rec, ok := recV.(value.Record)
	if !ok {
		e.fail(thread, value.TypeMismatch, "record_get target must be Record")
		return true
	}
	v, present := rec.Get(sym.Val)
	if !present {
		e.fail(thread, value.UnboundName, string(sym.Val))
		return true
	}
	thread.Stack = append(thread.Stack, v)
	thread.IP++
	return false
}

func (e *Executor) doCall(thread *controller.Thread, model *code.CodeModel, n int) bool {
	args, calleeV, ok := e.popCallSite(thread, n)
	if !ok {
		return true
	}
	ref, ok := calleeV.(value.FunctionRef)
	if !ok {
		e.fail(thread, value.TypeMismatch, "call target is not a function")
		return true
	}
	fn, ok := model.Functions[ref.Name]
	if !ok {
		e.fail(thread, value.UndefinedFunction, ref.Name)
		return true
	}
	if len(args) != fn.Arity {
		e.fail(thread, value.ArityMismatch, fmt.Sprintf("%s expects %d args, got %d", ref.Name, fn.Arity, len(args)))
		return true
	}

	frame := controller.ActivationFrame{
		ID:           thread.NextFrameID(),
		FunctionName: thread.FunctionName,
		ReturnIP:     thread.IP + 1,
		Stack:        thread.Stack,
		Locals:       thread.Locals,
		CallerFrame:  controller.RootFrame,
	}
	if len(thread.Frames) > 0 {
		frame.CallerFrame = thread.Frames[len(thread.Frames)-1].ID
	}
	thread.Frames = append(thread.Frames, frame)

	thread.FunctionName = ref.Name
	thread.IP = fn.Entry
	thread.Stack = nil
	thread.Locals = bindParams(fn, args)
	return false
}

func bindParams(fn code.FunctionEntry, args []value.Value) map[value.Symbol]value.Value {
	locals := make(map[value.Symbol]value.Value, len(args))
	for i, p := range fn.Params {
		if i < len(args) {
			locals[value.Symbol(p)] = args[i]
		}
	}
	return locals
}

func (e *Executor) doCallF(ctx context.Context, thread *controller.Thread, model *code.CodeModel, n int) bool {
	args, calleeV, ok := e.popCallSite(thread, n)
	if !ok {
		return true
	}
	ref, ok := calleeV.(value.ForeignRef)
	if !ok {
		e.fail(thread, value.TypeMismatch, "call target is not a foreign binding")
		return true
	}
	entry, ok := model.Foreigns[ref.Name]
	if !ok {
		e.fail(thread, value.UndefinedFunction, ref.Name)
		return true
	}
	if len(args) != entry.Arity {
		e.fail(thread, value.ArityMismatch, fmt.Sprintf("%s expects %d args, got %d", ref.Name, entry.Arity, len(args)))
		return true
	}

	trace.Call(thread.ID, ref.Name, args)
	result, err := e.Bridge.Call(ctx, entry.Target, args)
	if err != nil {
		if rerr, ok := err.(*value.RuntimeError); ok {
			thread.State = controller.Errored
			thread.ErrorReason = rerr
		} else {
			thread.State = controller.Errored
			thread.ErrorReason = value.NewRuntimeError(value.ForeignError, err.Error())
		}
		return true
	}
	trace.Return(thread.ID, ref.Name, result)

	thread.Stack = append(thread.Stack, result)
	thread.IP++
	return false
}

func (e *Executor) doACall(ctx context.Context, thread *controller.Thread, model *code.CodeModel, outbox *controller.Outbox, n int) bool {
	args, calleeV, ok := e.popCallSite(thread, n)
	if !ok {
		return true
	}
	ref, ok := calleeV.(value.FunctionRef)
	if !ok {
		e.fail(thread, value.TypeMismatch, "async target is not a function")
		return true
	}
	fn, ok := model.Functions[ref.Name]
	if !ok {
		e.fail(thread, value.UndefinedFunction, ref.Name)
		return true
	}
	if len(args) != fn.Arity {
		e.fail(thread, value.ArityMismatch, fmt.Sprintf("%s expects %d args, got %d", ref.Name, fn.Arity, len(args)))
		return true
	}

	newThreadID, err := e.Controller.ReserveThreadID(ctx)
	if err != nil {
		e.fail(thread, value.ControllerUnavailable, err.Error())
		return true
	}
	newFutureID, err := e.Controller.ReserveFutureID(ctx)
	if err != nil {
		e.fail(thread, value.ControllerUnavailable, err.Error())
		return true
	}

	outbox.NewThreads = append(outbox.NewThreads, controller.NewThreadRequest{
		ThreadID:     newThreadID,
		FutureID:     newFutureID,
		FunctionName: ref.Name,
		Args:         args,
	})
	trace.Thread("spawn", newThreadID, ref.Name)

	thread.Stack = append(thread.Stack, value.NewFutureRef(newFutureID))
	thread.IP++
	return false
}

// popCallSite pops n arguments (restoring source order) and the callee
// value beneath them, the layout every Call/CallF/ACall site compiles to
// (callee pushed first, then arguments left to right).
func (e *Executor) popCallSite(thread *controller.Thread, n int) ([]value.Value, value.Value, bool) {
	args := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		v, ok := e.pop(thread)
		if !ok {
			return nil, nil, false
		}
		args[i] = v
	}
	callee, ok := e.pop(thread)
	if !ok {
		return nil, nil, false
	}
	return args, callee, true
}

// doReturn pops the callee frame's return value. If there is a caller frame
// it restores the caller's stack/locals/IP and pushes the value there; if
// this was the root frame the thread transitions to Finished, and its value
// becomes the value resolved onto its terminal future by the caller of run.
func (e *Executor) doReturn(thread *controller.Thread) bool {
	v, ok := e.pop(thread)
	if !ok {
		return true
	}

	if len(thread.Frames) == 0 {
		thread.State = controller.Finished
		thread.FinishedValue = v
		return true
	}

	n := len(thread.Frames)
	frame := thread.Frames[n-1]
	thread.Frames = thread.Frames[:n-1]

	thread.Stack = append(frame.Stack, v)
	thread.Locals = frame.Locals
	thread.IP = frame.ReturnIP
	thread.FunctionName = frame.FunctionName
	return false
}

// doWait implements Wait: if the future is already resolved, the value is
// pushed immediately and execution continues in the same step (spec.md
// "await on an already-resolved future returns immediately without
// suspension"). A future that resolved to an ErrorValue instead propagates
// the producer's error: the waiter becomes Errored with the producer's code
// rather than pushing the ErrorValue for a later opcode to choke on (spec.md
// §7, §8 scenario 6). Otherwise the thread suspends; IP is advanced past
// Wait before suspending so that Wake's later resume picks up exactly after
// this instruction. A future spawned by an ACall earlier in this same step
// is not yet in the controller (its record is created when the outbox is
// committed), so it counts as unresolved.
func (e *Executor) doWait(ctx context.Context, thread *controller.Thread, outbox *controller.Outbox) bool {
	v, ok := e.pop(thread)
	if !ok {
		return true
	}
	ref, ok := v.(value.FutureRef)
	if !ok {
		e.fail(thread, value.TypeMismatch, "await target is not a future")
		return true
	}

	future, err := e.Controller.ReadFuture(ctx, ref.ID)
	if err != nil {
		pending := false
		for _, req := range outbox.NewThreads {
			if req.FutureID == ref.ID {
				pending = true
				break
			}
		}
		if !pending {
			e.fail(thread, value.UnboundName, fmt.Sprintf("future %d", ref.ID))
			return true
		}
		future = &controller.Future{ID: ref.ID}
	}

	thread.IP++
	if future.Resolved {
		if ev, isErr := future.Value.(value.ErrorValue); isErr {
			e.fail(thread, ev.Code, ev.Reason)
			return true
		}
		thread.Stack = append(thread.Stack, future.Value)
		return false
	}

	thread.State = controller.Waiting
	thread.WaitingOn = ref.ID
	return true
}
