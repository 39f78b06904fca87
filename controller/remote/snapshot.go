package remote

import (
	"github.com/ericsun2/hark-lang/code"
	"github.com/ericsun2/hark-lang/controller"
	"github.com/ericsun2/hark-lang/value"
)

// snapshot is the JSON-serializable persisted-state layout spec.md §6
// describes: threads, futures, code, and counters tables, plus the
// controller-private step-token ledger a real durable store would also
// need to survive a restart without losing P5 idempotence.
type snapshot struct {
	Threads      []threadSnapshot  `json:"threads"`
	Futures      []futureSnapshot  `json:"futures"`
	Code         *codeSnapshot     `json:"code,omitempty"`
	NextThreadID int64             `json:"next_thread_id"`
	NextFutureID int64             `json:"next_future_id"`
	Ledger       map[int64]string  `json:"ledger"`
}

type threadSnapshot struct {
	ID             int64                  `json:"id"`
	Version        int64                  `json:"version"`
	State          int                    `json:"state"`
	FunctionName   string                 `json:"function_name"`
	IP             int                    `json:"ip"`
	Stack          []wireValue            `json:"stack"`
	Locals         map[string]wireValue   `json:"locals"`
	Frames         []frameSnapshot        `json:"frames"`
	WaitingOn      int64                  `json:"waiting_on"`
	TerminalFuture int64                  `json:"terminal_future"`
	FinishedValue  *wireValue             `json:"finished_value,omitempty"`
	ErrorCode      int                    `json:"error_code,omitempty"`
	ErrorReason    string                 `json:"error_reason,omitempty"`
	HasError       bool                   `json:"has_error,omitempty"`
}

type frameSnapshot struct {
	ID           int64                `json:"id"`
	FunctionName string               `json:"function_name"`
	ReturnIP     int                  `json:"return_ip"`
	Stack        []wireValue          `json:"stack"`
	Locals       map[string]wireValue `json:"locals"`
	CallerFrame  int64                `json:"caller_frame"`
}

type futureSnapshot struct {
	ID       int64       `json:"id"`
	Version  int64       `json:"version"`
	Resolved bool        `json:"resolved"`
	Value    *wireValue  `json:"value,omitempty"`
	Chain    []int64     `json:"chain,omitempty"`
}

type codeSnapshot struct {
	Instructions []code.Instruction            `json:"instructions"`
	Constants    []wireValue                   `json:"constants"`
	Names        []string                      `json:"names"`
	Functions    map[string]code.FunctionEntry `json:"functions"`
	Foreigns     map[string]code.ForeignEntry  `json:"foreigns"`
}

// Snapshot captures the controller's entire durable state for checkpointing.
func (c *Controller) Snapshot() (*snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := &snapshot{
		NextThreadID: c.nextThreadID,
		NextFutureID: c.nextFutureID,
		Ledger:       make(map[int64]string, len(c.ledger)),
	}
	for id, tok := range c.ledger {
		snap.Ledger[id] = tok
	}

	for _, rec := range c.threads {
		ts, err := encodeThread(rec)
		if err != nil {
			return nil, err
		}
		snap.Threads = append(snap.Threads, ts)
	}
	for _, rec := range c.futures {
		fs, err := encodeFuture(rec)
		if err != nil {
			return nil, err
		}
		snap.Futures = append(snap.Futures, fs)
	}
	if c.code != nil {
		cs, err := encodeCode(c.code)
		if err != nil {
			return nil, err
		}
		snap.Code = cs
	}
	return snap, nil
}

// Restore replaces the controller's state with snap's, the inverse of
// Snapshot. It is used to reload from a checkpoint file at startup.
func (c *Controller) Restore(snap *snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	threads := make(map[int64]*threadRecord, len(snap.Threads))
	for _, ts := range snap.Threads {
		rec, err := decodeThread(ts)
		if err != nil {
			return err
		}
		threads[ts.ID] = rec
	}
	futures := make(map[int64]*futureRecord, len(snap.Futures))
	for _, fs := range snap.Futures {
		rec, err := decodeFuture(fs)
		if err != nil {
			return err
		}
		futures[fs.ID] = rec
	}

	c.threads = threads
	c.futures = futures
	c.nextThreadID = snap.NextThreadID
	c.nextFutureID = snap.NextFutureID
	c.ledger = make(map[int64]string, len(snap.Ledger))
	for id, tok := range snap.Ledger {
		c.ledger[id] = tok
	}
	c.leases = make(map[int64]lease)
	c.readyQueue = nil
	for id, rec := range c.threads {
		if rec.thread.State == controller.Ready {
			c.readyQueue = append(c.readyQueue, id)
		}
	}
	if snap.Code != nil {
		model, err := decodeCode(snap.Code)
		if err != nil {
			return err
		}
		c.code = model
	}
	return nil
}

func encodeThread(rec *threadRecord) (threadSnapshot, error) {
	t := rec.thread
	stack, err := encodeValues(t.Stack)
	if err != nil {
		return threadSnapshot{}, err
	}
	locals, err := encodeLocals(t.Locals)
	if err != nil {
		return threadSnapshot{}, err
	}
	frames := make([]frameSnapshot, len(t.Frames))
	for i, f := range t.Frames {
		fStack, err := encodeValues(f.Stack)
		if err != nil {
			return threadSnapshot{}, err
		}
		fLocals, err := encodeLocals(f.Locals)
		if err != nil {
			return threadSnapshot{}, err
		}
		frames[i] = frameSnapshot{
			ID: f.ID, FunctionName: f.FunctionName, ReturnIP: f.ReturnIP,
			Stack: fStack, Locals: fLocals, CallerFrame: f.CallerFrame,
		}
	}

	ts := threadSnapshot{
		ID: t.ID, Version: rec.version, State: int(t.State),
		FunctionName: t.FunctionName, IP: t.IP, Stack: stack, Locals: locals,
		Frames: frames, WaitingOn: t.WaitingOn, TerminalFuture: t.TerminalFuture,
	}
	if t.FinishedValue != nil {
		fv, err := encodeValue(t.FinishedValue)
		if err != nil {
			return threadSnapshot{}, err
		}
		ts.FinishedValue = &fv
	}
	if t.ErrorReason != nil {
		ts.HasError = true
		ts.ErrorCode = int(t.ErrorReason.Code)
		ts.ErrorReason = t.ErrorReason.Reason
	}
	return ts, nil
}

func decodeThread(ts threadSnapshot) (*threadRecord, error) {
	stack, err := decodeValues(ts.Stack)
	if err != nil {
		return nil, err
	}
	locals, err := decodeLocals(ts.Locals)
	if err != nil {
		return nil, err
	}
	frames := make([]controller.ActivationFrame, len(ts.Frames))
	for i, f := range ts.Frames {
		fStack, err := decodeValues(f.Stack)
		if err != nil {
			return nil, err
		}
		fLocals, err := decodeLocals(f.Locals)
		if err != nil {
			return nil, err
		}
		frames[i] = controller.ActivationFrame{
			ID: f.ID, FunctionName: f.FunctionName, ReturnIP: f.ReturnIP,
			Stack: fStack, Locals: fLocals, CallerFrame: f.CallerFrame,
		}
	}

	t := &controller.Thread{
		ID: ts.ID, State: controller.ThreadState(ts.State), FunctionName: ts.FunctionName,
		IP: ts.IP, Stack: stack, Locals: locals, Frames: frames,
		WaitingOn: ts.WaitingOn, TerminalFuture: ts.TerminalFuture,
	}
	if ts.FinishedValue != nil {
		fv, err := decodeValue(*ts.FinishedValue)
		if err != nil {
			return nil, err
		}
		t.FinishedValue = fv
	}
	if ts.HasError {
		t.ErrorReason = value.NewRuntimeError(value.ErrorCode(ts.ErrorCode), ts.ErrorReason)
	}
	return &threadRecord{thread: t, version: ts.Version}, nil
}

func encodeFuture(rec *futureRecord) (futureSnapshot, error) {
	f := rec.future
	fs := futureSnapshot{ID: f.ID, Version: rec.version, Resolved: f.Resolved, Chain: append([]int64(nil), f.Chain...)}
	if f.Resolved && f.Value != nil {
		v, err := encodeValue(f.Value)
		if err != nil {
			return futureSnapshot{}, err
		}
		fs.Value = &v
	}
	return fs, nil
}

func decodeFuture(fs futureSnapshot) (*futureRecord, error) {
	f := &controller.Future{ID: fs.ID, Resolved: fs.Resolved, Chain: append([]int64(nil), fs.Chain...)}
	if fs.Value != nil {
		v, err := decodeValue(*fs.Value)
		if err != nil {
			return nil, err
		}
		f.Value = v
	}
	return &futureRecord{future: f, version: fs.Version}, nil
}

func encodeLocals(locals map[value.Symbol]value.Value) (map[string]wireValue, error) {
	out := make(map[string]wireValue, len(locals))
	for k, v := range locals {
		w, err := encodeValue(v)
		if err != nil {
			return nil, err
		}
		out[string(k)] = w
	}
	return out, nil
}

func decodeLocals(locals map[string]wireValue) (map[value.Symbol]value.Value, error) {
	out := make(map[value.Symbol]value.Value, len(locals))
	for k, w := range locals {
		v, err := decodeValue(w)
		if err != nil {
			return nil, err
		}
		out[value.Symbol(k)] = v
	}
	return out, nil
}

func encodeCode(model *code.CodeModel) (*codeSnapshot, error) {
	consts, err := encodeValues(model.Constants)
	if err != nil {
		return nil, err
	}
	return &codeSnapshot{
		Instructions: append([]code.Instruction(nil), model.Instructions...),
		Constants:    consts,
		Names:        append([]string(nil), model.Names...),
		Functions:    model.Functions,
		Foreigns:     model.Foreigns,
	}, nil
}

func decodeCode(snap *codeSnapshot) (*code.CodeModel, error) {
	consts, err := decodeValues(snap.Constants)
	if err != nil {
		return nil, err
	}
	model := code.NewCodeModel()
	model.Instructions = append([]code.Instruction(nil), snap.Instructions...)
	model.Constants = consts
	model.Names = append([]string(nil), snap.Names...)
	if snap.Functions != nil {
		model.Functions = snap.Functions
	}
	if snap.Foreigns != nil {
		model.Foreigns = snap.Foreigns
	}
	return model, nil
}
