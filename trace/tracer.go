// Package trace provides execution tracing for the Hark runtime: call/return/
// exception events from the executor and thread lifecycle events from the
// executor and scheduler, written to a single filterable sink.
package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ericsun2/hark-lang/value"
)

// Tracer writes execution events to an io.Writer, optionally filtered by
// function-name glob.
type Tracer struct {
	enabled bool
	filters []string
	writer  io.Writer
	mu      sync.Mutex
}

// Global tracer instance
var globalTracer *Tracer

// Init initializes the global tracer
func Init(enabled bool, filters []string, writer io.Writer) {
	if writer == nil {
		writer = os.Stderr
	}
	globalTracer = &Tracer{
		enabled: enabled,
		filters: filters,
		writer:  writer,
	}
}

// IsEnabled returns whether tracing is enabled
func IsEnabled() bool {
	if globalTracer == nil {
		return false
	}
	return globalTracer.enabled
}

// matchesFilter checks if a function name matches any of the filter patterns
func (t *Tracer) matchesFilter(functionName string) bool {
	if len(t.filters) == 0 {
		return true // No filters = trace everything
	}

	for _, pattern := range t.filters {
		if matched, _ := filepath.Match(pattern, functionName); matched {
			return true
		}
	}
	return false
}

// Call logs a function/foreign call entered by a thread.
func (t *Tracer) Call(threadID int64, functionName string, args []value.Value) {
	if !t.enabled || !t.matchesFilter(functionName) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	argStrs := make([]string, len(args))
	for i, arg := range args {
		argStrs[i] = arg.String()
	}
	argsStr := strings.Join(argStrs, ", ")

	fmt.Fprintf(t.writer, "[TRACE] thread %d CALL %s args=[%s]\n", threadID, functionName, argsStr)
}

// Return logs a function's return value.
func (t *Tracer) Return(threadID int64, functionName string, result value.Value) {
	if !t.enabled || !t.matchesFilter(functionName) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	resultStr := "null"
	if result != nil {
		resultStr = result.String()
	}

	fmt.Fprintf(t.writer, "[TRACE] thread %d RETURN %s => %s\n", threadID, functionName, resultStr)
}

// Exception logs a thread entering the errored state.
func (t *Tracer) Exception(threadID int64, functionName string, reason value.ErrorCode) {
	if !t.enabled || !t.matchesFilter(functionName) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.writer, "[TRACE] thread %d EXCEPTION %s %s\n", threadID, functionName, reason.String())
}

// Print logs output produced by a program's print() call.
func (t *Tracer) Print(threadID int64, message string) {
	if !t.enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	display := message
	if len(display) > 60 {
		display = display[:57] + "..."
	}

	fmt.Fprintf(t.writer, "[TRACE]   PRINT thread %d %q\n", threadID, display)
}

// Thread logs a thread lifecycle event for a thread or future: the executor
// emits spawn and finished, the scheduler emits worker_error.
func (t *Tracer) Thread(event string, id int64, details string) {
	if !t.enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if details != "" {
		fmt.Fprintf(t.writer, "[TRACE] %s id=%d %s\n", event, id, details)
	} else {
		fmt.Fprintf(t.writer, "[TRACE] %s id=%d\n", event, id)
	}
}

// Global convenience functions

// Call logs a call using the global tracer.
func Call(threadID int64, functionName string, args []value.Value) {
	if globalTracer != nil {
		globalTracer.Call(threadID, functionName, args)
	}
}

// Return logs a return using the global tracer.
func Return(threadID int64, functionName string, result value.Value) {
	if globalTracer != nil {
		globalTracer.Return(threadID, functionName, result)
	}
}

// Exception logs an exception using the global tracer.
func Exception(threadID int64, functionName string, reason value.ErrorCode) {
	if globalTracer != nil {
		globalTracer.Exception(threadID, functionName, reason)
	}
}

// Print logs a print() call using the global tracer.
func Print(threadID int64, message string) {
	if globalTracer != nil {
		globalTracer.Print(threadID, message)
	}
}

// Thread logs a thread/future lifecycle event using the global tracer.
func Thread(event string, id int64, details string) {
	if globalTracer != nil {
		globalTracer.Thread(event, id, details)
	}
}
