package value

// ErrorCode enumerates the error kinds the runtime can raise (spec.md §7).
// ErrorCode is not itself a Value; ErrorValue (below) wraps a code and a
// reason as the Value variant a thread's terminal future carries through
// await.
type ErrorCode int

const (
	E_NONE ErrorCode = iota
	TypeMismatch
	ArityMismatch
	UnboundName
	UndefinedFunction
	DivisionByZero
	ForeignError
	DoubleResolve
	LeaseLost
	ControllerUnavailable
	MalformedCode
	VersionConflict
)

var errorNames = map[ErrorCode]string{
	E_NONE:                "E_NONE",
	TypeMismatch:          "TypeMismatch",
	ArityMismatch:         "ArityMismatch",
	UnboundName:           "UnboundName",
	UndefinedFunction:     "UndefinedFunction",
	DivisionByZero:        "DivisionByZero",
	ForeignError:          "ForeignError",
	DoubleResolve:         "DoubleResolve",
	LeaseLost:             "LeaseLost",
	ControllerUnavailable: "ControllerUnavailable",
	MalformedCode:         "MalformedCode",
	VersionConflict:       "VersionConflict",
}

func (e ErrorCode) String() string {
	if name, ok := errorNames[e]; ok {
		return name
	}
	return "UnknownError"
}

// ErrorValue wraps an ErrorCode plus an optional reason string (e.g. the
// foreign host's failure message for ForeignError) as a runtime Value, so it
// can be pushed onto a terminal future and propagate through await.
type ErrorValue struct {
	Code   ErrorCode
	Reason string
}

func NewError(code ErrorCode, reason string) ErrorValue {
	return ErrorValue{Code: code, Reason: reason}
}

func (e ErrorValue) Type() TypeCode { return TypeError }

func (e ErrorValue) String() string {
	if e.Reason == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Reason
}

func (e ErrorValue) Truthy() bool { return true }

func (e ErrorValue) Equal(other Value) bool {
	o, ok := other.(ErrorValue)
	return ok && e.Code == o.Code && e.Reason == o.Reason
}

// RuntimeError is the Go error type executors and the controller return for
// the error kinds above; it carries the same ErrorCode so callers can branch
// on it without string matching.
type RuntimeError struct {
	Code   ErrorCode
	Reason string
}

func NewRuntimeError(code ErrorCode, reason string) *RuntimeError {
	return &RuntimeError{Code: code, Reason: reason}
}

func (e *RuntimeError) Error() string {
	if e.Reason == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Reason
}

// AsErrorValue converts a RuntimeError to the Value that should be pushed
// onto a terminal future when a thread errors.
func (e *RuntimeError) AsErrorValue() ErrorValue {
	return ErrorValue{Code: e.Code, Reason: e.Reason}
}
