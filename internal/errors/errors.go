// Package errors defines the typed error kinds raised by the interpreter,
// the trace recorder and the code generator (§7). Each kind wraps
// github.com/pkg/errors so that an error raised inside a trace exit or a
// doall worker keeps the stack at which it originated; EngineError itself
// carries only a Kind and a Message.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind discriminates the error kinds enumerated in §7.
type Kind int

const (
	KindNameNotFound Kind = iota
	KindTypeError
	KindLengthError
	KindOutOfBounds
	KindArity
	KindNonFunctionCall
	KindNoMethod
	KindOverflow
	KindRecordAbort
	KindRegisterOverflow
)

func (k Kind) String() string {
	switch k {
	case KindNameNotFound:
		return "NameNotFound"
	case KindTypeError:
		return "TypeError"
	case KindLengthError:
		return "LengthError"
	case KindOutOfBounds:
		return "OutOfBounds"
	case KindArity:
		return "Arity"
	case KindNonFunctionCall:
		return "NonFunctionCall"
	case KindNoMethod:
		return "NoMethod"
	case KindOverflow:
		return "Overflow"
	case KindRecordAbort:
		return "RecordAbort"
	case KindRegisterOverflow:
		return "RegisterOverflow"
	default:
		return "UnknownError"
	}
}

// EngineError is the concrete error value for every kind in §7. Message is
// the one human-readable rendering per kind (§7 "User-visible behavior").
type EngineError struct {
	Kind    Kind
	Message string
}

func (e *EngineError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

func newErr(k Kind, msg string) error {
	return errors.WithStack(&EngineError{Kind: k, Message: msg})
}

// KindOf unwraps err (including through pkg/errors wrapping) to its Kind,
// reporting ok=false for errors this package did not raise.
func KindOf(err error) (Kind, bool) {
	var ee *EngineError
	for err != nil {
		if e, ok := err.(*EngineError); ok {
			ee = e
			break
		}
		err = errors.Unwrap(err)
	}
	if ee == nil {
		return 0, false
	}
	return ee.Kind, true
}

func NewNameNotFound(name string) error {
	return newErr(KindNameNotFound, fmt.Sprintf("object %q not found", name))
}

func NewTypeError(expected, got string) error {
	return newErr(KindTypeError, fmt.Sprintf("expected %s, got %s", expected, got))
}

func NewLengthError(op string, aLen, bLen int) error {
	return newErr(KindLengthError, fmt.Sprintf("%s: non-conformable lengths %d, %d", op, aLen, bLen))
}

func NewOutOfBounds(index, length int) error {
	return newErr(KindOutOfBounds, fmt.Sprintf("subscript %d out of bounds for length %d", index, length))
}

func NewArity(fn string, given, expected int) error {
	return newErr(KindArity, fmt.Sprintf("%s: %d arguments passed, %d expected", fn, given, expected))
}

func NewNonFunctionCall(gotType string) error {
	return newErr(KindNonFunctionCall, fmt.Sprintf("attempt to apply non-function of type %s", gotType))
}

func NewNoMethod(generic string, class string) error {
	return newErr(KindNoMethod, fmt.Sprintf("no applicable method for %q applied to class %q", generic, class))
}

// NewOverflow is informational only: by default (§7) overflow returns NA
// rather than raising; this constructor exists for callers (tests,
// diagnostics) that want to report it as an event rather than a value.
func NewOverflow(op string) error {
	return newErr(KindOverflow, fmt.Sprintf("%s: integer overflow, NA produced", op))
}

// RecordAbortReason enumerates why a trace recording ended early (§6.1
// supplemented feature).
type RecordAbortReason int

const (
	BudgetExceeded RecordAbortReason = iota
	UnsupportedGuard
	NestedRecording
	UnrepresentableType
)

func (r RecordAbortReason) String() string {
	switch r {
	case BudgetExceeded:
		return "BudgetExceeded"
	case UnsupportedGuard:
		return "UnsupportedGuard"
	case NestedRecording:
		return "NestedRecording"
	case UnrepresentableType:
		return "UnrepresentableType"
	default:
		return "UnknownReason"
	}
}

// NewRecordAbort never surfaces to user code (§7): the recorder catches it
// and silently resumes interpretation.
func NewRecordAbort(reason RecordAbortReason) error {
	return newErr(KindRecordAbort, reason.String())
}

func NewRegisterOverflow() error {
	return newErr(KindRegisterOverflow, "register file exhausted")
}
